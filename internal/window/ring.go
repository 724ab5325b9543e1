package window

// Ring is a fixed-capacity circular buffer. Appending beyond capacity
// silently evicts the oldest entry; capacity never grows after creation.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest entry
	count int
}

// NewRing creates a ring with the given capacity. Capacity must be positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when full.
func (r *Ring[T]) Push(v T) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th entry counting from the oldest (0 = oldest).
// Panics if i is out of range, matching slice semantics.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.count {
		panic("window: ring index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// Last returns the newest entry and true, or the zero value and false when
// the ring is empty.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.At(r.count - 1), true
}

// Prev returns the entry n positions before the newest (Prev(0) == Last).
func (r *Ring[T]) Prev(n int) (T, bool) {
	var zero T
	if n < 0 || n >= r.count {
		return zero, false
	}
	return r.At(r.count - 1 - n), true
}

// Snapshot returns the entries oldest-first in a new slice.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Clear empties the ring without releasing its backing array.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}
