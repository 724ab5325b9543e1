package faceverify

import (
	"context"

	"fairplay/internal/logging"
	"fairplay/internal/window"
)

// Engine runs verification for one session: it obtains an embedding per
// retained frame (from the session input when pre-extracted, otherwise from
// the external embedder) and compares it against every reference identity.
type Engine struct {
	thresholds Thresholds
	refs       []ReferenceIdentity
	embedder   Embedder
	log        *logging.Logger
}

// NewEngine creates a verification engine. The embedder may be nil when all
// session frames carry pre-extracted embeddings.
func NewEngine(t Thresholds, refs []ReferenceIdentity, embedder Embedder, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Default()
	}
	return &Engine{thresholds: t, refs: refs, embedder: embedder, log: log}
}

// Verify processes the retained frames and reduces all attempts into one
// Result. A frame whose embedding cannot be obtained is skipped: it
// contributes zero attempts and is excluded from rate denominators. With no
// usable references the session degrades to an explicit unverified result.
func (e *Engine) Verify(ctx context.Context, frames []window.RetainedFrame) Result {
	if len(e.refs) == 0 {
		return Result{
			Verified:        false,
			Confidence:      0,
			FramesProcessed: 0,
			Error:           "no usable reference identities",
		}
	}

	var attempts []Attempt
	for _, frame := range frames {
		if ctx.Err() != nil {
			break
		}

		embedding, err := e.frameEmbedding(ctx, frame)
		if err != nil {
			e.log.Warn("skipping verification frame",
				"frame", frame.Index, "error", err)
			continue
		}

		for _, ref := range e.refs {
			attempt, err := Compare(frame.Index, ref, embedding, e.thresholds)
			if err != nil {
				e.log.Warn("distance computation failed",
					"frame", frame.Index, "reference", ref.Name, "error", err)
				continue
			}
			attempts = append(attempts, attempt)
			e.log.Debug("verification attempt",
				"frame", frame.Index,
				"reference", ref.Name,
				"similarity", attempt.Similarity,
				"verified", attempt.Verified)
		}
	}

	result := Reduce(attempts, len(frames), e.thresholds)
	e.log.Info("face verification complete",
		"verified", result.Verified,
		"confidence", result.Confidence,
		"successful", result.Successful,
		"total", result.Total)
	return result
}

// frameEmbedding prefers the pre-extracted embedding carried by the session
// input, falling back to the external embedder. No retry: a failed
// extraction is a graceful skip.
func (e *Engine) frameEmbedding(ctx context.Context, frame window.RetainedFrame) ([]float64, error) {
	if len(frame.Embedding) > 0 {
		return frame.Embedding, nil
	}
	if e.embedder == nil {
		return nil, ErrNoFace
	}
	return e.embedder.Embed(ctx, frame.Image)
}
