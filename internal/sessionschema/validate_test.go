package sessionschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func validDoc() map[string]any {
	kps := make([][]float64, 17)
	for i := range kps {
		kps[i] = []float64{float64(i) * 10, 200, 0.9}
	}
	return map[string]any{
		"session_id": "abc-123",
		"exercise":   "pushups",
		"video":      map[string]any{"fps": 30.0, "frame_count": 2},
		"frames": []any{
			map[string]any{
				"index":          0,
				"timestamp":      0.0,
				"keypoints":      kps,
				"frame_hash":     "0102030405060708",
				"face_embedding": []float64{0.1, 0.2},
			},
			map[string]any{"index": 1, "timestamp": 0.5},
		},
		"references": []any{
			map[string]any{"name": "ref_1", "embedding": []float64{0.1, 0.2}},
		},
	}
}

func marshal(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(marshal(t, validDoc())); err != nil {
		t.Errorf("Validate rejected valid document: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{
			name:   "missing exercise",
			mutate: func(doc map[string]any) { delete(doc, "exercise") },
		},
		{
			name:   "unknown exercise",
			mutate: func(doc map[string]any) { doc["exercise"] = "handstand" },
		},
		{
			name:   "missing video",
			mutate: func(doc map[string]any) { delete(doc, "video") },
		},
		{
			name: "zero fps",
			mutate: func(doc map[string]any) {
				doc["video"] = map[string]any{"fps": 0, "frame_count": 2}
			},
		},
		{
			name:   "empty frames",
			mutate: func(doc map[string]any) { doc["frames"] = []any{} },
		},
		{
			name: "short keypoint rows",
			mutate: func(doc map[string]any) {
				doc["frames"] = []any{map[string]any{
					"index": 0, "timestamp": 0.0,
					"keypoints": [][]float64{{1, 2, 0.5}},
				}}
			},
		},
		{
			name: "bad frame hash",
			mutate: func(doc map[string]any) {
				doc["frames"] = []any{map[string]any{
					"index": 0, "timestamp": 0.0, "frame_hash": "not-hex",
				}}
			},
		},
		{
			name: "negative timestamp",
			mutate: func(doc map[string]any) {
				doc["frames"] = []any{map[string]any{"index": 0, "timestamp": -1.0}}
			},
		},
		{
			name: "reference without embedding",
			mutate: func(doc map[string]any) {
				doc["references"] = []any{map[string]any{"name": "r"}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)
			if err := Validate(marshal(t, doc)); err == nil {
				t.Error("Validate accepted invalid document")
			}
		})
	}
}

func TestValidateNonJSON(t *testing.T) {
	err := Validate([]byte("not json at all"))
	if err == nil {
		t.Fatal("Validate accepted non-JSON input")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSchemaCompilesOnce(t *testing.T) {
	s1, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	s2, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if s1 != s2 {
		t.Error("Schema recompiled on second call")
	}
}
