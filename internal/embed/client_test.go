package embed

import (
	"math"
	"testing"

	"pravachan-index/internal/config"
)

// l2Normalize enforces that every indexed chunk's vector has
// ‖v‖₂ ≈ 1.0. GoogleAdapter.Embed calls it on
// every response before returning; these tests exercise it directly since
// the network call itself requires live credentials.
func TestL2Normalize(t *testing.T) {
	cases := []struct {
		name string
		in   []float32
	}{
		{"simple", []float32{3, 4}},
		{"already unit", []float32{1, 0, 0}},
		{"negative components", []float32{-3, 4, 0}},
		{"many dims", []float32{1, 1, 1, 1, 1, 1, 1, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := l2Normalize(tc.in)
			if len(out) != len(tc.in) {
				t.Fatalf("length changed: got %d want %d", len(out), len(tc.in))
			}
			var sumSquares float64
			for _, v := range out {
				sumSquares += float64(v) * float64(v)
			}
			norm := math.Sqrt(sumSquares)
			if math.Abs(norm-1.0) > 1e-6 {
				t.Errorf("norm = %v, want ~1.0", norm)
			}
		})
	}
}

func TestL2NormalizeZeroVector(t *testing.T) {
	in := []float32{0, 0, 0}
	out := l2Normalize(in)
	for i, v := range out {
		if v != in[i] {
			t.Errorf("zero vector should pass through unchanged, got %v", out)
		}
	}
}

func TestGoogleAdapterDimension(t *testing.T) {
	cfg := &config.Config{EmbeddingDimensions: 768}
	a := NewGoogleAdapter(cfg)
	if got := a.Dimension(); got != 768 {
		t.Errorf("Dimension() = %d, want 768", got)
	}
}
