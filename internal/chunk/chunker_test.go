package chunk

import (
	"context"
	"strings"
	"testing"

	"pravachan-index/internal/config"
	"pravachan-index/models"
)

func prose(seq int, text string) models.Paragraph {
	return models.Paragraph{
		PageNumStart: 1,
		PageNumEnd:   1,
		Text:         text,
		Type:         models.StandardProse,
		SeqNum:       seq,
	}
}

func TestFixedWindow_RespectsParagraphBoundaries(t *testing.T) {
	cfg := config.ResolvedConfig{ChunkSize: 20, ChunkOverlap: 5}
	paragraphs := []models.Paragraph{
		prose(0, strings.Repeat("a", 50)),
		prose(1, strings.Repeat("b", 10)),
	}

	chunks := FixedWindowChunker{}.Chunk(context.Background(), "doc", paragraphs, cfg)

	for _, c := range chunks {
		if strings.Contains(c.Text, "a") && strings.Contains(c.Text, "b") {
			t.Fatalf("chunk spans two paragraphs: %q", c.Text)
		}
	}
}

func TestFixedWindow_OverlapWindows(t *testing.T) {
	cfg := config.ResolvedConfig{ChunkSize: 10, ChunkOverlap: 4}
	text := "0123456789abcdefghij"

	chunks := FixedWindowChunker{}.Chunk(context.Background(), "doc", []models.Paragraph{prose(0, text)}, cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple windows over a %d-rune paragraph, got %d", len(text), len(chunks))
	}
	// step = size - overlap = 6, so the second window starts at rune 6.
	if !strings.HasPrefix(chunks[1].Text, "6789") {
		t.Errorf("second window should overlap the first by 4 runes, got %q", chunks[1].Text)
	}
}

func TestFixedWindow_PreservesParagraphSeqNum(t *testing.T) {
	cfg := config.ResolvedConfig{ChunkSize: 10, ChunkOverlap: 0}
	paragraphs := []models.Paragraph{
		prose(3, strings.Repeat("x", 25)),
	}

	chunks := FixedWindowChunker{}.Chunk(context.Background(), "doc", paragraphs, cfg)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.ParagraphSeqNum != 3 {
			t.Errorf("chunk lost its paragraph seq_num: got %d, want 3", c.ParagraphSeqNum)
		}
		if c.DocID != "doc" {
			t.Errorf("chunk doc_id = %q, want doc", c.DocID)
		}
	}
}

func TestFixedWindow_UniqueChunkIDs(t *testing.T) {
	cfg := config.ResolvedConfig{ChunkSize: 5, ChunkOverlap: 0}
	chunks := FixedWindowChunker{}.Chunk(context.Background(), "doc", []models.Paragraph{prose(0, strings.Repeat("y", 40))}, cfg)

	seen := make(map[string]bool)
	for _, c := range chunks {
		if seen[c.ChunkID] {
			t.Fatalf("duplicate chunk_id %s", c.ChunkID)
		}
		seen[c.ChunkID] = true
	}
}

func TestNew_StrategyDispatch(t *testing.T) {
	if _, ok := New("dynamic", nil).(DynamicChunker); !ok {
		t.Errorf("New(dynamic) should return the dynamic strategy")
	}
	if _, ok := New("default", nil).(FixedWindowChunker); !ok {
		t.Errorf("New(default) should return the fixed-window strategy")
	}
	if _, ok := New("unknown-strategy", nil).(FixedWindowChunker); !ok {
		t.Errorf("unrecognized strategy should fall back to fixed-window")
	}
}

// fakeEmbedder hands back a fixed unit vector per text so cosine
// grouping can be exercised without a live embedding model.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vectors[text], nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func (f fakeEmbedder) Dimension() int { return 2 }

func TestDynamic_MergesByCosineSimilarity(t *testing.T) {
	cfg := config.ResolvedConfig{ChunkSize: 1000, ChunkOverlap: 0}
	paragraphs := []models.Paragraph{
		prose(0, "on the nature of the soul"),
		prose(1, "the soul's nature, continued"),
		prose(2, "printing details of this edition"),
	}
	embedder := fakeEmbedder{vectors: map[string][]float32{
		"on the nature of the soul":        {1, 0},
		"the soul's nature, continued":     {0.9962, 0.0872},
		"printing details of this edition": {0, 1},
	}}

	chunks := DynamicChunker{Embedder: embedder}.Chunk(context.Background(), "doc", paragraphs, cfg)

	if len(chunks) != 2 {
		t.Fatalf("expected the two cosine-similar paragraphs to merge into one group, got %d chunks", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "nature of the soul") ||
		!strings.Contains(chunks[0].Text, "continued") {
		t.Errorf("merged group missing one of its paragraphs: %q", chunks[0].Text)
	}
	if strings.Contains(chunks[0].Text, "printing") {
		t.Errorf("dissimilar paragraph leaked into the merged group: %q", chunks[0].Text)
	}
}

func TestDynamic_FallsBackToLexicalOverlapWithoutEmbedder(t *testing.T) {
	cfg := config.ResolvedConfig{ChunkSize: 1000, ChunkOverlap: 0}
	paragraphs := []models.Paragraph{
		prose(0, "the nature of consciousness and liberation of the soul"),
		prose(1, "liberation of the soul follows the nature of consciousness"),
		prose(2, "completely unrelated administrative footnote about printing"),
	}

	chunks := DynamicChunker{SimilarityThreshold: 0.3}.Chunk(context.Background(), "doc", paragraphs, cfg)

	if len(chunks) != 2 {
		t.Fatalf("expected the two similar paragraphs to merge into one group, got %d chunks", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "nature of consciousness") ||
		!strings.Contains(chunks[0].Text, "follows") {
		t.Errorf("merged group missing one of its paragraphs: %q", chunks[0].Text)
	}
}

func TestValidateVector(t *testing.T) {
	if err := ValidateVector(make([]float32, 768), 768); err != nil {
		t.Errorf("matching dimension should validate: %v", err)
	}
	if err := ValidateVector(make([]float32, 767), 768); err == nil {
		t.Errorf("expected a dimension mismatch error")
	}
}
