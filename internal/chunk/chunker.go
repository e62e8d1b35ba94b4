// Package chunk splits paragraphs into overlapping chunks for
// embedding. Chunking strategies are picked by config string, not by
// concrete type, so new strategies can be added without touching
// callers.
package chunk

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"pravachan-index/internal/config"
	"pravachan-index/internal/embed"
	"pravachan-index/internal/logger"
	"pravachan-index/models"
)

// Chunker is the capability set every chunking strategy implements.
// The context bounds the dynamic strategy's embedding calls; the
// fixed-window strategy ignores it.
type Chunker interface {
	Chunk(ctx context.Context, docID string, paragraphs []models.Paragraph, cfg config.ResolvedConfig) []models.Chunk
}

// New resolves a Chunker from a config string, defaulting to the
// fixed-window strategy for anything unrecognized. The embedder feeds
// the dynamic strategy's similarity grouping.
func New(strategy string, embedder embed.Adapter) Chunker {
	switch strategy {
	case "dynamic":
		return DynamicChunker{Embedder: embedder}
	default:
		return FixedWindowChunker{}
	}
}

// FixedWindowChunker implements strategy "default": a fixed-size sliding
// window over each paragraph's text with chunk_size characters and
// chunk_overlap overlap. Chunks never span paragraphs.
type FixedWindowChunker struct{}

func (FixedWindowChunker) Chunk(_ context.Context, docID string, paragraphs []models.Paragraph, cfg config.ResolvedConfig) []models.Chunk {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []models.Chunk
	for _, p := range paragraphs {
		chunks = append(chunks, windowParagraph(docID, p, size, overlap)...)
	}
	return chunks
}

func windowParagraph(docID string, p models.Paragraph, size, overlap int) []models.Chunk {
	runes := []rune(p.Text)
	if len(runes) == 0 {
		return nil
	}

	var out []models.Chunk
	step := size - overlap
	if step <= 0 {
		step = size
	}

	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			out = append(out, models.Chunk{
				DocID:           docID,
				ChunkID:         uuid.NewString(),
				ParagraphSeqNum: p.SeqNum,
				PageNum:         p.PageNumStart,
				Text:            text,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// DynamicChunker implements strategy "dynamic": adjacent paragraphs
// merge while their sentence-embedding cosine similarity stays above
// SimilarityThreshold, then each merged group is fixed-windowed. When
// no Embedder is wired, or its batch call fails mid-ingest, grouping
// degrades to lexical token overlap so chunking still completes.
type DynamicChunker struct {
	Embedder            embed.Adapter
	SimilarityThreshold float64
}

func (d DynamicChunker) Chunk(ctx context.Context, docID string, paragraphs []models.Paragraph, cfg config.ResolvedConfig) []models.Chunk {
	groups := d.group(ctx, paragraphs)

	var out []models.Chunk
	fixed := FixedWindowChunker{}
	for _, group := range groups {
		merged := mergeGroup(group)
		out = append(out, fixed.Chunk(ctx, docID, []models.Paragraph{merged}, cfg)...)
	}
	return out
}

func (d DynamicChunker) group(ctx context.Context, paragraphs []models.Paragraph) [][]models.Paragraph {
	if d.Embedder != nil {
		groups, err := d.groupByCosine(ctx, paragraphs)
		if err == nil {
			return groups
		}
		logger.Warn("dynamic chunking: embedding similarity unavailable, using lexical overlap", "error", err)
	}

	threshold := d.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.35
	}
	return groupBySimilarity(paragraphs, threshold)
}

// groupByCosine embeds every paragraph once and merges an adjacent pair
// when the cosine similarity of their embeddings clears the threshold.
func (d DynamicChunker) groupByCosine(ctx context.Context, paragraphs []models.Paragraph) ([][]models.Paragraph, error) {
	if len(paragraphs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		texts[i] = p.Text
	}
	vectors, err := d.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(paragraphs) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d paragraphs", len(vectors), len(paragraphs))
	}

	threshold := d.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.75
	}

	var groups [][]models.Paragraph
	for i, p := range paragraphs {
		if n := len(groups); n > 0 && cosineSimilarity(vectors[i-1], vectors[i]) >= threshold {
			groups[n-1] = append(groups[n-1], p)
			continue
		}
		groups = append(groups, []models.Paragraph{p})
	}
	return groups, nil
}

// cosineSimilarity of two L2-normalized vectors reduces to their dot
// product; the Embedding Adapter normalizes every vector it returns.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func mergeGroup(group []models.Paragraph) models.Paragraph {
	if len(group) == 1 {
		return group[0]
	}
	var sb strings.Builder
	for i, p := range group {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p.Text)
	}
	first, last := group[0], group[len(group)-1]
	return models.Paragraph{
		PageNumStart: first.PageNumStart,
		PageNumEnd:   last.PageNumEnd,
		Text:         sb.String(),
		Type:         first.Type,
		SeqNum:       first.SeqNum,
	}
}

func groupBySimilarity(paragraphs []models.Paragraph, threshold float64) [][]models.Paragraph {
	var groups [][]models.Paragraph
	for _, p := range paragraphs {
		if n := len(groups); n > 0 && jaccardSimilarity(groups[n-1][len(groups[n-1])-1].Text, p.Text) >= threshold {
			groups[n-1] = append(groups[n-1], p)
			continue
		}
		groups = append(groups, []models.Paragraph{p})
	}
	return groups
}

// jaccardSimilarity is the token-overlap fallback used when no
// embedding client is available.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if utf8.RuneCountInString(tok) > 2 {
			out[tok] = true
		}
	}
	return out
}

// ValidateVector checks the universal invariant that every chunk's
// vector has the model's declared dimension.
func ValidateVector(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("chunk vector has dimension %d, want %d", len(vector), dimension)
	}
	return nil
}
