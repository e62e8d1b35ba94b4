package search

import (
	"context"
	"testing"

	"pravachan-index/internal/config"
)

type fakeQuerier struct {
	lexical []RankedResult
	vector  []RankedResult
	lexErr  error
	vecErr  error
}

func (f *fakeQuerier) LexicalSearch(ctx context.Context, indexName string, dsl map[string]any, textField string) ([]RankedResult, error) {
	return f.lexical, f.lexErr
}

func (f *fakeQuerier) VectorSearch(ctx context.Context, indexName string, dsl map[string]any) ([]RankedResult, error) {
	return f.vector, f.vecErr
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vector) }

func testConfig() *config.Config {
	return &config.Config{
		SearchIndexName:   "pravachan_chunks",
		RRFConstant:       60,
		RerankTopM:        50,
		DefaultPageSize:   10,
		ProximityDistance: 5,
	}
}

func TestSearcher_Search_TotalHitsCoversFullFusedSet(t *testing.T) {
	granth := map[string][]string{"content_type": {"granth"}}
	querier := &fakeQuerier{
		lexical: []RankedResult{{ChunkID: "a"}, {ChunkID: "b", Categories: granth}, {ChunkID: "c"}},
		vector:  []RankedResult{{ChunkID: "d"}},
	}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	s := NewSearcher(testConfig(), querier, embedder, nil)

	resp, err := s.Search(context.Background(), Request{Keywords: "test", PageSize: 2, PageNumber: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.TotalHits != 4 {
		t.Fatalf("expected total_hits to count the full fused set (4), got %d", resp.TotalHits)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected page 1 to return page_size results, got %d", len(resp.Results))
	}
	// Bucket totals cover the full fused set, not just this page.
	if resp.TotalHitsByType["pravachan"] != 3 || resp.TotalHitsByType["granth"] != 1 {
		t.Fatalf("bucket totals = %v, want pravachan:3 granth:1", resp.TotalHitsByType)
	}
}

// TestSearcher_Search_SecondPageSlicesAfterFusion: both chunks of page 2
// must come from the fused global order, with each chunk's lexical and
// vector contributions fused at their true ranks.
func TestSearcher_Search_SecondPageSlicesAfterFusion(t *testing.T) {
	querier := &fakeQuerier{
		lexical: []RankedResult{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}},
		vector:  []RankedResult{{ChunkID: "d"}},
	}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	s := NewSearcher(testConfig(), querier, embedder, nil)

	resp, err := s.Search(context.Background(), Request{Keywords: "test", PageSize: 2, PageNumber: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Fused order: a (lex 1), d (vec 1, tie broken by lexical rank),
	// b (lex 2), c (lex 3); page 2 is the [2:4] window.
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results on page 2, got %d", len(resp.Results))
	}
	if resp.Results[0].ChunkID != "b" || resp.Results[1].ChunkID != "c" {
		t.Fatalf("page 2 = [%s, %s], want [b, c]",
			resp.Results[0].ChunkID, resp.Results[1].ChunkID)
	}
	if resp.TotalHits != 4 {
		t.Fatalf("total_hits = %d, want 4", resp.TotalHits)
	}
}

func TestSearcher_Search_DegradesOnVectorFailureOnly(t *testing.T) {
	querier := &fakeQuerier{
		lexical: []RankedResult{{ChunkID: "a"}},
		vecErr:  context.DeadlineExceeded,
	}
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	s := NewSearcher(testConfig(), querier, embedder, nil)

	resp, err := s.Search(context.Background(), Request{Keywords: "test", PageSize: 10, PageNumber: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !resp.Degraded {
		t.Fatalf("expected a partial branch failure to degrade, not fail outright")
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected the surviving lexical branch's result, got %d", len(resp.Results))
	}
}

func TestSearcher_Search_FailsWhenBothBranchesFail(t *testing.T) {
	querier := &fakeQuerier{lexErr: context.DeadlineExceeded, vecErr: context.DeadlineExceeded}
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	s := NewSearcher(testConfig(), querier, embedder, nil)

	_, err := s.Search(context.Background(), Request{Keywords: "test"})
	if err == nil {
		t.Fatalf("expected an error when both lexical and vector branches fail")
	}
}
