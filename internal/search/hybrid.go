package search

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"pravachan-index/internal/config"
	"pravachan-index/internal/embed"
	"pravachan-index/internal/pkgerrors"
)

// Searcher is the Hybrid Searcher: executes lexical and vector queries
// in parallel, fuses with RRF, dedupes, paginates, and optionally
// reranks.
type Searcher struct {
	cfg      *config.Config
	querier  ClusterQuerier
	embedder embed.Adapter
	reranker Reranker // may be nil; rerank is skipped when absent
}

func NewSearcher(cfg *config.Config, querier ClusterQuerier, embedder embed.Adapter, reranker Reranker) *Searcher {
	return &Searcher{cfg: cfg, querier: querier, embedder: embedder, reranker: reranker}
}

// Search runs the full hybrid pipeline for one request.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	if s.cfg.SearchTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.SearchTimeoutSeconds)*time.Second)
		defer cancel()
	}

	queryVector, embedErr := s.embedder.Embed(ctx, req.Keywords)
	// A failed embedding call only degrades the vector branch; the
	// lexical branch can still run without a query vector.

	plan := BuildPlan(req, s.cfg, queryVector)

	var lexical, vector []RankedResult
	var lexErr, vecErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexical, lexErr = s.querier.LexicalSearch(ctx, s.cfg.SearchIndexName, plan.LexicalDSL, plan.TextField)
	}()
	go func() {
		defer wg.Done()
		if embedErr != nil {
			vecErr = fmt.Errorf("query embedding failed: %w", embedErr)
			return
		}
		vector, vecErr = s.querier.VectorSearch(ctx, s.cfg.SearchIndexName, plan.VectorDSL)
	}()
	wg.Wait()

	degraded := false
	switch {
	case lexErr != nil && vecErr != nil:
		return nil, pkgerrors.SearchError("both lexical and vector branches failed", fmt.Errorf("lexical: %v, vector: %v", lexErr, vecErr))
	case vecErr != nil:
		degraded = true
		vector = nil
	case lexErr != nil:
		degraded = true
		lexical = nil
	}

	fused := Dedupe(FuseRRF(lexical, vector, s.cfg.RRFConstant))
	totalHits := len(fused)
	totalsByType := make(map[string]int, 2)
	for _, r := range fused {
		if r.ContentType() == "granth" {
			totalsByType["granth"]++
		} else {
			totalsByType["pravachan"]++
		}
	}

	if req.SearchType == SearchRelevance && s.reranker != nil {
		fused = s.rerank(ctx, req.Keywords, fused)
	}

	page := paginate(fused, plan.From, plan.Size)

	return &Response{
		TotalHits:       totalHits,
		PageSize:        plan.Size,
		PageNumber:      req.PageNumber,
		Results:         page,
		Degraded:        degraded,
		HighlightWords:  extractHighlightWords(req.Keywords, page),
		TotalHitsByType: totalsByType,
	}, nil
}

// rerank rescores the top-M fused candidates with the
// external cross-encoder and re-sorts by its score; candidates beyond M
// keep their fused rank appended after the reranked head.
func (s *Searcher) rerank(ctx context.Context, query string, fused []FusedResult) []FusedResult {
	m := s.cfg.RerankTopM
	if m <= 0 || m > len(fused) {
		m = len(fused)
	}
	head := fused[:m]
	tail := fused[m:]

	scores, err := s.reranker.Rerank(ctx, query, head)
	if err != nil {
		return fused // reranker failure degrades to fused order, not a hard error
	}
	for i := range head {
		if i < len(scores) {
			head[i].FusedScore = scores[i]
		}
	}
	sortByScoreDesc(head)
	return append(head, tail...)
}

func sortByScoreDesc(results []FusedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FusedScore > results[j].FusedScore
	})
}

// paginate slices the requested window out of the fused list. Both
// branches fetched their full ranked prefix through this page, so
// fusion already saw every candidate at its true rank and the page
// offset applies only here, after fusion.
func paginate(fused []FusedResult, from, size int) []FusedResult {
	if from < 0 {
		from = 0
	}
	if from >= len(fused) {
		return nil
	}
	end := from + size
	if end > len(fused) {
		end = len(fused)
	}
	return fused[from:end]
}

var emTagRe = regexp.MustCompile(`<em>(.*?)</em>`)

// extractHighlightWords unions the original query tokens with every
// token inside <em>…</em> spans the cluster returned, strips HTML,
// and dedupes.
func extractHighlightWords(query string, results []FusedResult) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(tok string) {
		tok = strings.TrimSpace(tok)
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, tok := range strings.Fields(query) {
		add(tok)
	}
	for _, r := range results {
		for _, m := range emTagRe.FindAllStringSubmatch(r.Highlight, -1) {
			add(html.UnescapeString(m[1]))
		}
	}
	return out
}
