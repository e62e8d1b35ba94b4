// Package search implements the Query Planner and Hybrid Searcher: it
// turns a parsed query request into lexical + vector DSL clauses against
// the search cluster, executes both in parallel, fuses the two ranked
// lists with Reciprocal Rank Fusion, dedupes, paginates, and optionally
// reranks with an external cross-encoder.
package search

import "context"

// SearchType selects the relevance pipeline: "speed" skips reranking,
// "relevance" reranks the top-M fused candidates.
type SearchType string

const (
	SearchSpeed     SearchType = "speed"
	SearchRelevance SearchType = "relevance"
)

// Request is the parsed search query parameters.
type Request struct {
	Keywords          string
	ProximityDistance int
	ExactMatch        bool
	ExcludeWords      []string
	Categories        map[string][]string
	ContentTypes      []string // "pravachan", "granth"
	Bookmark          string
	PageSize          int
	PageNumber        int
	SearchType        SearchType
}

// RankedResult is one hit from a single retrieval branch (lexical or
// vector), before fusion.
type RankedResult struct {
	ChunkID          string
	DocID            string
	PageNum          int
	Text             string
	Score            float64
	OriginalFilename string
	SeqNum           int
	Categories       map[string][]string
	Highlight        string // raw <em>…</em>-wrapped snippet from the cluster
}

// ContentType reports the result bucket a chunk belongs to, read off
// its categories; a chunk without a content_type category counts as
// "pravachan", the more common corpus content.
func (r RankedResult) ContentType() string {
	values := r.Categories["content_type"]
	if len(values) == 0 {
		return "pravachan"
	}
	return values[0]
}

// FusedResult is one RankedResult after RRF fusion across both
// branches, carrying the combined score and the rank it held in each
// source list (0 = absent from that list).
type FusedResult struct {
	RankedResult
	FusedScore float64
	LexRank    int
	VecRank    int
}

// Response is the payload returned up through routes to the HTTP
// API's `*_results` shape.
type Response struct {
	TotalHits      int
	PageSize       int
	PageNumber     int
	Results        []FusedResult
	Degraded       bool
	HighlightWords []string

	// TotalHitsByType counts the FULL fused result set per content
	// type, not just this page, so clients can paginate off each
	// bucket's total_hits.
	TotalHitsByType map[string]int
}

// Reranker is the external cross-encoder contract; the concrete model
// lives entirely behind this interface.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []FusedResult) ([]float64, error)
}
