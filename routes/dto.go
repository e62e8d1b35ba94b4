// Package routes is the thin gin shell over the Hybrid Searcher: it
// binds HTTP request/response shapes onto internal/search's domain
// types and nothing else.
package routes

import (
	"pravachan-index/internal/search"
)

// SearchRequestBody is the wire shape of POST /search's body.
type SearchRequestBody struct {
	Keywords          string              `json:"keywords" binding:"required"`
	ProximityDistance int                 `json:"proximity_distance"`
	ExactMatch        bool                `json:"exact_match"`
	ExcludeWords      []string            `json:"exclude_words"`
	Categories        map[string][]string `json:"categories"`
	ContentTypes      []string            `json:"content_types"`
	Bookmark          string              `json:"bookmark"`
	PageSize          int                 `json:"page_size"`
	PageNumber        int                 `json:"page_number"`
	SearchType        string              `json:"search_type"`
}

func (b SearchRequestBody) toDomain() search.Request {
	st := search.SearchSpeed
	if b.SearchType == string(search.SearchRelevance) {
		st = search.SearchRelevance
	}
	return search.Request{
		Keywords:          b.Keywords,
		ProximityDistance: b.ProximityDistance,
		ExactMatch:        b.ExactMatch,
		ExcludeWords:      b.ExcludeWords,
		Categories:        b.Categories,
		ContentTypes:      b.ContentTypes,
		Bookmark:          b.Bookmark,
		PageSize:          b.PageSize,
		PageNumber:        b.PageNumber,
		SearchType:        st,
	}
}

// ResultItem is one hit within a *_results bucket.
type ResultItem struct {
	ChunkID          string              `json:"chunk_id"`
	DocID            string              `json:"doc_id"`
	PageNumber       int                 `json:"page_number"`
	ContentSnippet   string              `json:"content_snippet"`
	Score            float64             `json:"score"`
	OriginalFilename string              `json:"original_filename"`
	Metadata         map[string][]string `json:"metadata"`
}

// ResultBucket is the `{total_hits, page_size, page_number, results}`
// shape shared by pravachan_results and granth_results.
type ResultBucket struct {
	TotalHits  int          `json:"total_hits"`
	PageSize   int          `json:"page_size"`
	PageNumber int          `json:"page_number"`
	Results    []ResultItem `json:"results"`
}

// SearchResponseBody is POST /search's full response shape.
type SearchResponseBody struct {
	PravachanResults ResultBucket `json:"pravachan_results"`
	GranthResults    ResultBucket `json:"granth_results"`
	Suggestions      []string     `json:"suggestions"`
	HighlightWords   []string     `json:"highlight_words"`
	Degraded         bool         `json:"degraded,omitempty"`
}

func toResultItem(r search.FusedResult) ResultItem {
	return ResultItem{
		ChunkID:          r.ChunkID,
		DocID:            r.DocID,
		PageNumber:       r.PageNum,
		ContentSnippet:   snippet(r.Text),
		Score:            r.FusedScore,
		OriginalFilename: r.OriginalFilename,
		Metadata:         r.Categories,
	}
}

// snippet caps a chunk's text at a UI-friendly length; the search
// cluster's own highlight spans (search.FusedResult.Highlight) carry the
// <em>-wrapped match, this is only the plain fallback body text.
func snippet(text string) string {
	const maxRunes = 320
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "…"
}

// bucketize splits a fused, paginated result page into its
// content-type-specific buckets, preserving the already-applied fused
// rank order within each bucket. total_hits comes from the Searcher's
// full-result-set counts, not from this page, so clients can paginate
// off it.
func bucketize(resp *search.Response) (pravachan, granth ResultBucket) {
	pravachan = ResultBucket{
		TotalHits:  resp.TotalHitsByType["pravachan"],
		PageSize:   resp.PageSize,
		PageNumber: resp.PageNumber,
		Results:    []ResultItem{},
	}
	granth = ResultBucket{
		TotalHits:  resp.TotalHitsByType["granth"],
		PageSize:   resp.PageSize,
		PageNumber: resp.PageNumber,
		Results:    []ResultItem{},
	}

	for _, r := range resp.Results {
		item := toResultItem(r)
		if r.ContentType() == "granth" {
			granth.Results = append(granth.Results, item)
			continue
		}
		pravachan.Results = append(pravachan.Results, item)
	}
	return pravachan, granth
}
