package search

import (
	"unicode"

	"pravachan-index/internal/config"
)

// Language is the detected query language, mapped 1:1 to an
// IndexedRecord text field.
type Language string

const (
	LangHindi    Language = "hi"
	LangGujarati Language = "gu"
	LangEnglish  Language = "en"
)

// TextField returns the IndexedRecord field name this language reads
// from/writes to.
func (l Language) TextField() string {
	switch l {
	case LangGujarati:
		return "text_content_gu"
	case LangEnglish:
		return "text_content_en"
	default:
		return "text_content_hi"
	}
}

// DetectLanguage picks the query language by character-range majority
// between the Devanagari and Gujarati Unicode blocks, falling back to a
// Latin-majority check for English when neither script dominates.
func DetectLanguage(text string) Language {
	var devanagari, gujarati, latin, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		total++
		switch {
		case r >= 0x0900 && r <= 0x097F:
			devanagari++
		case r >= 0x0A80 && r <= 0x0AFF:
			gujarati++
		case r <= 0x024F: // Latin + extended Latin
			latin++
		}
	}

	if total == 0 {
		return LangEnglish
	}
	if devanagari >= gujarati && devanagari*2 >= total {
		return LangHindi
	}
	if gujarati > devanagari && gujarati*2 >= total {
		return LangGujarati
	}
	if latin*2 >= total {
		return LangEnglish
	}
	// No script reaches a majority: default to the most common corpus
	// language rather than guessing.
	return LangHindi
}

// Plan is the Query Planner's output: DSL clauses ready to hand to the
// search cluster client, plus the resolved text field for highlighting.
type Plan struct {
	Language   Language
	TextField  string
	LexicalDSL map[string]any
	VectorDSL  map[string]any
	From       int
	Size       int
}

// BuildPlan builds the cluster DSL for one request: a phrase-proximity lexical
// query (or exact match when ExactMatch), must_not exclusions, AND-across
// /OR-within category filters, a bookmark match, a parallel k-NN clause
// against the same filters, and a highlight clause. Pagination happens
// after fusion, so each branch fetches the full ranked prefix through
// the requested page; Plan.From/Size carry the window the Searcher
// slices out of the fused list.
func BuildPlan(req Request, cfg *config.Config, queryVector []float32) Plan {
	lang := DetectLanguage(req.Keywords)
	field := lang.TextField()

	slop := req.ProximityDistance
	if req.ExactMatch {
		slop = 0
	}
	if slop == 0 && !req.ExactMatch {
		slop = cfg.ProximityDistance
	}

	filter := buildFilter(req)

	mustNot := make([]map[string]any, 0, len(req.ExcludeWords))
	for _, w := range req.ExcludeWords {
		if w == "" {
			continue
		}
		mustNot = append(mustNot, map[string]any{"match": map[string]any{field: w}})
	}

	boolQuery := map[string]any{
		"must": map[string]any{
			"match_phrase": map[string]any{
				field: map[string]any{"query": req.Keywords, "slop": slop},
			},
		},
		"filter": filter,
	}
	if len(mustNot) > 0 {
		boolQuery["must_not"] = mustNot
	}
	if req.Bookmark != "" {
		filter = append(filter, map[string]any{"match": map[string]any{"bookmarks": req.Bookmark}})
		boolQuery["filter"] = filter
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = cfg.DefaultPageSize
	}
	pageNumber := req.PageNumber
	if pageNumber <= 0 {
		pageNumber = 1
	}
	from := (pageNumber - 1) * pageSize

	// Each branch returns ranks 1..depth so fusion sees every
	// candidate's true rank; offsetting a branch query would split a
	// chunk's lexical and vector contributions across pages.
	depth := from + pageSize

	lexicalDSL := map[string]any{
		"from":  0,
		"size":  depth,
		"query": map[string]any{"bool": boolQuery},
		"highlight": map[string]any{
			"fields": map[string]any{field: map[string]any{}},
		},
	}

	vectorDSL := map[string]any{
		"from": 0,
		"size": depth,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   map[string]any{"knn": map[string]any{"vector_embedding": map[string]any{"vector": queryVector, "k": depth}}},
				"filter": filter,
			},
		},
	}

	return Plan{
		Language:   lang,
		TextField:  field,
		LexicalDSL: lexicalDSL,
		VectorDSL:  vectorDSL,
		From:       from,
		Size:       pageSize,
	}
}

// buildFilter builds the AND-across-categories, OR-within-category
// bool.filter clause, plus an optional content-type terms filter.
func buildFilter(req Request) []map[string]any {
	var filter []map[string]any
	for name, values := range req.Categories {
		if len(values) == 0 {
			continue
		}
		// Category fields are dynamically mapped strings (see
		// internal/index.Client.EnsureIndex): OpenSearch's default
		// dynamic template analyzes the bare field as text and adds a
		// "keyword" multi-field, which a terms filter must target.
		filter = append(filter, map[string]any{
			"terms": map[string]any{"categories." + name + ".keyword": values},
		})
	}
	if len(req.ContentTypes) > 0 {
		filter = append(filter, map[string]any{
			"terms": map[string]any{"categories.content_type.keyword": req.ContentTypes},
		})
	}
	return filter
}
