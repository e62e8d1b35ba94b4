package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Lookup is the capability set the HTTP API's non-hybrid endpoints need:
// fetching one chunk's stored vector (for /similar-documents), fetching
// a neighboring paragraph by seq_num (for /context), and aggregating
// distinct values per category across the whole index (for /metadata;
// the values are not split by language). Kept separate
// from ClusterQuerier because these are single-document/aggregation
// lookups, not the lexical/vector branches the Hybrid Searcher fuses.
type Lookup interface {
	GetChunk(ctx context.Context, indexName, chunkID string) (*RankedResult, []float32, error)
	SimilarByVector(ctx context.Context, indexName string, vector []float32, excludeDocID string, topK int) ([]RankedResult, error)
	BySeqNum(ctx context.Context, indexName, docID string, seqNum int) (*RankedResult, error)
	CategoryValues(ctx context.Context, indexName string) (map[string][]string, error)
}

// OpenSearchLookup implements Lookup against the same OpenSearch cluster
// ClusterQuerier and the indexer talk to.
type OpenSearchLookup struct {
	*OpenSearchQuerier
}

func NewOpenSearchLookup(q *OpenSearchQuerier) *OpenSearchLookup {
	return &OpenSearchLookup{OpenSearchQuerier: q}
}

// GetChunk fetches one chunk document by id, returning both the ranked
// result shape (for /context) and its raw vector (for /similar-documents'
// k-NN seed).
func (l *OpenSearchLookup) GetChunk(ctx context.Context, indexName, chunkID string) (*RankedResult, []float32, error) {
	res, err := opensearchapi.GetRequest{Index: indexName, DocumentID: chunkID}.Do(ctx, l.OS)
	if err != nil {
		return nil, nil, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, nil, fmt.Errorf("get chunk %s: %s", chunkID, res.String())
	}

	var parsed struct {
		Found  bool `json:"found"`
		Source struct {
			DocID            string              `json:"doc_id"`
			PageNum          int                 `json:"page_num"`
			SeqNum           int                 `json:"seq_num"`
			OriginalFilename string              `json:"original_filename"`
			Categories       map[string][]string `json:"categories"`
			TextHi           string              `json:"text_content_hi"`
			TextGu           string              `json:"text_content_gu"`
			TextEn           string              `json:"text_content_en"`
			VectorEmbedding  []float32           `json:"vector_embedding"`
		} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, nil, fmt.Errorf("decode chunk %s: %w", chunkID, err)
	}
	if !parsed.Found {
		return nil, nil, nil
	}

	text := parsed.Source.TextHi
	if text == "" {
		text = parsed.Source.TextGu
	}
	if text == "" {
		text = parsed.Source.TextEn
	}

	rr := &RankedResult{
		ChunkID:          chunkID,
		DocID:            parsed.Source.DocID,
		PageNum:          parsed.Source.PageNum,
		SeqNum:           parsed.Source.SeqNum,
		Text:             text,
		OriginalFilename: parsed.Source.OriginalFilename,
		Categories:       parsed.Source.Categories,
	}
	return rr, parsed.Source.VectorEmbedding, nil
}

// SimilarByVector runs a vector-only k-NN search around vector,
// excluding chunks belonging to excludeDocID.
func (l *OpenSearchLookup) SimilarByVector(ctx context.Context, indexName string, vector []float32, excludeDocID string, topK int) ([]RankedResult, error) {
	dsl := map[string]any{
		"size": topK,
		"query": map[string]any{
			"bool": map[string]any{
				"must":     map[string]any{"knn": map[string]any{"vector_embedding": map[string]any{"vector": vector, "k": topK}}},
				"must_not": []map[string]any{{"term": map[string]any{"doc_id": excludeDocID}}},
			},
		},
	}
	return l.VectorSearch(ctx, indexName, dsl)
}

// BySeqNum looks up the single chunk belonging to docID with the given
// seq_num, used to assemble the {previous, current, next} triple for
// /context/{chunk_id}.
func (l *OpenSearchLookup) BySeqNum(ctx context.Context, indexName, docID string, seqNum int) (*RankedResult, error) {
	dsl := map[string]any{
		"size": 1,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]any{"doc_id": docID}},
					{"term": map[string]any{"seq_num": seqNum}},
				},
			},
		},
	}
	hits, err := l.VectorSearch(ctx, indexName, dsl)
	if err != nil {
		return nil, fmt.Errorf("by seq_num: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return &hits[0], nil
}

// CategoryValues aggregates distinct values for every category field
// declared in the index mapping plus bookmarks, for the filter UI
// behind /metadata. Category field names are config-driven (ResolvedConfig
// .Categories is a free-form map), so the set of fields to aggregate is
// discovered from the live mapping rather than hardcoded.
func (l *OpenSearchLookup) CategoryValues(ctx context.Context, indexName string) (map[string][]string, error) {
	fields, err := l.categoryFields(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("category values: %w", err)
	}
	fields = append(fields, "bookmarks")

	aggs := make(map[string]any, len(fields))
	for _, f := range fields {
		field := f
		path := field
		if field != "bookmarks" {
			// Category values are dynamically mapped strings; OpenSearch's
			// default dynamic template maps a bare string field to "text"
			// with a "keyword" multi-field, so aggregations need the
			// multi-field suffix.
			path = "categories." + field + ".keyword"
		}
		aggs[field] = map[string]any{"terms": map[string]any{"field": path, "size": 500}}
	}

	dsl := map[string]any{"size": 0, "aggs": aggs}
	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, fmt.Errorf("category values: marshal: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, l.OS)
	if err != nil {
		return nil, fmt.Errorf("category values: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("category values: %s", res.String())
	}

	var parsed struct {
		Aggregations map[string]struct {
			Buckets []struct {
				Key string `json:"key"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("category values: decode: %w", err)
	}

	out := make(map[string][]string, len(fields))
	for _, f := range fields {
		agg, ok := parsed.Aggregations[f]
		if !ok {
			out[f] = []string{}
			continue
		}
		values := make([]string, 0, len(agg.Buckets))
		for _, b := range agg.Buckets {
			values = append(values, b.Key)
		}
		out[f] = values
	}
	return out, nil
}

// categoryFields discovers the "categories.*" keyword fields currently
// present in the index mapping.
func (l *OpenSearchLookup) categoryFields(ctx context.Context, indexName string) ([]string, error) {
	res, err := opensearchapi.IndicesGetMappingRequest{Index: []string{indexName}}.Do(ctx, l.OS)
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("get mapping: %s", res.String())
	}

	var parsed map[string]struct {
		Mappings struct {
			Properties struct {
				Categories struct {
					Properties map[string]any `json:"properties"`
				} `json:"categories"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}

	var fields []string
	for _, idx := range parsed {
		for name := range idx.Mappings.Properties.Categories.Properties {
			fields = append(fields, name)
		}
	}
	return fields, nil
}
