package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// ClusterQuerier is the capability set the Hybrid Searcher needs from
// the search cluster: run a lexical DSL query and a vector DSL query,
// independently so either can fail without the other.
type ClusterQuerier interface {
	LexicalSearch(ctx context.Context, indexName string, dsl map[string]any, textField string) ([]RankedResult, error)
	VectorSearch(ctx context.Context, indexName string, dsl map[string]any) ([]RankedResult, error)
}

// OpenSearchQuerier is the default ClusterQuerier, sharing the same
// client type as internal/index.Client (both speak to the same
// OpenSearch cluster, one for writes, one for reads).
type OpenSearchQuerier struct {
	OS *opensearch.Client
}

func (q *OpenSearchQuerier) LexicalSearch(ctx context.Context, indexName string, dsl map[string]any, textField string) ([]RankedResult, error) {
	hits, err := q.search(ctx, indexName, dsl, textField)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return hits, nil
}

func (q *OpenSearchQuerier) VectorSearch(ctx context.Context, indexName string, dsl map[string]any) ([]RankedResult, error) {
	hits, err := q.search(ctx, indexName, dsl, "")
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func (q *OpenSearchQuerier) search(ctx context.Context, indexName string, dsl map[string]any, highlightField string) ([]RankedResult, error) {
	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, fmt.Errorf("marshal dsl: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, q.OS)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("cluster returned error: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID        string              `json:"_id"`
				Score     float64             `json:"_score"`
				Source    json.RawMessage     `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]RankedResult, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		var src struct {
			DocID            string              `json:"doc_id"`
			PageNum          int                 `json:"page_num"`
			SeqNum           int                 `json:"seq_num"`
			OriginalFilename string              `json:"original_filename"`
			Categories       map[string][]string `json:"categories"`
			TextHi           string              `json:"text_content_hi"`
			TextGu           string              `json:"text_content_gu"`
			TextEn           string              `json:"text_content_en"`
		}
		if err := json.Unmarshal(h.Source, &src); err != nil {
			return nil, fmt.Errorf("decode hit source %s: %w", h.ID, err)
		}

		text := src.TextHi
		if text == "" {
			text = src.TextGu
		}
		if text == "" {
			text = src.TextEn
		}

		highlight := ""
		if highlightField != "" {
			if spans, ok := h.Highlight[highlightField]; ok && len(spans) > 0 {
				highlight = spans[0]
			}
		}

		out = append(out, RankedResult{
			ChunkID:          h.ID,
			DocID:            src.DocID,
			PageNum:          src.PageNum,
			SeqNum:           src.SeqNum,
			Text:             text,
			Score:            h.Score,
			OriginalFilename: src.OriginalFilename,
			Categories:       src.Categories,
			Highlight:        highlight,
		})
	}
	return out, nil
}
