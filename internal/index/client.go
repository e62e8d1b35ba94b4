// Package index implements the Indexer: upserts chunk records into the
// search cluster, supports the metadata-only update path used by the
// CONFIG_CHANGED discovery outcome, and deletes by doc_id.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/sony/gobreaker"

	"pravachan-index/internal/config"
	"pravachan-index/internal/pkgerrors"
	"pravachan-index/models"
)

// Indexer is the capability set the Discovery Engine and ingest pipeline
// depend on.
type Indexer interface {
	IndexChunks(ctx context.Context, docID string, records []models.IndexedRecord) error
	UpdateMetadata(ctx context.Context, docID string, categories map[string][]string, bookmarks []string, originalFilename string) error
	DeleteDoc(ctx context.Context, docID string) error
	ListDocIDs(ctx context.Context) (map[string]bool, error)
}

// Client is the default Indexer, backed by an OpenSearch cluster.
type Client struct {
	os        *opensearch.Client
	indexName string
	dimension int
	breaker   *gobreaker.CircuitBreaker
}

func NewClient(cfg *config.Config) (*Client, error) {
	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.SearchClusterURL},
		Username:  cfg.SearchClusterUsername,
		Password:  cfg.SearchClusterPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("index client: %w", err)
	}
	return &Client{
		os:        osClient,
		indexName: cfg.SearchIndexName,
		dimension: cfg.EmbeddingDimensions,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "index-client",
			Timeout: 30 * time.Second,
		}),
	}, nil
}

// EnsureIndex creates the index schema: three language-specific
// analyzed text fields, a dense k-NN
// vector field of the model's fixed dimension, a dynamically mapped
// categories object (each category gets text plus a .keyword sub-field),
// keyword bookmarks, and doc_id/page_num/seq_num/
// original_filename as keyword/integer. Idempotent: a 400
// resource_already_exists_exception from OpenSearch is swallowed.
func (c *Client) EnsureIndex(ctx context.Context) error {
	mapping := map[string]any{
		"settings": map[string]any{
			"index.knn": true,
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"hindi_analyzer":    map[string]any{"type": "hindi"},
					"gujarati_analyzer": map[string]any{"type": "standard"},
					"english_analyzer":  map[string]any{"type": "english"},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"chunk_id":          map[string]any{"type": "keyword"},
				"doc_id":            map[string]any{"type": "keyword"},
				"page_num":          map[string]any{"type": "integer"},
				"seq_num":           map[string]any{"type": "integer"},
				"original_filename": map[string]any{"type": "keyword"},
				"text_content_hi":   map[string]any{"type": "text", "analyzer": "hindi_analyzer"},
				"text_content_gu":   map[string]any{"type": "text", "analyzer": "gujarati_analyzer"},
				"text_content_en":   map[string]any{"type": "text", "analyzer": "english_analyzer"},
				"bookmarks":         map[string]any{"type": "keyword"},
				"categories":        map[string]any{"type": "object", "enabled": true},
				"vector_embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": c.dimension,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "nmslib",
					},
				},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("ensure index: marshal mapping: %w", err)
	}

	res, err := opensearchapi.IndicesCreateRequest{
		Index: c.indexName,
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return pkgerrors.IndexError("ensure index request failed", err)
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return pkgerrors.IndexError(fmt.Sprintf("ensure index: %s", res.String()), nil)
	}
	return nil
}

// IndexChunks deletes every existing chunk for docID then bulk-inserts
// the new records. Atomicity is best-effort: a partial bulk failure is
// reported as an IndexError so Discovery retries the whole document on
// the next scan; it does not roll back the delete.
func (c *Client) IndexChunks(ctx context.Context, docID string, records []models.IndexedRecord) error {
	if err := c.DeleteDoc(ctx, docID); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, r := range records {
		meta := map[string]any{"index": map[string]any{"_index": c.indexName, "_id": r.ChunkID}}
		if err := writeBulkLine(&buf, meta, r); err != nil {
			return fmt.Errorf("index chunks: encode %s: %w", r.ChunkID, err)
		}
	}

	return c.bulk(ctx, &buf, "index")
}

// UpdateMetadata partially updates every chunk sharing docID with new
// categories/bookmarks/original_filename, leaving vector and text
// fields untouched, the CONFIG_CHANGED path. OpenSearch
// has no "update by query with a partial doc" primitive that preserves
// unspecified fields across versions reliably for our purposes, so this
// looks up the doc's chunk_ids first and bulk-updates each by id.
func (c *Client) UpdateMetadata(ctx context.Context, docID string, categories map[string][]string, bookmarks []string, originalFilename string) error {
	ids, err := c.chunkIDsForDoc(ctx, docID)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	partial := metadataPartialDoc(categories, bookmarks, originalFilename)

	var buf bytes.Buffer
	for _, id := range ids {
		meta := map[string]any{"update": map[string]any{"_index": c.indexName, "_id": id}}
		doc := map[string]any{"doc": partial}
		if err := writeBulkLine(&buf, meta, doc); err != nil {
			return fmt.Errorf("update metadata: encode %s: %w", id, err)
		}
	}

	return c.bulk(ctx, &buf, "update")
}

// DeleteDoc removes every chunk for docID via delete-by-query.
func (c *Client) DeleteDoc(ctx context.Context, docID string) error {
	query := map[string]any{"query": map[string]any{"term": map[string]any{"doc_id": docID}}}
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("delete doc: marshal query: %w", err)
	}

	res, err := opensearchapi.DeleteByQueryRequest{
		Index: []string{c.indexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return pkgerrors.IndexError("delete doc request failed", err)
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(res.String(), "index_not_found_exception") {
		return pkgerrors.IndexError(fmt.Sprintf("delete doc %s: %s", docID, res.String()), nil)
	}
	return nil
}

// ListDocIDs returns every distinct doc_id in the index, used by
// Discovery's orphan sweep to find doc_ids that no FileState row claims.
func (c *Client) ListDocIDs(ctx context.Context) (map[string]bool, error) {
	query := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"doc_ids": map[string]any{
				"composite": map[string]any{
					"size":    1000,
					"sources": []any{map[string]any{"doc_id": map[string]any{"terms": map[string]any{"field": "doc_id"}}}},
				},
			},
		},
	}

	out := make(map[string]bool)
	for {
		body, err := json.Marshal(query)
		if err != nil {
			return nil, fmt.Errorf("list doc ids: marshal: %w", err)
		}

		res, err := opensearchapi.SearchRequest{
			Index: []string{c.indexName},
			Body:  bytes.NewReader(body),
		}.Do(ctx, c.os)
		if err != nil {
			return nil, pkgerrors.IndexError("list doc ids request failed", err)
		}

		var parsed struct {
			Aggregations struct {
				DocIDs struct {
					Buckets []struct {
						Key struct {
							DocID string `json:"doc_id"`
						} `json:"key"`
					} `json:"buckets"`
					AfterKey map[string]any `json:"after_key"`
				} `json:"doc_ids"`
			} `json:"aggregations"`
		}
		decodeErr := json.NewDecoder(res.Body).Decode(&parsed)
		res.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("list doc ids: decode: %w", decodeErr)
		}

		for _, b := range parsed.Aggregations.DocIDs.Buckets {
			out[b.Key.DocID] = true
		}

		if len(parsed.Aggregations.DocIDs.AfterKey) == 0 {
			break
		}
		query["aggs"].(map[string]any)["doc_ids"].(map[string]any)["composite"].(map[string]any)["after"] = parsed.Aggregations.DocIDs.AfterKey
	}

	return out, nil
}

func (c *Client) chunkIDsForDoc(ctx context.Context, docID string) ([]string, error) {
	query := map[string]any{
		"query":   map[string]any{"term": map[string]any{"doc_id": docID}},
		"_source": false,
		"size":    10000,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("chunk ids: marshal: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{c.indexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return nil, pkgerrors.IndexError("chunk ids request failed", err)
	}
	defer res.Body.Close()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("chunk ids: decode: %w", err)
	}

	ids := make([]string, len(parsed.Hits.Hits))
	for i, h := range parsed.Hits.Hits {
		ids[i] = h.ID
	}
	return ids, nil
}

func (c *Client) bulk(ctx context.Context, body *bytes.Buffer, op string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		res, err := opensearchapi.BulkRequest{Body: bytes.NewReader(body.Bytes())}.Do(ctx, c.os)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		var parsed struct {
			Errors bool `json:"errors"`
			Items  []map[string]struct {
				Status int    `json:"status"`
				Error  *struct{ Reason string `json:"reason"` } `json:"error,omitempty"`
			} `json:"items"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decode bulk response: %w", err)
		}
		if parsed.Errors {
			return nil, fmt.Errorf("bulk %s reported partial failures", op)
		}
		return nil, nil
	})
	if err != nil {
		return pkgerrors.IndexError(fmt.Sprintf("bulk %s failed", op), err)
	}
	return nil
}

// metadataPartialDoc builds the CONFIG_CHANGED partial-update body. It
// deliberately names only the three metadata fields the metadata-only
// path may touch: vector_embedding and every
// text_content_* field are absent, so OpenSearch's partial-update
// semantics leave them byte-for-byte as they were.
func metadataPartialDoc(categories map[string][]string, bookmarks []string, originalFilename string) map[string]any {
	return map[string]any{
		"categories":        categories,
		"bookmarks":         bookmarks,
		"original_filename": originalFilename,
	}
}

func writeBulkLine(buf *bytes.Buffer, meta, doc any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	buf.Write(metaJSON)
	buf.WriteByte('\n')
	buf.Write(docJSON)
	buf.WriteByte('\n')
	return nil
}
