package index

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteBulkLine(t *testing.T) {
	var buf bytes.Buffer
	meta := map[string]any{"index": map[string]any{"_index": "pravachan", "_id": "c1"}}
	doc := map[string]any{"text_content_hi": "सम्यग्दर्शन"}

	if err := writeBulkLine(&buf, meta, doc); err != nil {
		t.Fatalf("writeBulkLine: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 NDJSON lines, got %d: %q", len(lines), buf.String())
	}

	var gotMeta, gotDoc map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &gotMeta); err != nil {
		t.Fatalf("meta line not valid JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &gotDoc); err != nil {
		t.Fatalf("doc line not valid JSON: %v", err)
	}
	if gotDoc["text_content_hi"] != "सम्यग्दर्शन" {
		t.Errorf("doc line lost its content: %v", gotDoc)
	}
}

// TestMetadataPartialDocExcludesVectorAndText guards the universal
// invariant that a CONFIG_CHANGED metadata-only update never carries
// vector_embedding or any text_content_* field, so OpenSearch's partial
// doc update leaves them byte-for-byte untouched.
func TestMetadataPartialDocExcludesVectorAndText(t *testing.T) {
	doc := metadataPartialDoc(map[string][]string{"author": {"X", "Y"}}, []string{"chapter-1"}, "book.pdf")

	forbidden := []string{"vector_embedding", "text_content_hi", "text_content_gu", "text_content_en"}
	for _, key := range forbidden {
		if _, present := doc[key]; present {
			t.Errorf("metadata partial doc must not contain %q", key)
		}
	}

	want := map[string]bool{"categories": true, "bookmarks": true, "original_filename": true}
	for key := range doc {
		if !want[key] {
			t.Errorf("unexpected key %q in metadata partial doc", key)
		}
	}
	if doc["original_filename"] != "book.pdf" {
		t.Errorf("original_filename = %v, want book.pdf", doc["original_filename"])
	}
}

func TestWriteBulkLineEncodeError(t *testing.T) {
	var buf bytes.Buffer
	// channels cannot be marshaled to JSON
	bad := map[string]any{"ch": make(chan int)}
	if err := writeBulkLine(&buf, map[string]any{}, bad); err == nil {
		t.Error("expected error encoding unmarshalable doc")
	}
}
