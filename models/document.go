package models

import "time"

// Document is a PDF identified by its filesystem path and a content
// fingerprint. Created on first discovery, marked indexed after
// successful indexing, revisited on every scan.
type Document struct {
	Path         string    `bson:"path" json:"path"`
	Fingerprint  string    `bson:"fingerprint" json:"fingerprint"` // SHA-256 of PDF bytes
	Language     string    `bson:"language" json:"language"`
	PageCount    int       `bson:"page_count" json:"page_count"`
	Bookmarks    []string  `bson:"bookmarks" json:"bookmarks"`
	OriginalName string    `bson:"original_filename" json:"original_filename"`
	Indexed      bool      `bson:"indexed" json:"indexed"`
	DiscoveredAt time.Time `bson:"discovered_at" json:"discovered_at"`
}

// ParagraphType is the closed set of paragraph classifications the
// Paragraph Generator emits.
type ParagraphType string

const (
	StandardProse ParagraphType = "STANDARD_PROSE"
	VerseBlock    ParagraphType = "VERSE_BLOCK"
	QABlock       ParagraphType = "QA_BLOCK"
	HeaderBlock   ParagraphType = "HEADER_BLOCK"
)

// Paragraph is a semantically grouped unit of text reconstructed by the
// Paragraph Generator across one or more OCR lines, possibly spanning a
// page break.
type Paragraph struct {
	PageNumStart int           `json:"page_num_start"`
	PageNumEnd   int           `json:"page_num_end"`
	Text         string        `json:"text"`
	Type         ParagraphType `json:"type"`
	SeqNum       int           `json:"seq_num"`

	// NoCombine marks a paragraph that Phase 3 never merges with either
	// neighbouring paragraph, even if it lacks a sentence terminator
	// (set for introductory lines and right after a header).
	NoCombine bool `json:"-"`

	// OriginalLineIndex is the index of the paragraph's first
	// contributing line within the document's flattened line stream,
	// used for the total order (page_num_start, original_line_index).
	OriginalLineIndex int `json:"-"`
}

// Chunk is an embeddable text unit, one or more per paragraph.
type Chunk struct {
	DocID           string    `json:"doc_id"`
	ChunkID         string    `json:"chunk_id"`
	ParagraphSeqNum int       `json:"paragraph_seq_num"`
	PageNum         int       `json:"page_num"`
	Text            string    `json:"text"`
	Vector          []float32 `json:"vector"`
}

// IndexedRecord is the document stored in the search cluster, one per
// chunk. Only the field matching the detected document language is
// populated with text.
type IndexedRecord struct {
	ChunkID          string              `json:"chunk_id"`
	DocID            string              `json:"doc_id"`
	PageNum          int                 `json:"page_num"`
	TextContentHi    string              `json:"text_content_hi,omitempty"`
	TextContentGu    string              `json:"text_content_gu,omitempty"`
	TextContentEn    string              `json:"text_content_en,omitempty"`
	VectorEmbedding  []float32           `json:"vector_embedding"`
	Categories       map[string][]string `json:"categories"`
	Bookmarks        []string            `json:"bookmarks"`
	OriginalFilename string              `json:"original_filename"`
	SeqNum           int                 `json:"seq_num"`
}

// FileStateStatus is the closed set of State Store lifecycle values.
type FileStateStatus string

const (
	StatusUnseen         FileStateStatus = "UNSEEN"
	StatusIndexed        FileStateStatus = "INDEXED"
	StatusContentChanged FileStateStatus = "CONTENT_CHANGED"
	StatusConfigChanged  FileStateStatus = "CONFIG_CHANGED"
	StatusFailed         FileStateStatus = "FAILED"
)

// FileState is the State Store's persisted row, one per corpus path.
type FileState struct {
	Path          string          `bson:"path" json:"path"`
	PDFSha256     string          `bson:"pdf_sha256" json:"pdf_sha256"`
	ConfigHash    string          `bson:"config_hash" json:"config_hash"`
	BookmarksHash string          `bson:"bookmarks_hash" json:"bookmarks_hash"`
	LastIndexedAt time.Time       `bson:"last_indexed_at" json:"last_indexed_at"`
	Status        FileStateStatus `bson:"status" json:"status"`

	// MTime/Size let Discovery skip recomputing the content hash when
	// neither has changed since the last recorded scan.
	MTime int64 `bson:"mtime" json:"mtime"`
	Size  int64 `bson:"size" json:"size"`

	// FailureCount is a rolling count of consecutive classification or
	// ingest failures for this path, independent of the latest FAILED
	// marker, so repeated failures can be surfaced without re-deriving
	// it from logs.
	FailureCount int    `bson:"failure_count" json:"failure_count"`
	LastError    string `bson:"last_error,omitempty" json:"last_error,omitempty"`
}
