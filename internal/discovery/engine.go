// Package discovery implements the Discovery Engine: walks the corpus
// tree, diffs each PDF against its State Store row, classifies the
// result as NEW / CONTENT_CHANGED / CONFIG_CHANGED / UNCHANGED /
// DELETED, and dispatches the appropriate ingest or metadata-only work,
// recording outcomes back into the State Store.
package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pravachan-index/internal/chunk"
	"pravachan-index/internal/classify"
	"pravachan-index/internal/config"
	"pravachan-index/internal/embed"
	"pravachan-index/internal/index"
	"pravachan-index/internal/logger"
	"pravachan-index/internal/ocr"
	"pravachan-index/internal/paragraph"
	"pravachan-index/internal/pkgerrors"
	"pravachan-index/internal/state"
	"pravachan-index/models"
)

// WorkKind is the classification Discovery assigns to one corpus path
// for a given scan.
type WorkKind string

const (
	WorkNew            WorkKind = "NEW"
	WorkContentChanged WorkKind = "CONTENT_CHANGED"
	WorkConfigChanged  WorkKind = "CONFIG_CHANGED"
	WorkUnchanged      WorkKind = "UNCHANGED"
	WorkDeleted        WorkKind = "DELETED"
)

// ScanResult summarizes one full corpus walk for logging/metrics.
type ScanResult struct {
	New            int
	ContentChanged int
	ConfigChanged  int
	Unchanged      int
	Deleted        int
	Failed         int
}

// Dispatcher hands NEW/CONTENT_CHANGED/CONFIG_CHANGED work off to the
// bounded OCR/embed worker pools instead of running it inline during
// Scan. internal/queue's AsynqDispatcher is the production
// implementation; Scan runs the pipeline inline when no Dispatcher is
// configured (cmd/discover when no Redis broker answers, and tests).
type Dispatcher interface {
	DispatchIngest(ctx context.Context, path string, prior models.FileState) error
	DispatchMetadataReindex(ctx context.Context, path string, prior models.FileState) error
}

// Engine owns the FileState lifecycle and coordinates every pipeline
// stage for a single corpus path. It holds no mutable state itself
// besides its collaborators, so one Engine can serve concurrent scans
// as long as its Store does (see internal/state's single-writer
// discipline).
type Engine struct {
	cfg        *config.Config
	resolver   *config.Resolver
	store      state.Store
	ocr        *ocr.Adapter
	embedder   embed.Adapter
	indexer    index.Indexer
	dispatcher Dispatcher
}

func NewEngine(cfg *config.Config, resolver *config.Resolver, store state.Store, ocrAdapter *ocr.Adapter, embedder embed.Adapter, indexer index.Indexer) *Engine {
	return &Engine{cfg: cfg, resolver: resolver, store: store, ocr: ocrAdapter, embedder: embedder, indexer: indexer}
}

// SetDispatcher wires a worker-pool dispatcher in; without one, Scan
// runs every stage inline on the scanning goroutine.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.dispatcher = d
}

// Scan walks cfg.CorpusRoot, classifies every PDF plus every previously
// tracked path, and dispatches work. Per-file failures are recorded and
// do not abort the scan; a fatal error (state store unreachable) does.
func (e *Engine) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult

	onDisk, err := walkPDFs(e.cfg.CorpusRoot)
	if err != nil {
		return result, pkgerrors.FatalError("corpus walk failed", err)
	}

	priorStates, err := e.store.All(ctx)
	if err != nil {
		return result, pkgerrors.FatalError("state store unreachable", err)
	}
	priorByPath := make(map[string]models.FileState, len(priorStates))
	for _, fs := range priorStates {
		priorByPath[fs.Path] = fs
	}

	seen := make(map[string]bool, len(onDisk))
	for _, path := range onDisk {
		if ctx.Err() != nil {
			return result, pkgerrors.CancellationError("scan cancelled")
		}
		seen[path] = true
		kind, err := e.classify(ctx, path, priorByPath[path])
		if err != nil {
			result.Failed++
			e.recordFailure(ctx, path, priorByPath[path], err)
			continue
		}

		switch kind {
		case WorkNew, WorkContentChanged:
			if kind == WorkNew {
				result.New++
			} else {
				result.ContentChanged++
			}
			if e.dispatcher != nil {
				if err := e.dispatcher.DispatchIngest(ctx, path, priorByPath[path]); err != nil {
					result.Failed++
					e.recordFailure(ctx, path, priorByPath[path], err)
				}
				continue
			}
			if err := e.Ingest(ctx, path, priorByPath[path]); err != nil {
				result.Failed++
				e.recordFailure(ctx, path, priorByPath[path], err)
			}
		case WorkConfigChanged:
			result.ConfigChanged++
			if e.dispatcher != nil {
				if err := e.dispatcher.DispatchMetadataReindex(ctx, path, priorByPath[path]); err != nil {
					result.Failed++
					e.recordFailure(ctx, path, priorByPath[path], err)
				}
				continue
			}
			if err := e.ReindexMetadata(ctx, path, priorByPath[path]); err != nil {
				result.Failed++
				e.recordFailure(ctx, path, priorByPath[path], err)
			}
		case WorkUnchanged:
			result.Unchanged++
		}
	}

	for path, fs := range priorByPath {
		if seen[path] {
			continue
		}
		result.Deleted++
		if err := e.handleDeleted(ctx, path, fs); err != nil {
			result.Failed++
			logger.Error("discovery: delete cleanup failed", "path", path, "error", err)
		}
	}

	e.reconcileOrphans(ctx)

	return result, nil
}

// reconcileOrphans sweeps the index for doc_ids no FileState row claims
// (left behind by a crash between a delete and its state update) and
// removes their chunks. Best-effort: an unreachable index only logs.
func (e *Engine) reconcileOrphans(ctx context.Context) {
	indexed, err := e.indexer.ListDocIDs(ctx)
	if err != nil {
		logger.Warn("discovery: orphan sweep skipped", "error", err)
		return
	}

	states, err := e.store.All(ctx)
	if err != nil {
		logger.Warn("discovery: orphan sweep skipped", "error", err)
		return
	}
	known := make(map[string]bool, len(states))
	for _, fs := range states {
		known[fs.PDFSha256] = true
	}

	for docID := range indexed {
		if known[docID] {
			continue
		}
		if err := e.indexer.DeleteDoc(ctx, docID); err != nil {
			logger.Warn("discovery: orphan delete failed", "doc_id", docID, "error", err)
			continue
		}
		logger.Info("discovery: removed orphaned chunks", "doc_id", docID)
	}
}

// classify computes the content hash lazily (only when mtime/size moved
// since the last recorded scan) and the config hash always.
func (e *Engine) classify(ctx context.Context, path string, prior models.FileState) (WorkKind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	resolved, err := e.resolver.Resolve(path)
	if err != nil {
		return "", pkgerrors.ConfigError("config resolve failed", err).WithContext("path", path)
	}
	configHash, err := config.ConfigHash(resolved)
	if err != nil {
		return "", pkgerrors.ConfigError("config hash failed", err).WithContext("path", path)
	}

	mtime := info.ModTime().Unix()
	size := info.Size()

	if prior.Path == "" {
		return WorkNew, nil
	}

	contentHash := prior.PDFSha256
	if mtime != prior.MTime || size != prior.Size {
		contentHash, err = hashFile(path)
		if err != nil {
			return "", fmt.Errorf("content hash %s: %w", path, err)
		}
	}

	if contentHash != prior.PDFSha256 {
		return WorkContentChanged, nil
	}
	if configHash != prior.ConfigHash {
		return WorkConfigChanged, nil
	}
	return WorkUnchanged, nil
}

// StagedDocument is the hand-off payload between the OCR-stage worker
// pool and the embed/index-stage worker pool. It is plain data so
// internal/queue can marshal it as an asynq task payload.
type StagedDocument struct {
	Doc         models.Document
	PriorSha256 string
	ConfigHash  string
	Resolved    config.ResolvedConfig
	Paragraphs  []models.Paragraph
	MTime       int64
	Size        int64
}

// OCRStage runs the read-only half of the ingest pipeline for a NEW or
// CONTENT_CHANGED document: OCR (or text-layer fast path) every page,
// classify lines, reconstruct paragraphs, extract bookmarks. It has no
// side effects on the index or State Store, so it is safe to run on the
// OCR worker pool and retry independently of the embed/index stage.
func (e *Engine) OCRStage(ctx context.Context, path string, prior models.FileState) (*StagedDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	resolved, err := e.resolver.Resolve(path)
	if err != nil {
		return nil, pkgerrors.ConfigError("config resolve failed", err)
	}
	configHash, err := config.ConfigHash(resolved)
	if err != nil {
		return nil, pkgerrors.ConfigError("config hash failed", err)
	}

	contentHash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("content hash %s: %w", path, err)
	}

	pageCount, err := ocr.PageCount(path)
	if err != nil {
		return nil, pkgerrors.OCRError(0, err)
	}

	var allLines []models.Line
	for p := 1; p <= pageCount; p++ {
		lines, err := e.ocr.OCRPage(ctx, path, ocr.PageImage{PageNum: p}, resolved.Language)
		if err != nil {
			return nil, err
		}
		geometry := pageGeometry(lines)
		for i := range lines {
			lines[i] = classify.Classify(lines[i], geometry, resolved)
		}
		allLines = append(allLines, lines...)
	}

	return &StagedDocument{
		Doc: models.Document{
			Path:         path,
			Fingerprint:  contentHash,
			Language:     resolved.Language,
			PageCount:    pageCount,
			Bookmarks:    extractBookmarks(allLines),
			OriginalName: filepath.Base(path),
			DiscoveredAt: time.Now(),
		},
		PriorSha256: prior.PDFSha256,
		ConfigHash:  configHash,
		Resolved:    resolved,
		Paragraphs:  paragraph.Generate(allLines),
		MTime:       info.ModTime().Unix(),
		Size:        info.Size(),
	}, nil
}

// EmbedIndexStage runs the chunk/embed/index half of the pipeline from
// a StagedDocument produced by OCRStage, then persists the new
// FileState. A content hash change (the doc_id) means the previous
// doc's chunks are deleted first.
func (e *Engine) EmbedIndexStage(ctx context.Context, staged *StagedDocument) error {
	docID := staged.Doc.Fingerprint

	if staged.PriorSha256 != "" && staged.PriorSha256 != docID {
		if err := e.indexer.DeleteDoc(ctx, staged.PriorSha256); err != nil {
			return pkgerrors.IndexError("deleting superseded chunks failed", err)
		}
	}

	chunker := chunk.New(staged.Resolved.ChunkStrategy, e.embedder)
	chunks := chunker.Chunk(ctx, docID, staged.Paragraphs, staged.Resolved)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return pkgerrors.EmbeddingError("batch embedding failed", err)
	}
	if len(vectors) != len(chunks) {
		return pkgerrors.EmbeddingError("embedding count mismatch", nil)
	}

	categories := categoriesFromConfig(staged.Resolved)

	records := make([]models.IndexedRecord, len(chunks))
	for i, c := range chunks {
		if err := chunk.ValidateVector(vectors[i], e.embedder.Dimension()); err != nil {
			return pkgerrors.EmbeddingError("invalid vector", err).WithContext("chunk_id", c.ChunkID)
		}
		rec := models.IndexedRecord{
			ChunkID:          c.ChunkID,
			DocID:            docID,
			PageNum:          c.PageNum,
			VectorEmbedding:  vectors[i],
			Categories:       categories,
			Bookmarks:        staged.Doc.Bookmarks,
			OriginalFilename: staged.Doc.OriginalName,
			SeqNum:           c.ParagraphSeqNum,
		}
		switch staged.Doc.Language {
		case "gu":
			rec.TextContentGu = c.Text
		case "en":
			rec.TextContentEn = c.Text
		default:
			rec.TextContentHi = c.Text
		}
		records[i] = rec
	}

	if err := e.indexer.IndexChunks(ctx, docID, records); err != nil {
		// A cancelled task must not leave a half-indexed document
		// behind: delete whatever the bulk insert managed to write.
		if ctx.Err() != nil {
			if delErr := e.indexer.DeleteDoc(context.WithoutCancel(ctx), docID); delErr != nil {
				logger.Error("discovery: rollback after cancel failed", "doc_id", docID, "error", delErr)
			}
			return pkgerrors.CancellationError("indexing cancelled")
		}
		return pkgerrors.IndexError("indexing chunks failed", err)
	}
	staged.Doc.Indexed = true

	fs := models.FileState{
		Path:          staged.Doc.Path,
		PDFSha256:     docID,
		ConfigHash:    staged.ConfigHash,
		BookmarksHash: hashStrings(staged.Doc.Bookmarks),
		LastIndexedAt: time.Now(),
		Status:        models.StatusIndexed,
		MTime:         staged.MTime,
		Size:          staged.Size,
		FailureCount:  0,
	}
	if err := e.store.Upsert(ctx, fs); err != nil {
		return err
	}
	logger.Info("discovery: ingested document",
		"path", staged.Doc.Path, "pages", staged.Doc.PageCount, "chunks", len(records))
	return nil
}

// Ingest runs OCRStage followed by EmbedIndexStage inline, for callers
// that have no Dispatcher configured (cmd/discover when no Redis broker
// answers, and tests).
func (e *Engine) Ingest(ctx context.Context, path string, prior models.FileState) error {
	staged, err := e.OCRStage(ctx, path, prior)
	if err != nil {
		return err
	}
	return e.EmbedIndexStage(ctx, staged)
}

// ReindexMetadata implements the CONFIG_CHANGED path: categories,
// bookmarks, and the original filename are re-derived and pushed to the
// index without touching chunk text or vectors. Bookmarks are re-derived
// by running OCR over every page again. The language tag is not pushed:
// after a language change, chunk text stays in the language-specific
// text field it was first indexed under.
func (e *Engine) ReindexMetadata(ctx context.Context, path string, prior models.FileState) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	resolved, err := e.resolver.Resolve(path)
	if err != nil {
		return pkgerrors.ConfigError("config resolve failed", err)
	}
	configHash, err := config.ConfigHash(resolved)
	if err != nil {
		return pkgerrors.ConfigError("config hash failed", err)
	}

	categories := categoriesFromConfig(resolved)

	pageCount, err := ocr.PageCount(path)
	if err != nil {
		return pkgerrors.OCRError(0, err)
	}
	var allLines []models.Line
	for p := 1; p <= pageCount; p++ {
		lines, err := e.ocr.OCRPage(ctx, path, ocr.PageImage{PageNum: p}, resolved.Language)
		if err != nil {
			return err
		}
		geometry := pageGeometry(lines)
		for i := range lines {
			lines[i] = classify.Classify(lines[i], geometry, resolved)
		}
		allLines = append(allLines, lines...)
	}
	newBookmarks := extractBookmarks(allLines)

	if err := e.indexer.UpdateMetadata(ctx, prior.PDFSha256, categories, newBookmarks, filepath.Base(path)); err != nil {
		return pkgerrors.IndexError("metadata update failed", err)
	}

	fs := prior
	fs.ConfigHash = configHash
	fs.BookmarksHash = hashStrings(newBookmarks)
	fs.LastIndexedAt = time.Now()
	fs.Status = models.StatusIndexed
	fs.MTime = info.ModTime().Unix()
	fs.Size = info.Size()
	fs.FailureCount = 0
	return e.store.Upsert(ctx, fs)
}

func (e *Engine) handleDeleted(ctx context.Context, path string, fs models.FileState) error {
	if fs.PDFSha256 != "" {
		if err := e.indexer.DeleteDoc(ctx, fs.PDFSha256); err != nil {
			return pkgerrors.IndexError("deleting chunks for removed file failed", err)
		}
	}
	return e.store.Delete(ctx, path)
}

// recordFailure marks path FAILED without aborting the scan, bumping
// its rolling failure count so it is retried next scan.
// Cancellation is not failure: a cancelled task leaves no FAILED marker,
// only whatever state the file already had.
func (e *Engine) recordFailure(ctx context.Context, path string, prior models.FileState, cause error) {
	if pkgerrors.Is(cause, pkgerrors.KindCancellation) || errors.Is(cause, context.Canceled) {
		logger.Info("discovery: task cancelled", "path", path)
		return
	}

	fs := prior
	fs.Path = path
	fs.Status = models.StatusFailed
	fs.FailureCount = prior.FailureCount + 1
	fs.LastError = cause.Error()
	if info, statErr := os.Stat(path); statErr == nil {
		fs.MTime = info.ModTime().Unix()
		fs.Size = info.Size()
	}
	if err := e.store.Upsert(ctx, fs); err != nil {
		logger.Error("discovery: failed to record failure state", "path", path, "error", err)
	}
	logger.Warn("discovery: file failed", "path", path, "attempt", fs.FailureCount, "cause", cause)
}

func walkPDFs(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashStrings(values []string) string {
	h := sha256.New()
	for _, v := range values {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// pageGeometry approximates page margins from the observed line extents
// themselves: no separate page-dimension source is available ahead of
// OCR, so the leftmost/rightmost observed line edges stand in for the
// page's left/right margins, per component.
func pageGeometry(lines []models.Line) models.PageGeometry {
	if len(lines) == 0 {
		return models.PageGeometry{}
	}
	left, right := lines[0].XStart, lines[0].XEnd
	for _, l := range lines[1:] {
		if l.XStart < left {
			left = l.XStart
		}
		if l.XEnd > right {
			right = l.XEnd
		}
	}
	return models.PageGeometry{PageLeftMargin: left, PageRightMargin: right}
}

// extractBookmarks approximates the PDF outline/TOC with header-regex
// lines detected by the Line Classifier: this module never renders or
// walks a PDF's navigation tree directly, so a document's headers stand
// in for its table of contents, deduped in encounter order.
func extractBookmarks(lines []models.Line) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lines {
		if !l.HasTag(models.IsHeaderRegex) {
			continue
		}
		text := strings.TrimSpace(l.Text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out
}

// categoriesFromConfig projects the resolved config's free-form
// categories map into the string-list-valued shape IndexedRecord and
// the Query Planner's category filters expect.
func categoriesFromConfig(resolved config.ResolvedConfig) map[string][]string {
	out := make(map[string][]string, len(resolved.Categories))
	for key, raw := range resolved.Categories {
		switch v := raw.(type) {
		case []any:
			vals := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					vals = append(vals, s)
				}
			}
			out[key] = vals
		case string:
			out[key] = []string{v}
		}
	}
	return out
}
