package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pravachan-index/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fs := models.FileState{
		Path:          "/corpus/pravachan/book.pdf",
		PDFSha256:     "abc123",
		ConfigHash:    "cfg456",
		BookmarksHash: "bm789",
		LastIndexedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:        models.StatusIndexed,
		MTime:         1700000000,
		Size:          42,
	}
	if err := s.Upsert(ctx, fs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, fs.Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row back")
	}
	if got.PDFSha256 != fs.PDFSha256 || got.ConfigHash != fs.ConfigHash ||
		got.Status != fs.Status || got.MTime != fs.MTime || got.Size != fs.Size {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, fs)
	}
	if !got.LastIndexedAt.Equal(fs.LastIndexedAt) {
		t.Errorf("last_indexed_at = %v, want %v", got.LastIndexedAt, fs.LastIndexedAt)
	}
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fs := models.FileState{Path: "/corpus/doc.pdf", PDFSha256: "v1", Status: models.StatusIndexed}
	if err := s.Upsert(ctx, fs); err != nil {
		t.Fatal(err)
	}
	fs.PDFSha256 = "v2"
	fs.Status = models.StatusContentChanged
	if err := s.Upsert(ctx, fs); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, fs.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got.PDFSha256 != "v2" || got.Status != models.StatusContentChanged {
		t.Errorf("upsert did not replace: %+v", got)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected one row after replacing upsert, got %d", len(all))
	}
}

func TestSQLiteStore_GetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get(context.Background(), "/corpus/never-seen.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for a missing path, got %+v", got)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, models.FileState{Path: "/corpus/gone.pdf", Status: models.StatusIndexed}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "/corpus/gone.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.Get(ctx, "/corpus/gone.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("row survived delete: %+v", got)
	}
}
