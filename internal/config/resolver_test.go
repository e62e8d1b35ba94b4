package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolver_DeepestWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config.json"), `{"language": "hi", "chunk_size": 1000}`)
	sub := filepath.Join(root, "granth")
	writeFile(t, filepath.Join(sub, "config.json"), `{"chunk_size": 500}`)
	pdfPath := filepath.Join(sub, "book.pdf")

	resolved, err := NewResolver(root).Resolve(pdfPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Language != "hi" {
		t.Fatalf("expected root language to survive, got %q", resolved.Language)
	}
	if resolved.ChunkSize != 500 {
		t.Fatalf("expected subfolder chunk_size to win, got %d", resolved.ChunkSize)
	}
}

func TestResolver_RejectsUnrecognizedKey(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config.json"), `{"not_a_real_key": true}`)

	_, err := NewResolver(root).Resolve(filepath.Join(root, "book.pdf"))
	if err == nil {
		t.Fatalf("expected an error for an unrecognized config key")
	}
}

func TestConfigHash_OrderIndependent(t *testing.T) {
	a := DefaultResolvedConfig()
	a.Categories = map[string]any{"b": 1, "a": 2}

	b := DefaultResolvedConfig()
	b.Categories = map[string]any{"a": 2, "b": 1}

	hashA, err := ConfigHash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hashB, err := ConfigHash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if hashA != hashB {
		t.Fatalf("expected map key order to not affect the hash: %s vs %s", hashA, hashB)
	}
}

func TestConfigHash_DiffersOnContentChange(t *testing.T) {
	a := DefaultResolvedConfig()
	b := DefaultResolvedConfig()
	b.ChunkSize = a.ChunkSize + 1

	hashA, _ := ConfigHash(a)
	hashB, _ := ConfigHash(b)
	if hashA == hashB {
		t.Fatalf("expected differing configs to hash differently")
	}
}
