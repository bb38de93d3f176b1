package filestore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore(t *testing.T) {
	store := NewStore()
	root := t.TempDir()

	dir := filepath.Join(root, "course", "assignment")
	if err := store.EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() failed: %v", err)
	}
	// idempotent
	if err := store.EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() second call failed: %v", err)
	}

	path := filepath.Join(dir, "submission.txt")
	if err := store.WriteText(path, "my essay"); err != nil {
		t.Fatalf("WriteText() failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back failed: %v", err)
	}
	if string(content) != "my essay" {
		t.Errorf("content = %q; want %q", content, "my essay")
	}

	// overwrite
	if err := store.WriteText(path, "revised"); err != nil {
		t.Fatalf("WriteText() overwrite failed: %v", err)
	}
	content, _ = os.ReadFile(path)
	if string(content) != "revised" {
		t.Errorf("content = %q; want %q", content, "revised")
	}
}
