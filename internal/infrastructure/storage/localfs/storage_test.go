package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := storage.Save(context.Background(), "contracts", "meta_2026.txt", []byte("scope of work"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join("contracts", "meta_2026.txt") {
		t.Fatalf("unexpected storage path %q", path)
	}

	data, err := storage.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(data) != "scope of work" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	base := t.TempDir()
	storage, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := storage.Save(context.Background(), "digital_media", "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join("digital_media", "passwd") {
		t.Fatalf("expected name to be flattened inside the collection, got %q", path)
	}
	if _, err := os.Stat(filepath.Join(base, "digital_media", "passwd")); err != nil {
		t.Fatalf("expected file inside base dir: %v", err)
	}
}

func TestSaveRejectsEmptyName(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := storage.Save(context.Background(), "contracts", "   ", []byte("x")); err == nil {
		t.Fatalf("expected error for blank document name")
	}
}

func TestOpenMissingFile(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := storage.Open(context.Background(), "contracts/missing.txt"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
