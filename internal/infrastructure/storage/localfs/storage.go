// Package localfs stores raw source documents under a base directory, one
// subdirectory per collection.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adscope/marketing-rag/internal/core/ports"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, collection, name string, data []byte) (string, error) {
	// Path traversal through document names must not escape the base dir.
	safe := filepath.Base(strings.TrimSpace(name))
	if safe == "" || safe == "." || safe == string(filepath.Separator) {
		return "", fmt.Errorf("invalid document name %q", name)
	}

	dir := filepath.Join(s.basePath, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create collection dir: %w", err)
	}

	relative := filepath.Join(collection, safe)
	if err := os.WriteFile(filepath.Join(s.basePath, relative), data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return relative, nil
}

func (s *Storage) Open(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, path))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return data, nil
}

var _ ports.ObjectStorage = (*Storage)(nil)
