package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

// Store persists the per-document chunk map as JSON, one file per
// collection. Writes go through a temp file and rename so readers never see
// a torn file.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create metadata dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(collection domain.Collection) string {
	return filepath.Join(s.dir, string(collection)+".metadata.json")
}

func (s *Store) Save(collection domain.Collection, perDoc map[string][]domain.Chunk) error {
	data, err := json.Marshal(perDoc)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	tmp := s.path(collection) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, s.path(collection)); err != nil {
		return fmt.Errorf("swap metadata file: %w", err)
	}
	return nil
}

// Load returns nil with no error when nothing has been persisted yet.
func (s *Store) Load(collection domain.Collection) (map[string][]domain.Chunk, error) {
	data, err := os.ReadFile(s.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var perDoc map[string][]domain.Chunk
	if err := json.Unmarshal(data, &perDoc); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return perDoc, nil
}
