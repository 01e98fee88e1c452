package lexical

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

// Store persists chunk projections as JSON per collection; postings are
// rebuilt on load rather than serialized.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lexical dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(collection domain.Collection) string {
	return filepath.Join(s.dir, string(collection)+".lexical.json")
}

func (s *Store) Save(collection domain.Collection, perDoc map[string][]domain.Chunk) error {
	data, err := json.Marshal(perDoc)
	if err != nil {
		return fmt.Errorf("encode lexical chunks: %w", err)
	}
	tmp := s.path(collection) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write lexical chunks: %w", err)
	}
	if err := os.Rename(tmp, s.path(collection)); err != nil {
		return fmt.Errorf("swap lexical file: %w", err)
	}
	return nil
}

func (s *Store) Load(collection domain.Collection) (map[string][]domain.Chunk, error) {
	data, err := os.ReadFile(s.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lexical chunks: %w", err)
	}
	var perDoc map[string][]domain.Chunk
	if err := json.Unmarshal(data, &perDoc); err != nil {
		return nil, fmt.Errorf("decode lexical chunks: %w", err)
	}
	return perDoc, nil
}
