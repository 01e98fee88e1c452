// Package metadata keeps an in-process index over chunk attributes. Reads go
// through an atomically swapped snapshot; Apply rebuilds the snapshot from a
// per-document source of truth and persists it for other processes to reload.
package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type Index struct {
	store *Store

	mu          sync.Mutex
	collections map[domain.Collection]*collectionState
}

type collectionState struct {
	perDoc   map[string][]domain.Chunk
	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	documents int
	chunks    map[string]struct{}
	// categorical: field -> value -> chunk ids
	categorical map[string]map[string]map[string]struct{}
	// numeric: field -> entries sorted by value
	numeric map[string][]numEntry
	// byDocument: document id -> chunk ids
	byDocument map[string]map[string]struct{}
}

type numEntry struct {
	value   float64
	chunkID string
}

// NewIndex loads any persisted state from store. A nil store keeps the index
// memory-only, which the tests use.
func NewIndex(store *Store) (*Index, error) {
	idx := &Index{
		store:       store,
		collections: map[domain.Collection]*collectionState{},
	}
	for _, collection := range []domain.Collection{domain.CollectionText, domain.CollectionAssets} {
		state := &collectionState{perDoc: map[string][]domain.Chunk{}}
		if store != nil {
			perDoc, err := store.Load(collection)
			if err != nil {
				return nil, fmt.Errorf("load metadata index %s: %w", collection, err)
			}
			if perDoc != nil {
				state.perDoc = perDoc
			}
		}
		state.snapshot.Store(build(state.perDoc))
		idx.collections[collection] = state
	}
	return idx, nil
}

func (idx *Index) Apply(ctx context.Context, batch *domain.IndexBatch) error {
	state, ok := idx.collections[batch.Collection]
	if !ok {
		return fmt.Errorf("unknown collection %q", batch.Collection)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for docID, chunks := range batch.Documents {
		if len(chunks) == 0 {
			delete(state.perDoc, docID)
			continue
		}
		state.perDoc[docID] = chunks
	}
	state.snapshot.Store(build(state.perDoc))

	if idx.store != nil {
		if err := idx.store.Save(batch.Collection, state.perDoc); err != nil {
			return fmt.Errorf("persist metadata index %s: %w", batch.Collection, err)
		}
	}
	return nil
}

// Reload replaces the in-memory state with the persisted one. Used by reader
// processes after an index-updated notification.
func (idx *Index) Reload(collection domain.Collection) error {
	state, ok := idx.collections[collection]
	if !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	if idx.store == nil {
		return nil
	}

	perDoc, err := idx.store.Load(collection)
	if err != nil {
		return fmt.Errorf("reload metadata index %s: %w", collection, err)
	}
	if perDoc == nil {
		perDoc = map[string][]domain.Chunk{}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	state.perDoc = perDoc
	state.snapshot.Store(build(perDoc))
	return nil
}

// Query intersects predicate result sets. An empty predicate list means no
// restriction and returns nil.
func (idx *Index) Query(collection domain.Collection, predicates []domain.Predicate) (map[string]struct{}, error) {
	if len(predicates) == 0 {
		return nil, nil
	}
	state, ok := idx.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	snap := state.snapshot.Load()

	var result map[string]struct{}
	for _, p := range predicates {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		set, err := snap.eval(p)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = set
			continue
		}
		for id := range result {
			if _, ok := set[id]; !ok {
				delete(result, id)
			}
		}
	}
	if result == nil {
		result = map[string]struct{}{}
	}
	return result, nil
}

// ChunksByDocuments returns the chunk ids belonging to the given documents.
// A nil id list returns every chunk id in the collection.
func (idx *Index) ChunksByDocuments(collection domain.Collection, documentIDs []string) map[string]struct{} {
	state, ok := idx.collections[collection]
	if !ok {
		return map[string]struct{}{}
	}
	snap := state.snapshot.Load()

	out := map[string]struct{}{}
	if documentIDs == nil {
		for id := range snap.chunks {
			out[id] = struct{}{}
		}
		return out
	}
	for _, docID := range documentIDs {
		for id := range snap.byDocument[docID] {
			out[id] = struct{}{}
		}
	}
	return out
}

func (idx *Index) Stats(collection domain.Collection) domain.MetadataStats {
	state, ok := idx.collections[collection]
	if !ok {
		return domain.MetadataStats{}
	}
	snap := state.snapshot.Load()
	return domain.MetadataStats{
		Documents: snap.documents,
		Chunks:    len(snap.chunks),
		Keys:      len(snap.categorical) + len(snap.numeric),
	}
}

func (s *snapshot) eval(p domain.Predicate) (map[string]struct{}, error) {
	switch p.Op {
	case domain.OpEq, domain.OpIn:
		byValue := s.categorical[p.Field]
		out := map[string]struct{}{}
		for _, v := range p.Values {
			for id := range byValue[v] {
				out[id] = struct{}{}
			}
		}
		return out, nil

	case domain.OpGTE:
		return rangeSet(s.numeric[p.Field], &p.Min, nil), nil
	case domain.OpLTE:
		return rangeSet(s.numeric[p.Field], nil, &p.Max), nil
	case domain.OpBetween:
		return rangeSet(s.numeric[p.Field], &p.Min, &p.Max), nil

	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "metadata query", fmt.Errorf("unknown predicate op %q", p.Op))
	}
}

// rangeSet selects entries within [lo, hi] using binary search over the
// sorted slice. Nil bounds are open.
func rangeSet(entries []numEntry, lo, hi *float64) map[string]struct{} {
	out := map[string]struct{}{}
	start := 0
	if lo != nil {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].value >= *lo })
	}
	for i := start; i < len(entries); i++ {
		if hi != nil && entries[i].value > *hi {
			break
		}
		out[entries[i].chunkID] = struct{}{}
	}
	return out
}

func build(perDoc map[string][]domain.Chunk) *snapshot {
	snap := &snapshot{
		documents:   len(perDoc),
		chunks:      map[string]struct{}{},
		categorical: map[string]map[string]map[string]struct{}{},
		numeric:     map[string][]numEntry{},
		byDocument:  map[string]map[string]struct{}{},
	}

	addCategorical := func(field, value, chunkID string) {
		byValue := snap.categorical[field]
		if byValue == nil {
			byValue = map[string]map[string]struct{}{}
			snap.categorical[field] = byValue
		}
		ids := byValue[value]
		if ids == nil {
			ids = map[string]struct{}{}
			byValue[value] = ids
		}
		ids[chunkID] = struct{}{}
	}

	for docID, chunks := range perDoc {
		docSet := map[string]struct{}{}
		snap.byDocument[docID] = docSet
		for _, c := range chunks {
			snap.chunks[c.ID] = struct{}{}
			docSet[c.ID] = struct{}{}

			addCategorical("document_id", docID, c.ID)
			if c.SectionLabel != "" {
				addCategorical("section", c.SectionLabel, c.ID)
			}
			for k, v := range c.Metadata {
				addCategorical(k, v, c.ID)
			}
			for k, v := range c.Numeric {
				snap.numeric[k] = append(snap.numeric[k], numEntry{value: v, chunkID: c.ID})
			}
		}
	}
	for field := range snap.numeric {
		entries := snap.numeric[field]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].value != entries[j].value {
				return entries[i].value < entries[j].value
			}
			return entries[i].chunkID < entries[j].chunkID
		})
	}
	return snap
}

var _ ports.MetadataIndex = (*Index)(nil)
