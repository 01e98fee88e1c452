// Package lexical implements the BM25 half of the dual store. Scoring runs
// over an immutable snapshot rebuilt on every ingestion batch, so queries
// never contend with writers.
package lexical

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
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
	chunks   map[string]domain.Chunk
	postings map[string]map[string]int
	docLen   map[string]int
	avgLen   float64
}

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
				return nil, fmt.Errorf("load lexical index %s: %w", collection, err)
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
			return fmt.Errorf("persist lexical index %s: %w", batch.Collection, err)
		}
	}
	return nil
}

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
		return fmt.Errorf("reload lexical index %s: %w", collection, err)
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

// Search scores candidates with BM25 (k1=1.2, b=0.75). A non-nil candidate
// set restricts scoring to those chunk ids.
func (idx *Index) Search(collection domain.Collection, query string, limit int, candidates map[string]struct{}) ([]domain.RetrievedChunk, error) {
	state, ok := idx.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	snap := state.snapshot.Load()

	terms := tokenizeAlphaNum(query)
	if len(terms) == 0 {
		return nil, nil
	}

	n := float64(len(snap.chunks))
	scores := map[string]float64{}
	for _, term := range terms {
		posting := snap.postings[term]
		if len(posting) == 0 {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1.0 + (n-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			if candidates != nil {
				if _, ok := candidates[chunkID]; !ok {
					continue
				}
			}
			norm := 1 - bm25B + bm25B*float64(snap.docLen[chunkID])/snap.avgLen
			scores[chunkID] += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
	}

	ranked := make([]domain.RetrievedChunk, 0, len(scores))
	for chunkID, score := range scores {
		c := snap.chunks[chunkID]
		ranked = append(ranked, domain.RetrievedChunk{
			ChunkID:      c.ID,
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Collection:   c.Collection,
			SectionLabel: c.SectionLabel,
			KeyInfo:      c.KeyInfo,
			Text:         c.Text,
			Metadata:     c.Metadata,
			Score:        score,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (idx *Index) Stats(collection domain.Collection) domain.LexicalStats {
	state, ok := idx.collections[collection]
	if !ok {
		return domain.LexicalStats{}
	}
	snap := state.snapshot.Load()
	return domain.LexicalStats{Chunks: len(snap.chunks), Terms: len(snap.postings)}
}

func build(perDoc map[string][]domain.Chunk) *snapshot {
	snap := &snapshot{
		chunks:   map[string]domain.Chunk{},
		postings: map[string]map[string]int{},
		docLen:   map[string]int{},
	}
	total := 0
	for _, chunks := range perDoc {
		for _, c := range chunks {
			snap.chunks[c.ID] = c
			terms := tokenizeAlphaNum(c.Text)
			snap.docLen[c.ID] = len(terms)
			total += len(terms)
			for _, term := range terms {
				posting := snap.postings[term]
				if posting == nil {
					posting = map[string]int{}
					snap.postings[term] = posting
				}
				posting[c.ID]++
			}
		}
	}
	snap.avgLen = 1
	if len(snap.chunks) > 0 {
		snap.avgLen = float64(total) / float64(len(snap.chunks))
	}
	return snap
}

// tokenizeAlphaNum lowercases and splits on anything that is not a letter or
// digit. The same tokenizer runs at index and query time.
func tokenizeAlphaNum(s string) []string {
	var tokens []string
	var current []rune
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			current = append(current, r)
		case r >= 'A' && r <= 'Z':
			current = append(current, r+('a'-'A'))
		default:
			if len(current) > 0 {
				tokens = append(tokens, string(current))
				current = current[:0]
			}
		}
	}
	if len(current) > 0 {
		tokens = append(tokens, string(current))
	}
	return tokens
}

var _ ports.LexicalIndex = (*Index)(nil)
