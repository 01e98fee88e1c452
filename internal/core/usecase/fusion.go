package usecase

import (
	"sort"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

// fuseRRF combines the vector and lexical ranked lists via reciprocal rank
// fusion: score = sum over methods of 1/(rrfK + rank). A chunk absent from a
// method's list contributes 0 for that method, so only ranks are combined
// and the incompatible score scales never have to be normalized.
func fuseRRF(vector, lexical []domain.RetrievedChunk, rrfK int) []domain.RetrievedChunk {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]domain.RetrievedChunk, len(vector)+len(lexical))

	for rank, chunk := range vector {
		c := chunk
		c.VectorRank = rank + 1
		c.VectorScore = chunk.Score
		c.Score = 1.0 / float64(rrfK+rank+1)
		acc[c.ChunkID] = c
	}

	for rank, chunk := range lexical {
		c, seen := acc[chunk.ChunkID]
		if !seen {
			c = chunk
			c.Score = 0
			c.VectorRank = 0
			c.VectorScore = 0
		}
		c.LexicalRank = rank + 1
		c.LexicalScore = chunk.Score
		c.Score += 1.0 / float64(rrfK+rank+1)
		acc[chunk.ChunkID] = c
	}

	out := make([]domain.RetrievedChunk, 0, len(acc))
	for _, c := range acc {
		out = append(out, c)
	}

	// Dense similarity generalizes better for paraphrased queries, so ties
	// break toward the better vector rank; absent vector ranks sort last.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, rj := out[i].VectorRank, out[j].VectorRank
		if ri != rj {
			if ri == 0 {
				return false
			}
			if rj == 0 {
				return true
			}
			return ri < rj
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func trimRetrieved(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}
