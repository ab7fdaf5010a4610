package search

import (
	"sort"

	"github.com/callsight/callsight/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// rerank re-orders the KNN candidate pool by fusing its ranking with a
// lexical ranking over the same filter: fused(d) = sum of 1/(k + rank_i(d)).
// Only KNN candidates survive, so every returned hit keeps its cosine
// distance and still satisfies the vector-mode filter. Returns at most
// topN hits.
func rerank(knn, lexical []result.Hit, topN int) []result.Hit {
	fused := make(map[string]float64, len(knn))

	for rank, h := range knn {
		fused[h.DocID] = 1.0 / float64(rrfK+rank+1)
	}

	for rank, h := range lexical {
		if _, ok := fused[h.DocID]; ok {
			fused[h.DocID] += 1.0 / float64(rrfK+rank+1)
		}
		// lexical-only hits are discarded: they carry no distance and
		// may fall outside the KNN candidate pool
	}

	reranked := make([]result.Hit, len(knn))
	copy(reranked, knn)

	sort.SliceStable(reranked, func(i, j int) bool {
		return fused[reranked[i].DocID] > fused[reranked[j].DocID]
	})

	if len(reranked) > topN {
		reranked = reranked[:topN]
	}
	return reranked
}
