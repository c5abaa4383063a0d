package search

import (
	"sort"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

// FusedResult is one chunk with its combined and per-signal scores.
type FusedResult struct {
	Entry         *models.IndexEntry
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores maps chunk ID to score scaled into [0,1] by the maximum.
func NormalizeKeywordScores(hits []*models.ScoredEntry) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		if maxScore > 0 {
			normalized[h.Entry.ID] = h.Score / maxScore
		} else {
			normalized[h.Entry.ID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores maps chunk ID to cosine score, clamped at zero.
func NormalizeSemanticScores(hits []*models.ScoredEntry) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	for _, h := range hits {
		s := h.Score
		if s < 0 {
			s = 0
		}
		normalized[h.Entry.ID] = s
	}
	return normalized
}

// Fuse merges keyword and semantic hits with the given weights. Results are sorted by
// score descending, ties broken by chunk ID.
func Fuse(keywordHits, semanticHits []*models.ScoredEntry, keywordWeight, semanticWeight float64) []*FusedResult {
	keywordScores := NormalizeKeywordScores(keywordHits)
	semanticScores := NormalizeSemanticScores(semanticHits)

	byID := make(map[string]*FusedResult)
	for _, h := range keywordHits {
		byID[h.Entry.ID] = &FusedResult{Entry: h.Entry, KeywordScore: keywordScores[h.Entry.ID]}
	}
	for _, h := range semanticHits {
		if r, ok := byID[h.Entry.ID]; ok {
			r.SemanticScore = semanticScores[h.Entry.ID]
			continue
		}
		byID[h.Entry.ID] = &FusedResult{Entry: h.Entry, SemanticScore: semanticScores[h.Entry.ID]}
	}

	results := make([]*FusedResult, 0, len(byID))
	for _, r := range byID {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.ID < results[j].Entry.ID
	})
	return results
}
