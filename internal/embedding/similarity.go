package embedding

import (
	"math"
	"sort"
)

// CosineSimilarity calculates the cosine similarity between two vectors,
// in [-1, 1]. Mismatched lengths and zero-magnitude vectors return 0
// rather than an error: a missing or malformed embedding means "no
// semantic signal", not a pipeline failure.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		aMagnitude += float64(a[i]) * float64(a[i])
		bMagnitude += float64(b[i]) * float64(b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude))
}

// SimilarityResult is a ranked similarity search result.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// TopK ranks the corpus by cosine similarity to the query and returns the
// k best matches, descending. Vectors that yield no signal (mismatched
// dimensions, zero magnitude) rank at 0 like any other low match.
func TopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	for i, vec := range corpus {
		results = append(results, SimilarityResult{
			Index:      i,
			Similarity: CosineSimilarity(query, vec),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
