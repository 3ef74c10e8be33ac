package clustering

import (
	"math"
)

// SilhouetteScore calculates the silhouette score for a single data point
// Returns a score between -1 and 1:
//
//	-1: Point likely in wrong cluster
//	 0: Point on the border between clusters
//	+1: Point well matched to its cluster
func SilhouetteScore(pointIdx int, labels []int, distances [][]float64) float64 {
	if pointIdx < 0 || pointIdx >= len(labels) {
		return 0
	}

	own := labels[pointIdx]
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, label := range labels {
		if i == pointIdx {
			continue
		}
		sums[label] += distances[pointIdx][i]
		counts[label]++
	}

	// a(i): mean distance to the rest of its own cluster
	if counts[own] == 0 {
		return 0 // Single point in cluster
	}
	a := sums[own] / float64(counts[own])

	// b(i): smallest mean distance to another cluster
	b := math.Inf(1)
	for label, n := range counts {
		if label == own || n == 0 {
			continue
		}
		if mean := sums[label] / float64(n); mean < b {
			b = mean
		}
	}
	if math.IsInf(b, 1) {
		return 0 // No other clusters
	}

	switch {
	case a < b:
		return 1 - a/b
	case a > b:
		return b/a - 1
	default:
		return 0
	}
}

// AverageSilhouetteScore calculates the mean silhouette score across all points
func AverageSilhouetteScore(labels []int, distances [][]float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	total := 0.0
	for i := range labels {
		total += SilhouetteScore(i, labels, distances)
	}
	return total / float64(len(labels))
}

// DistanceMatrix computes pairwise distances between all points
func DistanceMatrix(embeddings [][]float64, distanceFunc func(a, b []float64) float64) [][]float64 {
	n := len(embeddings)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := distanceFunc(embeddings[i], embeddings[j])
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}

// CosineDistance calculates cosine distance between two vectors
// Distance = 1 - cosine_similarity
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0 // Maximum distance for incompatible vectors
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 1.0 // Zero vector = maximum distance
	}
	return 1.0 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}

// Quality describes how well separated a partition is.
type Quality struct {
	Score          float64
	Interpretation string
}

// Evaluate scores a partition with the average silhouette over cosine distances.
func Evaluate(embeddings [][]float64, labels []int) Quality {
	score := AverageSilhouetteScore(labels, DistanceMatrix(embeddings, CosineDistance))
	return Quality{Score: score, Interpretation: interpretSilhouetteScore(score)}
}

// interpretSilhouetteScore provides human-readable interpretation
func interpretSilhouetteScore(score float64) string {
	switch {
	case score >= 0.71:
		return "Excellent - Strong cluster structure"
	case score >= 0.51:
		return "Good - Reasonable cluster structure"
	case score >= 0.26:
		return "Fair - Weak cluster structure"
	case score >= 0.0:
		return "Poor - No substantial cluster structure"
	default:
		return "Very Poor - Artificial/forced clustering"
	}
}
