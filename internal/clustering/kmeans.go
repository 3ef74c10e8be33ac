package clustering

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var errDegenerate = errors.New("degenerate input")

// kmeans partitions vectors into k groups by cosine distance.
type kmeans struct {
	maxIterations int
	rng           *rand.Rand
}

// run executes the K-means algorithm and returns one label per embedding.
// Iteration stops when assignments no longer change or maxIterations is hit.
func (km *kmeans) run(embeddings [][]float64, k int) ([]int, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings provided", errDegenerate)
	}
	if k <= 0 || k > len(embeddings) {
		return nil, fmt.Errorf("%w: invalid k %d for %d points", errDegenerate, k, len(embeddings))
	}

	dim := len(embeddings[0])
	centroids := km.seed(embeddings, k, dim)

	var assignments []int
	for iteration := 0; iteration < km.maxIterations; iteration++ {
		next := make([]int, len(embeddings))
		for i, embedding := range embeddings {
			next[i] = nearest(embedding, centroids)
		}

		if assignments != nil && equalLabels(assignments, next) {
			break
		}
		assignments = next
		centroids = km.update(embeddings, assignments, centroids, dim)
	}

	return assignments, nil
}

// seed picks initial centroids with K-means++: the first uniformly, the rest
// with probability proportional to the squared distance from the nearest
// centroid already chosen.
func (km *kmeans) seed(embeddings [][]float64, k, dim int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(embeddings[km.rng.Intn(len(embeddings))], dim))

	weights := make([]float64, len(embeddings))
	for len(centroids) < k {
		total := 0.0
		for j, embedding := range embeddings {
			d := CosineDistance(embedding, centroids[0])
			for _, c := range centroids[1:] {
				if dc := CosineDistance(embedding, c); dc < d {
					d = dc
				}
			}
			weights[j] = d * d
			total += weights[j]
		}

		if total == 0 {
			centroids = append(centroids, clone(embeddings[km.rng.Intn(len(embeddings))], dim))
			continue
		}

		target := km.rng.Float64() * total
		selected := len(embeddings) - 1
		cumulative := 0.0
		for j, w := range weights {
			cumulative += w
			if cumulative >= target {
				selected = j
				break
			}
		}
		centroids = append(centroids, clone(embeddings[selected], dim))
	}

	return centroids
}

// update recalculates centroids as member means. A cluster that lost all of
// its members keeps its previous centroid.
func (km *kmeans) update(embeddings [][]float64, assignments []int, previous [][]float64, dim int) [][]float64 {
	k := len(previous)
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}

	for i, embedding := range embeddings {
		label := assignments[i]
		counts[label]++
		for j, v := range embedding {
			centroids[label][j] += v
		}
	}

	for i := range centroids {
		if counts[i] == 0 {
			copy(centroids[i], previous[i])
			continue
		}
		for j := range centroids[i] {
			centroids[i][j] /= float64(counts[i])
		}
	}
	return centroids
}

// nearest returns the index of the closest centroid by cosine distance
func nearest(embedding []float64, centroids [][]float64) int {
	best := 0
	bestDistance := math.Inf(1)
	for i, c := range centroids {
		if d := CosineDistance(embedding, c); d < bestDistance {
			bestDistance = d
			best = i
		}
	}
	return best
}

func equalLabels(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clone(v []float64, dim int) []float64 {
	out := make([]float64, dim)
	copy(out, v)
	return out
}
