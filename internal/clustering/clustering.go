// Package clustering partitions article embeddings into topic groups.
package clustering

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for the clustering engine
type Config struct {
	MaxIterations int   // Maximum number of K-means iterations
	Seed          int64 // Random seed for centroid seeding; 0 uses the clock
	// EvaluateUpTo bounds the point count for which silhouette quality is
	// computed and logged. The computation is quadratic in the point count.
	EvaluateUpTo int
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		MaxIterations: 100,
		EvaluateUpTo:  500,
	}
}

// Engine clusters embedding vectors. Clustering is best-effort: every
// failure degrades to a single cluster rather than an error.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a clustering engine
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "clustering").Logger(),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// EffectiveK caps the requested cluster count at half the number of points.
func EffectiveK(n, k int) int {
	if half := n / 2; k > half {
		return half
	}
	return k
}

// Cluster returns one label in [0, k') per embedding, where k' is
// EffectiveK(len(embeddings), k). With fewer than two points, an effective k
// below two, or any failure inside the algorithm, every label is zero.
func (e *Engine) Cluster(embeddings [][]float64, k int) (labels []int) {
	n := len(embeddings)
	if n < 2 {
		return make([]int, n)
	}

	effectiveK := EffectiveK(n, k)
	if effectiveK < 2 {
		e.log.Debug().Int("points", n).Int("requested_k", k).Msg("Too few points to cluster, using a single cluster")
		return make([]int, n)
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("Clustering failed, falling back to a single cluster")
			labels = make([]int, n)
		}
	}()

	if err := validate(embeddings); err != nil {
		e.log.Warn().Err(err).Msg("Clustering failed, falling back to a single cluster")
		return make([]int, n)
	}

	e.mu.Lock()
	km := &kmeans{maxIterations: e.cfg.MaxIterations, rng: rand.New(rand.NewSource(e.rng.Int63()))}
	e.mu.Unlock()

	labels, err := km.run(embeddings, effectiveK)
	if err != nil {
		e.log.Warn().Err(err).Msg("Clustering failed, falling back to a single cluster")
		return make([]int, n)
	}

	if e.cfg.EvaluateUpTo > 0 && n <= e.cfg.EvaluateUpTo {
		quality := Evaluate(embeddings, labels)
		e.log.Info().
			Int("points", n).
			Int("k", effectiveK).
			Float64("silhouette", quality.Score).
			Str("quality", quality.Interpretation).
			Msg("Clustering completed")
	}

	return labels
}

// validate rejects inputs the algorithm cannot handle: mixed or zero
// dimensionality and non-finite values.
func validate(embeddings [][]float64) error {
	dim := len(embeddings[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty embedding at index 0", errDegenerate)
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d", errDegenerate, i, len(e), dim)
		}
		for _, v := range e {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: embedding %d has a non-finite value", errDegenerate, i)
			}
		}
	}
	return nil
}

// Groups returns, for each label in [0, k), the indices carrying that label
// in input order. Labels outside the range are ignored.
func Groups(labels []int, k int) [][]int {
	if k < 1 {
		k = 1
	}
	groups := make([][]int, k)
	for i, label := range labels {
		if label >= 0 && label < k {
			groups[label] = append(groups[label], i)
		}
	}
	return groups
}
