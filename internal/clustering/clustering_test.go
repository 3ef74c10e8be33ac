package clustering

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(Config{MaxIterations: 100, Seed: 42, EvaluateUpTo: 100}, zerolog.Nop())
}

func TestEffectiveK(t *testing.T) {
	tests := []struct {
		n, k, want int
	}{
		{n: 12, k: 10, want: 6},
		{n: 4, k: 10, want: 2},
		{n: 3, k: 10, want: 1},
		{n: 100, k: 10, want: 10},
		{n: 0, k: 3, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EffectiveK(tt.n, tt.k), "n=%d k=%d", tt.n, tt.k)
	}
}

func TestCluster_Degenerate(t *testing.T) {
	engine := newTestEngine()

	assert.Empty(t, engine.Cluster(nil, 5))
	assert.Equal(t, []int{0}, engine.Cluster([][]float64{{1, 0}}, 5))

	three := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	assert.Equal(t, []int{0, 0, 0}, engine.Cluster(three, 10), "effective k of 1 yields a single cluster")
	assert.Equal(t, []int{0, 0, 0}, engine.Cluster(three, 0))
}

func TestCluster_FallbackOnBadInput(t *testing.T) {
	engine := newTestEngine()

	mismatched := [][]float64{{1, 0}, {0, 1, 0}, {1, 1}, {0, 0, 1}}
	assert.Equal(t, []int{0, 0, 0, 0}, engine.Cluster(mismatched, 2))

	nonFinite := [][]float64{{1, 0}, {math.NaN(), 1}, {1, 1}, {0, 1}}
	assert.Equal(t, []int{0, 0, 0, 0}, engine.Cluster(nonFinite, 2))
}

func TestCluster_LabelsInRange(t *testing.T) {
	engine := newTestEngine()

	embeddings := [][]float64{
		{1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}, {0.1, 0.9, 0},
	}
	labels := engine.Cluster(embeddings, 10)
	require.Len(t, labels, 4)
	for _, label := range labels {
		assert.GreaterOrEqual(t, label, 0)
		assert.Less(t, label, 2, "effective k for 4 points is 2")
	}
}

func TestCluster_RecoversSeparatedGroups(t *testing.T) {
	engine := newTestEngine()

	embeddings := [][]float64{
		{1, 0, 0}, {0.95, 0.05, 0}, {0.9, 0, 0.1},
		{0, 1, 0}, {0.05, 0.95, 0}, {0, 0.9, 0.1},
		{0, 0, 1}, {0.05, 0, 0.95}, {0, 0.1, 0.9},
	}
	labels := engine.Cluster(embeddings, 3)
	require.Len(t, labels, 9)

	for group := 0; group < 3; group++ {
		base := group * 3
		assert.Equal(t, labels[base], labels[base+1])
		assert.Equal(t, labels[base], labels[base+2])
	}
	assert.NotEqual(t, labels[0], labels[3])
	assert.NotEqual(t, labels[0], labels[6])
	assert.NotEqual(t, labels[3], labels[6])
}

func TestCluster_TwoDirections(t *testing.T) {
	labels := newTestEngine().Cluster([][]float64{{1, 0}, {0, 1}, {1, 0.1}, {0.1, 1}}, 2)
	require.Len(t, labels, 4)
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[1], labels[3])
	assert.NotEqual(t, labels[0], labels[1])
}

func TestGroups(t *testing.T) {
	groups := Groups([]int{1, 0, 1, 2, 7, -1}, 3)
	assert.Equal(t, [][]int{{1}, {0, 2}, {3}}, groups)

	assert.Equal(t, [][]int{{0, 1}}, Groups([]int{0, 0}, 0))
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 1.0, CosineDistance([]float64{0, 0}, []float64{1, 2}))
}

func TestEvaluate(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {1, 0.01}, {0, 1}, {0.01, 1}}

	good := Evaluate(embeddings, []int{0, 0, 1, 1})
	assert.Greater(t, good.Score, 0.9)
	assert.Contains(t, good.Interpretation, "Excellent")

	bad := Evaluate(embeddings, []int{0, 1, 0, 1})
	assert.Less(t, bad.Score, 0.0)
}
