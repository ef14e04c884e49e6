package anomaly

import (
	"math"
	"math/rand/v2"
)

const eulerGamma = 0.5772156649

// node is either an internal split or a leaf holding the number of training
// points that reached it.
type node struct {
	feature int
	split   float64
	left    *node
	right   *node
	size    int
}

func (n *node) leaf() bool { return n.left == nil }

// forest is an ensemble of isolation trees grown on random subsamples.
type forest struct {
	trees      []*node
	sampleSize int
}

func growForest(points [][]float64, trees, sampleSize int, rng *rand.Rand) *forest {
	if sampleSize > len(points) {
		sampleSize = len(points)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	f := &forest{trees: make([]*node, 0, trees), sampleSize: sampleSize}
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}

	for t := 0; t < trees; t++ {
		// partial Fisher-Yates: the first sampleSize entries become the subsample
		for i := 0; i < sampleSize; i++ {
			j := i + rng.IntN(len(idx)-i)
			idx[i], idx[j] = idx[j], idx[i]
		}
		sample := make([][]float64, sampleSize)
		for i := 0; i < sampleSize; i++ {
			sample[i] = points[idx[i]]
		}
		f.trees = append(f.trees, growTree(sample, 0, maxDepth, rng))
	}
	return f
}

func growTree(points [][]float64, depth, maxDepth int, rng *rand.Rand) *node {
	if depth >= maxDepth || len(points) <= 1 {
		return &node{size: len(points)}
	}

	// only features with spread can separate points
	dims := len(points[0])
	candidates := make([]int, 0, dims)
	lows := make([]float64, dims)
	highs := make([]float64, dims)
	for d := 0; d < dims; d++ {
		lo, hi := points[0][d], points[0][d]
		for _, p := range points[1:] {
			lo = math.Min(lo, p[d])
			hi = math.Max(hi, p[d])
		}
		lows[d], highs[d] = lo, hi
		if hi > lo {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return &node{size: len(points)}
	}

	feature := candidates[rng.IntN(len(candidates))]
	split := lows[feature] + rng.Float64()*(highs[feature]-lows[feature])

	var left, right [][]float64
	for _, p := range points {
		if p[feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}

	return &node{
		feature: feature,
		split:   split,
		left:    growTree(left, depth+1, maxDepth, rng),
		right:   growTree(right, depth+1, maxDepth, rng),
	}
}

// pathLength is the depth at which x lands, plus the expected remaining depth
// of an unbuilt subtree of the leaf's size.
func pathLength(n *node, x []float64) float64 {
	depth := 0.0
	for !n.leaf() {
		if x[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return depth + averagePathLength(n.size)
}

// score returns -2^(-E[h(x)]/c(ψ)). Values lie in [-1, 0); lower is more anomalous.
func (f *forest) score(x []float64) float64 {
	if len(f.trees) == 0 {
		return -0.5
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, x)
	}
	mean := total / float64(len(f.trees))
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return -0.5
	}
	return -math.Pow(2, -mean/c)
}

// averagePathLength is c(n), the mean path length of an unsuccessful search in
// a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*harmonic(fn-1) - 2*(fn-1)/fn
}

func harmonic(i float64) float64 {
	return math.Log(i) + eulerGamma
}
