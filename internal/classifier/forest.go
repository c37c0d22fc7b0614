package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/risco/internal/features"
)

const leafFeature = -1

// ForestOptions configures the random forest backend.
type ForestOptions struct {
	Trees          int    `json:"trees"`
	MaxDepth       int    `json:"max_depth"`
	MinSamplesLeaf int    `json:"min_samples_leaf"`
	Seed           uint64 `json:"seed"`
}

// DefaultForestOptions mirrors the production model settings.
func DefaultForestOptions() ForestOptions {
	return ForestOptions{Trees: 100, MaxDepth: 10, MinSamplesLeaf: 3, Seed: 42}
}

// Forest is a bagged ensemble of CART trees split on Gini impurity.
type Forest struct {
	Options ForestOptions `json:"options"`
	Trees   []*Tree       `json:"trees"`
}

// Tree is a fitted decision tree stored as a flat node array; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split (Feature >= 0) or a leaf (Feature == -1). Value is the
// class-1 share of the training samples that reached the node, with each
// class weighted inversely to its frequency in the tree's bootstrap sample.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
	Samples   int     `json:"n"`
}

// NewForest returns an untrained forest.
func NewForest(opts ForestOptions) *Forest {
	def := DefaultForestOptions()
	if opts.Trees <= 0 {
		opts.Trees = def.Trees
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.MinSamplesLeaf <= 0 {
		opts.MinSamplesLeaf = def.MinSamplesLeaf
	}
	return &Forest{Options: opts}
}

func (f *Forest) Kind() string { return BackendForest }

// Fit grows Options.Trees trees in parallel on bootstrap samples. Each tree
// draws from its own seeded source, so results do not depend on scheduling.
// Classes are reweighted per bootstrap sample so both carry equal total weight.
func (f *Forest) Fit(X [][]float64, y []int, _ []features.Feature) error {
	if len(X) == 0 {
		return ErrInsufficientData
	}
	trees := make([]*Tree, f.Options.Trees)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(f.Options.Seed, uint64(i)+1))
			sample := make([]int, len(X))
			for j := range sample {
				sample[j] = rng.IntN(len(X))
			}
			b := &treeBuilder{X: X, y: y, opts: f.Options, rng: rng, weight: balancedWeights(y, sample)}
			b.grow(sample, 0)
			trees[i] = &Tree{Nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.Trees = trees
	return nil
}

// Validate checks that every tree is a well-formed flat array whose splits
// reference features below width and children stored after their parent.
func (f *Forest) Validate(width int) error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for ti, t := range f.Trees {
		if t == nil || len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for i, n := range t.Nodes {
			if n.Feature == leafFeature {
				continue
			}
			if n.Feature < 0 || n.Feature >= width {
				return fmt.Errorf("tree %d node %d: feature %d out of range [0,%d)", ti, i, n.Feature, width)
			}
			if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: children %d/%d out of range", ti, i, n.Left, n.Right)
			}
		}
	}
	return nil
}

// PredictProba averages the leaf values reached in every tree.
func (f *Forest) PredictProba(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.Nodes[t.leaf(x)].Value
	}
	return sum / float64(len(f.Trees))
}

// Contributions decomposes the prediction for x into per-feature terms by
// crediting each split on the decision path with the change in node value.
// The terms plus the mean root value sum to PredictProba(x).
func (f *Forest) Contributions(x []float64) []float64 {
	contrib := make([]float64, len(x))
	if len(f.Trees) == 0 {
		return contrib
	}
	for _, t := range f.Trees {
		node := 0
		for t.Nodes[node].Feature != leafFeature {
			n := t.Nodes[node]
			child := n.Right
			if x[n.Feature] <= n.Threshold {
				child = n.Left
			}
			contrib[n.Feature] += t.Nodes[child].Value - n.Value
			node = child
		}
	}
	for i := range contrib {
		contrib[i] /= float64(len(f.Trees))
	}
	return contrib
}

func (t *Tree) leaf(x []float64) int {
	node := 0
	for t.Nodes[node].Feature != leafFeature {
		n := t.Nodes[node]
		if x[n.Feature] <= n.Threshold {
			node = n.Left
		} else {
			node = n.Right
		}
	}
	return node
}

type treeBuilder struct {
	X      [][]float64
	y      []int
	opts   ForestOptions
	rng    *rand.Rand
	weight [2]float64
	nodes  []Node
}

// balancedWeights returns n/(2*n_c) for each class c in the bootstrap
// sample, or unit weights when the sample holds a single class.
func balancedWeights(y []int, sample []int) [2]float64 {
	var counts [2]int
	for _, i := range sample {
		counts[y[i]]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return [2]float64{1, 1}
	}
	n := float64(len(sample))
	return [2]float64{n / (2 * float64(counts[0])), n / (2 * float64(counts[1]))}
}

// share is the weighted class-1 fraction of a node holding n samples of
// which positives are class 1.
func (b *treeBuilder) share(positives, n int) float64 {
	wPos := b.weight[1] * float64(positives)
	total := wPos + b.weight[0]*float64(n-positives)
	if total == 0 {
		return 0
	}
	return wPos / total
}

// impurity is the weighted Gini impurity of a node and its total weight.
func (b *treeBuilder) impurity(positives, n int) (float64, float64) {
	total := b.weight[1]*float64(positives) + b.weight[0]*float64(n-positives)
	p := b.share(positives, n)
	return 2 * p * (1 - p), total
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
	pos       int
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	positives := 0
	for _, i := range idx {
		positives += b.y[i]
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature: leafFeature,
		Value:   b.share(positives, len(idx)),
		Samples: len(idx),
	})

	pure := positives == 0 || positives == len(idx)
	if pure || depth >= b.opts.MaxDepth || len(idx) < 2*b.opts.MinSamplesLeaf {
		return id
	}

	best, ok := b.bestSplit(idx, positives)
	if !ok {
		return id
	}

	sortByFeature(b.X, idx, best.feature)
	left := append([]int(nil), idx[:best.pos]...)
	right := append([]int(nil), idx[best.pos:]...)

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit scans sqrt(p) randomly chosen features for the split with the
// lowest class-weighted Gini impurity that leaves MinSamplesLeaf on each side.
func (b *treeBuilder) bestSplit(idx []int, positives int) (split, bool) {
	p := len(b.X[0])
	mtry := max(1, int(math.Sqrt(float64(p))))
	candidates := b.rng.Perm(p)[:mtry]

	n := len(idx)
	parent, _ := b.impurity(positives, n)
	best := split{impurity: parent}
	found := false
	work := append([]int(nil), idx...)

	for _, feat := range candidates {
		sortByFeature(b.X, work, feat)
		leftPos := 0
		for pos := 1; pos < n; pos++ {
			leftPos += b.y[work[pos-1]]
			lo, hi := b.X[work[pos-1]][feat], b.X[work[pos]][feat]
			if lo == hi || pos < b.opts.MinSamplesLeaf || n-pos < b.opts.MinSamplesLeaf {
				continue
			}
			li, lw := b.impurity(leftPos, pos)
			ri, rw := b.impurity(positives-leftPos, n-pos)
			imp := (lw*li + rw*ri) / (lw + rw)
			if imp < best.impurity-1e-12 {
				best = split{feature: feat, threshold: (lo + hi) / 2, impurity: imp, pos: pos}
				found = true
			}
		}
	}
	return best, found
}

func sortByFeature(X [][]float64, idx []int, feat int) {
	sort.SliceStable(idx, func(a, b int) bool { return X[idx[a]][feat] < X[idx[b]][feat] })
}
