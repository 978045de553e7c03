package boosting

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/sklearn/tree"
)

// minGain is the smallest split gain treated as an improvement.
const minGain = 1e-12

type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

var noSplit = splitInfo{feature: tree.Leaf}

// treeBuilder fits one regression tree to a gradient/hessian pair.
type treeBuilder struct {
	p        *Params
	X        *mat.Dense
	grad     []float64
	hess     []float64
	features []int

	t      *tree.Tree
	gain   []float64
	splits []float64
}

func newTreeBuilder(p *Params, X *mat.Dense, grad, hess []float64, features []int) *treeBuilder {
	_, nf := X.Dims()
	return &treeBuilder{
		p:        p,
		X:        X,
		grad:     grad,
		hess:     hess,
		features: features,
		t:        &tree.Tree{},
		gain:     make([]float64, nf),
		splits:   make([]float64, nf),
	}
}

func (b *treeBuilder) sums(rows []int) (g, h float64) {
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	return g, h
}

// leafValue is the shrunken Newton step −G/(H+λ).
func (b *treeBuilder) leafValue(g, h float64) float64 {
	den := h + b.p.Lambda
	if den <= 0 {
		return 0
	}
	return -g / den * b.p.LearningRate
}

func (b *treeBuilder) score(g, h float64) float64 {
	den := h + b.p.Lambda
	if den <= 0 {
		return 0
	}
	return g * g / den
}

func (b *treeBuilder) addNode(rows []int) int {
	g, h := b.sums(rows)
	return b.t.AddNode([]float64{b.leafValue(g, h)}, float64(len(rows)))
}

// findSplit scans the sorted values of every available feature.
func (b *treeBuilder) findSplit(rows []int) splitInfo {
	if len(rows) < 2*b.p.MinChildSamples {
		return noSplit
	}
	totalG, totalH := b.sums(rows)
	parent := b.score(totalG, totalH)
	best := noSplit
	order := make([]int, len(rows))
	for _, f := range b.features {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool { return b.X.At(order[i], f) < b.X.At(order[j], f) })
		var lg, lh float64
		for i := 0; i < len(order)-1; i++ {
			lg += b.grad[order[i]]
			lh += b.hess[order[i]]
			nl, nr := i+1, len(order)-i-1
			if nl < b.p.MinChildSamples || nr < b.p.MinChildSamples {
				continue
			}
			lo, hi := b.X.At(order[i], f), b.X.At(order[i+1], f)
			if lo == hi {
				continue
			}
			gain := 0.5 * (b.score(lg, lh) + b.score(totalG-lg, totalH-lh) - parent)
			if gain > best.gain {
				thr := lo + (hi-lo)/2
				if thr >= hi {
					thr = lo
				}
				best = splitInfo{feature: f, threshold: thr, gain: gain}
			}
		}
	}
	if best.feature == tree.Leaf || best.gain <= max(b.p.MinGain, minGain) {
		return noSplit
	}
	return best
}

func (b *treeBuilder) partition(rows []int, s splitInfo) (left, right []int) {
	for _, r := range rows {
		if b.X.At(r, s.feature) <= s.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

func (b *treeBuilder) apply(node int, rows []int, s splitInfo) (left, right []int, l, r int) {
	left, right = b.partition(rows, s)
	l = b.addNode(left)
	r = b.addNode(right)
	b.t.Split(node, s.feature, s.threshold, l, r)
	b.gain[s.feature] += s.gain
	b.splits[s.feature]++
	return left, right, l, r
}

func (b *treeBuilder) build(rows []int) *tree.Tree {
	root := b.addNode(rows)
	if b.p.leafWise() {
		b.growLeafWise(root, rows)
	} else {
		b.growDepthWise(root, rows, 0)
	}
	return b.t
}

func (b *treeBuilder) growDepthWise(node int, rows []int, depth int) {
	if b.p.MaxDepth > 0 && depth >= b.p.MaxDepth {
		return
	}
	s := b.findSplit(rows)
	if s.feature == tree.Leaf {
		return
	}
	left, right, l, r := b.apply(node, rows, s)
	b.growDepthWise(l, left, depth+1)
	b.growDepthWise(r, right, depth+1)
}

// growLeafWise repeatedly splits the leaf with the largest gain until
// NumLeaves is reached.
func (b *treeBuilder) growLeafWise(root int, rows []int) {
	type frontier struct {
		node  int
		rows  []int
		depth int
		split splitInfo
	}
	candidate := func(node int, rows []int, depth int) frontier {
		s := noSplit
		if b.p.MaxDepth == 0 || depth < b.p.MaxDepth {
			s = b.findSplit(rows)
		}
		return frontier{node, rows, depth, s}
	}
	open := []frontier{candidate(root, rows, 0)}
	for leaves := 1; leaves < b.p.NumLeaves; leaves++ {
		best := -1
		for i, c := range open {
			if c.split.feature != tree.Leaf && (best < 0 || c.split.gain > open[best].split.gain) {
				best = i
			}
		}
		if best < 0 {
			return
		}
		c := open[best]
		open = append(open[:best], open[best+1:]...)
		left, right, l, r := b.apply(c.node, c.rows, c.split)
		open = append(open, candidate(l, left, c.depth+1), candidate(r, right, c.depth+1))
	}
}
