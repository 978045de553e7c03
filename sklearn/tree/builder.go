package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minDecrease is the smallest weighted impurity decrease accepted as a split.
const minDecrease = 1e-12

// nodeStats accumulates the target statistics of a set of rows.
type nodeStats struct {
	n      float64
	counts []float64 // classification
	sum    float64   // regression
	sq     float64
}

// grower builds one Tree. For classification y holds class column indices.
type grower struct {
	p        Params
	X        *mat.Dense
	y        []float64
	nOut     int
	classify bool
	random   bool
	rng      *rand.Rand
	mtry     int

	tree       *Tree
	importance []float64
	nTotal     float64
}

func newGrower(p Params, X *mat.Dense, y []float64, nOut int, classify, random bool, rng *rand.Rand) *grower {
	_, nf := X.Dims()
	return &grower{
		p:          p,
		X:          X,
		y:          y,
		nOut:       nOut,
		classify:   classify,
		random:     random,
		rng:        rng,
		mtry:       p.featuresPerSplit(nf),
		tree:       &Tree{},
		importance: make([]float64, nf),
	}
}

// grow builds the tree on the given rows (duplicates allowed) and returns it
// with its impurity importances normalised to sum 1.
func (g *grower) grow(rows []int) (*Tree, []float64) {
	g.nTotal = float64(len(rows))
	g.node(rows, 0)
	if s := floats.Sum(g.importance); s > 0 {
		floats.Scale(1/s, g.importance)
	}
	return g.tree, g.importance
}

func (g *grower) stats(rows []int) nodeStats {
	s := nodeStats{}
	if g.classify {
		s.counts = make([]float64, g.nOut)
	}
	for _, r := range rows {
		g.add(&s, g.y[r], 1)
	}
	return s
}

func (g *grower) add(s *nodeStats, y, sign float64) {
	s.n += sign
	if g.classify {
		s.counts[int(y)] += sign
		return
	}
	s.sum += sign * y
	s.sq += sign * y * y
}

func (g *grower) impurity(s *nodeStats) float64 {
	if s.n <= 0 {
		return 0
	}
	if !g.classify {
		m := s.sum / s.n
		return math.Max(s.sq/s.n-m*m, 0)
	}
	imp := 0.0
	switch g.p.Criterion {
	case Entropy:
		for _, c := range s.counts {
			if c > 0 {
				q := c / s.n
				imp -= q * math.Log2(q)
			}
		}
	default:
		imp = 1
		for _, c := range s.counts {
			q := c / s.n
			imp -= q * q
		}
	}
	return imp
}

func (g *grower) value(s *nodeStats) []float64 {
	if !g.classify {
		return []float64{s.sum / s.n}
	}
	v := make([]float64, g.nOut)
	for j, c := range s.counts {
		v[j] = c / s.n
	}
	return v
}

type split struct {
	feature   int
	threshold float64
	decrease  float64
}

func (g *grower) node(rows []int, depth int) int {
	s := g.stats(rows)
	imp := g.impurity(&s)
	id := g.tree.AddNode(g.value(&s), s.n)

	if (g.p.MaxDepth > 0 && depth >= g.p.MaxDepth) ||
		len(rows) < g.p.MinSamplesSplit ||
		len(rows) < 2*g.p.MinSamplesLeaf ||
		imp <= minDecrease {
		return id
	}

	best := split{feature: Leaf}
	_, nf := g.X.Dims()
	candidates := g.rng.Perm(nf)[:g.mtry]
	for _, f := range candidates {
		var sp split
		if g.random {
			sp = g.randomSplit(rows, f, &s, imp)
		} else {
			sp = g.bestSplit(rows, f, &s, imp)
		}
		if sp.feature != Leaf && sp.decrease > best.decrease {
			best = sp
		}
	}
	if best.feature == Leaf || best.decrease <= minDecrease {
		return id
	}

	var left, right []int
	for _, r := range rows {
		if g.X.At(r, best.feature) <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	g.importance[best.feature] += best.decrease / g.nTotal

	l := g.node(left, depth+1)
	r := g.node(right, depth+1)
	g.tree.Split(id, best.feature, best.threshold, l, r)
	return id
}

// bestSplit scans every threshold between consecutive distinct values.
func (g *grower) bestSplit(rows []int, f int, parent *nodeStats, imp float64) split {
	order := append([]int(nil), rows...)
	sort.Slice(order, func(a, b int) bool { return g.X.At(order[a], f) < g.X.At(order[b], f) })

	left := nodeStats{}
	if g.classify {
		left.counts = make([]float64, g.nOut)
	}
	right := *parent
	if g.classify {
		right.counts = append([]float64(nil), parent.counts...)
	}

	best := split{feature: Leaf}
	minLeaf := g.p.MinSamplesLeaf
	for i := 0; i < len(order)-1; i++ {
		y := g.y[order[i]]
		g.add(&left, y, 1)
		g.add(&right, y, -1)
		if i+1 < minLeaf || len(order)-i-1 < minLeaf {
			continue
		}
		lo, hi := g.X.At(order[i], f), g.X.At(order[i+1], f)
		if lo == hi {
			continue
		}
		dec := parent.n*imp - left.n*g.impurity(&left) - right.n*g.impurity(&right)
		if dec > best.decrease {
			thr := lo + (hi-lo)/2
			if thr >= hi {
				thr = lo
			}
			best = split{feature: f, threshold: thr, decrease: dec}
		}
	}
	return best
}

// randomSplit draws one threshold uniformly between the feature's extremes.
func (g *grower) randomSplit(rows []int, f int, parent *nodeStats, imp float64) split {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v := g.X.At(r, f)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !(hi > lo) {
		return split{feature: Leaf}
	}
	thr := lo + g.rng.Float64()*(hi-lo)
	if thr >= hi {
		thr = lo
	}
	left := nodeStats{}
	if g.classify {
		left.counts = make([]float64, g.nOut)
	}
	for _, r := range rows {
		if g.X.At(r, f) <= thr {
			g.add(&left, g.y[r], 1)
		}
	}
	right := *parent
	if g.classify {
		right.counts = append([]float64(nil), parent.counts...)
		floats.Sub(right.counts, left.counts)
	} else {
		right.sum -= left.sum
		right.sq -= left.sq
	}
	right.n -= left.n
	if int(left.n) < g.p.MinSamplesLeaf || int(right.n) < g.p.MinSamplesLeaf {
		return split{feature: Leaf}
	}
	dec := parent.n*imp - left.n*g.impurity(&left) - right.n*g.impurity(&right)
	return split{feature: f, threshold: thr, decrease: dec}
}
