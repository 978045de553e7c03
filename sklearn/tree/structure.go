// Package tree implements CART decision trees, random forests and extremely
// randomised trees. Tree is also the node-array format used by the boosting
// package and by TreeSHAP.
package tree

// Leaf marks a node without a split in Tree.Feature.
const Leaf = -1

// Tree stores a binary tree in parallel arrays indexed by node id; node 0
// is the root. A row goes left when x[Feature] <= Threshold.
//
// Value holds one output vector per node: class proportions for
// classification trees, a single mean or leaf score otherwise. Cover is the
// number of training rows that reached the node.
type Tree struct {
	Feature   []int
	Threshold []float64
	Left      []int
	Right     []int
	Value     [][]float64
	Cover     []float64
}

// AddNode appends a node without children and returns its id.
func (t *Tree) AddNode(value []float64, cover float64) int {
	t.Feature = append(t.Feature, Leaf)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, Leaf)
	t.Right = append(t.Right, Leaf)
	t.Value = append(t.Value, value)
	t.Cover = append(t.Cover, cover)
	return len(t.Feature) - 1
}

// Split turns node into an internal node.
func (t *Tree) Split(node, feature int, threshold float64, left, right int) {
	t.Feature[node] = feature
	t.Threshold[node] = threshold
	t.Left[node] = left
	t.Right[node] = right
}

// NumNodes returns the node count; 0 for a nil tree.
func (t *Tree) NumNodes() int {
	if t == nil {
		return 0
	}
	return len(t.Feature)
}

// Apply returns the leaf id reached by x.
func (t *Tree) Apply(x []float64) int {
	n := 0
	for t.Feature[n] != Leaf {
		if x[t.Feature[n]] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return n
}

// Predict returns the value vector of the leaf reached by x.
func (t *Tree) Predict(x []float64) []float64 {
	return t.Value[t.Apply(x)]
}

// NumLeaves counts nodes without children.
func (t *Tree) NumLeaves() int {
	if t.NumNodes() == 0 {
		return 0
	}
	n := 0
	for _, f := range t.Feature {
		if f == Leaf {
			n++
		}
	}
	return n
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if t.NumNodes() == 0 {
		return 0
	}
	var walk func(n int) int
	walk = func(n int) int {
		if t.Feature[n] == Leaf {
			return 0
		}
		return 1 + max(walk(t.Left[n]), walk(t.Right[n]))
	}
	return walk(0)
}

// ExpectedValue is the cover-weighted mean of leaf output out, i.e. the
// average prediction over the training rows.
func (t *Tree) ExpectedValue(out int) float64 {
	var walk func(n int) float64
	walk = func(n int) float64 {
		if t.Feature[n] == Leaf {
			return t.Value[n][out] * t.Cover[n]
		}
		return walk(t.Left[n]) + walk(t.Right[n])
	}
	return walk(0) / t.Cover[0]
}
