package tree

// pathElem is one entry of the unique feature path used by TreeSHAP.
type pathElem struct {
	feature int
	zero    float64 // fraction of "feature absent" paths flowing through
	one     float64 // 1 if x follows this branch, else 0
	weight  float64
}

// SHAP adds the exact path-dependent TreeSHAP attributions of x for output
// column out, multiplied by scale, to phi. Together with
// scale·ExpectedValue(out) they sum to scale·Predict(x)[out].
//
// Lundberg, Erion and Lee, "Consistent Individualized Feature Attribution
// for Tree Ensembles" (2018), Algorithm 2.
func (t *Tree) SHAP(x []float64, out int, scale float64, phi []float64) {
	if t.NumNodes() == 0 {
		return
	}
	t.shapRecurse(x, out, scale, phi, 0, nil, 1, 1, Leaf)
}

func (t *Tree) shapRecurse(x []float64, out int, scale float64, phi []float64,
	node int, parent []pathElem, zero, one float64, feature int) {
	depth := len(parent)
	path := make([]pathElem, depth+1, depth+2)
	copy(path, parent)
	extendPath(path, depth, zero, one, feature)

	if t.Feature[node] == Leaf {
		v := t.Value[node][out] * scale
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * v
		}
		return
	}

	f := t.Feature[node]
	hot, cold := t.Left[node], t.Right[node]
	if x[f] > t.Threshold[node] {
		hot, cold = cold, hot
	}
	hotZero := t.Cover[hot] / t.Cover[node]
	coldZero := t.Cover[cold] / t.Cover[node]

	inZero, inOne := 1.0, 1.0
	for k := 0; k <= depth; k++ {
		if path[k].feature == f {
			inZero, inOne = path[k].zero, path[k].one
			unwindPath(path, depth, k)
			path = path[:depth]
			break
		}
	}

	t.shapRecurse(x, out, scale, phi, hot, path, hotZero*inZero, inOne, f)
	t.shapRecurse(x, out, scale, phi, cold, path, coldZero*inZero, 0, f)
}

func extendPath(path []pathElem, depth int, zero, one float64, feature int) {
	path[depth] = pathElem{feature: feature, zero: zero, one: one}
	if depth == 0 {
		path[depth].weight = 1
	}
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / d
		path[i].weight = zero * path[i].weight * float64(depth-i) / d
	}
}

func unwindPath(path []pathElem, depth, idx int) {
	one, zero := path[idx].one, path[idx].zero
	next := path[depth].weight
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * d / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/d
		} else {
			path[i].weight = path[i].weight * d / (zero * float64(depth-i))
		}
	}
	for i := idx; i < depth; i++ {
		w := path[i].weight
		path[i] = path[i+1]
		path[i].weight = w
	}
}

func unwoundPathSum(path []pathElem, depth, idx int) float64 {
	one, zero := path[idx].one, path[idx].zero
	next := path[depth].weight
	total := 0.0
	if one != 0 {
		for i := depth - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)
		}
	} else {
		for i := depth - 1; i >= 0; i-- {
			total += path[i].weight / (zero * float64(depth-i))
		}
	}
	return total * float64(depth+1)
}

// Component is one tree of an additive model. Output selects the entry of
// the tree's value vector that contributes, scaled by Weight.
type Component struct {
	Tree   *Tree
	Output int
	Weight float64
}

// Additive is a model whose output j equals offset + Σ Weight·leaf value
// over Components(j). Trees, forests and boosted ensembles implement it.
type Additive interface {
	NumOutputs() int
	Components(output int) (parts []Component, offset float64)
}

// SHAPValues returns exact TreeSHAP attributions of x for one output of m and
// the expected value they are measured against.
func SHAPValues(m Additive, x []float64, output int) (phi []float64, base float64) {
	phi = make([]float64, len(x))
	parts, base := m.Components(output)
	for _, c := range parts {
		c.Tree.SHAP(x, c.Output, c.Weight, phi)
		base += c.Weight * c.Tree.ExpectedValue(c.Output)
	}
	return phi, base
}
