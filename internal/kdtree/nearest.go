package kdtree

import (
	"container/heap"

	"taxigrid/internal/geom"
)

type candidate struct {
	p geom.Point
	d int64 // squared distance to the query
}

// farther reports whether a ranks behind b: larger distance, then larger
// point under the x-major order.
func farther(a, b candidate) bool {
	if a.d != b.d {
		return a.d > b.d
	}
	return geom.LessXY(b.p, a.p)
}

// farthestFirst is a max-heap: the worst kept candidate sits at index 0.
type farthestFirst []candidate

func (h farthestFirst) Len() int           { return len(h) }
func (h farthestFirst) Less(i, j int) bool { return farther(h[i], h[j]) }
func (h farthestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *farthestFirst) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *farthestFirst) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// Nearest returns up to k stored points closest to q, closest first. Points
// at equal distance are ordered by x, then y. It returns nil for k <= 0 or
// an empty tree.
func (t *Tree) Nearest(q geom.Point, k int) []geom.Point {
	if t.root == nilNode || k <= 0 {
		return nil
	}
	h := make(farthestFirst, 0, k)
	t.nearest(t.root, q, 0, k, &h)

	out := make([]geom.Point, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(candidate).p
	}
	return out
}

func (t *Tree) nearest(i int32, q geom.Point, depth, k int, h *farthestFirst) {
	if i == nilNode {
		return
	}
	n := t.nodes[i]

	c := candidate{p: n.p, d: n.p.DistSq(q)}
	if h.Len() < k {
		heap.Push(h, c)
	} else if farther((*h)[0], c) {
		(*h)[0] = c
		heap.Fix(h, 0)
	}

	var diff int64
	if depth%2 == 0 {
		diff = int64(q.X - n.p.X)
	} else {
		diff = int64(q.Y - n.p.Y)
	}
	near, far := n.right, n.left
	if diff < 0 {
		near, far = n.left, n.right
	}

	t.nearest(near, q, depth+1, k, h)
	// Squared axis offset against squared distance. Equality still descends
	// so that an equally distant but smaller point can displace the worst.
	if h.Len() < k || diff*diff <= (*h)[0].d {
		t.nearest(far, q, depth+1, k, h)
	}
}
