package kdtree

import "taxigrid/internal/geom"

// nilNode marks an absent child or an empty tree.
const nilNode int32 = -1

type node struct {
	p      geom.Point
	left   int32
	right  int32
	height int32
}

// alloc stores p in a fresh leaf, reusing a released slot when one exists.
// Callers must not keep *node pointers across alloc: the backing slice may
// grow.
func (t *Tree) alloc(p geom.Point) int32 {
	n := node{p: p, left: nilNode, right: nilNode, height: 1}
	if k := len(t.free); k > 0 {
		idx := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[idx] = n
		return idx
	}
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

func (t *Tree) release(i int32) {
	t.free = append(t.free, i)
}

// releaseSubtree returns every slot below and including i to the free list.
func (t *Tree) releaseSubtree(i int32) {
	if i == nilNode {
		return
	}
	l, r := t.nodes[i].left, t.nodes[i].right
	t.releaseSubtree(l)
	t.releaseSubtree(r)
	t.release(i)
}

func (t *Tree) heightOf(i int32) int32 {
	if i == nilNode {
		return 0
	}
	return t.nodes[i].height
}

func (t *Tree) updateHeight(i int32) {
	n := &t.nodes[i]
	n.height = 1 + max(t.heightOf(n.left), t.heightOf(n.right))
}

// balanced reports whether the children of i are within one level of each
// other, or both present and within a factor of two.
func (t *Tree) balanced(i int32) bool {
	n := t.nodes[i]
	hl, hr := t.heightOf(n.left), t.heightOf(n.right)
	diff := hl - hr
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return true
	}
	if n.left == nilNode || n.right == nilNode {
		return false
	}
	return hr > 0 && hl <= 2*hr && hr <= 2*hl
}

func (t *Tree) collect(i int32, out []geom.Point) []geom.Point {
	if i == nilNode {
		return out
	}
	out = t.collect(t.nodes[i].left, out)
	out = append(out, t.nodes[i].p)
	return t.collect(t.nodes[i].right, out)
}
