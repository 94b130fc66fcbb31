// Package kdtree implements a dynamic 2-D tree over integer points that
// keeps itself balanced under inserts and deletes by rebuilding the
// smallest subtree that falls out of balance.
//
// Nodes at even depth discriminate on x (ties by y), nodes at odd depth on
// y (ties by x). A Tree is not safe for concurrent use.
package kdtree

import "taxigrid/internal/geom"

// Tree owns every node in an index arena; child links are arena indices.
type Tree struct {
	nodes    []node
	free     []int32
	root     int32
	rebuilds uint64
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: nilNode}
}

// Build returns a balanced tree holding points.
func Build(points []geom.Point) *Tree {
	t := New()
	t.Load(points)
	return t
}

// Insert adds p. It returns false, leaving the tree untouched, when p is
// already present.
func (t *Tree) Insert(p geom.Point) bool {
	root, added := t.insert(t.root, p, 0)
	t.root = root
	return added
}

func (t *Tree) insert(i int32, p geom.Point, depth int) (int32, bool) {
	if i == nilNode {
		return t.alloc(p), true
	}
	cur := t.nodes[i].p
	if cur == p {
		return i, false
	}

	var (
		child int32
		added bool
	)
	if geom.Less(p, cur, depth) {
		child, added = t.insert(t.nodes[i].left, p, depth+1)
		t.nodes[i].left = child
	} else {
		child, added = t.insert(t.nodes[i].right, p, depth+1)
		t.nodes[i].right = child
	}
	if !added {
		return i, false
	}
	return t.settle(i, depth), true
}

// Delete removes p and reports whether it was present.
func (t *Tree) Delete(p geom.Point) bool {
	root, found := t.delete(t.root, p, 0)
	t.root = root
	return found
}

func (t *Tree) delete(i int32, p geom.Point, depth int) (int32, bool) {
	if i == nilNode {
		return nilNode, false
	}
	n := t.nodes[i]

	if n.p != p {
		var (
			child int32
			found bool
		)
		if geom.Less(p, n.p, depth) {
			child, found = t.delete(n.left, p, depth+1)
			t.nodes[i].left = child
		} else {
			child, found = t.delete(n.right, p, depth+1)
			t.nodes[i].right = child
		}
		if !found {
			return i, false
		}
		return t.settle(i, depth), true
	}

	switch {
	case n.left == nilNode && n.right == nilNode:
		t.release(i)
		return nilNode, true
	case n.left == nilNode:
		t.release(i)
		return t.lift(n.right, depth), true
	case n.right == nilNode:
		t.release(i)
		return t.lift(n.left, depth), true
	}

	axis := depth % 2
	if t.heightOf(n.right) >= t.heightOf(n.left) {
		rp := t.nodes[t.extreme(n.right, axis, depth+1, true)].p
		child, _ := t.delete(n.right, rp, depth+1)
		t.nodes[i].right = child
		t.nodes[i].p = rp
	} else {
		rp := t.nodes[t.extreme(n.left, axis, depth+1, false)].p
		child, _ := t.delete(n.left, rp, depth+1)
		t.nodes[i].left = child
		t.nodes[i].p = rp
	}
	return t.settle(i, depth), true
}

// lift moves a lone child up into its parent's slot at depth. While the
// balance invariant holds that child is a leaf; a deeper subtree would
// change axis parity, so it is rebuilt for its new depth.
func (t *Tree) lift(child int32, depth int) int32 {
	if t.heightOf(child) > 1 {
		return t.rebuild(child, depth)
	}
	return child
}

// settle refreshes the cached height of i and rebuilds it if the balance
// predicate no longer holds.
func (t *Tree) settle(i int32, depth int) int32 {
	t.updateHeight(i)
	if !t.balanced(i) {
		return t.rebuild(i, depth)
	}
	return i
}

// extreme returns the node with the smallest (lowest) or largest point of
// the subtree at i under the superkey order of axis. When the subtree's own
// axis matches, only one side can hold the answer; otherwise both are
// searched.
func (t *Tree) extreme(i int32, axis, depth int, lowest bool) int32 {
	if i == nilNode {
		return nilNode
	}
	n := t.nodes[i]
	if depth%2 == axis {
		next := n.right
		if lowest {
			next = n.left
		}
		if next == nilNode {
			return i
		}
		return t.extreme(next, axis, depth+1, lowest)
	}

	best := i
	for _, c := range [2]int32{n.left, n.right} {
		cand := t.extreme(c, axis, depth+1, lowest)
		if cand == nilNode {
			continue
		}
		if lowest && geom.Less(t.nodes[cand].p, t.nodes[best].p, axis) ||
			!lowest && geom.Less(t.nodes[best].p, t.nodes[cand].p, axis) {
			best = cand
		}
	}
	return best
}

// Contains reports whether p is stored in the tree.
func (t *Tree) Contains(p geom.Point) bool {
	i, depth := t.root, 0
	for i != nilNode {
		cur := t.nodes[i].p
		if cur == p {
			return true
		}
		if geom.Less(p, cur, depth) {
			i = t.nodes[i].left
		} else {
			i = t.nodes[i].right
		}
		depth++
	}
	return false
}

// Height is the number of levels; 0 for an empty tree.
func (t *Tree) Height() int {
	return int(t.heightOf(t.root))
}

// Size counts the stored points.
func (t *Tree) Size() int {
	return t.count(t.root)
}

func (t *Tree) count(i int32) int {
	if i == nilNode {
		return 0
	}
	return 1 + t.count(t.nodes[i].left) + t.count(t.nodes[i].right)
}

// Rebuilds returns how many local rebuilds mutations have triggered.
func (t *Tree) Rebuilds() uint64 {
	return t.rebuilds
}

// Points exports every stored point in pre-order. Callers should not rely
// on the order.
func (t *Tree) Points() []geom.Point {
	out := make([]geom.Point, 0, len(t.nodes)-len(t.free))
	var walk func(i int32)
	walk = func(i int32) {
		if i == nilNode {
			return
		}
		out = append(out, t.nodes[i].p)
		walk(t.nodes[i].left)
		walk(t.nodes[i].right)
	}
	walk(t.root)
	return out
}

// InOrder lists points left subtree first.
func (t *Tree) InOrder() []geom.Point {
	return t.collect(t.root, nil)
}
