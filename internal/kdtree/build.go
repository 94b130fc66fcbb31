package kdtree

import (
	"slices"

	"taxigrid/internal/geom"
)

// Load discards the current contents and bulk builds a balanced tree from
// points. Duplicate coordinates are kept once.
//
// Both superkey orderings are sorted once up front. Each level takes the
// median of the ordering that matches its axis as pivot and partitions the
// other ordering around it, so no level sorts again.
func (t *Tree) Load(points []geom.Point) {
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	t.root = nilNode

	data := distinct(points)
	if len(data) == 0 {
		return
	}

	xy := make([]int, len(data))
	yx := make([]int, len(data))
	for i := range data {
		xy[i] = i
		yx[i] = i
	}
	slices.SortFunc(xy, func(a, b int) int { return order(data[a], data[b], 0) })
	slices.SortFunc(yx, func(a, b int) int { return order(data[a], data[b], 1) })

	t.nodes = slices.Grow(t.nodes, len(data))
	t.root = t.buildPresorted(data, xy, yx, 0)
}

// buildPresorted builds the subtree for the indices in primary, which is
// ordered by the axis of depth; secondary holds the same indices ordered by
// the other axis.
func (t *Tree) buildPresorted(data []geom.Point, primary, secondary []int, depth int) int32 {
	if len(primary) == 0 {
		return nilNode
	}
	mid := len(primary) / 2
	pivot := primary[mid]
	pp := data[pivot]

	lower := make([]int, 0, mid)
	upper := make([]int, 0, len(primary)-mid-1)
	for _, idx := range secondary {
		if idx == pivot {
			continue
		}
		if geom.Less(data[idx], pp, depth) {
			lower = append(lower, idx)
		} else {
			upper = append(upper, idx)
		}
	}

	n := t.alloc(pp)
	// At the next depth the roles swap: the partitioned secondary ordering
	// now matches the axis.
	left := t.buildPresorted(data, lower, primary[:mid], depth+1)
	right := t.buildPresorted(data, upper, primary[mid+1:], depth+1)
	t.nodes[n].left = left
	t.nodes[n].right = right
	t.updateHeight(n)
	return n
}

// rebuild replaces the subtree at i, which sits at depth, with a
// height-balanced subtree over the same points.
func (t *Tree) rebuild(i int32, depth int) int32 {
	pts := t.collect(i, nil)
	t.releaseSubtree(i)
	t.rebuilds++
	return t.buildBalanced(pts, depth)
}

func (t *Tree) buildBalanced(pts []geom.Point, depth int) int32 {
	if len(pts) == 0 {
		return nilNode
	}
	slices.SortFunc(pts, func(a, b geom.Point) int { return order(a, b, depth) })
	mid := (len(pts) - 1) / 2
	n := t.alloc(pts[mid])
	left := t.buildBalanced(pts[:mid], depth+1)
	right := t.buildBalanced(pts[mid+1:], depth+1)
	t.nodes[n].left = left
	t.nodes[n].right = right
	t.updateHeight(n)
	return n
}

func order(a, b geom.Point, depth int) int {
	switch {
	case geom.Less(a, b, depth):
		return -1
	case geom.Less(b, a, depth):
		return 1
	}
	return 0
}

func distinct(points []geom.Point) []geom.Point {
	seen := make(map[geom.Point]struct{}, len(points))
	out := make([]geom.Point, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
