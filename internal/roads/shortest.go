package roads

import (
	"container/heap"
	"slices"

	"taxigrid/internal/geom"
)

// Reach tells whether a route was found in the graph or estimated.
type Reach int

const (
	// Exact routes follow existing edges.
	Exact Reach = iota
	// Estimated routes are the straight Manhattan staircase between two
	// coordinates that the graph does not connect. They ignore edges.
	Estimated
)

func (r Reach) String() string {
	if r == Estimated {
		return "estimated"
	}
	return "exact"
}

type entry struct {
	p    geom.Point
	cost int
}

type frontier []entry

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return geom.LessXY(f[i].p, f[j].p)
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) {
	*f = append(*f, x.(entry))
}

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	e := old[n-1]
	*f = old[:n-1]
	return e
}

// search runs uniform-cost search from start until end is settled. prev is
// filled when non-nil. It returns the hop count and whether end was reached.
func (g *Graph) search(start, end geom.Point, prev map[geom.Point]geom.Point) (int, bool) {
	dist := map[geom.Point]int{start: 0}
	f := &frontier{{p: start}}

	for f.Len() > 0 {
		cur := heap.Pop(f).(entry)
		if cur.p == end {
			return cur.cost, true
		}
		if cur.cost > dist[cur.p] {
			continue // stale
		}
		for _, n := range g.adj[cur.p] {
			cost := cur.cost + 1
			if best, ok := dist[n]; ok && best <= cost {
				continue
			}
			dist[n] = cost
			if prev != nil {
				prev[n] = cur.p
			}
			heap.Push(f, entry{p: n, cost: cost})
		}
	}
	return 0, false
}

// Distance returns the hop count of the shortest path from start to end.
// When the graph does not connect them it falls back to the L1 distance
// and reports Estimated.
func (g *Graph) Distance(start, end geom.Point) (int, Reach) {
	if start == end {
		return 0, Exact
	}
	if hops, ok := g.search(start, end, nil); ok {
		return hops, Exact
	}
	return start.Manhattan(end), Estimated
}

// Path returns the coordinates of a shortest path from start to end, both
// included. When the graph does not connect them it returns the x-then-y
// staircase, not checked against edges, and reports Estimated.
func (g *Graph) Path(start, end geom.Point) ([]geom.Point, Reach) {
	if start == end {
		return []geom.Point{start}, Exact
	}
	prev := make(map[geom.Point]geom.Point)
	if _, ok := g.search(start, end, prev); !ok {
		return manhattanWalk(start, end), Estimated
	}

	path := []geom.Point{end}
	for cur := end; cur != start; {
		cur = prev[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path, Exact
}
