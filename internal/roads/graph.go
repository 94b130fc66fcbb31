// Package roads models a grid road network: undirected unit-cost edges
// between adjacent integer coordinates, grown one Manhattan path at a time.
package roads

import (
	"slices"

	"taxigrid/internal/geom"
)

// Edge is an undirected road segment with From < To in the x-major order.
type Edge struct {
	From geom.Point `json:"from"`
	To   geom.Point `json:"to"`
}

// Graph stores adjacency symmetrically. The zero value is not usable; call
// New. A Graph is not safe for concurrent use and is meant to be built per
// request.
type Graph struct {
	adj map[geom.Point][]geom.Point
}

func New() *Graph {
	return &Graph{adj: make(map[geom.Point][]geom.Point)}
}

// Reset drops every node and edge so the graph can be reused.
func (g *Graph) Reset() {
	clear(g.adj)
}

func (g *Graph) addEdge(a, b geom.Point) {
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

// HasEdge reports whether a and b are directly connected.
func (g *Graph) HasEdge(a, b geom.Point) bool {
	return slices.Contains(g.adj[a], b)
}

// Neighbors returns the coordinates adjacent to p in insertion order.
func (g *Graph) Neighbors(p geom.Point) []geom.Point {
	return slices.Clone(g.adj[p])
}

// NodeCount is the number of coordinates that have been touched by a path.
func (g *Graph) NodeCount() int {
	return len(g.adj)
}

// AddManhattanPath lays unit steps from from to to, walking x first and
// then y. Steps whose edge already exists are not added again, so repeating
// a path is a no-op.
func (g *Graph) AddManhattanPath(from, to geom.Point) {
	cur := from
	for cur != to {
		next := step(cur, to)
		if !g.HasEdge(cur, next) {
			g.addEdge(cur, next)
		}
		cur = next
	}
}

// BuildStar connects hub to every point with its own Manhattan path.
func (g *Graph) BuildStar(points []geom.Point, hub geom.Point) {
	for _, p := range points {
		g.AddManhattanPath(hub, p)
	}
}

// Edges lists every undirected edge once, sorted by From then To.
func (g *Graph) Edges() []Edge {
	seen := make(map[Edge]struct{})
	var out []Edge
	for p, ns := range g.adj {
		for _, n := range ns {
			e := canonical(p, n)
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if c := geom.Compare(a.From, b.From); c != 0 {
			return c
		}
		return geom.Compare(a.To, b.To)
	})
	return out
}

func canonical(a, b geom.Point) Edge {
	if geom.LessXY(b, a) {
		a, b = b, a
	}
	return Edge{From: a, To: b}
}

// step moves one unit from cur toward to, resolving x before y.
func step(cur, to geom.Point) geom.Point {
	switch {
	case cur.X < to.X:
		cur.X++
	case cur.X > to.X:
		cur.X--
	case cur.Y < to.Y:
		cur.Y++
	case cur.Y > to.Y:
		cur.Y--
	}
	return cur
}

// manhattanWalk is the x-then-y staircase from start to end, inclusive.
func manhattanWalk(start, end geom.Point) []geom.Point {
	path := make([]geom.Point, 0, start.Manhattan(end)+1)
	path = append(path, start)
	for cur := start; cur != end; {
		cur = step(cur, end)
		path = append(path, cur)
	}
	return path
}
