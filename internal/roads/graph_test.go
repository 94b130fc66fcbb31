package roads

import (
	"math/rand"
	"slices"
	"testing"

	"taxigrid/internal/geom"
)

func checkUnitSteps(t *testing.T, path []geom.Point) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		if path[i-1].Manhattan(path[i]) != 1 {
			t.Fatalf("step %d: %v -> %v is not a unit move", i, path[i-1], path[i])
		}
	}
}

func TestAddManhattanPath_SamePointIsNoop(t *testing.T) {
	g := New()
	g.AddManhattanPath(geom.Pt(0, 0), geom.Pt(0, 0))

	if edges := g.Edges(); len(edges) != 0 {
		t.Fatalf("expected no edges, got %v", edges)
	}
	if hops, reach := g.Distance(geom.Pt(0, 0), geom.Pt(0, 0)); hops != 0 || reach != Exact {
		t.Fatalf("Distance to self = %d (%v), want 0 exact", hops, reach)
	}
	path, _ := g.Path(geom.Pt(0, 0), geom.Pt(0, 0))
	if !slices.Equal(path, []geom.Point{{X: 0, Y: 0}}) {
		t.Fatalf("Path to self = %v", path)
	}
}

func TestAddManhattanPath_XThenY(t *testing.T) {
	g := New()
	g.AddManhattanPath(geom.Pt(0, 0), geom.Pt(2, -1))

	want := []Edge{
		{geom.Pt(0, 0), geom.Pt(1, 0)},
		{geom.Pt(1, 0), geom.Pt(2, 0)},
		{geom.Pt(2, -1), geom.Pt(2, 0)},
	}
	if got := g.Edges(); !slices.Equal(got, want) {
		t.Fatalf("Edges = %v, want %v", got, want)
	}
	if g.NodeCount() != 4 {
		t.Errorf("NodeCount = %d, want 4", g.NodeCount())
	}
	if !g.HasEdge(geom.Pt(2, 0), geom.Pt(1, 0)) {
		t.Error("edges should be stored in both directions")
	}
}

func TestAddManhattanPath_Idempotent(t *testing.T) {
	g := New()
	for i := 0; i < 3; i++ {
		g.AddManhattanPath(geom.Pt(-3, 4), geom.Pt(5, -2))
	}
	if n := len(g.Edges()); n != 14 {
		t.Fatalf("repeated path gave %d edges, want 14", n)
	}

	// The reverse walk goes x first along the other side of the rectangle.
	g.AddManhattanPath(geom.Pt(5, -2), geom.Pt(-3, 4))
	if n := len(g.Edges()); n != 28 {
		t.Fatalf("reverse path gave %d edges, want 28", n)
	}
	for p, ns := range g.adj {
		seen := make(map[geom.Point]bool)
		for _, n := range ns {
			if seen[n] {
				t.Fatalf("%v lists neighbour %v twice", p, n)
			}
			seen[n] = true
			if !slices.Contains(g.adj[n], p) {
				t.Fatalf("edge %v-%v stored one way only", p, n)
			}
		}
	}
}

func TestEdges_NoReverseOrDuplicate(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	g := New()
	for i := 0; i < 40; i++ {
		a := geom.Pt(rng.Intn(20), rng.Intn(20))
		b := geom.Pt(rng.Intn(20), rng.Intn(20))
		g.AddManhattanPath(a, b)
		g.AddManhattanPath(a, b)
	}

	seen := make(map[Edge]bool)
	for _, e := range g.Edges() {
		if !geom.LessXY(e.From, e.To) {
			t.Fatalf("edge %v is not canonical", e)
		}
		if seen[e] || seen[Edge{From: e.To, To: e.From}] {
			t.Fatalf("edge %v emitted twice", e)
		}
		seen[e] = true
		if e.From.Manhattan(e.To) != 1 {
			t.Fatalf("edge %v joins non-adjacent cells", e)
		}
	}
}

func TestShortestPath_DirectManhattan(t *testing.T) {
	tests := []struct {
		from, to geom.Point
	}{
		{geom.Pt(0, 0), geom.Pt(7, 3)},
		{geom.Pt(4, 4), geom.Pt(-2, 9)},
		{geom.Pt(0, 5), geom.Pt(0, -5)},
		{geom.Pt(3, 1), geom.Pt(-6, 1)},
	}
	for _, tt := range tests {
		g := New()
		g.AddManhattanPath(tt.from, tt.to)

		want := tt.from.Manhattan(tt.to)
		hops, reach := g.Distance(tt.from, tt.to)
		if hops != want || reach != Exact {
			t.Errorf("Distance(%v, %v) = %d %v, want %d exact", tt.from, tt.to, hops, reach, want)
		}
		// Either direction travels the same road.
		if back, _ := g.Distance(tt.to, tt.from); back != want {
			t.Errorf("reverse Distance = %d, want %d", back, want)
		}

		path, reach := g.Path(tt.from, tt.to)
		if reach != Exact || len(path) != want+1 {
			t.Fatalf("Path(%v, %v) = %v (%v)", tt.from, tt.to, path, reach)
		}
		if path[0] != tt.from || path[len(path)-1] != tt.to {
			t.Fatalf("path endpoints %v..%v", path[0], path[len(path)-1])
		}
		checkUnitSteps(t, path)
	}
}

func TestShortestPath_PrefersShortcut(t *testing.T) {
	g := New()
	// Long detour around a square, then a direct segment.
	g.AddManhattanPath(geom.Pt(0, 0), geom.Pt(0, 5))
	g.AddManhattanPath(geom.Pt(0, 5), geom.Pt(5, 5))
	g.AddManhattanPath(geom.Pt(5, 5), geom.Pt(5, 0))
	if hops, _ := g.Distance(geom.Pt(0, 0), geom.Pt(5, 0)); hops != 15 {
		t.Fatalf("detour distance = %d, want 15", hops)
	}

	g.AddManhattanPath(geom.Pt(0, 0), geom.Pt(5, 0))
	hops, reach := g.Distance(geom.Pt(0, 0), geom.Pt(5, 0))
	if hops != 5 || reach != Exact {
		t.Fatalf("distance with shortcut = %d %v, want 5 exact", hops, reach)
	}
	path, _ := g.Path(geom.Pt(0, 0), geom.Pt(5, 0))
	if len(path) != 6 {
		t.Fatalf("path with shortcut = %v", path)
	}
}

func TestShortestPath_DisconnectedFallsBack(t *testing.T) {
	g := New()
	g.AddManhattanPath(geom.Pt(0, 0), geom.Pt(3, 0))
	g.AddManhattanPath(geom.Pt(10, 10), geom.Pt(12, 10))

	start, end := geom.Pt(0, 0), geom.Pt(12, 13)
	hops, reach := g.Distance(start, end)
	if hops != 25 || reach != Estimated {
		t.Fatalf("Distance = %d %v, want 25 estimated", hops, reach)
	}

	path, reach := g.Path(start, end)
	if reach != Estimated {
		t.Fatalf("expected estimated path, got %v", reach)
	}
	if len(path) != 26 || path[0] != start || path[len(path)-1] != end {
		t.Fatalf("fallback path = %v", path)
	}
	checkUnitSteps(t, path)
	// x is resolved before y.
	if path[12] != geom.Pt(12, 0) {
		t.Fatalf("fallback path should finish x first, got %v at step 12", path[12])
	}

	// An empty graph behaves the same way.
	if hops, reach := New().Distance(geom.Pt(1, 1), geom.Pt(4, 5)); hops != 7 || reach != Estimated {
		t.Fatalf("empty graph Distance = %d %v", hops, reach)
	}
}

func TestBuildStar(t *testing.T) {
	g := New()
	hub := geom.Pt(10, 10)
	spokes := []geom.Point{{X: 0, Y: 0}, {X: 20, Y: 15}, {X: 10, Y: 30}, {X: 10, Y: 10}}
	g.BuildStar(spokes, hub)

	for _, p := range spokes {
		hops, reach := g.Distance(p, hub)
		if reach != Exact || hops != p.Manhattan(hub) {
			t.Errorf("spoke %v: %d %v, want %d exact", p, hops, reach, p.Manhattan(hub))
		}
	}

	g.Reset()
	if g.NodeCount() != 0 || len(g.Edges()) != 0 {
		t.Fatal("Reset left nodes behind")
	}
}

func TestShortestPath_MatchesBFSOnRandomMesh(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	g := New()
	for i := 0; i < 60; i++ {
		a := geom.Pt(rng.Intn(15), rng.Intn(15))
		b := geom.Pt(rng.Intn(15), rng.Intn(15))
		g.AddManhattanPath(a, b)
	}

	bfs := func(start geom.Point) map[geom.Point]int {
		dist := map[geom.Point]int{start: 0}
		queue := []geom.Point{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, n := range g.adj[cur] {
				if _, ok := dist[n]; !ok {
					dist[n] = dist[cur] + 1
					queue = append(queue, n)
				}
			}
		}
		return dist
	}

	for i := 0; i < 30; i++ {
		start := geom.Pt(rng.Intn(15), rng.Intn(15))
		end := geom.Pt(rng.Intn(15), rng.Intn(15))
		want, ok := bfs(start)[end]

		hops, reach := g.Distance(start, end)
		path, preach := g.Path(start, end)
		if !ok {
			if reach != Estimated || preach != Estimated {
				t.Fatalf("%v -> %v unreachable but reported %v/%v", start, end, reach, preach)
			}
			continue
		}
		if hops != want || reach != Exact {
			t.Fatalf("Distance(%v, %v) = %d %v, want %d", start, end, hops, reach, want)
		}
		if len(path)-1 != want || preach != Exact {
			t.Fatalf("Path(%v, %v) has %d hops, want %d", start, end, len(path)-1, want)
		}
		for j := 1; j < len(path); j++ {
			if !g.HasEdge(path[j-1], path[j]) {
				t.Fatalf("path uses missing edge %v-%v", path[j-1], path[j])
			}
		}
	}
}

func TestNeighbors_Symmetric(t *testing.T) {
	g := New()
	g.AddManhattanPath(geom.Pt(0, 0), geom.Pt(2, 1))
	g.AddManhattanPath(geom.Pt(1, 0), geom.Pt(1, 3))

	if got := g.Neighbors(geom.Pt(1, 0)); !slices.Equal(got, []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 1}}) {
		t.Fatalf("Neighbors((1,0)) = %v", got)
	}
	if got := g.Neighbors(geom.Pt(9, 9)); len(got) != 0 {
		t.Fatalf("unknown node has neighbours %v", got)
	}

	for _, e := range g.Edges() {
		a := slices.Index(g.Neighbors(e.From), e.To)
		b := slices.Index(g.Neighbors(e.To), e.From)
		if a < 0 || b < 0 {
			t.Fatalf("edge %v not stored on both ends", e)
		}
	}

	// The returned slice is a copy.
	n := g.Neighbors(geom.Pt(1, 0))
	n[0] = geom.Pt(50, 50)
	if g.HasEdge(geom.Pt(1, 0), geom.Pt(50, 50)) {
		t.Fatal("Neighbors exposed the adjacency list")
	}
}
