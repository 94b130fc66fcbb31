package kdtree

import (
	"math/rand"
	"slices"
	"testing"

	"taxigrid/internal/geom"
)

// bruteNearest ranks every point by (squared distance, x, y).
func bruteNearest(pts []geom.Point, q geom.Point, k int) []geom.Point {
	ranked := slices.Clone(pts)
	slices.SortFunc(ranked, func(a, b geom.Point) int {
		da, db := a.DistSq(q), b.DistSq(q)
		if da != db {
			if da < db {
				return -1
			}
			return 1
		}
		return geom.Compare(a, b)
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

func TestNearest_TiedDistances(t *testing.T) {
	tree := Build([]geom.Point{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: 5, Y: 5}})

	got := tree.Nearest(geom.Pt(0, 0), 2)
	want := []geom.Point{{X: 0, Y: 1}, {X: 1, Y: 0}}
	if !slices.Equal(got, want) {
		t.Fatalf("Nearest = %v, want %v", got, want)
	}
}

func TestNearest_ClosestFirst(t *testing.T) {
	tree := Build([]geom.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 2, Y: 2}, {X: 9, Y: 1}})

	got := tree.Nearest(geom.Pt(2, 1), 3)
	want := []geom.Point{{X: 2, Y: 2}, {X: 0, Y: 0}, {X: 5, Y: 5}}
	if !slices.Equal(got, want) {
		t.Fatalf("Nearest = %v, want %v", got, want)
	}
}

func TestNearest_Bounds(t *testing.T) {
	tree := Build([]geom.Point{{X: 1, Y: 1}, {X: 2, Y: 2}})

	if got := tree.Nearest(geom.Pt(0, 0), 0); got != nil {
		t.Errorf("k=0 should return nil, got %v", got)
	}
	if got := tree.Nearest(geom.Pt(0, 0), -4); got != nil {
		t.Errorf("negative k should return nil, got %v", got)
	}
	if got := tree.Nearest(geom.Pt(0, 0), 10); len(got) != 2 {
		t.Errorf("k larger than size should return all points, got %v", got)
	}
}

func TestNearest_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 40; round++ {
		pts := sortedSet(randomPoints(rng, 1+rng.Intn(150), 30))
		tree := Build(pts)

		// Mutate so queries also run against rebuilt subtrees.
		for i := 0; i < 30; i++ {
			p := geom.Pt(rng.Intn(30)-15, rng.Intn(30)-15)
			if rng.Intn(2) == 0 {
				tree.Insert(p)
			} else {
				tree.Delete(p)
			}
		}
		live := tree.Points()

		for q := 0; q < 25; q++ {
			query := geom.Pt(rng.Intn(50)-25, rng.Intn(50)-25)
			k := 1 + rng.Intn(8)
			got := tree.Nearest(query, k)
			want := bruteNearest(live, query, k)
			if !slices.Equal(got, want) {
				t.Fatalf("round %d: Nearest(%v, %d)\n got %v\nwant %v", round, query, k, got, want)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].DistSq(query) > got[i].DistSq(query) {
					t.Fatalf("results not sorted by distance: %v", got)
				}
			}
		}
	}
}
