// Package geom holds the integer plane primitives shared by the spatial
// index and the road graph.
package geom

import (
	"fmt"
	"math"
)

// Point is a position on the integer grid. It is comparable and used
// directly as a map key.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// DistSq returns the squared Euclidean distance to o.
func (p Point) DistSq(o Point) int64 {
	dx := int64(p.X - o.X)
	dy := int64(p.Y - o.Y)
	return dx*dx + dy*dy
}

// Dist returns the Euclidean distance to o.
func (p Point) Dist(o Point) float64 {
	return math.Sqrt(float64(p.DistSq(o)))
}

// Manhattan returns the L1 distance to o.
func (p Point) Manhattan(o Point) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// LessXY orders by x, then y.
func LessXY(a, b Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// LessYX orders by y, then x.
func LessYX(a, b Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// Less applies the superkey ordering of the axis discriminating at depth:
// x-major on even depths, y-major on odd ones.
func Less(a, b Point, depth int) bool {
	if depth%2 == 0 {
		return LessXY(a, b)
	}
	return LessYX(a, b)
}

// Compare is the canonical total order (x, then y) as a three-way result,
// suitable for slices.SortFunc.
func Compare(a, b Point) int {
	switch {
	case LessXY(a, b):
		return -1
	case LessXY(b, a):
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
