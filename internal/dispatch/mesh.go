package dispatch

import (
	"math/rand"

	"taxigrid/internal/geom"
	"taxigrid/internal/roads"
)

// MeshParams shapes the random street grid laid around a pickup.
type MeshParams struct {
	MinExpand int
	MaxLinks  int
}

// BuildMesh lays a random grid of streets over the bounding box of pickup
// and taxis, widened per axis by max(range/2, MinExpand), then joins every
// taxi to the pickup with its own Manhattan path.
func BuildMesh(rng *rand.Rand, pickup geom.Point, taxis []geom.Point, p MeshParams) *roads.Graph {
	g := roads.New()
	minX, maxX, minY, maxY := pickup.X, pickup.X, pickup.Y, pickup.Y
	for _, t := range taxis {
		minX, maxX = min(minX, t.X), max(maxX, t.X)
		minY, maxY = min(minY, t.Y), max(maxY, t.Y)
	}
	expandX := max((maxX-minX)/2, p.MinExpand)
	expandY := max((maxY-minY)/2, p.MinExpand)
	minX, maxX = minX-expandX, maxX+expandX
	minY, maxY = minY-expandY, maxY+expandY

	maxLinks := max(p.MaxLinks, 1)
	neighbors := make([]geom.Point, 0, 4)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			neighbors = neighbors[:0]
			if x > minX {
				neighbors = append(neighbors, geom.Pt(x-1, y))
			}
			if x < maxX {
				neighbors = append(neighbors, geom.Pt(x+1, y))
			}
			if y > minY {
				neighbors = append(neighbors, geom.Pt(x, y-1))
			}
			if y < maxY {
				neighbors = append(neighbors, geom.Pt(x, y+1))
			}
			if len(neighbors) == 0 {
				continue
			}
			rng.Shuffle(len(neighbors), func(i, j int) {
				neighbors[i], neighbors[j] = neighbors[j], neighbors[i]
			})
			links := 1 + rng.Intn(min(maxLinks, len(neighbors)))
			cell := geom.Pt(x, y)
			for _, n := range neighbors[:links] {
				g.AddManhattanPath(cell, n)
			}
		}
	}

	g.BuildStar(taxis, pickup)
	return g
}

// GenerateFleet places cfg.Size taxis uniformly on [0, Span) per axis.
// Coincident draws collapse when the fleet is loaded into the index.
func GenerateFleet(cfg FleetConfig) []geom.Point {
	rng := rand.New(rand.NewSource(cfg.Seed))
	pts := make([]geom.Point, cfg.Size)
	for i := range pts {
		pts[i] = geom.Pt(rng.Intn(cfg.Span), rng.Intn(cfg.Span))
	}
	return pts
}
