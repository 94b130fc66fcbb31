package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taxigrid/internal/geom"
	"taxigrid/internal/roads"
)

var (
	ErrNoTaxis       = errors.New("no taxis available")
	ErrTaxiNotFound  = errors.New("taxi not found at given location")
	ErrPositionTaken = errors.New("another taxi already occupies that location")
	ErrOutOfBounds   = errors.New("coordinate outside service area")
	ErrPersist       = errors.New("failed to persist fleet")
	ErrNoEventLog    = errors.New("event log not configured")
)

// Config tunes dispatch. Zero fields are filled from DefaultConfig by
// NewStore.
type Config struct {
	K             int         `yaml:"k"`
	MinutesPerHop float64     `yaml:"minutes_per_hop"`
	MeshMinExpand int         `yaml:"mesh_min_expand"`
	MeshMaxLinks  int         `yaml:"mesh_max_links"`
	MeshSeed      int64       `yaml:"mesh_seed"`
	CoordMin      int         `yaml:"coord_min"`
	CoordMax      int         `yaml:"coord_max"`
	Fleet         FleetConfig `yaml:"fleet"`
}

// FleetConfig describes the fleet generated when the position store is empty.
type FleetConfig struct {
	Size int   `yaml:"size"`
	Span int   `yaml:"span"`
	Seed int64 `yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		K:             5,
		MinutesPerHop: 2.0,
		MeshMinExpand: 15,
		MeshMaxLinks:  3,
		MeshSeed:      1,
		CoordMin:      -100,
		CoordMax:      100,
		Fleet:         FleetConfig{Size: 50, Span: 100, Seed: 42},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.K <= 0 {
		c.K = d.K
	}
	if c.MinutesPerHop <= 0 {
		c.MinutesPerHop = d.MinutesPerHop
	}
	if c.MeshMinExpand <= 0 {
		c.MeshMinExpand = d.MeshMinExpand
	}
	if c.MeshMaxLinks <= 0 {
		c.MeshMaxLinks = d.MeshMaxLinks
	}
	if c.CoordMin == 0 && c.CoordMax == 0 {
		c.CoordMin, c.CoordMax = d.CoordMin, d.CoordMax
	}
	if c.Fleet.Size <= 0 {
		c.Fleet.Size = d.Fleet.Size
	}
	if c.Fleet.Span <= 0 {
		c.Fleet.Span = d.Fleet.Span
	}
	return c
}

// Validate rejects settings that cannot describe a service area.
func (c Config) Validate() error {
	if c.CoordMin > c.CoordMax {
		return fmt.Errorf("coord_min %d is above coord_max %d", c.CoordMin, c.CoordMax)
	}
	if c.K < 0 {
		return fmt.Errorf("k must not be negative, got %d", c.K)
	}
	if c.MinutesPerHop < 0 {
		return fmt.Errorf("minutes_per_hop must not be negative, got %v", c.MinutesPerHop)
	}
	return nil
}

// InDomain reports whether p lies inside the configured service area.
func (c Config) InDomain(p geom.Point) bool {
	return p.X >= c.CoordMin && p.X <= c.CoordMax && p.Y >= c.CoordMin && p.Y <= c.CoordMax
}

// Candidate is one taxi ranked for a pickup.
type Candidate struct {
	Rank              int          `json:"rank"`
	Location          geom.Point   `json:"location"`
	EuclideanDistance float64      `json:"euclideanDistance"`
	GraphDistance     int          `json:"graphDistance"`
	EstimatedTime     float64      `json:"estimatedTime"`
	Path              []geom.Point `json:"path"`
	Estimated         bool         `json:"estimated"`
}

type RouteResult struct {
	Pickup       geom.Point   `json:"pickup"`
	Dropoff      *geom.Point  `json:"dropoff,omitempty"`
	RoadNetwork  []roads.Edge `json:"roadNetwork"`
	NearestTaxis []Candidate  `json:"nearestTaxis"`
	NearestTaxi  *Candidate   `json:"nearestTaxi,omitempty"`
}

type MoveKind string

const (
	MoveBooking     MoveKind = "booking"
	MoveRideStarted MoveKind = "ride_started"
)

// Booking is the outcome of moving one taxi to a new position.
type Booking struct {
	ID         string     `json:"id"`
	Kind       MoveKind   `json:"kind"`
	Success    bool       `json:"success"`
	MovedFrom  geom.Point `json:"movedFrom"`
	MovedTo    geom.Point `json:"movedTo"`
	Distance   int        `json:"distance"`
	Time       float64    `json:"time"`
	Estimated  bool       `json:"estimated"`
	TreeHeight int        `json:"treeHeight"`
	TreeSize   int        `json:"treeSize"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// FleetSnapshot is a consistent view of every taxi position.
type FleetSnapshot struct {
	Taxis      []geom.Point `json:"taxis"`
	TreeHeight int          `json:"treeHeight"`
	TreeSize   int          `json:"treeSize"`
}

type FleetEvent struct {
	ID        int64           `json:"id,omitempty"`
	Kind      MoveKind        `json:"kind"`
	BookingID string          `json:"bookingId"`
	From      geom.Point      `json:"from"`
	To        geom.Point      `json:"to"`
	Hops      int             `json:"hops"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// PositionStore persists the flat list of taxi coordinates.
type PositionStore interface {
	Load(ctx context.Context) ([]geom.Point, error)
	Save(ctx context.Context, points []geom.Point) error
}

type EventLogger interface {
	AppendEvent(ctx context.Context, evt FleetEvent) error
	ListEvents(ctx context.Context, limit, offset int) ([]FleetEvent, error)
	CountEvents(ctx context.Context) (int, error)
}

// IdempotencyStore keeps Idempotency-Key replays across restarts.
type IdempotencyStore interface {
	Remember(ctx context.Context, key string, b Booking) error
	Lookup(ctx context.Context, key string) (Booking, bool, error)
}

// Publisher receives fleet changes and route answers for live feeds.
type Publisher interface {
	PublishBooking(b Booking)
	PublishRoute(r RouteResult)
}
