package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"taxigrid/internal/geom"
	"taxigrid/internal/kdtree"
	"taxigrid/internal/logger"
	"taxigrid/internal/metrics"
	"taxigrid/internal/roads"
)

// Store owns the live fleet index. Mutations take the write lock and are
// persisted before it is released; queries share the read lock.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	tree      *kdtree.Tree
	positions PositionStore
	events    EventLogger
	publisher Publisher
	idemCache *idemCache
	idemDB    IdempotencyStore
	log       *slog.Logger
	now       func() time.Time

	seq      atomic.Int64
	rebuilds uint64
}

type Option func(*Store)

func WithEventLogger(l EventLogger) Option {
	return func(s *Store) { s.events = l }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithIdempotencyStore backs the in-memory key cache with a durable store.
func WithIdempotencyStore(db IdempotencyStore) Option {
	return func(s *Store) { s.idemDB = db }
}

// WithIdempotencyTTL sets how long Idempotency-Key replays are honoured.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Store) { s.idemCache.SetTTL(ttl) }
}

func NewStore(cfg Config, positions PositionStore, opts ...Option) *Store {
	s := &Store{
		cfg:       cfg.withDefaults(),
		tree:      kdtree.New(),
		positions: positions,
		idemCache: newIdemCache(),
		log:       logger.L(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Config() Config { return s.cfg }

// HasEventLog reports whether fleet events are being recorded.
func (s *Store) HasEventLog() bool { return s.events != nil }

// Load replaces the index with the persisted fleet. An empty store is
// seeded with a generated fleet, which is saved back.
func (s *Store) Load(ctx context.Context) error {
	pts, err := s.positions.Load(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	seeded := false
	if len(pts) == 0 {
		pts = GenerateFleet(s.cfg.Fleet)
		seeded = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Load(pts)
	s.observeLocked()
	if seeded {
		if err := s.positions.Save(ctx, s.tree.Points()); err != nil {
			s.log.Warn("fleet_seed_save_failed", "err", err)
		}
	}
	s.log.Info("fleet_loaded", "size", s.tree.Size(), "height", s.tree.Height(), "seeded", seeded)
	return nil
}

// Fleet returns every taxi position sorted by x then y.
func (s *Store) Fleet() FleetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts := s.tree.Points()
	slices.SortFunc(pts, geom.Compare)
	return FleetSnapshot{Taxis: pts, TreeHeight: s.tree.Height(), TreeSize: s.tree.Size()}
}

// Stats returns the index height and size.
func (s *Store) Stats() (height, size int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Height(), s.tree.Size()
}

func (s *Store) checkDomain(pts ...geom.Point) error {
	for _, p := range pts {
		if !s.cfg.InDomain(p) {
			return fmt.Errorf("%w: %v not in [%d, %d]", ErrOutOfBounds, p, s.cfg.CoordMin, s.cfg.CoordMax)
		}
	}
	return nil
}

func (s *Store) nearest(p geom.Point, k int) []geom.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Nearest(p, k)
}

// meshFor builds the request-scoped road graph around pickup.
func (s *Store) meshFor(pickup geom.Point, taxis []geom.Point) *roads.Graph {
	rng := rand.New(rand.NewSource(s.cfg.MeshSeed + s.seq.Add(1)))
	return BuildMesh(rng, pickup, taxis, MeshParams{MinExpand: s.cfg.MeshMinExpand, MaxLinks: s.cfg.MeshMaxLinks})
}

// Route ranks the k taxis nearest to pickup by hops over a fresh road mesh.
// dropoff is echoed back when given.
func (s *Store) Route(ctx context.Context, pickup geom.Point, dropoff *geom.Point) (RouteResult, error) {
	start := time.Now()
	metrics.RouteRequestsTotal.Inc()
	if err := s.checkDomain(pickup); err != nil {
		return RouteResult{}, err
	}
	if dropoff != nil {
		if err := s.checkDomain(*dropoff); err != nil {
			return RouteResult{}, err
		}
	}

	taxis := s.nearest(pickup, s.cfg.K)
	if len(taxis) == 0 {
		return RouteResult{Pickup: pickup}, ErrNoTaxis
	}
	g := s.meshFor(pickup, taxis)
	if err := ctx.Err(); err != nil {
		return RouteResult{}, err
	}

	cands := make([]Candidate, 0, len(taxis))
	for _, t := range taxis {
		path, reach := g.Path(t, pickup)
		hops := len(path) - 1
		if reach == roads.Estimated {
			metrics.EstimatedPathsTotal.Inc()
		}
		cands = append(cands, Candidate{
			Location:          t,
			EuclideanDistance: t.Dist(pickup),
			GraphDistance:     hops,
			EstimatedTime:     float64(hops) * s.cfg.MinutesPerHop,
			Path:              path,
			Estimated:         reach == roads.Estimated,
		})
	}
	// taxis arrive closest first, so equal hop counts keep Euclidean order
	slices.SortStableFunc(cands, func(a, b Candidate) int { return a.GraphDistance - b.GraphDistance })
	for i := range cands {
		cands[i].Rank = i + 1
	}
	best := cands[0]

	res := RouteResult{
		Pickup:       pickup,
		Dropoff:      dropoff,
		RoadNetwork:  g.Edges(),
		NearestTaxis: cands,
		NearestTaxi:  &best,
	}
	metrics.RouteCandidates.Observe(float64(len(cands)))
	metrics.RouteDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	s.log.Debug("route_ranked", "pickup", pickup.String(), "best", best.Location.String(), "hops", best.GraphDistance, "edges", len(res.RoadNetwork))
	if s.publisher != nil {
		s.publisher.PublishRoute(res)
	}
	return res, nil
}

// Book moves the taxi at taxi to pickup. A repeated idemKey returns the
// first booking without moving anything.
func (s *Store) Book(ctx context.Context, pickup, taxi geom.Point, idemKey string) (Booking, error) {
	if b, ok := s.lookupIdem(ctx, idemKey); ok {
		return b, nil
	}
	return s.move(ctx, MoveBooking, taxi, pickup, idemKey)
}

// StartRide moves the taxi at taxi to the dropoff point.
func (s *Store) StartRide(ctx context.Context, dropoff, taxi geom.Point) (Booking, error) {
	return s.move(ctx, MoveRideStarted, taxi, dropoff, "")
}

// LookupIdempotent returns the booking recorded for key, if any.
func (s *Store) LookupIdempotent(ctx context.Context, key string) (Booking, bool) {
	return s.lookupIdem(ctx, key)
}

func (s *Store) lookupIdem(ctx context.Context, key string) (Booking, bool) {
	if key == "" {
		return Booking{}, false
	}
	if b, ok := s.idemCache.Lookup(key); ok {
		return b, true
	}
	if s.idemDB == nil {
		return Booking{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	b, ok, err := s.idemDB.Lookup(ctx, key)
	if err != nil {
		s.log.Warn("idempotency_lookup_failed", "err", err)
		return Booking{}, false
	}
	if ok {
		s.idemCache.Remember(key, b)
	}
	return b, ok
}

func (s *Store) rememberIdem(ctx context.Context, key string, b Booking) {
	s.idemCache.Remember(key, b)
	if s.idemDB == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.idemDB.Remember(ctx, key, b); err != nil {
		s.log.Warn("idempotency_remember_failed", "id", b.ID, "err", err)
	}
}

// PruneIdempotency drops expired Idempotency-Key entries.
func (s *Store) PruneIdempotency() int {
	return s.idemCache.sweep()
}

func (s *Store) move(ctx context.Context, kind MoveKind, from, to geom.Point, idemKey string) (Booking, error) {
	if err := s.checkDomain(from, to); err != nil {
		return Booking{}, err
	}

	// The road mesh covers the destination's neighbourhood plus the moving
	// taxi, so the taxi is always joined to the destination.
	taxis := s.nearest(to, s.cfg.K)
	if !slices.Contains(taxis, from) {
		taxis = append(taxis, from)
	}
	hops, reach := s.meshFor(to, taxis).Distance(from, to)
	if reach == roads.Estimated {
		metrics.EstimatedPathsTotal.Inc()
	}

	b, fresh, err := s.apply(ctx, kind, from, to, hops, reach == roads.Estimated, idemKey)
	if !fresh {
		return b, err
	}
	s.appendEvent(ctx, b)
	if s.publisher != nil {
		s.publisher.PublishBooking(b)
	}
	return b, err
}

// apply performs the move under the write lock and persists the new fleet
// before releasing it, so saves land in mutation order. fresh is false when
// nothing moved.
func (s *Store) apply(ctx context.Context, kind MoveKind, from, to geom.Point, hops int, estimated bool, idemKey string) (b Booking, fresh bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Book already consulted the durable store; a concurrent replay of the
	// same key can only have landed in the cache.
	if idemKey != "" {
		if b, ok := s.idemCache.Lookup(idemKey); ok {
			return b, false, nil
		}
	}
	if !s.tree.Contains(from) {
		return Booking{}, false, fmt.Errorf("%w: %v", ErrTaxiNotFound, from)
	}
	if from != to && s.tree.Contains(to) {
		return Booking{}, false, fmt.Errorf("%w: %v", ErrPositionTaken, to)
	}
	s.tree.Delete(from)
	s.tree.Insert(to)
	s.observeLocked()

	now := s.now()
	b = Booking{
		ID:         fmt.Sprintf("%s_%d_%d", kind, now.UnixNano(), s.seq.Add(1)),
		Kind:       kind,
		Success:    true,
		MovedFrom:  from,
		MovedTo:    to,
		Distance:   hops,
		Time:       float64(hops) * s.cfg.MinutesPerHop,
		Estimated:  estimated,
		TreeHeight: s.tree.Height(),
		TreeSize:   s.tree.Size(),
		CreatedAt:  now,
	}
	s.rememberIdem(ctx, idemKey, b)
	metrics.MovesTotal.WithLabelValues(string(kind)).Inc()
	s.log.Info("taxi_moved", "kind", kind, "id", b.ID, "from", from.String(), "to", to.String(), "hops", hops, "estimated", estimated)

	if err := s.positions.Save(ctx, s.tree.Points()); err != nil {
		metrics.PersistFailuresTotal.Inc()
		s.log.Error("fleet_persist_failed", "id", b.ID, "err", err)
		return b, true, errors.Join(ErrPersist, err)
	}
	return b, true, nil
}

func (s *Store) appendEvent(ctx context.Context, b Booking) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(b)
	if err != nil {
		s.log.Warn("event_encode_failed", "id", b.ID, "err", err)
		return
	}
	evt := FleetEvent{
		Kind:      b.Kind,
		BookingID: b.ID,
		From:      b.MovedFrom,
		To:        b.MovedTo,
		Hops:      b.Distance,
		Payload:   payload,
		CreatedAt: b.CreatedAt,
	}
	if err := s.events.AppendEvent(ctx, evt); err != nil {
		s.log.Warn("event_append_failed", "id", b.ID, "err", err)
	}
}

// Events pages through the fleet event log, newest first, and returns the
// total count alongside.
func (s *Store) Events(ctx context.Context, limit, offset int) ([]FleetEvent, int, error) {
	if s.events == nil {
		return nil, 0, ErrNoEventLog
	}
	evts, err := s.events.ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	total, err := s.events.CountEvents(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return evts, total, nil
}

func (s *Store) observeLocked() {
	r := s.tree.Rebuilds()
	metrics.ObserveTree(s.tree.Height(), s.tree.Size(), r-s.rebuilds)
	s.rebuilds = r
}
