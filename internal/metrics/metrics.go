// Package metrics holds the Prometheus collectors for the dispatch service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RouteRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taxigrid_route_requests_total",
		Help: "Total number of route queries",
	})
	RouteDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "taxigrid_route_duration_ms",
		Help:    "Route query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	RouteCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "taxigrid_route_candidates",
		Help:    "Number of candidate taxis ranked per route query",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})
	EstimatedPathsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taxigrid_estimated_paths_total",
		Help: "Paths that fell back to a Manhattan estimate",
	})
	MovesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taxigrid_moves_total",
		Help: "Taxi moves by kind (booking, ride_started)",
	}, []string{"kind"})
	PersistFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taxigrid_persist_failures_total",
		Help: "Failed writes of the fleet to the position store",
	})
	TreeRebuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taxigrid_tree_rebuilds_total",
		Help: "Local subtree rebuilds performed by the spatial index",
	})
	TreeHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taxigrid_tree_height",
		Help: "Current height of the spatial index",
	})
	TreeSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taxigrid_tree_size",
		Help: "Number of taxis in the spatial index",
	})
)

func init() {
	prometheus.MustRegister(RouteRequestsTotal)
	prometheus.MustRegister(RouteDurationMs)
	prometheus.MustRegister(RouteCandidates)
	prometheus.MustRegister(EstimatedPathsTotal)
	prometheus.MustRegister(MovesTotal)
	prometheus.MustRegister(PersistFailuresTotal)
	prometheus.MustRegister(TreeRebuildsTotal)
	prometheus.MustRegister(TreeHeight)
	prometheus.MustRegister(TreeSize)
}

// ObserveTree records the shape of the index. rebuilds is the delta since
// the previous observation.
func ObserveTree(height, size int, rebuilds uint64) {
	TreeHeight.Set(float64(height))
	TreeSize.Set(float64(size))
	if rebuilds > 0 {
		TreeRebuildsTotal.Add(float64(rebuilds))
	}
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
