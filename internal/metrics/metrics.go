// Package metrics exposes Prometheus instruments for event loading and filtering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_events_fetch_total",
			Help: "Remote event fetches by outcome",
		},
		[]string{"outcome"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geo_events_fetch_duration_seconds",
			Help:    "Duration of remote event fetches",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	layerMarkers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geo_events_layer_markers",
			Help:    "Markers per built event layer",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	toggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_events_category_toggles_total",
			Help: "Legend checkbox changes",
		},
		[]string{"scope", "checked"},
	)

	geocodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_events_geocode_total",
			Help: "Address lookups by outcome",
		},
		[]string{"outcome"},
	)

	sessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geo_events_sessions",
			Help: "Map view sessions held in memory",
		},
	)
)

// Fetch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
	OutcomeCached  = "cached"
)

// ObserveFetch records one fetch.
func ObserveFetch(outcome string, d time.Duration) {
	fetches.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCached {
		fetchDuration.Observe(d.Seconds())
	}
}

// Geocode outcomes.
const (
	GeocodeHit      = "cache_hit"
	GeocodeResolved = "resolved"
	GeocodeNotFound = "not_found"
	GeocodeError    = "error"
)

// ObserveGeocode records one address lookup.
func ObserveGeocode(outcome string) {
	geocodes.WithLabelValues(outcome).Inc()
}

// ObserveLayer records the size of a built layer.
func ObserveLayer(markers int) {
	layerMarkers.Observe(float64(markers))
}

// ObserveToggle records a legend change; scope is "category" or "all".
func ObserveToggle(scope string, checked bool) {
	c := "false"
	if checked {
		c = "true"
	}
	toggles.WithLabelValues(scope, c).Inc()
}

// SetSessions updates the session gauge.
func SetSessions(n int) {
	sessions.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
