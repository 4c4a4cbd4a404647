package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// durationBucketBoundaries covers the microsecond-to-minute range a
// per-revision diff computation (bounded by --timeout) can plausibly take.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

// Metrics holds the Prometheus instruments named in spec §1: revisions
// processed, diffs timed out, diffs mended, tokens evicted, and diff
// duration, registered on a private registry so repeated construction in
// tests never collides with the default global registry.
type Metrics struct {
	registry *prometheus.Registry

	RevisionsProcessed prometheus.Counter
	DiffsTimedOut       prometheus.Counter
	DiffsMended         prometheus.Counter
	TokensEvicted       prometheus.Counter
	DiffDuration        prometheus.Histogram
}

// NewMetrics constructs and registers every instrument.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RevisionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mwpersist_revisions_processed_total",
			Help: "Revisions that completed diff processing.",
		}),
		DiffsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mwpersist_diffs_timed_out_total",
			Help: "Per-revision diffs that exceeded the configured timeout.",
		}),
		DiffsMended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mwpersist_diffs_mended_total",
			Help: "Revisions re-diffed by the mend stage to repair a broken chain.",
		}),
		TokensEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mwpersist_tokens_evicted_total",
			Help: "Tokens evicted from the persistence window.",
		}),
		DiffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mwpersist_diff_duration_seconds",
			Help:    "Per-revision diff computation duration.",
			Buckets: durationBucketBoundaries,
		}),
	}

	registry.MustRegister(
		m.RevisionsProcessed, m.DiffsTimedOut, m.DiffsMended, m.TokensEvicted, m.DiffDuration,
	)

	return m
}

// Handler returns the /metrics scrape endpoint for --metrics-addr.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDiff records one diff computation's duration.
func (m *Metrics) ObserveDiff(d time.Duration) {
	m.DiffDuration.Observe(d.Seconds())
}

// Serve starts a blocking HTTP server exposing m.Handler() at addr. Callers
// typically run this in its own goroutine; it returns once the server stops
// for any reason other than a clean shutdown.
func Serve(addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	err := server.ListenAndServe()
	if err != nil {
		return fmt.Errorf("observability: metrics server: %w", err)
	}

	return nil
}
