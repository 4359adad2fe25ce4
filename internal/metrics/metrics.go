// Package metrics exposes the Prometheus instrumentation for the scrape
// pipeline, the embedding indexer, and the match engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// PagesScraped counts listing pages fetched, by source and outcome.
	PagesScraped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oppradar",
		Subsystem: "scrape",
		Name:      "pages_total",
		Help:      "Listing pages fetched, by source and outcome.",
	}, []string{"source", "outcome"})

	// RecordsUpserted counts persistence outcomes by source and kind
	// (inserted, updated, skipped).
	RecordsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oppradar",
		Subsystem: "scrape",
		Name:      "upserts_total",
		Help:      "Normalized records written, by source and upsert kind.",
	}, []string{"source", "kind"})

	// ScrapeErrors counts adapter failures by source and taxonomy kind.
	ScrapeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oppradar",
		Subsystem: "scrape",
		Name:      "errors_total",
		Help:      "Adapter errors, by source and error kind.",
	}, []string{"source", "kind"})

	// BreakerState reports each source's circuit state (0 closed, 1 half
	// open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "oppradar",
		Subsystem: "scrape",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per source: 0 closed, 1 half-open, 2 open.",
	}, []string{"source"})

	// RunDuration observes full per-source run durations.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oppradar",
		Subsystem: "scrape",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one source scrape run.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"source"})

	// EmbeddingsGenerated counts vectors produced, by provider and outcome.
	EmbeddingsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oppradar",
		Subsystem: "embedding",
		Name:      "generated_total",
		Help:      "Embedding vectors generated, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// MatchScores observes final match scores to watch score drift.
	MatchScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "oppradar",
		Subsystem: "match",
		Name:      "score",
		Help:      "Distribution of computed match scores.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// SetBreakerState maps the textual breaker state onto the gauge.
func SetBreakerState(sourceName, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	BreakerState.WithLabelValues(sourceName).Set(v)
}

// Server serves /metrics on its own listener.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer builds a metrics endpoint on addr (e.g. ":9090").
func NewServer(addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start listens in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
