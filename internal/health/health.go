// Package health exposes liveness/readiness probes and Prometheus
// counters/gauges for the worker and API processes (SPEC_FULL.md §4.10).
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const probeTimeout = 5 * time.Second

// Metrics are the Prometheus series for the worker process. The Domain
// Crawler updates them as it claims, finishes or fails a domain and as it
// processes each page and each newly seen email; the Search Runner also
// sets the pending-domain gauge before and after each batch.
var (
	DomainsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_domains_pending",
		Help: "Number of domains still pending in the search this process is running",
	})
	DomainsCrawling = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_domains_crawling",
		Help: "Number of domains currently being crawled",
	})
	DomainsCompleted = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_domains_completed",
		Help: "Number of domains completed across all searches",
	})
	DomainsFailed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_domains_failed",
		Help: "Number of domains failed across all searches",
	})
	PagesFetchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_fetched_total",
		Help: "Total number of pages fetched",
	})
	EmailsExtractedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_emails_extracted_total",
		Help: "Total number of emails extracted, deduplicated within each domain crawl",
	})
	FetchErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_errors_total",
		Help: "Total number of fetch attempts that did not yield a usable body",
	})
)

func init() {
	prometheus.MustRegister(
		DomainsPending, DomainsCrawling, DomainsCompleted, DomainsFailed,
		PagesFetchedTotal, EmailsExtractedTotal, FetchErrorsTotal,
	)
}

// Pinger is the subset of *storage.DB the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves /healthz, /readyz, and /metrics.
type Server struct {
	db     Pinger
	port   int
	ready  atomic.Bool
	server *http.Server
}

// New builds a Server bound to port, backed by db for readiness checks.
func New(db Pinger, port int) *Server {
	s := &Server{db: db, port: port}
	s.ready.Store(false)

	return s
}

// SetReady marks the server ready or not ready for /readyz.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: probeTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		_ = s.server.Shutdown(shutdownCtx) //nolint:errcheck,contextcheck // best-effort shutdown on a fresh context
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start health server: %w", err)
	}

	return nil
}

// handleHealthz answers liveness probes: 200 once the process is up,
// regardless of database state (SPEC_FULL.md §4.10, folding in the
// original's root health route per its SUPPLEMENTED FEATURES note).
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok")) //nolint:errcheck // best-effort write
}

// handleReadyz answers readiness probes by pinging the database pool.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok")) //nolint:errcheck // best-effort write
}
