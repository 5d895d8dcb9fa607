// Package metrics exposes solver activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/martinemde/codeloop/agent"
)

// Collector turns session events into metrics. It satisfies the
// transcript sink interface.
type Collector struct {
	events     *prometheus.CounterVec
	statements *prometheus.CounterVec
	sessions   *prometheus.CounterVec
	duration   prometheus.Histogram
	cost       prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeloop_events_total",
				Help: "Total number of session events by kind",
			},
			[]string{"kind"},
		),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeloop_statements_total",
				Help: "Total number of executed statements by outcome",
			},
			[]string{"outcome"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeloop_sessions_total",
				Help: "Total number of finished sessions by stop reason",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeloop_statement_duration_seconds",
			Help:    "Duration of statement executions",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		cost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeloop_session_cost",
			Help:    "Loop iterations spent per session",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
	}
	for _, col := range []prometheus.Collector{c.events, c.statements, c.sessions, c.duration, c.cost} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) Write(_ context.Context, ev agent.SessionEvent) error {
	c.events.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case agent.EventStatement:
		if ev.Record == nil {
			return nil
		}
		outcome := "ok"
		if ev.Record.Failed() {
			outcome = "fault"
		}
		c.statements.WithLabelValues(outcome).Inc()
		c.duration.Observe(ev.Record.Duration.Seconds())
	case agent.EventTerminated:
		c.statements.WithLabelValues("terminated").Inc()
	case agent.EventSessionEnd:
		reason, _ := ev.Data["reason"].(string)
		c.sessions.WithLabelValues(reason).Inc()
		c.cost.Observe(float64(ev.Cost))
	}
	return nil
}

// Router serves /metrics from gatherer and a /healthz probe.
func Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	return r
}

// Serve runs handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
