// Package metrics exposes Prometheus instrumentation for the samplers,
// the flush engine, and the retention sweep.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"actrack/internal/infrastructure/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "actrack"

// Result label values.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Metrics owns a private registry so tests and multiple engines never
// collide on the global one. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	SamplerTicks         *prometheus.CounterVec
	Flushes              *prometheus.CounterVec
	CreditedSeconds      *prometheus.CounterVec
	BufferEntries        *prometheus.GaugeVec
	RetentionRuns        *prometheus.CounterVec
	RetentionDeletedRows prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		SamplerTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampler_ticks_total",
			Help:      "Sampler ticks by sampler and result.",
		}, []string{"sampler", "result"}), // ok, skipped, error

		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Buffer flushes by sampler and result.",
		}, []string{"sampler", "result"}),

		CreditedSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credited_seconds_total",
			Help:      "Seconds durably merged into the store by sampler.",
		}, []string{"sampler"}),

		BufferEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_entries",
			Help:      "Entries waiting in a sampler's accumulation buffer.",
		}, []string{"sampler"}),

		RetentionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "runs_total",
			Help:      "Retention sweeps by result.",
		}, []string{"result"}),

		RetentionDeletedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "deleted_rows_total",
			Help:      "Aggregate rows removed by the retention sweep.",
		}),
	}

	m.Registry.MustRegister(
		m.SamplerTicks,
		m.Flushes,
		m.CreditedSeconds,
		m.BufferEntries,
		m.RetentionRuns,
		m.RetentionDeletedRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterDB exports connection pool stats for db.
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	if m == nil || db == nil {
		return nil
	}
	return m.Registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Tick records one sampler tick.
func (m *Metrics) Tick(sampler, result string) {
	if m == nil {
		return
	}
	m.SamplerTicks.WithLabelValues(sampler, result).Inc()
}

// Flush records one flush and, on success, the seconds it credited.
func (m *Metrics) Flush(sampler, result string, seconds int64) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(sampler, result).Inc()
	if seconds > 0 {
		m.CreditedSeconds.WithLabelValues(sampler).Add(float64(seconds))
	}
}

// SetBufferEntries publishes the current buffer size.
func (m *Metrics) SetBufferEntries(sampler string, n int) {
	if m == nil {
		return
	}
	m.BufferEntries.WithLabelValues(sampler).Set(float64(n))
}

// Retention records one sweep.
func (m *Metrics) Retention(result string, deleted int64) {
	if m == nil {
		return
	}
	m.RetentionRuns.WithLabelValues(result).Inc()
	if deleted > 0 {
		m.RetentionDeletedRows.Add(float64(deleted))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "addr", addr)
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
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
