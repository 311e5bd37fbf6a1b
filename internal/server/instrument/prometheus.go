// Package instrument exposes the services' Prometheus counters. A nil
// *Metrics is valid and records nothing.
package instrument

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophgroups/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	handshakes  *prometheus.CounterVec
	challenges  *prometheus.CounterVec
	connections *prometheus.GaugeVec
	rateLimited *prometheus.CounterVec
	snapshots   *prometheus.CounterVec
}

// New registers the counters on a private registry together with the Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophgroups_requests_total",
				Help: "Decrypted requests by operation and reply tag",
			},
			[]string{"service", "operation", "result"},
		),
		handshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophgroups_handshakes_total",
				Help: "Session key handshakes by outcome",
			},
			[]string{"service", "result"},
		),
		challenges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophgroups_pow_challenges_total",
				Help: "Proof-of-work challenges by outcome",
			},
			[]string{"result"},
		),
		connections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gophgroups_open_connections",
				Help: "Connections currently served",
			},
			[]string{"service"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophgroups_rate_limited_total",
				Help: "Connections refused by the per-peer limiter",
			},
			[]string{"service"},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophgroups_snapshots_total",
				Help: "Store snapshots written by outcome",
			},
			[]string{"store", "result"},
		),
	}
	m.registry.MustRegister(
		m.requests, m.handshakes, m.challenges, m.connections, m.rateLimited, m.snapshots,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Request(service, operation, result string) {
	if m != nil {
		m.requests.WithLabelValues(service, operation, result).Inc()
	}
}

func (m *Metrics) Handshake(service, result string) {
	if m != nil {
		m.handshakes.WithLabelValues(service, result).Inc()
	}
}

func (m *Metrics) Challenge(result string) {
	if m != nil {
		m.challenges.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ConnOpened(service string) {
	if m != nil {
		m.connections.WithLabelValues(service).Inc()
	}
}

func (m *Metrics) ConnClosed(service string) {
	if m != nil {
		m.connections.WithLabelValues(service).Dec()
	}
}

func (m *Metrics) RateLimited(service string) {
	if m != nil {
		m.rateLimited.WithLabelValues(service).Inc()
	}
}

func (m *Metrics) Snapshot(store string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.snapshots.WithLabelValues(store, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Starting metrics server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
