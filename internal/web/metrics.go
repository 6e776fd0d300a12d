package web

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/poku-e/ecopack/internal/recommend"
)

type metrics struct {
	registry        *prometheus.Registry
	recommendations *prometheus.CounterVec
	exports         *prometheus.CounterVec
	events          *prometheus.CounterVec
}

func newMetrics(activeSessions func() float64) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecopack",
			Name:      "recommendations_total",
			Help:      "Recommendation requests by outcome.",
		}, []string{"outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecopack",
			Name:      "exports_total",
			Help:      "Report downloads by kind and outcome.",
		}, []string{"kind", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecopack",
			Name:      "ui_events_total",
			Help:      "Page model changes by event type.",
		}, []string{"type"}),
	}
	m.registry.MustRegister(
		m.recommendations,
		m.exports,
		m.events,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ecopack",
			Name:      "browser_sessions",
			Help:      "Browser sessions currently held in memory.",
		}, activeSessions),
		collectors.NewGoCollector(),
	)
	return m
}

func recommendOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, recommend.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, recommend.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, recommend.ErrInFlight):
		return "in_flight"
	default:
		return "error"
	}
}

func exportOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// watch counts and logs page events until ctx ends.
func (s *Server) watch(ctx context.Context) error {
	events, err := s.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for e := range events {
			s.metrics.events.WithLabelValues(e.Type).Inc()
			s.log.Debug(moduleName, "Page event", map[string]interface{}{"type": e.Type, "detail": e.Detail})
		}
	}()
	return nil
}
