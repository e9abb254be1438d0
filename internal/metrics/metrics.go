// Package metrics provides Prometheus metrics for era. Counters are fed
// from the event bus so components do not depend on this package.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mesh-intelligence/era/internal/events"
)

const namespace = "era"

// Collector holds all Prometheus metrics for era.
type Collector struct {
	// Bus events by name.
	Events *prometheus.CounterVec

	// Load metrics
	ModulesApplied prometheus.Gauge
	IngestIssues   *prometheus.CounterVec

	// Watch metrics
	Reloads      prometheus.Counter
	ReloadErrors prometheus.Counter
	LastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of events published, by event name",
			},
			[]string{"event"},
		),
		ModulesApplied: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_applied",
				Help:      "Number of modules applied by the current load",
			},
		),
		IngestIssues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_issues_total",
				Help:      "Total number of skipped input lines, by module",
			},
			[]string{"module"},
		),
		Reloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of successful content reloads",
			},
		),
		ReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reload_errors_total",
				Help:      "Total number of failed content reloads",
			},
		),
		LastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_reload_timestamp",
				Help:      "Unix timestamp of the last successful content reload",
			},
		),
	}
}

// Subscribe counts every event published on bus.
func (c *Collector) Subscribe(bus *events.Bus) {
	bus.Subscribe("*", func(_ context.Context, e events.Event) error {
		c.Events.WithLabelValues(e.Name).Inc()
		switch e.Name {
		case events.ModuleApplied:
			c.ModulesApplied.Inc()
		case events.IngestIssue:
			c.IngestIssues.WithLabelValues(e.Module).Inc()
		}
		return nil
	})
}

// ResetLoad clears per-load gauges before a new load starts.
func (c *Collector) ResetLoad() {
	c.ModulesApplied.Set(0)
}

// ObserveReload records the outcome of a reload.
func (c *Collector) ObserveReload(err error) {
	if err != nil {
		c.ReloadErrors.Inc()
		return
	}
	c.Reloads.Inc()
	c.LastReload.SetToCurrentTime()
}
