// Package metrics counts deployment outcomes and pushes them to a Prometheus Pushgateway
// A deployment run is a short lived batch job, so there is nothing to scrape
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	sigma "github.com/markuskont/go-sigma-rule-deploy"
)

// DefaultJob is the pushgateway job label
const DefaultJob = "sigma_rule_deploy"

// Recorder implements sigma.Observer
type Recorder struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	last     prometheus.Gauge
}

var _ sigma.Observer = (*Recorder)(nil)

// NewRecorder returns a Recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigma",
			Subsystem: "deploy",
			Name:      "rule_outcomes_total",
			Help:      "Detection rule deployment outcomes by kind.",
		}, []string{"outcome"}),
		last: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigma",
			Subsystem: "deploy",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last deployment run.",
		}),
	}
	r.registry.MustRegister(r.outcomes, r.last)
	return r
}

// Observe implements sigma.Observer
func (r *Recorder) Observe(o sigma.Outcome) {
	r.outcomes.WithLabelValues(o.Kind.String()).Inc()
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Push sends collected metrics to pushgateway at url, replacing previous values of job
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = DefaultJob
	}
	r.last.SetToCurrentTime()
	return push.New(url, job).Gatherer(r.registry).PushContext(ctx)
}
