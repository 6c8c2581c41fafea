// Package prompush pushes numsort metrics to a Prometheus Pushgateway.
//
// A run is short-lived, so instead of exposing a scrape endpoint the backend
// collects into a private registry and pushes it once on Flush. The job label
// becomes the Pushgateway grouping key.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"numsort/internal/metrics"
)

// Backend is a Pushgateway implementation of metrics.Backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec   // stage, status
	stepDuration *prometheus.HistogramVec // stage, status
	values       *prometheus.CounterVec   // kind
	chunks       prometheus.Counter
	bytes        prometheus.Counter
	retries      prometheus.Counter
}

// NewBackend builds a backend pushing to gatewayURL under jobName
// ("numsort" when empty).
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "numsort"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions by stage and status.",
		}, []string{"stage", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "Pipeline stage duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage", "status"}),
		values: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ValuesTotal,
			Help: "Integer values read from the source or written to the destination.",
		}, []string{"kind"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.ChunksTotal,
			Help: "Output chunks written.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BytesTotal,
			Help: "Bytes written to the destination.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.WriteRetryTotal,
			Help: "Chunk writes retried after a transient error.",
		}),
	}

	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.values, b.chunks, b.bytes, b.retries} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["stage"], labels["status"]).Add(delta)
		}
	case metrics.ValuesTotal:
		if b.values != nil {
			b.values.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.ChunksTotal:
		if b.chunks != nil {
			b.chunks.Add(delta)
		}
	case metrics.BytesTotal:
		if b.bytes != nil {
			b.bytes.Add(delta)
		}
	case metrics.WriteRetryTotal:
		if b.retries != nil {
			b.retries.Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["stage"], labels["status"]).Observe(value)
}

// Flush pushes the registry, replacing any earlier push for the same job.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
