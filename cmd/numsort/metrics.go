package main

import (
	"log"

	"numsort/internal/config"
	"numsort/internal/metrics"
	"numsort/internal/metrics/datadog"
	"numsort/internal/metrics/prompush"
)

// setupMetrics installs the configured backend and returns the function that
// flushes it at exit. A backend that fails to start leaves metrics disabled.
func setupMetrics(job config.Job) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch job.Metrics.Backend {
	case "prometheus":
		b, err = prompush.NewBackend(job.Job, job.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       job.Metrics.DatadogAddr,
			Namespace:  "numsort.",
			GlobalTags: []string{"job:" + job.Job},
		})
	default:
		if job.Runtime.Verbose {
			log.Printf("metrics: disabled (backend=%q)", job.Metrics.Backend)
		}
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: %s backend unavailable: %v; metrics disabled", job.Metrics.Backend, err)
		return func() {}
	}

	log.Printf("metrics: backend=%s job=%s", job.Metrics.Backend, job.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush: %v", err)
		}
	}
}
