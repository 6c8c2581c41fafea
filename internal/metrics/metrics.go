// Package metrics records operational metrics for numsort runs behind a
// pluggable Backend. The default backend drops everything, so callers never
// need to check whether metrics are configured.
//
// Concrete systems live in subpackages (prompush, datadog) and are installed
// once at startup with SetBackend.
package metrics

import "time"

// Metric names shared with the backends.
const (
	StepTotal       = "numsort_step_total"
	StepDuration    = "numsort_step_duration_seconds"
	ValuesTotal     = "numsort_values_total"
	ChunksTotal     = "numsort_chunks_total"
	BytesTotal      = "numsort_bytes_total"
	WriteRetryTotal = "numsort_write_retries_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by each metrics system.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style observation.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend buffers.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. A nil b keeps the current backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStep counts one pipeline stage and its duration.
func RecordStep(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "stage": stage, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordValues counts values by kind ("read", "written").
func RecordValues(job, kind string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(ValuesTotal, float64(n), Labels{"job": job, "kind": kind})
}

// RecordChunks counts output chunks written and their total size.
func RecordChunks(job string, chunks int64, bytes uint64) {
	if chunks <= 0 {
		return
	}
	backend.IncCounter(ChunksTotal, float64(chunks), Labels{"job": job})
	backend.IncCounter(BytesTotal, float64(bytes), Labels{"job": job})
}

// RecordRetry counts one retried chunk write.
func RecordRetry(job string) {
	backend.IncCounter(WriteRetryTotal, 1, Labels{"job": job})
}
