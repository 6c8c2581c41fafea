// Package config defines the JSON job file that drives a numsort run, plus
// environment overrides and a linter for the resolved job.
//
// Example:
//
//	{
//	  "job": "nightly-ids",
//	  "source":      { "path": "numbers.txt", "encoding": "UTF-8" },
//	  "destination": { "path": "sorted.txt" },
//	  "runtime":     { "workers": 8, "output_chunks": 10, "verify": true },
//	  "metrics":     { "backend": "prometheus", "pushgateway_url": "http://pushgateway:9091" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"numsort/internal/charset"
	"numsort/internal/output"
)

// Defaults applied by WithDefaults.
const (
	DefaultJob                 = "numsort"
	DefaultWriteRetries        = 5
	DefaultRetryInitialDelayMS = 10
	DefaultRetryBackoffFactor  = 2.0
	DefaultMetricsBackend      = "none"
)

// Job is the top-level object of a job file.
type Job struct {
	// Job names the run in logs and metrics.
	Job         string      `json:"job"`
	Source      Source      `json:"source"`
	Destination Destination `json:"destination"`
	Runtime     Runtime     `json:"runtime"`
	Metrics     Metrics     `json:"metrics"`
}

// Source is the unsorted input file.
type Source struct {
	Path string `json:"path"`

	// Encoding is an IANA charset name; it must encode digits and line
	// terminators as ASCII.
	Encoding string `json:"encoding"`
}

// Destination is the sorted output file. It is replaced atomically.
type Destination struct {
	Path string `json:"path"`
}

// Runtime controls parallelism and the write path.
type Runtime struct {
	// Workers sizes the shared pool used for reading, rendering and writing.
	Workers int `json:"workers"`

	// OutputChunks is the number of output chunks (independent of Workers).
	OutputChunks int `json:"output_chunks"`

	// TaskTimeoutMS bounds a single pool task; 0 disables the limit.
	TaskTimeoutMS int `json:"task_timeout_ms"`

	WriteRetries        int     `json:"write_retries"`
	RetryInitialDelayMS int     `json:"retry_initial_delay_ms"`
	RetryBackoffFactor  float64 `json:"retry_backoff_factor"`

	// LineSeparator is "lf", "crlf", or empty for the platform default.
	LineSeparator string `json:"line_separator"`

	// Verify re-reads the destination and compares it with the input.
	Verify bool `json:"verify"`

	// Verbose logs every segment and chunk.
	Verbose bool `json:"verbose"`
}

// TaskTimeout is TaskTimeoutMS as a duration.
func (r Runtime) TaskTimeout() time.Duration {
	return time.Duration(r.TaskTimeoutMS) * time.Millisecond
}

// RetryInitialDelay is RetryInitialDelayMS as a duration.
func (r Runtime) RetryInitialDelay() time.Duration {
	return time.Duration(r.RetryInitialDelayMS) * time.Millisecond
}

// Metrics selects the metrics backend: "none", "prometheus" or "datadog".
type Metrics struct {
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
}

// Load decodes the job file at path. Unknown fields are rejected so typos do
// not silently fall back to defaults.
func Load(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Decode(b)
}

// Decode parses a job from JSON bytes.
func Decode(b []byte) (Job, error) {
	var j Job
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return Job{}, fmt.Errorf("decode config: %w", err)
	}
	return j, nil
}

// WithDefaults returns j with every unset field given its default.
func (j Job) WithDefaults() Job {
	if j.Job == "" {
		j.Job = DefaultJob
	}
	if j.Source.Encoding == "" {
		j.Source.Encoding = charset.DefaultName
	}
	if j.Runtime.Workers == 0 {
		j.Runtime.Workers = runtime.NumCPU()
	}
	if j.Runtime.OutputChunks == 0 {
		j.Runtime.OutputChunks = output.DefaultChunks
	}
	if j.Runtime.WriteRetries == 0 {
		j.Runtime.WriteRetries = DefaultWriteRetries
	}
	if j.Runtime.RetryInitialDelayMS == 0 {
		j.Runtime.RetryInitialDelayMS = DefaultRetryInitialDelayMS
	}
	if j.Runtime.RetryBackoffFactor == 0 {
		j.Runtime.RetryBackoffFactor = DefaultRetryBackoffFactor
	}
	if j.Metrics.Backend == "" {
		j.Metrics.Backend = DefaultMetricsBackend
	}
	return j
}
