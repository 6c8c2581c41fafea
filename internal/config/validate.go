package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"numsort/internal/charset"
	"numsort/internal/output"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the job, e.g.
// "runtime.workers".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob lints a job after defaults were applied. It never mutates j.
func ValidateJob(j Job) []Issue {
	var issues []Issue
	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{SeverityWarning, "job", "job is empty; metrics will be unlabeled"})
	}
	issues = append(issues, validatePaths(j)...)
	issues = append(issues, validateRuntime(j.Runtime)...)
	issues = append(issues, validateMetrics(j.Metrics)...)
	return issues
}

func validatePaths(j Job) []Issue {
	var issues []Issue
	src := strings.TrimSpace(j.Source.Path)
	dst := strings.TrimSpace(j.Destination.Path)
	if src == "" {
		issues = append(issues, Issue{SeverityError, "source.path", "source path must not be empty"})
	}
	if dst == "" {
		issues = append(issues, Issue{SeverityError, "destination.path", "destination path must not be empty"})
	}
	if src != "" && dst != "" && samePath(src, dst) {
		issues = append(issues, Issue{SeverityError, "destination.path", "destination must differ from source"})
	}
	if _, err := charset.Lookup(j.Source.Encoding); err != nil {
		issues = append(issues, Issue{SeverityError, "source.encoding", err.Error()})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.Workers < 1 {
		issues = append(issues, Issue{SeverityError, "runtime.workers", "workers must be >= 1"})
	} else if limit := 4 * runtime.NumCPU(); r.Workers > limit {
		issues = append(issues, Issue{SeverityWarning, "runtime.workers",
			fmt.Sprintf("workers=%d exceeds 4x the %d available CPUs", r.Workers, runtime.NumCPU())})
	}
	if r.OutputChunks < 1 {
		issues = append(issues, Issue{SeverityError, "runtime.output_chunks", "output_chunks must be >= 1"})
	}
	if r.TaskTimeoutMS < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.task_timeout_ms", "task_timeout_ms must not be negative"})
	}
	if r.WriteRetries < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.write_retries", "write_retries must not be negative"})
	}
	if r.RetryInitialDelayMS < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.retry_initial_delay_ms", "retry_initial_delay_ms must not be negative"})
	}
	if r.RetryBackoffFactor < 1 {
		issues = append(issues, Issue{SeverityError, "runtime.retry_backoff_factor", "retry_backoff_factor must be >= 1"})
	}
	if _, err := output.Separator(r.LineSeparator); err != nil {
		issues = append(issues, Issue{SeverityError, "runtime.line_separator", err.Error()})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "prometheus backend requires pushgateway_url"})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q (want none, prometheus or datadog)", m.Backend)})
	}
	return issues
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
