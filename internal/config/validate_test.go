package config

import (
	"runtime"
	"strings"
	"testing"
)

func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validJob() Job {
	return Job{
		Source:      Source{Path: "in.txt"},
		Destination: Destination{Path: "out.txt"},
		Runtime:     Runtime{Workers: 1},
	}.WithDefaults()
}

func TestValidateJob_Valid(t *testing.T) {
	t.Parallel()
	if issues := ValidateJob(validJob()); len(issues) != 0 {
		t.Fatalf("valid job produced issues: %+v", issues)
	}
}

func TestValidateJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Job)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing source", func(j *Job) { j.Source.Path = " " }, SeverityError, "source.path", "must not be empty"},
		{"missing destination", func(j *Job) { j.Destination.Path = "" }, SeverityError, "destination.path", "must not be empty"},
		{"same paths", func(j *Job) { j.Destination.Path = "./in.txt" }, SeverityError, "destination.path", "differ from source"},
		{"unknown encoding", func(j *Job) { j.Source.Encoding = "klingon" }, SeverityError, "source.encoding", "unsupported"},
		{"utf16 encoding", func(j *Job) { j.Source.Encoding = "UTF-16LE" }, SeverityError, "source.encoding", "unsupported"},
		{"zero workers", func(j *Job) { j.Runtime.Workers = 0 }, SeverityError, "runtime.workers", ">= 1"},
		{"too many workers", func(j *Job) { j.Runtime.Workers = 4*runtime.NumCPU() + 1 }, SeverityWarning, "runtime.workers", "exceeds"},
		{"zero chunks", func(j *Job) { j.Runtime.OutputChunks = 0 }, SeverityError, "runtime.output_chunks", ">= 1"},
		{"negative timeout", func(j *Job) { j.Runtime.TaskTimeoutMS = -1 }, SeverityError, "runtime.task_timeout_ms", "negative"},
		{"negative retries", func(j *Job) { j.Runtime.WriteRetries = -1 }, SeverityError, "runtime.write_retries", "negative"},
		{"shrinking backoff", func(j *Job) { j.Runtime.RetryBackoffFactor = 0.5 }, SeverityError, "runtime.retry_backoff_factor", ">= 1"},
		{"bad separator", func(j *Job) { j.Runtime.LineSeparator = "cr" }, SeverityError, "runtime.line_separator", "unknown line separator"},
		{"unknown backend", func(j *Job) { j.Metrics.Backend = "graphite" }, SeverityError, "metrics.backend", "unknown metrics backend"},
		{"prometheus without url", func(j *Job) { j.Metrics.Backend = "prometheus" }, SeverityError, "metrics.pushgateway_url", "requires"},
		{"datadog without addr", func(j *Job) { j.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "requires"},
		{"empty job", func(j *Job) { j.Job = "" }, SeverityWarning, "job", "empty"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			j := validJob()
			tc.mutate(&j)
			issues := ValidateJob(j)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("want %s at %s containing %q; got %+v", tc.sev, tc.path, tc.msg, issues)
			}
			if got := HasErrors(issues); got != (tc.sev == SeverityError) {
				t.Fatalf("HasErrors = %v for %+v", got, issues)
			}
		})
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()
	iss := Issue{SeverityError, "runtime.workers", "workers must be >= 1"}
	if got, want := iss.Error(), "error at runtime.workers: workers must be >= 1"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
