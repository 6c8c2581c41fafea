package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. NUMSORT_WORKERS.
const EnvPrefix = "NUMSORT"

// EnvConfig holds the environment overrides. Env values sit below the job
// file and above built-in defaults.
type EnvConfig struct {
	// Env: NUMSORT_JOB
	Job string `envconfig:"JOB"`

	// Env: NUMSORT_SRC, NUMSORT_DST, NUMSORT_ENCODING
	Source      string `envconfig:"SRC"`
	Destination string `envconfig:"DST"`
	Encoding    string `envconfig:"ENCODING"`

	// Env: NUMSORT_WORKERS, NUMSORT_OUTPUT_CHUNKS
	Workers      int `envconfig:"WORKERS"`
	OutputChunks int `envconfig:"OUTPUT_CHUNKS"`

	// Env: NUMSORT_TASK_TIMEOUT (Go duration, e.g. 30s)
	TaskTimeout time.Duration `envconfig:"TASK_TIMEOUT"`

	// Env: NUMSORT_WRITE_RETRIES, NUMSORT_RETRY_INITIAL_DELAY, NUMSORT_RETRY_BACKOFF_FACTOR
	WriteRetries       int           `envconfig:"WRITE_RETRIES"`
	RetryInitialDelay  time.Duration `envconfig:"RETRY_INITIAL_DELAY"`
	RetryBackoffFactor float64       `envconfig:"RETRY_BACKOFF_FACTOR"`

	// Env: NUMSORT_LINE_SEPARATOR (lf or crlf)
	LineSeparator string `envconfig:"LINE_SEPARATOR"`

	// Env: NUMSORT_VERIFY
	Verify bool `envconfig:"VERIFY"`

	// Env: NUMSORT_METRICS_BACKEND, NUMSORT_PUSHGATEWAY_URL, NUMSORT_DATADOG_ADDR
	MetricsBackend string `envconfig:"METRICS_BACKEND"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	DatadogAddr    string `envconfig:"DATADOG_ADDR"`
}

// LoadFromEnv reads the NUMSORT_ variables.
func LoadFromEnv() (EnvConfig, error) {
	var e EnvConfig
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return EnvConfig{}, err
	}
	return e, nil
}

// ApplyEnv fills the fields of j that the job file left unset.
func ApplyEnv(j Job, e EnvConfig) Job {
	setString(&j.Job, e.Job)
	setString(&j.Source.Path, e.Source)
	setString(&j.Source.Encoding, e.Encoding)
	setString(&j.Destination.Path, e.Destination)
	setInt(&j.Runtime.Workers, e.Workers)
	setInt(&j.Runtime.OutputChunks, e.OutputChunks)
	setInt(&j.Runtime.TaskTimeoutMS, int(e.TaskTimeout.Milliseconds()))
	setInt(&j.Runtime.WriteRetries, e.WriteRetries)
	setInt(&j.Runtime.RetryInitialDelayMS, int(e.RetryInitialDelay.Milliseconds()))
	if j.Runtime.RetryBackoffFactor == 0 {
		j.Runtime.RetryBackoffFactor = e.RetryBackoffFactor
	}
	setString(&j.Runtime.LineSeparator, e.LineSeparator)
	j.Runtime.Verify = j.Runtime.Verify || e.Verify
	setString(&j.Metrics.Backend, e.MetricsBackend)
	setString(&j.Metrics.PushgatewayURL, e.PushgatewayURL)
	setString(&j.Metrics.DatadogAddr, e.DatadogAddr)
	return j
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}
