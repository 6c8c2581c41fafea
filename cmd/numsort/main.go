// Command numsort sorts a file of newline-delimited non-negative integers
// into a destination file using a fixed pool of workers.
//
//	numsort --src numbers.txt --dst sorted.txt --workers 8
//	numsort -c job.json --verify
//	numsort numbers.txt sorted.txt
//
// Settings resolve as flag > job file > NUMSORT_* environment > default.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"numsort/internal/config"
	"numsort/internal/pipeline"
	"numsort/internal/workpool"
)

type flags struct {
	configPath string
	envFile    string
	validate   bool

	job            string
	src, dst       string
	encoding       string
	workers        int
	chunks         int
	taskTimeout    time.Duration
	writeRetries   int
	lineSeparator  string
	verify         bool
	verbose        bool
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
}

func main() {
	os.Exit(run())
}

func run() int {
	fs := pflag.NewFlagSet("numsort", pflag.ContinueOnError)
	var f flags
	fs.StringVarP(&f.configPath, "config", "c", "", "job config JSON path")
	fs.StringVar(&f.envFile, "env-file", "", "load NUMSORT_* variables from this .env file (default .env if present)")
	fs.BoolVar(&f.validate, "validate", false, "validate the resolved configuration and exit")
	fs.StringVar(&f.job, "job", "", "job name used in logs and metrics")
	fs.StringVar(&f.src, "src", "", "source file of newline-delimited integers")
	fs.StringVar(&f.dst, "dst", "", "destination file (replaced atomically)")
	fs.StringVar(&f.encoding, "encoding", "", "source character encoding (IANA name, default UTF-8)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "worker pool size (default: number of CPUs)")
	fs.IntVar(&f.chunks, "chunks", 0, "number of output chunks (default 10)")
	fs.DurationVar(&f.taskTimeout, "task-timeout", 0, "per-task time limit, 0 for none")
	fs.IntVar(&f.writeRetries, "write-retries", 0, "retries for a transient chunk write failure (default 5)")
	fs.StringVar(&f.lineSeparator, "line-separator", "", "output line separator: lf or crlf (default: platform)")
	fs.BoolVar(&f.verify, "verify", false, "re-read the destination and compare it with the input")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every segment and chunk")
	fs.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none, prometheus or datadog")
	fs.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway base URL")
	fs.StringVar(&f.datadogAddr, "datadog-addr", "", "DogStatsD address, e.g. 127.0.0.1:8125")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	job, err := resolveJob(fs, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "numsort: %v\n", err)
		return 1
	}

	issues := config.ValidateJob(job)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid")
		return 1
	}
	if f.validate {
		log.Printf("configuration is valid")
		return 0
	}

	flush := setupMetrics(job)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := workpool.New(job.Runtime.Workers, workpool.Options{TaskTimeout: job.Runtime.TaskTimeout()})
	if err != nil {
		log.Printf("numsort: %v", err)
		return 1
	}
	defer pool.Close()

	sum, err := pipeline.Run(ctx, job, pool)
	pipeline.LogSummary(sum)
	if err != nil {
		log.Printf("numsort: %v", err)
		return 1
	}
	return 0
}

// resolveJob layers the job file, environment and explicitly set flags, then
// applies defaults.
func resolveJob(fs *pflag.FlagSet, f flags) (config.Job, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return config.Job{}, fmt.Errorf("load env file: %w", err)
	}

	var job config.Job
	if f.configPath != "" {
		var err error
		if job, err = config.Load(f.configPath); err != nil {
			return config.Job{}, err
		}
	}

	env, err := config.LoadFromEnv()
	if err != nil {
		return config.Job{}, fmt.Errorf("environment: %w", err)
	}
	job = config.ApplyEnv(job, env)

	// Positional SRC DST, as in "numsort in.txt out.txt".
	if args := fs.Args(); len(args) > 0 {
		if len(args) != 2 {
			return config.Job{}, fmt.Errorf("want SRC DST positional arguments, got %d", len(args))
		}
		job.Source.Path, job.Destination.Path = args[0], args[1]
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("job", func() { job.Job = f.job })
	set("src", func() { job.Source.Path = f.src })
	set("dst", func() { job.Destination.Path = f.dst })
	set("encoding", func() { job.Source.Encoding = f.encoding })
	set("workers", func() { job.Runtime.Workers = f.workers })
	set("chunks", func() { job.Runtime.OutputChunks = f.chunks })
	set("task-timeout", func() { job.Runtime.TaskTimeoutMS = int(f.taskTimeout.Milliseconds()) })
	set("write-retries", func() { job.Runtime.WriteRetries = f.writeRetries })
	set("line-separator", func() { job.Runtime.LineSeparator = f.lineSeparator })
	set("verify", func() { job.Runtime.Verify = f.verify })
	set("verbose", func() { job.Runtime.Verbose = f.verbose })
	set("metrics-backend", func() { job.Metrics.Backend = f.metricsBackend })
	set("pushgateway-url", func() { job.Metrics.PushgatewayURL = f.pushgatewayURL })
	set("datadog-addr", func() { job.Metrics.DatadogAddr = f.datadogAddr })

	return job.WithDefaults(), nil
}
