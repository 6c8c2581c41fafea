// Package pipeline runs one sort job end to end: plan byte ranges over the
// source, parse them in parallel, merge, split the result into chunks and
// write them into the destination, optionally verifying what landed on disk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"numsort/internal/charset"
	"numsort/internal/config"
	"numsort/internal/datasource/file"
	"numsort/internal/metrics"
	"numsort/internal/output"
	"numsort/internal/reader"
	"numsort/internal/segment"
	"numsort/internal/sorter"
	"numsort/internal/verify"
	"numsort/internal/workpool"
)

// StageTiming is how long one stage took.
type StageTiming struct {
	Stage    Stage
	Duration time.Duration
}

// Summary describes a finished (or failed) run.
type Summary struct {
	Job         string
	Source      string
	Destination string
	SourceBytes int64
	Ranges      int
	Values      int
	Chunks      int
	Bytes       uint64
	Retries     int
	Verified    bool
	Stage       Stage // Done or Failed
	Timings     []StageTiming
}

// Elapsed is the sum of the stage durations.
func (s Summary) Elapsed() time.Duration {
	var d time.Duration
	for _, t := range s.Timings {
		d += t.Duration
	}
	return d
}

// LogSummary prints s as a single line.
func LogSummary(s Summary) {
	log.Printf("summary: job=%s stage=%s source_bytes=%s ranges=%d values=%d chunks=%d bytes=%s retries=%d verified=%t elapsed=%s",
		s.Job, s.Stage, humanize.Bytes(uint64(s.SourceBytes)), s.Ranges, s.Values, s.Chunks,
		humanize.Bytes(s.Bytes), s.Retries, s.Verified, s.Elapsed().Truncate(time.Millisecond))
}

type run struct {
	job  config.Job
	pool *workpool.Pool
	sum  Summary
	logf func(format string, args ...any)
}

// Run sorts job.Source.Path into job.Destination.Path using pool for every
// parallel stage. The destination is only replaced when every stage
// succeeded; a failure is returned as *StageError.
func Run(ctx context.Context, job config.Job, pool *workpool.Pool) (Summary, error) {
	job = job.WithDefaults()
	r := &run{
		job:  job,
		pool: pool,
		sum:  Summary{Job: job.Job, Source: job.Source.Path, Destination: job.Destination.Path},
	}
	if job.Runtime.Verbose {
		r.logf = log.Printf
	}
	err := r.execute(ctx)
	r.sum.Stage = Done
	if err != nil {
		r.sum.Stage = Failed
	}
	return r.sum, err
}

func (r *run) execute(ctx context.Context) error {
	var (
		codec  *charset.Codec
		sep    []byte
		src    *file.Source
		ranges []segment.ByteRange
	)

	err := r.step(Planning, func() error {
		var err error
		if codec, err = charset.Lookup(r.job.Source.Encoding); err != nil {
			return err
		}
		if sep, err = output.Separator(r.job.Runtime.LineSeparator); err != nil {
			return err
		}
		if src, err = file.NewLocal(r.job.Source.Path).Open(ctx); err != nil {
			return err
		}
		r.sum.SourceBytes = src.Size()
		if ranges, err = segment.Plan(src, src.Size(), r.job.Runtime.Workers); err != nil {
			return fmt.Errorf("plan %s: %w", r.job.Source.Path, err)
		}
		r.sum.Ranges = len(ranges)
		log.Printf("pipeline: source=%s size=%s encoding=%s workers=%d ranges=%d",
			r.job.Source.Path, humanize.Bytes(uint64(src.Size())), codec.Name(), r.job.Runtime.Workers, len(ranges))
		return nil
	})
	if src != nil {
		defer src.Close()
	}
	if err != nil {
		return err
	}

	var results []reader.Result
	if err := r.step(Reading, func() error {
		var err error
		results, err = reader.Read(ctx, r.pool, src, ranges, reader.Options{Codec: codec, Logf: r.logf})
		return err
	}); err != nil {
		return err
	}

	var (
		values []uint64
		want   verify.Digest
	)
	if err := r.step(Sorting, func() error {
		lists := make([][]uint64, len(results))
		for i, res := range results {
			lists[i] = res.Values
			if r.job.Runtime.Verify {
				want.Merge(verify.Of(res.Values))
			}
		}
		values = sorter.Merge(lists)
		r.sum.Values = len(values)
		metrics.RecordValues(r.job.Job, "read", int64(len(values)))
		return ctx.Err()
	}); err != nil {
		return err
	}
	results = nil

	var chunks []output.Chunk
	if err := r.step(OutputPlanning, func() error {
		var err error
		chunks, err = output.Plan(ctx, r.pool, values, r.job.Runtime.OutputChunks, sep)
		r.sum.Chunks = len(chunks)
		r.sum.Bytes = output.Size(chunks)
		return err
	}); err != nil {
		return err
	}
	values = nil

	if err := r.step(Writing, func() error {
		err := output.Write(ctx, r.pool, r.job.Destination.Path, chunks, output.Options{
			Retries:       r.job.Runtime.WriteRetries,
			InitialDelay:  r.job.Runtime.RetryInitialDelay(),
			BackoffFactor: r.job.Runtime.RetryBackoffFactor,
			Logf:          r.logf,
			OnRetry: func(i int, err error) {
				r.sum.Retries++
				metrics.RecordRetry(r.job.Job)
				log.Printf("writer: retrying chunk=%d: %v", i, err)
			},
		})
		if err == nil {
			metrics.RecordValues(r.job.Job, "written", int64(r.sum.Values))
			metrics.RecordChunks(r.job.Job, int64(len(chunks)), r.sum.Bytes)
		}
		return err
	}); err != nil {
		return err
	}

	if !r.job.Runtime.Verify {
		return nil
	}
	return r.step(Verifying, func() error {
		err := verify.Check(ctx, r.job.Destination.Path, want, r.job.Runtime.Workers)
		if errors.Is(err, verify.ErrMismatch) {
			if rmErr := os.Remove(r.job.Destination.Path); rmErr != nil {
				log.Printf("pipeline: remove unverified %s: %v", r.job.Destination.Path, rmErr)
			}
		}
		r.sum.Verified = err == nil
		return err
	})
}

// step times fn, reports it to metrics and wraps a failure in a StageError.
func (r *run) step(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	r.sum.Timings = append(r.sum.Timings, StageTiming{Stage: stage, Duration: d})
	metrics.RecordStep(r.job.Job, stage.String(), err, d)
	if err != nil {
		log.Printf("pipeline: stage=%s failed after %s: %v", stage, d.Truncate(time.Microsecond), err)
		return &StageError{Stage: stage, Err: err}
	}
	log.Printf("pipeline: stage=%s elapsed=%s", stage, d.Truncate(time.Microsecond))
	return nil
}
