package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"numsort/internal/workpool"
)

// ErrRetriesExhausted is wrapped by a ChunkError once a transient write
// failure outlasted the configured retries.
var ErrRetriesExhausted = errors.New("write retries exhausted")

// ChunkError reports which chunk failed to land in the destination.
type ChunkError struct {
	Index  int
	Offset uint64
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("write chunk %d at offset %d: %v", e.Index, e.Offset, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Options configures Write. Zero values take the defaults below.
type Options struct {
	Retries       int           // default 5
	InitialDelay  time.Duration // default 10ms
	BackoffFactor float64       // default 2
	Logf          func(format string, args ...any)

	// OnRetry, when set, is called from the owner goroutine before each
	// retry of a chunk.
	OnRetry func(index int, err error)

	// wrap substitutes the file seen by the owner goroutine (tests).
	wrap func(io.WriterAt) io.WriterAt
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = 5
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 10 * time.Millisecond
	}
	if o.BackoffFactor < 1 {
		o.BackoffFactor = 2
	}
	return o
}

type writeReq struct {
	index int
	chunk Chunk
	reply chan error
}

// Write stores chunks into path. The data goes to a temporary file next to
// path, sized once up front and written only by a single owner goroutine;
// pool tasks hand their chunk to it over a channel. The file is synced and
// renamed onto path only after every chunk landed, so on error path is left
// as it was.
func Write(ctx context.Context, pool *workpool.Pool, path string, chunks []Chunk, opts Options) (err error) {
	opts = opts.withDefaults()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := preallocate(tmp, int64(Size(chunks))); err != nil {
		return fmt.Errorf("preallocate %s: %w", tmpName, err)
	}

	var dst io.WriterAt = tmp
	if opts.wrap != nil {
		dst = opts.wrap(dst)
	}

	reqs := make(chan writeReq)
	g, gctx := errgroup.WithContext(ctx)

	// Owner: the only goroutine that touches the file.
	g.Go(func() error {
		for r := range reqs {
			r.reply <- writeChunk(gctx, dst, r.index, r.chunk, opts)
		}
		return nil
	})

	g.Go(func() error {
		defer close(reqs)
		return pool.RunAll(gctx, len(chunks), func(ctx context.Context, i int) error {
			reply := make(chan error, 1)
			select {
			case reqs <- writeReq{index: i, chunk: chunks[i], reply: reply}:
			case <-ctx.Done():
				return context.Cause(ctx)
			}
			if err := <-reply; err != nil {
				return err
			}
			if opts.Logf != nil {
				opts.Logf("writer: chunk=%d offset=%d bytes=%d", i, chunks[i].StartOffset, chunks[i].ByteLength)
			}
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}

// writeChunk writes one chunk, resuming after short writes and retrying
// transient errors with exponential backoff.
func writeChunk(ctx context.Context, w io.WriterAt, index int, c Chunk, opts Options) error {
	buf := c.Text
	off := int64(c.StartOffset)
	delay := opts.InitialDelay

	for attempt := 0; ; attempt++ {
		n, err := w.WriteAt(buf, off)
		buf = buf[n:]
		off += int64(n)
		if len(buf) == 0 {
			return nil
		}
		if err == nil {
			err = io.ErrShortWrite
		}
		if !retryable(err) {
			return &ChunkError{Index: index, Offset: c.StartOffset, Err: err}
		}
		if attempt >= opts.Retries {
			return &ChunkError{
				Index:  index,
				Offset: c.StartOffset,
				Err:    fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err),
			}
		}

		if opts.OnRetry != nil {
			opts.OnRetry(index, err)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return context.Cause(ctx)
		case <-t.C:
		}
		delay = time.Duration(float64(delay) * opts.BackoffFactor)
	}
}

func retryable(err error) bool {
	return errors.Is(err, io.ErrShortWrite) || transient(err)
}
