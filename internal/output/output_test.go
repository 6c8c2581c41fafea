package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"numsort/internal/workpool"
)

func TestPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []uint64
		k      int
		want   []string
	}{
		{"empty", nil, 10, nil},
		{"even split", []uint64{1, 2, 3, 4}, 2, []string{"1\n2\n", "3\n4\n"}},
		{"last takes remainder", []uint64{1, 3, 5, 7, 9}, 2, []string{"1\n3\n", "5\n7\n9\n"}},
		{"fewer values than chunks", []uint64{4, 8}, 10, []string{"4\n8\n"}},
		{"single chunk", []uint64{0, 10, 200}, 1, []string{"0\n10\n200\n"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			chunks, err := Plan(context.Background(), newPool(t, 3), tc.values, tc.k, []byte("\n"))
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if len(chunks) != len(tc.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tc.want))
			}
			var off uint64
			for i, c := range chunks {
				if string(c.Text) != tc.want[i] {
					t.Errorf("chunk %d text = %q, want %q", i, c.Text, tc.want[i])
				}
				if c.ByteLength != uint64(len(c.Text)) {
					t.Errorf("chunk %d length = %d, want %d", i, c.ByteLength, len(c.Text))
				}
				if c.StartOffset != off {
					t.Errorf("chunk %d offset = %d, want %d", i, c.StartOffset, off)
				}
				off += c.ByteLength
			}
			if Size(chunks) != off {
				t.Errorf("Size = %d, want %d", Size(chunks), off)
			}
		})
	}
}

func TestPlan_OffsetsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	values := make([]uint64, 1234)
	for i := range values {
		values[i] = uint64(i)
	}
	for _, k := range []int{1, 3, 10, 1233, 1234, 5000} {
		chunks, err := Plan(context.Background(), newPool(t, 4), values, k, []byte("\r\n"))
		if err != nil {
			t.Fatalf("k=%d: Plan: %v", k, err)
		}
		var joined bytes.Buffer
		for i, c := range chunks {
			if i > 0 && c.StartOffset <= chunks[i-1].StartOffset {
				t.Fatalf("k=%d: offsets not increasing at chunk %d", k, i)
			}
			joined.Write(c.Text)
		}
		if got := strings.Count(joined.String(), "\r\n"); got != len(values) {
			t.Fatalf("k=%d: %d lines, want %d", k, got, len(values))
		}
	}
}

func TestPlan_InvalidChunks(t *testing.T) {
	t.Parallel()
	if _, err := Plan(context.Background(), newPool(t, 1), []uint64{1}, 0, []byte("\n")); !errors.Is(err, ErrInvalidChunks) {
		t.Fatalf("err = %v, want ErrInvalidChunks", err)
	}
}

func TestSeparator(t *testing.T) {
	t.Parallel()

	platform := "\n"
	if runtime.GOOS == "windows" {
		platform = "\r\n"
	}
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", platform, false},
		{"lf", "\n", false},
		{"CRLF", "\r\n", false},
		{"cr", "", true},
	}
	for _, tc := range tests {
		got, err := Separator(tc.name)
		if (err != nil) != tc.wantErr {
			t.Fatalf("Separator(%q) err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
		if string(got) != tc.want {
			t.Errorf("Separator(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()

	values := make([]uint64, 10_000)
	for i := range values {
		values[i] = uint64(i * 3)
	}
	pool := newPool(t, 4)
	chunks, err := Plan(context.Background(), pool, values, 10, []byte("\n"))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	fw := &faultWriter{}
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := Write(context.Background(), pool, path, chunks, Options{wrap: fw.wrap}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var want bytes.Buffer
	for _, c := range chunks {
		want.Write(c.Text)
	}
	if !bytes.Equal(got, want.Bytes()) {
		t.Fatalf("destination differs from concatenated chunks (%d vs %d bytes)", len(got), want.Len())
	}
	if fw.maxInFlight.Load() != 1 {
		t.Errorf("max concurrent writes = %d, want 1", fw.maxInFlight.Load())
	}
	assertNoTemp(t, filepath.Dir(path))
}

func TestWrite_NoChunksCreatesEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.txt")
	if err := Write(context.Background(), newPool(t, 1), path, nil, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() != 0 {
		t.Fatalf("size = %d, want 0", st.Size())
	}
}

func TestWrite_RetriesShortWrites(t *testing.T) {
	t.Parallel()

	chunks := planText(t, "10\n20\n30\n")
	fw := &faultWriter{fails: 3}
	path := filepath.Join(t.TempDir(), "out.txt")
	retries := 0
	opts := Options{
		Retries:      5,
		InitialDelay: time.Millisecond,
		OnRetry:      func(int, error) { retries++ },
		wrap:         fw.wrap,
	}
	if err := Write(context.Background(), newPool(t, 2), path, chunks, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if retries != 3 {
		t.Errorf("retries = %d, want 3", retries)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "10\n20\n30\n" {
		t.Fatalf("got %q, want %q", got, "10\n20\n30\n")
	}
}

func TestWrite_FailureLeavesDestinationUntouched(t *testing.T) {
	t.Parallel()

	permanent := errors.New("disk on fire")
	tests := []struct {
		name    string
		fw      *faultWriter
		wantErr error
	}{
		{"retries exhausted", &faultWriter{fails: 100}, ErrRetriesExhausted},
		{"permanent error", &faultWriter{fails: 1, err: permanent}, permanent},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := filepath.Join(dir, "out.txt")
			if err := os.WriteFile(path, []byte("previous\n"), 0o644); err != nil {
				t.Fatalf("seed: %v", err)
			}

			chunks := planText(t, "1\n2\n3\n4\n")
			opts := Options{Retries: 2, InitialDelay: time.Millisecond, wrap: tc.fw.wrap}
			err := Write(context.Background(), newPool(t, 2), path, chunks, opts)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			var ce *ChunkError
			if !errors.As(err, &ce) {
				t.Fatalf("err %T is not *ChunkError", err)
			}

			got, _ := os.ReadFile(path)
			if string(got) != "previous\n" {
				t.Fatalf("destination = %q, want it untouched", got)
			}
			assertNoTemp(t, dir)
		})
	}
}

func TestWrite_CanceledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Write(ctx, newPool(t, 1), path, planText(t, "1\n"), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("destination exists after canceled write: %v", err)
	}
	assertNoTemp(t, dir)
}

func TestWrite_MissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	if err := Write(context.Background(), newPool(t, 1), path, planText(t, "1\n"), Options{}); err == nil {
		t.Fatal("Write into missing directory succeeded")
	}
}

// faultWriter fails its first fails calls, either with err or, when err is
// nil, by writing only half of the buffer. It also records how many writes
// overlap.
type faultWriter struct {
	w     io.WriterAt
	err   error
	mu    sync.Mutex
	fails int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *faultWriter) wrap(w io.WriterAt) io.WriterAt {
	f.w = w
	return f
}

func (f *faultWriter) WriteAt(p []byte, off int64) (int, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	fail := f.fails > 0
	if fail {
		f.fails--
	}
	f.mu.Unlock()

	if !fail {
		return f.w.WriteAt(p, off)
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.w.WriteAt(p[:len(p)/2], off)
}

func planText(t *testing.T, text string) []Chunk {
	t.Helper()
	return []Chunk{{Text: []byte(text), ByteLength: uint64(len(text))}}
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func newPool(t *testing.T, size int) *workpool.Pool {
	t.Helper()
	p, err := workpool.New(size, workpool.Options{})
	if err != nil {
		t.Fatalf("workpool.New: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}
