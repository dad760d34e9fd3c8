package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// recordingIngest records Ingest calls.
type recordingIngest struct {
	mu    sync.Mutex
	files []domain.RawFile
	metas []domain.FilingMetadata
	opts  []domain.IngestOptions
	err   error
}

func (r *recordingIngest) Preview(context.Context, domain.RawFile, domain.FilingMetadata) (*domain.Draft, error) {
	return nil, nil
}

func (r *recordingIngest) Commit(context.Context, *domain.Draft, domain.IngestOptions) (*domain.Document, error) {
	return nil, nil
}

func (r *recordingIngest) Ingest(
	_ context.Context, file domain.RawFile, meta domain.FilingMetadata, opts domain.IngestOptions,
) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, file)
	r.metas = append(r.metas, meta)
	r.opts = append(r.opts, opts)
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Document{ID: "doc-" + file.Filename, Ticker: meta.Ticker, Period: meta.Period()}, nil
}

func (r *recordingIngest) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.FilingMetadata
		wantErr error
	}{
		{
			name:  "underscores",
			input: "AAPL_2023_Q4.pdf",
			want:  domain.FilingMetadata{Ticker: "AAPL", Year: 2023, Quarter: domain.Q4},
		},
		{
			name:  "hyphens and lower case",
			input: "/inbox/msft-2022-q2.html",
			want:  domain.FilingMetadata{Ticker: "MSFT", Year: 2022, Quarter: domain.Q2},
		},
		{
			name:  "dotted ticker",
			input: "BRK.B_2021_Q4.txt",
			want:  domain.FilingMetadata{Ticker: "BRK.B", Year: 2021, Quarter: domain.Q4},
		},
		{
			name:    "missing quarter",
			input:   "AAPL_2023.pdf",
			wantErr: ErrUnrecognisedName,
		},
		{
			name:    "quarter out of range",
			input:   "AAPL_2023_Q5.pdf",
			wantErr: ErrUnrecognisedName,
		},
		{
			name:    "free-form name",
			input:   "annual report.pdf",
			wantErr: ErrUnrecognisedName,
		},
		{
			name:    "year too early",
			input:   "AAPL_1950_Q4.pdf",
			wantErr: domain.ErrInvalidMetadata,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilename(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestHandleEvent checks which filesystem events lead to an ingest.
func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		setupFile  bool
		setupDir   bool
		operation  fsnotify.Op
		wantIngest bool
	}{
		{name: "create file", filename: "AAPL_2023_Q4.txt", setupFile: true, operation: fsnotify.Create, wantIngest: true},
		{name: "write file", filename: "AAPL_2023_Q4.txt", setupFile: true, operation: fsnotify.Write, wantIngest: true},
		{name: "remove is ignored", filename: "AAPL_2023_Q4.txt", operation: fsnotify.Remove},
		{name: "chmod is ignored", filename: "AAPL_2023_Q4.txt", setupFile: true, operation: fsnotify.Chmod},
		{name: "directory is skipped", filename: "AAPL_2023_Q4", setupDir: true, operation: fsnotify.Create},
		{name: "hidden file is skipped", filename: ".AAPL_2023_Q4.txt", setupFile: true, operation: fsnotify.Create},
		{name: "unparseable name is skipped", filename: "notes.txt", setupFile: true, operation: fsnotify.Create},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.filename)
			if tt.setupFile {
				require.NoError(t, os.WriteFile(path, []byte("Revenue grew."), 0o644))
			}
			if tt.setupDir {
				require.NoError(t, os.Mkdir(path, 0o755))
			}

			ingest := &recordingIngest{}
			var results []Result
			w := New(dir, ingest, Options{
				Debounce: time.Millisecond,
				OnResult: func(r Result) { results = append(results, r) },
			})

			w.handleEvent(context.Background(), fsnotify.Event{Name: path, Op: tt.operation})
			w.flush()

			if !tt.wantIngest {
				assert.Zero(t, ingest.count())
				assert.Empty(t, results)
				return
			}
			require.Equal(t, 1, ingest.count())
			assert.Equal(t, tt.filename, ingest.files[0].Filename)
			assert.Equal(t, "Revenue grew.", string(ingest.files[0].Data))
			assert.Equal(t, "AAPL", ingest.metas[0].Ticker)
			require.Len(t, results, 1)
			assert.NoError(t, results[0].Err)
		})
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "MSFT_2023_Q4.txt")
	require.NoError(t, os.WriteFile(path, []byte("Azure"), 0o644))

	ingest := &recordingIngest{}
	w := New(dir, ingest, Options{Debounce: 30 * time.Millisecond, Replace: true})

	ctx := context.Background()
	for range 5 {
		w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
	}
	w.mu.Lock()
	assert.Len(t, w.pending, 1)
	w.mu.Unlock()

	require.Eventually(t, func() bool { return ingest.count() == 1 }, time.Second, 5*time.Millisecond)
	w.flush()
	assert.Equal(t, 1, ingest.count())
	assert.Equal(t, domain.DuplicateReplace, ingest.opts[0].Policy)
}

func TestWatcher_ReportsIngestErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL_2023_Q4.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ingest := &recordingIngest{err: domain.ErrAlreadyExists}
	var got Result
	w := New(dir, ingest, Options{Debounce: time.Millisecond, OnResult: func(r Result) { got = r }})

	w.handleEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Create})
	w.flush()

	require.ErrorIs(t, got.Err, domain.ErrAlreadyExists)
	assert.Nil(t, got.Document)
	assert.Equal(t, path, got.Path)
}

func TestWatcher_ShutdownDropsPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL_2023_Q4.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ingest := &recordingIngest{}
	w := New(dir, ingest, Options{Debounce: time.Hour})

	w.handleEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Create})
	w.shutdown()

	assert.Zero(t, ingest.count())
	w.mu.Lock()
	assert.Empty(t, w.pending)
	w.mu.Unlock()
}

func TestWatcher_Run(t *testing.T) {
	t.Run("ingests existing and new files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL_2022_Q4.txt"), []byte("old"), 0o644))

		ingest := &recordingIngest{}
		w := New(dir, ingest, Options{Debounce: 10 * time.Millisecond})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		require.Eventually(t, func() bool { return ingest.count() == 1 }, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL_2023_Q4.txt"), []byte("new"), 0o644))
		require.Eventually(t, func() bool { return ingest.count() >= 2 }, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		w := New(filepath.Join(t.TempDir(), "nope"), &recordingIngest{}, Options{})
		require.Error(t, w.Run(context.Background()))
	})
}
