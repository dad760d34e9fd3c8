// Package watch ingests filings dropped into an inbox directory.
//
// Files must be named TICKER_YEAR_Qn.ext (for example AAPL_2023_Q4.pdf);
// hyphens are accepted as separators too. Anything else is logged and
// skipped.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
	"github.com/custodia-labs/tenk/internal/logger"
)

// DefaultDebounce is how long a path must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// ErrUnrecognisedName is returned by ParseFilename for names that do not
// carry a ticker, year and quarter.
var ErrUnrecognisedName = errors.New("filename is not TICKER_YEAR_Qn")

var filenamePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9.]{0,9})[_-](\d{4})[_-][Qq]([1-4])$`)

// ParseFilename derives filing metadata from an inbox filename.
func ParseFilename(name string) (domain.FilingMetadata, error) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	m := filenamePattern.FindStringSubmatch(stem)
	if m == nil {
		return domain.FilingMetadata{}, fmt.Errorf("%w: %s", ErrUnrecognisedName, base)
	}
	year, _ := strconv.Atoi(m[2])
	q, _ := strconv.Atoi(m[3])

	meta := domain.FilingMetadata{Ticker: m[1], Year: year, Quarter: domain.Quarter(q)}
	if err := meta.Validate(); err != nil {
		return domain.FilingMetadata{}, err
	}
	return meta, nil
}

// Result reports the outcome of one inbox file.
type Result struct {
	Path     string
	Document *domain.Document
	Err      error
}

// Options configures a Watcher.
type Options struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Replace re-ingests filings that already exist instead of rejecting them.
	Replace bool
	// OnResult is called after every ingest attempt. May be nil.
	OnResult func(Result)
}

// Watcher ingests files that appear in a directory.
type Watcher struct {
	dir    string
	ingest driving.IngestionService
	opts   Options

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher over dir.
func New(dir string, ingest driving.IngestionService, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		dir:     dir,
		ingest:  ingest,
		opts:    opts,
		pending: make(map[string]*time.Timer),
	}
}

// Run scans files already in the directory, then watches for new ones
// until ctx is cancelled. In-flight ingests finish before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("watching %s for filings", w.dir)

	if err := w.scan(ctx); err != nil {
		return err
	}

	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// scan queues every regular file already in the inbox.
func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || isHidden(e.Name()) {
			continue
		}
		w.schedule(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// handleEvent schedules an ingest for creates and writes of visible files.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if isHidden(filepath.Base(event.Name)) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.opts.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.process(ctx, path)
	})
	w.pending[path] = timer
}

// flush waits for every scheduled ingest, letting pending timers fire.
func (w *Watcher) flush() {
	w.wg.Wait()
}

// shutdown drops ingests still waiting out their debounce and waits for
// the ones already running.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) process(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	meta, err := ParseFilename(path)
	if err != nil {
		logger.Warn("skipping %s: %v", filepath.Base(path), err)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.report(Result{Path: path, Err: fmt.Errorf("read %s: %w", path, err)})
		return
	}

	opts := domain.IngestOptions{}
	if w.opts.Replace {
		opts.Policy = domain.DuplicateReplace
	}

	doc, err := w.ingest.Ingest(ctx, domain.RawFile{Filename: filepath.Base(path), Data: data}, meta, opts)
	if err != nil {
		logger.Warn("ingest %s failed: %v", filepath.Base(path), err)
	} else {
		logger.Info("ingested %s as %s (%d chunks)", filepath.Base(path), doc.Key(), doc.ChunkCount)
	}
	w.report(Result{Path: path, Document: doc, Err: err})
}

func (w *Watcher) report(r Result) {
	if w.opts.OnResult != nil {
		w.opts.OnResult(r)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
