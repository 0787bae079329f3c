// Package watch ingests files dropped into a directory.
//
// Files are picked up once they have been quiet for the debounce period,
// ingested through the engine and then moved to Uploaded/ or Failed/ next to
// where they were dropped. A failed file gets a sibling "<name>.error.txt"
// holding the user-facing reason.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
)

// Destination directories, relative to the watched directory.
const (
	UploadedDir = "Uploaded"
	FailedDir   = "Failed"
)

// Ingester runs one file through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req core.IngestRequest) (*core.IngestResult, error)
}

// Config controls a Watcher.
type Config struct {
	Dir         string
	Kind        core.RecordKind
	OwnerID     string
	Debounce    time.Duration // default 500ms
	MaxFileSize int64         // 0 means unlimited
	Timeout     time.Duration // per-file ingestion bound, 0 means none
}

// Outcome reports what happened to one file.
type Outcome struct {
	File    string // original path
	MovedTo string
	Result  *core.IngestResult
	Err     error
}

// Watcher ingests files as they appear in Config.Dir.
type Watcher struct {
	cfg      Config
	ingester Ingester
	limiter  *core.UploadLimiter
	onResult func(Outcome)
	now      func() time.Time
	pending  map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLimiter makes file ingestions share the server's concurrency limit.
func WithLimiter(l *core.UploadLimiter) Option {
	return func(w *Watcher) { w.limiter = l }
}

// OnResult registers a callback invoked after each file is handled.
func OnResult(fn func(Outcome)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// New validates cfg and returns a Watcher. Nothing runs until Run.
func New(cfg Config, ingester Ingester, opts ...Option) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("unknown record kind %q", cfg.Kind)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = core.AnonymousOwner
	}

	w := &Watcher{
		cfg:      cfg,
		ingester: ingester,
		now:      time.Now,
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run ingests files already present, then watches for new ones until ctx is
// cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.prepare(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	logger := logging.WithFields(ctx, "dir", w.cfg.Dir, "kind", w.cfg.Kind)
	logger.Info("watcher started", "debounce", w.cfg.Debounce)

	// Files that arrived while nothing was watching.
	if _, err := w.ScanOnce(ctx); err != nil {
		logger.Warn("initial scan failed", "error", err)
	}

	ticker := time.NewTicker(max(w.cfg.Debounce/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watch event channel closed")
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watch error channel closed")
			}
			logger.Error("watch error", "error", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// ScanOnce ingests every eligible file currently in the directory and
// returns how many were handled. Files skipped because the upload limit was
// reached stay in the directory and are not counted.
func (w *Watcher) ScanOnce(ctx context.Context) (int, error) {
	if err := w.prepare(); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", w.cfg.Dir, err)
	}

	handled := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		if !entry.Type().IsRegular() || !eligible(entry.Name()) {
			continue
		}
		if w.process(ctx, filepath.Join(w.cfg.Dir, entry.Name())) {
			handled++
		}
	}
	return handled, nil
}

func (w *Watcher) prepare() error {
	for _, sub := range []string{UploadedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.cfg.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", sub, err)
		}
	}
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.cfg.Dir) || !eligible(filepath.Base(event.Name)) {
		return
	}
	w.pending[event.Name] = w.now()
}

// flush processes every pending file that has been quiet for the debounce period.
func (w *Watcher) flush(ctx context.Context) {
	now := w.now()
	for path, last := range w.pending {
		if now.Sub(last) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// Moved away or replaced by a directory before it settled.
			continue
		}
		w.process(ctx, path)
	}
}

// eligible skips hidden files, editor temp files and our own error notes.
func eligible(name string) bool {
	return !strings.HasPrefix(name, ".") &&
		!strings.HasPrefix(name, "~") &&
		!strings.HasSuffix(name, ".error.txt")
}

// process ingests one file and moves it by outcome. It reports false when
// the file was left in place for a later attempt.
func (w *Watcher) process(ctx context.Context, path string) bool {
	name := filepath.Base(path)
	logger := logging.WithFields(ctx, "file", name, "kind", w.cfg.Kind)

	res, err := w.ingest(ctx, path)
	if err != nil && ctx.Err() != nil {
		// Shutting down: leave the file for the next run.
		logger.Info("file left in place on shutdown", "error", err)
		return false
	}
	if errors.Is(err, core.ErrTooManyUploads) {
		// The file is fine, the server is busy. Retry once it has been
		// quiet for another debounce period.
		w.pending[path] = w.now()
		logger.Info("file left in place, upload limit reached", "retry_after", w.cfg.Debounce)
		return false
	}

	sub := UploadedDir
	if err != nil {
		sub = FailedDir
	}
	dest, moveErr := moveInto(path, filepath.Join(w.cfg.Dir, sub))
	if moveErr != nil {
		logger.Error("failed to move processed file", "error", moveErr)
	}

	if err != nil {
		logger.Warn("file ingestion failed", "error", err, "moved_to", dest)
		if dest != "" {
			note := core.FormatUserError(err) + "\n" + err.Error() + "\n"
			if werr := os.WriteFile(dest+".error.txt", []byte(note), 0o644); werr != nil {
				logger.Error("failed to write error note", "error", werr)
			}
		}
	} else {
		logger.Info("file ingested",
			"upload_id", res.UploadID,
			"records", res.RecordsProcessed,
			"rows_dropped", res.RowsDropped,
			"moved_to", dest,
		)
	}

	if w.onResult != nil {
		w.onResult(Outcome{File: path, MovedTo: dest, Result: res, Err: err})
	}
	return true
}

func (w *Watcher) ingest(ctx context.Context, path string) (*core.IngestResult, error) {
	name := filepath.Base(path)

	format, err := core.DetectFormat(name, "")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if w.cfg.MaxFileSize > 0 && info.Size() > w.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes exceeds %d", info.Size(), w.cfg.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if w.limiter != nil {
		slot, err := w.limiter.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer slot.Release()
	}

	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	return w.ingester.Ingest(ctx, core.IngestRequest{
		Kind:     w.cfg.Kind,
		FileName: name,
		Size:     int64(len(data)),
		Format:   format,
		Data:     data,
		OwnerID:  w.cfg.OwnerID,
	})
}

// moveInto renames path into dir, adding a timestamp suffix when a file of
// the same name is already there.
func moveInto(path, dir string) (string, error) {
	name := filepath.Base(path)
	dest := filepath.Join(dir, name)

	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		dest = filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, time.Now().UTC().Format("20060102T150405.000000000"), ext))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s: %w", name, err)
	}
	return dest, nil
}
