// Package sweep walks a rectangle with the places API, subdividing any cell
// whose result count suggests the API truncated it.
package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"placesweep/internal/geo"
	"placesweep/internal/here"
	"placesweep/internal/logging"
)

// ErrMaxDepth is returned when a cell still exceeds the threshold at the
// deepest allowed subdivision.
var ErrMaxDepth = errors.New("maximum subdivision depth exceeded")

// AbortError reports where a sweep stopped. Passing Path as the skip-to path
// of a new run resumes at the failed cell.
type AbortError struct {
	Path Path  // resume point for --skip-to
	At   Path  // cell that failed
	Err  error // underlying cause
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("sweep aborted at cell [%s] (resume with --skip-to %q): %v", e.At, e.Path.String(), e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Inserter persists the items of one request.
type Inserter interface {
	InsertPlaces(ctx context.Context, items []json.RawMessage, scrapedAt time.Time) (int, error)
}

// Stats are the running totals of a sweep.
type Stats struct {
	Requests    int // API requests made, one per visited cell
	Encountered int // items returned across all requests
	Inserted    int // items that were new to the store
}

// Progress describes one completed cell request.
type Progress struct {
	Path     Path
	Rect     geo.Rectangle
	Found    int
	New      int
	Duration time.Duration
	Totals   Stats
}

// Observer receives a Progress after every request.
type Observer func(Progress)

// Config controls the subdivision.
type Config struct {
	Rows       int
	Columns    int
	Threshold  int // subdivide when a cell returns more than this many items
	MaxDepth   int
	PageSize   int
	Categories []string
}

// DefaultConfig returns a 3x3 grid that subdivides above 90 results.
func DefaultConfig() Config {
	return Config{
		Rows:      3,
		Columns:   3,
		Threshold: 90,
		MaxDepth:  16,
		PageSize:  100,
	}
}

func (c Config) cells() int {
	cols := c.Columns
	if cols <= 0 {
		cols = c.Rows
	}
	return c.Rows * cols
}

// Sweeper runs sweeps against one API client and one store.
type Sweeper struct {
	browser  here.Browser
	store    Inserter
	cfg      Config
	logger   *zap.Logger
	observer Observer
	runID    string
	now      func() time.Time
}

// Option customises a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger used for per-cell progress lines.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithObserver registers a progress callback.
func WithObserver(o Observer) Option {
	return func(s *Sweeper) { s.observer = o }
}

// WithRunID tags audit records with the id of the stored run.
func WithRunID(id string) Option {
	return func(s *Sweeper) { s.runID = id }
}

// New creates a Sweeper. Zero-valued config fields take their defaults.
func New(browser here.Browser, store Inserter, cfg Config, opts ...Option) *Sweeper {
	def := DefaultConfig()
	if cfg.Rows <= 0 {
		cfg.Rows = def.Rows
	}
	if cfg.Columns <= 0 {
		cfg.Columns = cfg.Rows
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}

	s := &Sweeper{
		browser: browser,
		store:   store,
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps rect. A non-nil skipTo resumes a previous sweep: cells ordered
// before it are not requested again.
func (s *Sweeper) Run(ctx context.Context, rect geo.Rectangle, skipTo Path) (Stats, error) {
	timer := logging.StartTimer(logging.CategorySweep, "Run")
	defer timer.Stop()

	audit := logging.Audit(s.runID)
	audit.SweepStart(rect.String(), skipTo.String())
	logging.Sweep("Sweep start bbox=%s skip_to=%q grid=%dx%d threshold=%d",
		rect, skipTo, s.cfg.Rows, s.cfg.Columns, s.cfg.Threshold)

	w := &walk{Sweeper: s, audit: audit}
	err := w.scrape(ctx, rect, Path{}, skipTo)

	audit.SweepEnd(w.stats.Requests, w.stats.Encountered, w.stats.Inserted, err)
	logging.Sweep("Sweep end requests=%d encountered=%d new=%d err=%v",
		w.stats.Requests, w.stats.Encountered, w.stats.Inserted, err)
	return w.stats, err
}

// walk holds the state of one Run.
type walk struct {
	*Sweeper
	audit *logging.AuditLogger
	stats Stats
}

func (w *walk) scrape(ctx context.Context, rect geo.Rectangle, id Path, skipTo Path) error {
	for i, sub := range rect.Subdivide(w.cfg.Rows, w.cfg.Columns) {
		child := id.Child(i)

		if skipTo != nil && skipTo.Equal(id) {
			skipTo = nil
		} else if skipTo != nil && skipTo.Truncate(len(child)).Compare(child) < 0 {
			skipTo = nil
		}

		if skipTo != nil {
			if skipTo.Truncate(len(child)).Equal(child) {
				logging.SweepDebug("Descending to resume point [%s] via [%s]", skipTo, child)
				// walking toward a resume point requests nothing here, so
				// the depth limit does not apply
				if err := w.scrape(ctx, sub, child, skipTo); err != nil {
					return err
				}
			} else {
				logging.SweepDebug("Skipped [%s]", child)
			}
			continue
		}

		found, err := w.visit(ctx, sub, child)
		if err != nil {
			return err
		}
		if found > w.cfg.Threshold {
			if err := w.descend(ctx, sub, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// descend subdivides a cell that returned more than the threshold.
func (w *walk) descend(ctx context.Context, rect geo.Rectangle, id Path) error {
	if len(id) >= w.cfg.MaxDepth {
		logging.SweepWarn("Cell [%s] %s exceeds max depth %d", id, rect, w.cfg.MaxDepth)
		return &AbortError{Path: w.resumePath(id), At: id, Err: ErrMaxDepth}
	}
	return w.scrape(ctx, rect, id, nil)
}

// visit requests one cell and stores what it returns.
func (w *walk) visit(ctx context.Context, rect geo.Rectangle, id Path) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &AbortError{Path: w.resumePath(id), At: id, Err: err}
	}

	start := w.now()
	items, err := w.browser.Browse(ctx, here.BrowseRequest{
		In:         rect,
		Size:       w.cfg.PageSize,
		Categories: w.cfg.Categories,
	})
	elapsed := time.Since(start)
	w.audit.Request(id.String(), rect.String(), len(items), elapsed, err)
	if err != nil {
		w.logger.Error("request failed",
			zap.String("path", id.String()),
			zap.String("bbox", rect.String()),
			zap.Error(err))
		return 0, &AbortError{Path: w.resumePath(id), At: id, Err: err}
	}
	w.stats.Requests++

	inserted, err := w.store.InsertPlaces(ctx, items, start)
	if err != nil {
		return 0, &AbortError{Path: w.resumePath(id), At: id, Err: fmt.Errorf("failed to store places: %w", err)}
	}
	w.audit.Insert(id.String(), len(items), inserted)

	w.stats.Encountered += len(items)
	w.stats.Inserted += inserted

	w.logger.Info("cell scraped",
		zap.String("path", id.String()),
		zap.String("bbox", rect.String()),
		zap.Int("found", len(items)),
		zap.Int("new", inserted),
		zap.Int("requests", w.stats.Requests),
		zap.Int("encountered", w.stats.Encountered),
		zap.Int("total_new", w.stats.Inserted))

	if w.observer != nil {
		w.observer(Progress{
			Path:     id,
			Rect:     rect,
			Found:    len(items),
			New:      inserted,
			Duration: elapsed,
			Totals:   w.stats,
		})
	}
	return len(items), nil
}

// resumePath returns the skip-to path that makes a new run request cell id
// first. For the first cell of a parent that is the parent itself; otherwise
// it points one past the last child of the preceding sibling so that sibling
// is walked without requests.
func (w *walk) resumePath(id Path) Path {
	if len(id) == 0 {
		return nil
	}
	last := id[len(id)-1]
	parent := id[:len(id)-1]
	if last == 0 {
		return append(Path{}, parent...)
	}
	p := append(Path{}, parent...)
	return append(p, last-1, w.cfg.cells())
}
