// Package export writes stored places to files and search indexes.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"placesweep/internal/logging"
	"placesweep/internal/store"
)

// ErrUnknownFormat is returned for a format name with no registered writer.
var ErrUnknownFormat = errors.New("unknown export format")

// Source yields stored places. *store.Store satisfies it.
type Source interface {
	Each(ctx context.Context, fn func(store.Record) error) error
}

// Result describes one finished export.
type Result struct {
	Format string
	Target string // file path or index URL
	Count  int
}

// Writer exports every place of a source. base is the output path without
// extension; writers that do not produce files ignore it.
type Writer interface {
	Name() string
	Export(ctx context.Context, src Source, base string) (Result, error)
}

// Registry maps format names to writers.
type Registry struct {
	mu      sync.RWMutex
	writers map[string]Writer
}

// NewRegistry returns a registry holding the file formats.
func NewRegistry() *Registry {
	r := &Registry{writers: make(map[string]Writer)}
	for _, w := range FileWriters() {
		r.Register(w)
	}
	return r
}

// Register adds or replaces a writer under its name.
func (r *Registry) Register(w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[strings.ToLower(w.Name())] = w
}

// Get looks up a writer by name.
func (r *Registry) Get(name string) (Writer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.writers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownFormat, name, strings.Join(r.namesLocked(), ", "))
	}
	return w, nil
}

// Names lists the registered formats in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.writers))
	for n := range r.writers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WriteAll exports src in every named format concurrently, each writer doing
// its own pass over the source. Files are named dir/base.<ext>. All names are
// resolved before anything is written.
func WriteAll(ctx context.Context, reg *Registry, src Source, formats []string, dir, base string) ([]Result, error) {
	writers := make([]Writer, 0, len(formats))
	seen := make(map[string]bool)
	for _, f := range formats {
		w, err := reg.Get(f)
		if err != nil {
			return nil, err
		}
		if seen[w.Name()] {
			continue
		}
		seen[w.Name()] = true
		writers = append(writers, w)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	prefix := filepath.Join(dir, base)

	timer := logging.StartTimer(logging.CategoryExport, "WriteAll")
	defer timer.Stop()

	results := make([]Result, len(writers))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range writers {
		i, w := i, w
		g.Go(func() error {
			res, err := w.Export(gctx, src, prefix)
			if err != nil {
				return fmt.Errorf("%s export: %w", w.Name(), err)
			}
			logging.Export("Exported %d places as %s to %s", res.Count, res.Format, res.Target)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
