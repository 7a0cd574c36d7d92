package devicedb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ratchet-hid/ratchet-go/pkg/hid"
)

// Filesystem churn within this window collapses into one reload.
const reloadDebounce = 500 * time.Millisecond

// Registry holds device descriptions and answers driver lookups.
// It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	dir          string
	descriptions []*Description

	// Logger for debug output (optional)
	logger *slog.Logger
}

// NewRegistry returns a registry seeded with the builtin descriptions.
func NewRegistry() *Registry {
	return &Registry{descriptions: Builtin()}
}

// SetLogger installs a logger for load and watch diagnostics.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// debugLog logs a debug message if logging is enabled.
func (r *Registry) debugLog(msg string, args ...any) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()

	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// warnLog logs a warning if logging is enabled.
func (r *Registry) warnLog(msg string, args ...any) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()

	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// LoadDirectory replaces the registry content with the descriptions
// from every *.yaml/*.yml file in dir, sorted by file name. Files that
// fail to parse are skipped with a warning; the builtin table is
// dropped.
func (r *Registry) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading device database %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	descs := make([]*Description, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		desc, err := LoadDescription(path)
		if err != nil {
			r.warnLog("skipping device description", "path", path, "err", err)
			continue
		}
		descs = append(descs, desc)
	}

	r.mu.Lock()
	r.dir = dir
	r.descriptions = descs
	r.mu.Unlock()

	r.debugLog("device database loaded", "dir", dir, "descriptions", len(descs))
	return nil
}

// Add appends a description to the registry.
func (r *Registry) Add(desc *Description) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptions = append(r.descriptions, desc)
}

// Descriptions returns the loaded descriptions in match order.
func (r *Registry) Descriptions() []*Description {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*Description, len(r.descriptions))
	copy(descs, r.descriptions)
	return descs
}

// Match returns the first description covering the bus/vendor/product
// triple.
func (r *Registry) Match(bus hid.BusType, vendor, product uint16) (*Description, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, desc := range r.descriptions {
		if desc.Covers(bus, vendor, product) {
			return desc, true
		}
	}
	return nil, false
}

// Watch reloads the loaded directory whenever its YAML files change,
// until the context ends. Events are debounced so one editor save or
// package upgrade triggers a single reload. Watch blocks; run it in
// its own goroutine.
func (r *Registry) Watch(ctx context.Context) error {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()

	if dir == "" {
		return fmt.Errorf("no device database directory loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	reload := time.NewTimer(reloadDebounce)
	if !reload.Stop() {
		<-reload.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-reload.C:
			if !pending {
				continue
			}
			pending = false
			if err := r.LoadDirectory(dir); err != nil {
				r.warnLog("device database reload failed", "dir", dir, "err", err)
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
				reload.Reset(reloadDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.warnLog("device database watch error", "err", err)
		}
	}
}
