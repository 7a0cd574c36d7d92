// Package driver defines the contract between device drivers and the
// rest of the system, and the registry used to select a driver by
// name.
//
// A driver turns an open HID handle plus its database description into
// a fully populated model.Device, supplies the device's backend for
// commits and resyncs, and is responsible for completing every
// transaction handed to it exactly once.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
	"github.com/ratchet-hid/ratchet-go/pkg/diag"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

var (
	// ErrUnknownDriver is returned when no driver is registered under
	// the requested name.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrDuplicateDriver is returned when a name is registered twice.
	ErrDuplicateDriver = errors.New("driver already registered")
)

// Options carries cross-cutting dependencies into a probe.
type Options struct {
	// Logger for driver diagnostics (optional).
	Logger *slog.Logger

	// Sink receives the probe's device traffic (optional).
	Sink diag.Sink
}

// Driver probes devices of the families it claims and backs the
// resulting model.Device.
type Driver interface {
	// Name returns the name drivers are registered and looked up by.
	Name() string

	// Probe builds a model.Device from an open handle. The returned
	// device is fully populated: every profile and feature present,
	// the backend installed, Validate clean.
	Probe(ctx context.Context, handle hid.Device, desc *devicedb.Description, opts Options) (*model.Device, error)
}

// Registry is an explicit name to driver table. There is no dynamic
// loading; driver packages are registered at startup.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver under its name.
func (r *Registry) Register(drv Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := drv.Name()
	if _, exists := r.drivers[name]; exists {
		return fmt.Errorf("%s: %w", name, ErrDuplicateDriver)
	}
	r.drivers[name] = drv
	return nil
}

// Lookup returns the driver registered under name.
func (r *Registry) Lookup(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drv, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownDriver)
	}
	return drv, nil
}

// Names returns the registered driver names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProbeDevice selects the driver named by the description, probes the
// handle, and enforces the contract that probed devices validate
// cleanly.
func (r *Registry) ProbeDevice(ctx context.Context, handle hid.Device, desc *devicedb.Description, opts Options) (*model.Device, error) {
	drv, err := r.Lookup(desc.Driver)
	if err != nil {
		return nil, err
	}

	dev, err := drv.Probe(ctx, handle, desc, opts)
	if err != nil {
		return nil, fmt.Errorf("driver %s: probe %s: %w", desc.Driver, handle.Info().Path, err)
	}
	if err := dev.Validate(); err != nil {
		return nil, fmt.Errorf("driver %s: invalid device tree: %w", desc.Driver, err)
	}
	return dev, nil
}

// ModelString renders the canonical bus:vid:pid:version device model
// identifier.
func ModelString(info hid.Info, version int) string {
	return fmt.Sprintf("%s:%04x:%04x:%d", info.Bus, info.VendorID, info.ProductID, version)
}
