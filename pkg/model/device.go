package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Device errors.
var (
	ErrDeviceUnavailable = errors.New("device is disconnected")
	ErrCommitInProgress  = errors.New("device commit in progress")
	ErrNoBackend         = errors.New("device has no driver backend")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrDuplicateIndex    = errors.New("duplicate feature index")
)

// Setter errors. ErrCapability covers values and operations the
// hardware cannot represent; ErrInvalidValue covers values that are
// out of range for any device.
var (
	ErrCapability   = errors.New("not supported by this device")
	ErrInvalidValue = errors.New("invalid value")
)

// DriverBackend is the hardware side of a device. Drivers implement it
// to receive commit and resync requests from the model.
type DriverBackend interface {
	// CommitDevice writes the transaction's write set to the hardware
	// and completes the transaction exactly once. It runs on its own
	// goroutine.
	CommitDevice(ctx context.Context, tx *Transaction)

	// ResyncDevice re-reads hardware state into the device, replacing
	// locally held values through the Restore methods.
	ResyncDevice(ctx context.Context) error
}

// EventType identifies a device event.
type EventType uint8

const (
	// EventFeatureChanged fires after a setter changed a feature.
	EventFeatureChanged EventType = 0

	// EventCommitComplete fires when a transaction reaches a terminal
	// state.
	EventCommitComplete EventType = 1

	// EventResynced fires after a resync replaced local state with
	// hardware state.
	EventResynced EventType = 2

	// EventDisconnected fires once when the device becomes
	// unavailable.
	EventDisconnected EventType = 3
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventFeatureChanged:
		return "feature-changed"
	case EventCommitComplete:
		return "commit-complete"
	case EventResynced:
		return "resynced"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventType(%d)", t)
	}
}

// Event describes a change observed on a device. Listeners always see
// fully settled state: the mutation completes before the event fires.
type Event struct {
	Type EventType

	// Feature and Attr identify the changed feature and attribute for
	// EventFeatureChanged.
	Feature Feature
	Attr    string

	// Seq is the device sequence number for commit and resync events.
	Seq uint64

	// Success is the outcome for EventCommitComplete.
	Success bool

	// TransactionID identifies the transaction for EventCommitComplete.
	TransactionID string
}

// Device represents a configurable input device and its profile tree.
// It is the top-level container in the Device > Profile > {Resolution,
// Button, Led} model.
type Device struct {
	mu sync.RWMutex

	backend DriverBackend

	// Name is the human-readable device name.
	name string

	// Path is the system path the device was opened from.
	path string

	// Model is the bus:vid:pid identifier string, e.g.
	// "usb:1e7d:2e22:0".
	model string

	// FirmwareVersion is the device firmware version, if known.
	firmwareVersion string

	// Profiles indexed by position. Gaps may exist while a driver
	// populates out of order; Validate rejects them.
	profiles []*Profile

	listeners []func(Event)

	disconnected bool
	resyncing    bool
	inFlight     *Transaction
	seq          uint64
}

// DeviceSettings carries the identity of a device at creation time.
type DeviceSettings struct {
	Name            string
	Path            string
	Model           string
	FirmwareVersion string
}

// NewDevice creates a device bound to a driver backend. The driver
// creates the device during probe and populates its profiles before
// handing it out.
func NewDevice(backend DriverBackend, settings *DeviceSettings) *Device {
	return &Device{
		backend:         backend,
		name:            settings.Name,
		path:            settings.Path,
		model:           settings.Model,
		firmwareVersion: settings.FirmwareVersion,
	}
}

// Name returns the human-readable device name.
func (d *Device) Name() string {
	return d.name
}

// Path returns the system path the device was opened from.
func (d *Device) Path() string {
	return d.path
}

// Model returns the bus:vid:pid identifier string.
func (d *Device) Model() string {
	return d.model
}

// FirmwareVersion returns the firmware version, or "" if unknown.
func (d *Device) FirmwareVersion() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.firmwareVersion
}

// SetFirmwareVersion records the firmware version. Drivers call it
// when the version only becomes known after probe.
func (d *Device) SetFirmwareVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.firmwareVersion = version
}

// Profiles returns the device's profiles in index order.
func (d *Device) Profiles() []*Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*Profile, len(d.profiles))
	copy(result, d.profiles)
	return result
}

// Profile returns the profile at the given index.
func (d *Device) Profile(index int) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if index < 0 || index >= len(d.profiles) || d.profiles[index] == nil {
		return nil, fmt.Errorf("%w: index %d", ErrProfileNotFound, index)
	}
	return d.profiles[index], nil
}

// ActiveProfile returns the currently active profile, or nil if the
// device has none.
func (d *Device) ActiveProfile() *Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, p := range d.profiles {
		if p != nil && p.active {
			return p
		}
	}
	return nil
}

// Dirty reports whether any feature of the device has uncommitted
// changes.
func (d *Device) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.dirtyFeaturesLocked()) > 0
}

// DirtyFeatures returns every feature with uncommitted changes.
func (d *Device) DirtyFeatures() []Feature {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirtyFeaturesLocked()
}

func (d *Device) dirtyFeaturesLocked() []Feature {
	var result []Feature
	for _, p := range d.profiles {
		if p == nil {
			continue
		}
		if p.dirty {
			result = append(result, p)
		}
		for _, r := range p.resolutions {
			if r != nil && r.dirty {
				result = append(result, r)
			}
		}
		for _, b := range p.buttons {
			if b != nil && b.dirty {
				result = append(result, b)
			}
		}
		for _, l := range p.leds {
			if l != nil && l.dirty {
				result = append(result, l)
			}
		}
	}
	return result
}

// Disconnected reports whether the device has become unavailable.
func (d *Device) Disconnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.disconnected
}

// Seq returns the sequence number of the most recent commit or resync.
func (d *Device) Seq() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.seq
}

// OnEvent registers a listener for device events. Listeners are
// invoked synchronously, outside the device lock, in registration
// order.
func (d *Device) OnEvent(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// notifyChanged fires EventFeatureChanged for a single attribute.
// Callers must not hold the device lock.
func (d *Device) notifyChanged(f Feature, attr string) {
	d.emit(Event{Type: EventFeatureChanged, Feature: f, Attr: attr})
}

// emit delivers an event to all listeners outside the lock.
func (d *Device) emit(ev Event) {
	d.mu.RLock()
	listeners := make([]func(Event), len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Validate checks the populated tree for driver mistakes. Drivers call
// it once after probe, before handing the device out.
func (d *Device) Validate() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.profiles) == 0 {
		return fmt.Errorf("device %q: no profiles", d.name)
	}

	active := 0
	for i, p := range d.profiles {
		if p == nil {
			return fmt.Errorf("device %q: missing profile %d", d.name, i)
		}
		if p.active {
			active++
		}
		if err := p.validateLocked(); err != nil {
			return fmt.Errorf("device %q: %w", d.name, err)
		}
	}
	if active != 1 {
		return fmt.Errorf("device %q: %d active profiles, want exactly 1", d.name, active)
	}

	// All profiles must expose the same feature counts.
	first := d.profiles[0]
	for _, p := range d.profiles[1:] {
		if len(p.resolutions) != len(first.resolutions) ||
			len(p.buttons) != len(first.buttons) ||
			len(p.leds) != len(first.leds) {
			return fmt.Errorf("device %q: profile %d has inconsistent feature counts", d.name, p.index)
		}
	}
	if len(first.resolutions) == 0 && len(first.buttons) == 0 && len(first.leds) == 0 {
		return fmt.Errorf("device %q: profiles expose no configurable features", d.name)
	}

	return nil
}
