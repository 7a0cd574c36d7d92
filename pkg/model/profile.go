package model

import (
	"errors"
	"fmt"
)

// ErrFeatureNotFound is returned by child lookups with an unknown
// index.
var ErrFeatureNotFound = errors.New("feature not found")

// ProfileCapability describes an optional profile operation the
// hardware supports.
type ProfileCapability uint8

const (
	// ProfileCapSetDefault allows marking the profile as the one the
	// device activates at power-up.
	ProfileCapSetDefault ProfileCapability = 1

	// ProfileCapDisable allows disabling the profile entirely.
	ProfileCapDisable ProfileCapability = 2

	// ProfileCapWriteOnly marks profiles whose state cannot be read
	// back from the hardware; the model is the only source of truth.
	ProfileCapWriteOnly ProfileCapability = 3

	// ProfileCapIndividualReportRate marks devices where the report
	// rate is stored per profile rather than once per device.
	ProfileCapIndividualReportRate ProfileCapability = 4
)

// String returns the capability name.
func (c ProfileCapability) String() string {
	switch c {
	case ProfileCapSetDefault:
		return "set-default"
	case ProfileCapDisable:
		return "disable"
	case ProfileCapWriteOnly:
		return "write-only"
	case ProfileCapIndividualReportRate:
		return "individual-report-rate"
	default:
		return fmt.Sprintf("ProfileCapability(%d)", c)
	}
}

// Profile is one of a device's configuration slots. Exactly one
// profile is active on the hardware at any time.
type Profile struct {
	feature

	// Name is an optional software-assigned label.
	name string

	capabilities []ProfileCapability

	// ReportRate in Hz, one of reportRates.
	reportRate  int
	reportRates []int

	enabled   bool
	active    bool
	isDefault bool

	resolutions []*Resolution
	buttons     []*Button
	leds        []*Led
}

// ProfileSettings carries the initial hardware state of a profile.
// Drivers fill it from the device during probe and resync.
type ProfileSettings struct {
	Name         string
	Capabilities []ProfileCapability

	// ReportRate in Hz; ReportRates lists the rates the hardware
	// accepts.
	ReportRate  int
	ReportRates []int

	Enabled bool
	Active  bool
	Default bool
}

// NewProfile creates a profile at the given index and attaches it to
// the device. Indexes may be added out of order; each index can exist
// only once, and only one profile may be created active or default.
func NewProfile(dev *Device, index int, settings *ProfileSettings) (*Profile, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: profile index %d", ErrInvalidValue, index)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if index < len(dev.profiles) && dev.profiles[index] != nil {
		return nil, fmt.Errorf("%w: profile %d", ErrDuplicateIndex, index)
	}
	for _, q := range dev.profiles {
		if q == nil {
			continue
		}
		if settings.Active && q.active {
			return nil, fmt.Errorf("profile %d: device already has an active profile", index)
		}
		if settings.Default && q.isDefault {
			return nil, fmt.Errorf("profile %d: device already has a default profile", index)
		}
	}

	p := &Profile{
		feature:      feature{dev: dev, index: index},
		name:         settings.Name,
		capabilities: append([]ProfileCapability(nil), settings.Capabilities...),
		reportRate:   settings.ReportRate,
		reportRates:  append([]int(nil), settings.ReportRates...),
		enabled:      settings.Enabled,
		active:       settings.Active,
		isDefault:    settings.Default,
	}

	for index >= len(dev.profiles) {
		dev.profiles = append(dev.profiles, nil)
	}
	dev.profiles[index] = p
	return p, nil
}

// Name returns the profile's label, or "" if it has none.
func (p *Profile) Name() string {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return p.name
}

// Capabilities returns the profile's capability set.
func (p *Profile) Capabilities() []ProfileCapability {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return append([]ProfileCapability(nil), p.capabilities...)
}

// HasCapability reports whether the profile supports the given
// capability.
func (p *Profile) HasCapability(c ProfileCapability) bool {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return p.hasCapabilityLocked(c)
}

func (p *Profile) hasCapabilityLocked(c ProfileCapability) bool {
	for _, have := range p.capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ReportRate returns the report rate in Hz.
func (p *Profile) ReportRate() int {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return p.reportRate
}

// ReportRates returns the report rates the hardware accepts.
func (p *Profile) ReportRates() []int {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return append([]int(nil), p.reportRates...)
}

// Enabled reports whether the profile is enabled.
func (p *Profile) Enabled() bool {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return p.enabled
}

// Active reports whether this is the profile currently in use by the
// hardware.
func (p *Profile) Active() bool {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return p.active
}

// Default reports whether this is the profile the device activates at
// power-up.
func (p *Profile) Default() bool {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return p.isDefault
}

// Dirty reports whether the profile or any of its resolutions, buttons
// or leds has uncommitted changes.
func (p *Profile) Dirty() bool {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	if p.dirty {
		return true
	}
	for _, r := range p.resolutions {
		if r != nil && r.dirty {
			return true
		}
	}
	for _, b := range p.buttons {
		if b != nil && b.dirty {
			return true
		}
	}
	for _, l := range p.leds {
		if l != nil && l.dirty {
			return true
		}
	}
	return false
}

// Resolutions returns the profile's resolutions in index order.
func (p *Profile) Resolutions() []*Resolution {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	result := make([]*Resolution, len(p.resolutions))
	copy(result, p.resolutions)
	return result
}

// Resolution returns the resolution at the given index.
func (p *Profile) Resolution(index int) (*Resolution, error) {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	if index < 0 || index >= len(p.resolutions) || p.resolutions[index] == nil {
		return nil, fmt.Errorf("%w: resolution %d", ErrFeatureNotFound, index)
	}
	return p.resolutions[index], nil
}

// ActiveResolution returns the profile's currently active resolution,
// or nil if it has none.
func (p *Profile) ActiveResolution() *Resolution {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	for _, r := range p.resolutions {
		if r != nil && r.active {
			return r
		}
	}
	return nil
}

// Buttons returns the profile's buttons in index order.
func (p *Profile) Buttons() []*Button {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	result := make([]*Button, len(p.buttons))
	copy(result, p.buttons)
	return result
}

// Button returns the button at the given index.
func (p *Profile) Button(index int) (*Button, error) {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	if index < 0 || index >= len(p.buttons) || p.buttons[index] == nil {
		return nil, fmt.Errorf("%w: button %d", ErrFeatureNotFound, index)
	}
	return p.buttons[index], nil
}

// Leds returns the profile's leds in index order.
func (p *Profile) Leds() []*Led {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	result := make([]*Led, len(p.leds))
	copy(result, p.leds)
	return result
}

// Led returns the led at the given index.
func (p *Profile) Led(index int) (*Led, error) {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()

	if index < 0 || index >= len(p.leds) || p.leds[index] == nil {
		return nil, fmt.Errorf("%w: led %d", ErrFeatureNotFound, index)
	}
	return p.leds[index], nil
}

// SetReportRate sets the report rate in Hz. The rate must be one of
// ReportRates.
func (p *Profile) SetReportRate(rate int) error {
	d := p.dev
	d.mu.Lock()

	supported := false
	for _, r := range p.reportRates {
		if r == rate {
			supported = true
			break
		}
	}
	if !supported {
		d.mu.Unlock()
		return fmt.Errorf("report rate %d: %w", rate, ErrCapability)
	}
	if p.reportRate == rate {
		d.mu.Unlock()
		return nil
	}

	p.reportRate = rate
	p.dirty = true
	d.mu.Unlock()

	d.notifyChanged(p, "report-rate")
	return nil
}

// SetEnabled enables or disables the profile. Requires
// ProfileCapDisable.
func (p *Profile) SetEnabled(enabled bool) error {
	d := p.dev
	d.mu.Lock()

	if !p.hasCapabilityLocked(ProfileCapDisable) {
		d.mu.Unlock()
		return fmt.Errorf("profile %d enable/disable: %w", p.index, ErrCapability)
	}
	if p.enabled == enabled {
		d.mu.Unlock()
		return nil
	}

	p.enabled = enabled
	p.dirty = true
	d.mu.Unlock()

	d.notifyChanged(p, "enabled")
	return nil
}

// SetActive makes this the profile in use by the hardware. The
// previously active profile is deactivated; both profiles become part
// of the next commit.
func (p *Profile) SetActive() error {
	d := p.dev
	d.mu.Lock()

	if p.active {
		d.mu.Unlock()
		return nil
	}

	var prev *Profile
	for _, q := range d.profiles {
		if q != nil && q.active {
			prev = q
			break
		}
	}
	if prev != nil {
		prev.active = false
		prev.dirty = true
	}
	p.active = true
	p.dirty = true
	d.mu.Unlock()

	if prev != nil {
		d.notifyChanged(prev, "active")
	}
	d.notifyChanged(p, "active")
	return nil
}

// SetDefault makes this the profile the device activates at power-up.
// Requires ProfileCapSetDefault. The previous default profile loses
// the flag; both profiles become part of the next commit.
func (p *Profile) SetDefault() error {
	d := p.dev
	d.mu.Lock()

	if !p.hasCapabilityLocked(ProfileCapSetDefault) {
		d.mu.Unlock()
		return fmt.Errorf("profile %d set-default: %w", p.index, ErrCapability)
	}
	if p.isDefault {
		d.mu.Unlock()
		return nil
	}

	var prev *Profile
	for _, q := range d.profiles {
		if q != nil && q.isDefault {
			prev = q
			break
		}
	}
	if prev != nil {
		prev.isDefault = false
		prev.dirty = true
	}
	p.isDefault = true
	p.dirty = true
	d.mu.Unlock()

	if prev != nil {
		d.notifyChanged(prev, "default")
	}
	d.notifyChanged(p, "default")
	return nil
}

// Restore overwrites the profile's own state with freshly read
// hardware values and clears its dirty flag. Drivers call it during
// resync; it bypasses capability checks and fires no events. Child
// features are restored individually.
func (p *Profile) Restore(settings *ProfileSettings) {
	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	p.name = settings.Name
	p.capabilities = append([]ProfileCapability(nil), settings.Capabilities...)
	p.reportRate = settings.ReportRate
	p.reportRates = append([]int(nil), settings.ReportRates...)
	p.enabled = settings.Enabled
	p.isDefault = settings.Default

	// The hardware has exactly one active profile; trust the newest
	// reading and drop the flag elsewhere.
	if settings.Active {
		for _, q := range d.profiles {
			if q != nil && q != p {
				q.active = false
			}
		}
	}
	p.active = settings.Active
	p.dirty = false
}

func (p *Profile) validateLocked() error {
	for i, r := range p.resolutions {
		if r == nil {
			return fmt.Errorf("profile %d: missing resolution %d", p.index, i)
		}
	}
	for i, b := range p.buttons {
		if b == nil {
			return fmt.Errorf("profile %d: missing button %d", p.index, i)
		}
	}
	for i, l := range p.leds {
		if l == nil {
			return fmt.Errorf("profile %d: missing led %d", p.index, i)
		}
	}
	return nil
}
