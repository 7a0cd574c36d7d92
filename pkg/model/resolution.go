package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DPI is a sensor resolution in dots per inch. Mice without separate
// x/y sensitivity use the same value for both axes.
type DPI struct {
	X uint32
	Y uint32
}

// UniformDPI returns a DPI with the same value on both axes.
func UniformDPI(value uint32) DPI {
	return DPI{X: value, Y: value}
}

// Uniform reports whether both axes have the same value.
func (d DPI) Uniform() bool {
	return d.X == d.Y
}

// String returns "800" for uniform values and "800x600" otherwise.
func (d DPI) String() string {
	if d.Uniform() {
		return fmt.Sprintf("%d", d.X)
	}
	return fmt.Sprintf("%dx%d", d.X, d.Y)
}

// ParseDPI parses the String form: a bare value for both axes, or
// "XxY" for separate axes.
func ParseDPI(s string) (DPI, error) {
	x, y, separate := strings.Cut(s, "x")
	xv, err := strconv.ParseUint(x, 10, 32)
	if err != nil {
		return DPI{}, fmt.Errorf("%w: dpi %q", ErrInvalidValue, s)
	}
	if !separate {
		return UniformDPI(uint32(xv)), nil
	}
	yv, err := strconv.ParseUint(y, 10, 32)
	if err != nil {
		return DPI{}, fmt.Errorf("%w: dpi %q", ErrInvalidValue, s)
	}
	return DPI{X: uint32(xv), Y: uint32(yv)}, nil
}

// ResolutionCapability describes an optional resolution operation the
// hardware supports.
type ResolutionCapability uint8

// ResolutionCapSeparateXY allows different DPI values per axis.
const ResolutionCapSeparateXY ResolutionCapability = 1

// String returns the capability name.
func (c ResolutionCapability) String() string {
	switch c {
	case ResolutionCapSeparateXY:
		return "separate-xy"
	default:
		return fmt.Sprintf("ResolutionCapability(%d)", c)
	}
}

// Resolution is one DPI slot of a profile. The active resolution is
// the one the sensor currently runs at; the default resolution is
// selected when the profile becomes active.
type Resolution struct {
	feature

	profile *Profile

	dpi     DPI
	dpiList []uint32

	capabilities []ResolutionCapability

	enabled   bool
	active    bool
	isDefault bool
}

// ResolutionSettings carries the initial hardware state of a
// resolution.
type ResolutionSettings struct {
	DPI DPI

	// DPIList lists the per-axis values the hardware accepts. An empty
	// list means the hardware takes arbitrary values.
	DPIList []uint32

	Capabilities []ResolutionCapability

	Enabled bool
	Active  bool
	Default bool
}

// NewResolution creates a resolution at the given index and attaches
// it to the profile. Only one resolution per profile may be created
// active or default.
func NewResolution(p *Profile, index int, settings *ResolutionSettings) (*Resolution, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: resolution index %d", ErrInvalidValue, index)
	}

	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < len(p.resolutions) && p.resolutions[index] != nil {
		return nil, fmt.Errorf("%w: resolution %d", ErrDuplicateIndex, index)
	}
	for _, q := range p.resolutions {
		if q == nil {
			continue
		}
		if settings.Active && q.active {
			return nil, fmt.Errorf("resolution %d: profile %d already has an active resolution", index, p.index)
		}
		if settings.Default && q.isDefault {
			return nil, fmt.Errorf("resolution %d: profile %d already has a default resolution", index, p.index)
		}
	}

	r := &Resolution{
		feature:      feature{dev: d, index: index},
		profile:      p,
		dpi:          settings.DPI,
		dpiList:      append([]uint32(nil), settings.DPIList...),
		capabilities: append([]ResolutionCapability(nil), settings.Capabilities...),
		enabled:      settings.Enabled,
		active:       settings.Active,
		isDefault:    settings.Default,
	}

	for index >= len(p.resolutions) {
		p.resolutions = append(p.resolutions, nil)
	}
	p.resolutions[index] = r
	return r, nil
}

// Profile returns the profile this resolution belongs to.
func (r *Resolution) Profile() *Profile {
	return r.profile
}

// DPI returns the resolution's DPI value.
func (r *Resolution) DPI() DPI {
	r.dev.mu.RLock()
	defer r.dev.mu.RUnlock()
	return r.dpi
}

// DPIList returns the per-axis values the hardware accepts.
func (r *Resolution) DPIList() []uint32 {
	r.dev.mu.RLock()
	defer r.dev.mu.RUnlock()
	return append([]uint32(nil), r.dpiList...)
}

// Capabilities returns the resolution's capability set.
func (r *Resolution) Capabilities() []ResolutionCapability {
	r.dev.mu.RLock()
	defer r.dev.mu.RUnlock()
	return append([]ResolutionCapability(nil), r.capabilities...)
}

// HasCapability reports whether the resolution supports the given
// capability.
func (r *Resolution) HasCapability(c ResolutionCapability) bool {
	r.dev.mu.RLock()
	defer r.dev.mu.RUnlock()
	return r.hasCapabilityLocked(c)
}

func (r *Resolution) hasCapabilityLocked(c ResolutionCapability) bool {
	for _, have := range r.capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Enabled reports whether the resolution is enabled.
func (r *Resolution) Enabled() bool {
	r.dev.mu.RLock()
	defer r.dev.mu.RUnlock()
	return r.enabled
}

// Active reports whether this is the resolution the sensor currently
// runs at.
func (r *Resolution) Active() bool {
	r.dev.mu.RLock()
	defer r.dev.mu.RUnlock()
	return r.active
}

// Default reports whether this resolution is selected when its profile
// becomes active.
func (r *Resolution) Default() bool {
	r.dev.mu.RLock()
	defer r.dev.mu.RUnlock()
	return r.isDefault
}

// SetDPI sets the resolution's DPI. Both axes must be values the
// hardware accepts, and differing axes require
// ResolutionCapSeparateXY.
func (r *Resolution) SetDPI(dpi DPI) error {
	d := r.dev
	d.mu.Lock()

	if dpi.X == 0 || dpi.Y == 0 {
		d.mu.Unlock()
		return fmt.Errorf("dpi %s: %w", dpi, ErrInvalidValue)
	}
	if !dpi.Uniform() && !r.hasCapabilityLocked(ResolutionCapSeparateXY) {
		d.mu.Unlock()
		return fmt.Errorf("separate x/y dpi: %w", ErrCapability)
	}
	if len(r.dpiList) > 0 {
		if !containsUint32(r.dpiList, dpi.X) || !containsUint32(r.dpiList, dpi.Y) {
			d.mu.Unlock()
			return fmt.Errorf("dpi %s: %w", dpi, ErrCapability)
		}
	}
	if r.dpi == dpi {
		d.mu.Unlock()
		return nil
	}

	r.dpi = dpi
	r.dirty = true
	d.mu.Unlock()

	d.notifyChanged(r, "dpi")
	return nil
}

// SetEnabled enables or disables the resolution.
func (r *Resolution) SetEnabled(enabled bool) error {
	d := r.dev
	d.mu.Lock()

	if r.enabled == enabled {
		d.mu.Unlock()
		return nil
	}

	r.enabled = enabled
	r.dirty = true
	d.mu.Unlock()

	d.notifyChanged(r, "enabled")
	return nil
}

// SetActive makes this the resolution the sensor runs at. The
// previously active resolution of the profile is deactivated; both
// become part of the next commit.
func (r *Resolution) SetActive() error {
	d := r.dev
	d.mu.Lock()

	if r.active {
		d.mu.Unlock()
		return nil
	}

	var prev *Resolution
	for _, q := range r.profile.resolutions {
		if q != nil && q.active {
			prev = q
			break
		}
	}
	if prev != nil {
		prev.active = false
		prev.dirty = true
	}
	r.active = true
	r.dirty = true
	d.mu.Unlock()

	if prev != nil {
		d.notifyChanged(prev, "active")
	}
	d.notifyChanged(r, "active")
	return nil
}

// SetDefault makes this the resolution selected when the profile
// becomes active. The previous default loses the flag; both become
// part of the next commit.
func (r *Resolution) SetDefault() error {
	d := r.dev
	d.mu.Lock()

	if r.isDefault {
		d.mu.Unlock()
		return nil
	}

	var prev *Resolution
	for _, q := range r.profile.resolutions {
		if q != nil && q.isDefault {
			prev = q
			break
		}
	}
	if prev != nil {
		prev.isDefault = false
		prev.dirty = true
	}
	r.isDefault = true
	r.dirty = true
	d.mu.Unlock()

	if prev != nil {
		d.notifyChanged(prev, "default")
	}
	d.notifyChanged(r, "default")
	return nil
}

// Restore overwrites the resolution's state with freshly read hardware
// values and clears its dirty flag. Drivers call it during resync; it
// bypasses capability checks and fires no events.
func (r *Resolution) Restore(settings *ResolutionSettings) {
	d := r.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	r.dpi = settings.DPI
	r.dpiList = append([]uint32(nil), settings.DPIList...)
	r.capabilities = append([]ResolutionCapability(nil), settings.Capabilities...)
	r.enabled = settings.Enabled

	if settings.Active {
		for _, q := range r.profile.resolutions {
			if q != nil && q != r {
				q.active = false
			}
		}
	}
	r.active = settings.Active

	if settings.Default {
		for _, q := range r.profile.resolutions {
			if q != nil && q != r {
				q.isDefault = false
			}
		}
	}
	r.isDefault = settings.Default
	r.dirty = false
}

func containsUint32(list []uint32, v uint32) bool {
	for _, have := range list {
		if have == v {
			return true
		}
	}
	return false
}
