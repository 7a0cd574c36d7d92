package model

import (
	"fmt"
	"strings"
)

// Snapshot types mirror the live tree as plain data for display, YAML
// export and test fixtures.

// DeviceSnapshot is a point-in-time copy of a device's state.
type DeviceSnapshot struct {
	Name            string            `yaml:"name"`
	Path            string            `yaml:"path"`
	Model           string            `yaml:"model"`
	FirmwareVersion string            `yaml:"firmware_version,omitempty"`
	Profiles        []ProfileSnapshot `yaml:"profiles"`
}

// ProfileSnapshot is a point-in-time copy of a profile.
type ProfileSnapshot struct {
	Index        int                  `yaml:"index"`
	Name         string               `yaml:"name,omitempty"`
	Capabilities []string             `yaml:"capabilities,omitempty"`
	ReportRate   int                  `yaml:"report_rate"`
	ReportRates  []int                `yaml:"report_rates,flow,omitempty"`
	Enabled      bool                 `yaml:"enabled"`
	Active       bool                 `yaml:"active"`
	Default      bool                 `yaml:"default"`
	Dirty        bool                 `yaml:"dirty,omitempty"`
	Resolutions  []ResolutionSnapshot `yaml:"resolutions,omitempty"`
	Buttons      []ButtonSnapshot     `yaml:"buttons,omitempty"`
	Leds         []LedSnapshot        `yaml:"leds,omitempty"`
}

// ResolutionSnapshot is a point-in-time copy of a resolution.
type ResolutionSnapshot struct {
	Index        int       `yaml:"index"`
	DPI          [2]uint32 `yaml:"dpi,flow"`
	DPIList      []uint32  `yaml:"dpi_list,flow,omitempty"`
	Capabilities []string  `yaml:"capabilities,omitempty"`
	Enabled      bool      `yaml:"enabled"`
	Active       bool      `yaml:"active"`
	Default      bool      `yaml:"default"`
	Dirty        bool      `yaml:"dirty,omitempty"`
}

// ButtonSnapshot is a point-in-time copy of a button.
type ButtonSnapshot struct {
	Index       int            `yaml:"index"`
	Action      ActionSnapshot `yaml:"action"`
	ActionTypes []string       `yaml:"action_types,flow,omitempty"`
	Dirty       bool           `yaml:"dirty,omitempty"`
}

// ActionSnapshot is a plain-data rendering of a button action. Type is
// always set; the remaining fields depend on it.
type ActionSnapshot struct {
	Type      string `yaml:"type"`
	Button    int    `yaml:"button,omitempty"`
	Special   string `yaml:"special,omitempty"`
	Macro     string `yaml:"macro,omitempty"`
	MacroName string `yaml:"macro_name,omitempty"`
	Raw       string `yaml:"raw,omitempty"`
}

// LedSnapshot is a point-in-time copy of a led.
type LedSnapshot struct {
	Index          int      `yaml:"index"`
	Mode           string   `yaml:"mode"`
	Modes          []string `yaml:"modes,flow,omitempty"`
	Color          [3]uint8 `yaml:"color,flow"`
	Brightness     uint8    `yaml:"brightness"`
	ColorDepth     string   `yaml:"color_depth"`
	EffectDuration int      `yaml:"effect_duration"`
	Dirty          bool     `yaml:"dirty,omitempty"`
}

// Snapshot returns a consistent copy of the whole device tree.
func (d *Device) Snapshot() *DeviceSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := &DeviceSnapshot{
		Name:            d.name,
		Path:            d.path,
		Model:           d.model,
		FirmwareVersion: d.firmwareVersion,
	}
	for _, p := range d.profiles {
		if p != nil {
			snap.Profiles = append(snap.Profiles, p.snapshotLocked())
		}
	}
	return snap
}

// Snapshot returns a consistent copy of the profile and its children.
func (p *Profile) Snapshot() ProfileSnapshot {
	p.dev.mu.RLock()
	defer p.dev.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Profile) snapshotLocked() ProfileSnapshot {
	snap := ProfileSnapshot{
		Index:       p.index,
		Name:        p.name,
		ReportRate:  p.reportRate,
		ReportRates: append([]int(nil), p.reportRates...),
		Enabled:     p.enabled,
		Active:      p.active,
		Default:     p.isDefault,
		Dirty:       p.dirty,
	}
	for _, c := range p.capabilities {
		snap.Capabilities = append(snap.Capabilities, c.String())
	}
	for _, r := range p.resolutions {
		if r != nil {
			snap.Resolutions = append(snap.Resolutions, r.snapshotLocked())
		}
	}
	for _, b := range p.buttons {
		if b != nil {
			snap.Buttons = append(snap.Buttons, b.snapshotLocked())
		}
	}
	for _, l := range p.leds {
		if l != nil {
			snap.Leds = append(snap.Leds, l.snapshotLocked())
		}
	}
	return snap
}

func (r *Resolution) snapshotLocked() ResolutionSnapshot {
	snap := ResolutionSnapshot{
		Index:   r.index,
		DPI:     [2]uint32{r.dpi.X, r.dpi.Y},
		DPIList: append([]uint32(nil), r.dpiList...),
		Enabled: r.enabled,
		Active:  r.active,
		Default: r.isDefault,
		Dirty:   r.dirty,
	}
	for _, c := range r.capabilities {
		snap.Capabilities = append(snap.Capabilities, c.String())
	}
	return snap
}

func (b *Button) snapshotLocked() ButtonSnapshot {
	snap := ButtonSnapshot{
		Index:  b.index,
		Action: actionSnapshot(b.action),
		Dirty:  b.dirty,
	}
	for _, t := range b.types {
		snap.ActionTypes = append(snap.ActionTypes, t.String())
	}
	return snap
}

func actionSnapshot(a Action) ActionSnapshot {
	snap := ActionSnapshot{Type: a.Type().String()}
	switch action := a.(type) {
	case ActionButton:
		snap.Button = action.Button
	case ActionSpecial:
		snap.Special = action.Special.String()
	case ActionMacro:
		events := make([]string, 0, len(action.Events))
		for _, ev := range action.Events {
			events = append(events, ev.String())
		}
		snap.Macro = strings.Join(events, " ")
		snap.MacroName = action.Name
	case ActionUnknown:
		snap.Raw = fmt.Sprintf("%x", action.Data)
	}
	return snap
}

func (l *Led) snapshotLocked() LedSnapshot {
	snap := LedSnapshot{
		Index:          l.index,
		Mode:           l.mode.String(),
		Color:          [3]uint8{l.color.R, l.color.G, l.color.B},
		Brightness:     l.brightness,
		ColorDepth:     l.colorDepth.String(),
		EffectDuration: l.effectDuration,
		Dirty:          l.dirty,
	}
	for _, m := range l.modes {
		snap.Modes = append(snap.Modes, m.String())
	}
	return snap
}
