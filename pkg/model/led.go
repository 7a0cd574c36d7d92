package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownLedMode is returned when a led mode name cannot be
// resolved.
var ErrUnknownLedMode = errors.New("unknown led mode")

// maxEffectDuration caps the effect period at 10 seconds.
const maxEffectDuration = 10000

// Color is an RGB color. Leds with lower color depth quantize it.
type Color struct {
	R uint8
	G uint8
	B uint8
}

// String returns the color as "rrggbb" hex.
func (c Color) String() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses an "rrggbb" hex color. A leading "#" is accepted.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: color %q", ErrInvalidValue, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: color %q", ErrInvalidValue, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ColorDepth describes the color resolution of a led.
type ColorDepth uint8

const (
	// ColorDepthMonochrome is a single-color led; only brightness
	// applies.
	ColorDepthMonochrome ColorDepth = 0

	// ColorDepthRGB111 takes one bit per color component.
	ColorDepthRGB111 ColorDepth = 1

	// ColorDepthRGB888 takes eight bits per color component.
	ColorDepthRGB888 ColorDepth = 2
)

// String returns the color depth name.
func (c ColorDepth) String() string {
	switch c {
	case ColorDepthMonochrome:
		return "monochrome"
	case ColorDepthRGB111:
		return "rgb-111"
	case ColorDepthRGB888:
		return "rgb-888"
	default:
		return fmt.Sprintf("ColorDepth(%d)", c)
	}
}

// LedMode is the lighting pattern of a led.
type LedMode uint8

const (
	LedOff       LedMode = 0
	LedOn        LedMode = 1
	LedCycle     LedMode = 2
	LedBreathing LedMode = 3
)

// String returns the mode name.
func (m LedMode) String() string {
	switch m {
	case LedOff:
		return "off"
	case LedOn:
		return "on"
	case LedCycle:
		return "cycle"
	case LedBreathing:
		return "breathing"
	default:
		return fmt.Sprintf("LedMode(%d)", m)
	}
}

// ParseLedMode resolves a led mode by name.
func ParseLedMode(name string) (LedMode, error) {
	switch name {
	case "off":
		return LedOff, nil
	case "on":
		return LedOn, nil
	case "cycle":
		return LedCycle, nil
	case "breathing":
		return LedBreathing, nil
	default:
		return LedOff, fmt.Errorf("%w: %q", ErrUnknownLedMode, name)
	}
}

// Led is one light of a profile.
type Led struct {
	feature

	profile *Profile

	color      Color
	brightness uint8
	colorDepth ColorDepth
	mode       LedMode
	modes      []LedMode

	// EffectDuration is the cycle or breathing period in ms.
	effectDuration int
}

// LedSettings carries the initial hardware state of a led.
type LedSettings struct {
	Color      Color
	Brightness uint8
	ColorDepth ColorDepth

	// Mode is the current mode; Modes lists the modes the hardware
	// accepts. An empty list defaults to LedOff only.
	Mode  LedMode
	Modes []LedMode

	EffectDuration int
}

// NewLed creates a led at the given index and attaches it to the
// profile.
func NewLed(p *Profile, index int, settings *LedSettings) (*Led, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: led index %d", ErrInvalidValue, index)
	}

	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < len(p.leds) && p.leds[index] != nil {
		return nil, fmt.Errorf("%w: led %d", ErrDuplicateIndex, index)
	}

	modes := append([]LedMode(nil), settings.Modes...)
	if len(modes) == 0 {
		modes = []LedMode{LedOff}
	}

	l := &Led{
		feature:        feature{dev: d, index: index},
		profile:        p,
		color:          settings.Color,
		brightness:     settings.Brightness,
		colorDepth:     settings.ColorDepth,
		mode:           settings.Mode,
		modes:          modes,
		effectDuration: settings.EffectDuration,
	}

	for index >= len(p.leds) {
		p.leds = append(p.leds, nil)
	}
	p.leds[index] = l
	return l, nil
}

// Profile returns the profile this led belongs to.
func (l *Led) Profile() *Profile {
	return l.profile
}

// Color returns the led color.
func (l *Led) Color() Color {
	l.dev.mu.RLock()
	defer l.dev.mu.RUnlock()
	return l.color
}

// Brightness returns the led brightness, 0-255.
func (l *Led) Brightness() uint8 {
	l.dev.mu.RLock()
	defer l.dev.mu.RUnlock()
	return l.brightness
}

// ColorDepth returns the color resolution of the led.
func (l *Led) ColorDepth() ColorDepth {
	l.dev.mu.RLock()
	defer l.dev.mu.RUnlock()
	return l.colorDepth
}

// Mode returns the current lighting mode.
func (l *Led) Mode() LedMode {
	l.dev.mu.RLock()
	defer l.dev.mu.RUnlock()
	return l.mode
}

// Modes returns the modes the hardware accepts.
func (l *Led) Modes() []LedMode {
	l.dev.mu.RLock()
	defer l.dev.mu.RUnlock()
	return append([]LedMode(nil), l.modes...)
}

// EffectDuration returns the cycle or breathing period in ms.
func (l *Led) EffectDuration() int {
	l.dev.mu.RLock()
	defer l.dev.mu.RUnlock()
	return l.effectDuration
}

// SetColor sets the led color.
func (l *Led) SetColor(color Color) error {
	d := l.dev
	d.mu.Lock()

	if l.color == color {
		d.mu.Unlock()
		return nil
	}

	l.color = color
	l.dirty = true
	d.mu.Unlock()

	d.notifyChanged(l, "color")
	return nil
}

// SetBrightness sets the led brightness.
func (l *Led) SetBrightness(brightness uint8) error {
	d := l.dev
	d.mu.Lock()

	if l.brightness == brightness {
		d.mu.Unlock()
		return nil
	}

	l.brightness = brightness
	l.dirty = true
	d.mu.Unlock()

	d.notifyChanged(l, "brightness")
	return nil
}

// SetMode sets the lighting mode. The mode must be one of Modes.
func (l *Led) SetMode(mode LedMode) error {
	d := l.dev
	d.mu.Lock()

	supported := false
	for _, m := range l.modes {
		if m == mode {
			supported = true
			break
		}
	}
	if !supported {
		d.mu.Unlock()
		return fmt.Errorf("led mode %s: %w", mode, ErrCapability)
	}
	if l.mode == mode {
		d.mu.Unlock()
		return nil
	}

	l.mode = mode
	l.dirty = true
	d.mu.Unlock()

	d.notifyChanged(l, "mode")
	return nil
}

// SetEffectDuration sets the cycle or breathing period in ms, at most
// 10000.
func (l *Led) SetEffectDuration(ms int) error {
	d := l.dev
	d.mu.Lock()

	if ms < 0 || ms > maxEffectDuration {
		d.mu.Unlock()
		return fmt.Errorf("effect duration %d ms: %w", ms, ErrInvalidValue)
	}
	if l.effectDuration == ms {
		d.mu.Unlock()
		return nil
	}

	l.effectDuration = ms
	l.dirty = true
	d.mu.Unlock()

	d.notifyChanged(l, "effect-duration")
	return nil
}

// Restore overwrites the led's state with freshly read hardware values
// and clears its dirty flag. Drivers call it during resync; it
// bypasses capability checks and fires no events.
func (l *Led) Restore(settings *LedSettings) {
	d := l.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	l.color = settings.Color
	l.brightness = settings.Brightness
	l.colorDepth = settings.ColorDepth
	l.mode = settings.Mode
	if len(settings.Modes) > 0 {
		l.modes = append([]LedMode(nil), settings.Modes...)
	}
	l.effectDuration = settings.EffectDuration
	l.dirty = false
}
