// Package inspect renders device snapshots as human-readable text for
// the command-line tools. It works purely on snapshot data, so output
// is stable regardless of what happens to the live device while
// formatting.
package inspect

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// Formatter formats device snapshots.
type Formatter struct {
	// ShowCapabilities includes capability and supported-value lists.
	ShowCapabilities bool

	// ShowDirty marks features with uncommitted changes.
	ShowDirty bool

	// IndentWidth is the number of spaces per indent level.
	IndentWidth int
}

// NewFormatter creates a Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowCapabilities: true,
		ShowDirty:        true,
		IndentWidth:      2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	return strings.Repeat(" ", depth*width) + content
}

// Summary returns a one-line description of the device, suitable for
// listings.
func (f *Formatter) Summary(snap *model.DeviceSnapshot) string {
	profiles := "profiles"
	if len(snap.Profiles) == 1 {
		profiles = "profile"
	}
	return fmt.Sprintf("%s  %s  %s  (%d %s)",
		snap.Name, snap.Model, snap.Path, len(snap.Profiles), profiles)
}

// FormatDevice renders the whole device tree.
func (f *Formatter) FormatDevice(snap *model.DeviceSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", snap.Name)
	fmt.Fprintf(&b, "%s\n", f.Indent(1, "model:    "+snap.Model))
	fmt.Fprintf(&b, "%s\n", f.Indent(1, "path:     "+snap.Path))
	if snap.FirmwareVersion != "" {
		fmt.Fprintf(&b, "%s\n", f.Indent(1, "firmware: "+snap.FirmwareVersion))
	}
	for i := range snap.Profiles {
		b.WriteString(f.formatProfile(&snap.Profiles[i], 1))
	}
	return b.String()
}

// FormatProfile renders one profile and its features.
func (f *Formatter) FormatProfile(snap *model.ProfileSnapshot) string {
	return f.formatProfile(snap, 0)
}

func (f *Formatter) formatProfile(snap *model.ProfileSnapshot, depth int) string {
	var b strings.Builder

	header := fmt.Sprintf("profile %d", snap.Index)
	if snap.Name != "" {
		header += fmt.Sprintf(" (%s)", snap.Name)
	}
	if flags := f.profileFlags(snap); flags != "" {
		header += " " + flags
	}
	fmt.Fprintf(&b, "%s\n", f.Indent(depth, header))

	rate := fmt.Sprintf("report rate: %d Hz", snap.ReportRate)
	if f.ShowCapabilities && len(snap.ReportRates) > 0 {
		rate += " " + intList(snap.ReportRates)
	}
	fmt.Fprintf(&b, "%s\n", f.Indent(depth+1, rate))

	if f.ShowCapabilities && len(snap.Capabilities) > 0 {
		fmt.Fprintf(&b, "%s\n", f.Indent(depth+1, "capabilities: "+strings.Join(snap.Capabilities, ", ")))
	}

	for i := range snap.Resolutions {
		fmt.Fprintf(&b, "%s\n", f.Indent(depth+1, f.resolutionLine(&snap.Resolutions[i])))
	}
	for i := range snap.Buttons {
		fmt.Fprintf(&b, "%s\n", f.Indent(depth+1, f.buttonLine(&snap.Buttons[i])))
	}
	for i := range snap.Leds {
		fmt.Fprintf(&b, "%s\n", f.Indent(depth+1, f.ledLine(&snap.Leds[i])))
	}
	return b.String()
}

func (f *Formatter) profileFlags(snap *model.ProfileSnapshot) string {
	var flags []string
	if snap.Active {
		flags = append(flags, "active")
	}
	if snap.Default {
		flags = append(flags, "default")
	}
	if !snap.Enabled {
		flags = append(flags, "disabled")
	}
	if f.ShowDirty && snap.Dirty {
		flags = append(flags, "dirty")
	}
	if len(flags) == 0 {
		return ""
	}
	return "[" + strings.Join(flags, ", ") + "]"
}

func (f *Formatter) resolutionLine(snap *model.ResolutionSnapshot) string {
	line := fmt.Sprintf("resolution %d: %s dpi", snap.Index, FormatDPI(snap.DPI))

	var flags []string
	if snap.Active {
		flags = append(flags, "active")
	}
	if snap.Default {
		flags = append(flags, "default")
	}
	if !snap.Enabled {
		flags = append(flags, "disabled")
	}
	if f.ShowDirty && snap.Dirty {
		flags = append(flags, "dirty")
	}
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	return line
}

func (f *Formatter) buttonLine(snap *model.ButtonSnapshot) string {
	line := fmt.Sprintf("button %d: %s", snap.Index, FormatAction(snap.Action))
	if f.ShowDirty && snap.Dirty {
		line += " [dirty]"
	}
	return line
}

func (f *Formatter) ledLine(snap *model.LedSnapshot) string {
	line := fmt.Sprintf("led %d: %s", snap.Index, snap.Mode)
	if snap.Mode != "off" {
		line += fmt.Sprintf(" #%02x%02x%02x brightness %d",
			snap.Color[0], snap.Color[1], snap.Color[2], snap.Brightness)
	}
	if snap.EffectDuration > 0 {
		line += fmt.Sprintf(" period %d ms", snap.EffectDuration)
	}
	if f.ShowDirty && snap.Dirty {
		line += " [dirty]"
	}
	return line
}

// FormatDPI renders an [x, y] dpi pair: "800" when uniform, "800x600"
// otherwise.
func FormatDPI(dpi [2]uint32) string {
	if dpi[0] == dpi[1] {
		return fmt.Sprintf("%d", dpi[0])
	}
	return fmt.Sprintf("%dx%d", dpi[0], dpi[1])
}

// FormatAction renders an action snapshot the way the interactive
// shell accepts it back.
func FormatAction(snap model.ActionSnapshot) string {
	switch snap.Type {
	case "button":
		return fmt.Sprintf("button %d", snap.Button)
	case "special":
		return "special " + snap.Special
	case "macro":
		if snap.MacroName != "" {
			return fmt.Sprintf("macro [%s] %s", snap.MacroName, snap.Macro)
		}
		return "macro " + snap.Macro
	case "unknown":
		return "unknown 0x" + snap.Raw
	default:
		return snap.Type
	}
}

// FormatYAML renders a snapshot as YAML, for machine consumption or
// diffing.
func FormatYAML(snap *model.DeviceSnapshot) (string, error) {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	return string(data), nil
}

func intList(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
