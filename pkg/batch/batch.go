// Package batch applies declarative configuration documents to a
// device. A document is a YAML file listing per-profile overrides;
// applying one walks the device tree and calls the regular model
// setters, so capability checks, dirty tracking and change events
// behave exactly as if a client had made each change by hand. Nothing
// reaches the hardware until the caller commits.
package batch

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// Document is a parsed batch-configuration file.
type Document struct {
	// Matches restricts the document to devices whose name appears in
	// the list. An empty list matches every device.
	Matches []string `yaml:"matches,omitempty"`

	// Profiles lists the per-profile overrides. At least one entry is
	// required.
	Profiles []ProfileEntry `yaml:"profiles"`
}

// ProfileEntry overrides settings of one profile. Omitted fields leave
// the live values untouched.
type ProfileEntry struct {
	Index       *int              `yaml:"index"`
	Disable     bool              `yaml:"disable,omitempty"`
	ReportRate  int               `yaml:"report-rate,omitempty"`
	Resolutions []ResolutionEntry `yaml:"resolutions,omitempty"`
	Buttons     []ButtonEntry     `yaml:"buttons,omitempty"`
}

// ResolutionEntry overrides one resolution slot.
type ResolutionEntry struct {
	Index   *int      `yaml:"index"`
	DPI     *DPIValue `yaml:"dpi,omitempty"`
	Disable bool      `yaml:"disable,omitempty"`
}

// ButtonEntry rebinds one button. Exactly one of Button, Special,
// Macro or Disable must be set.
type ButtonEntry struct {
	Index   *int        `yaml:"index"`
	Button  *int        `yaml:"button,omitempty"`
	Special string      `yaml:"special,omitempty"`
	Macro   *MacroEntry `yaml:"macro,omitempty"`
	Disable bool        `yaml:"disable,omitempty"`
}

// MacroEntry is a key macro in the compact notation: "+N" presses key
// code N, "-N" releases it, "tN" waits N milliseconds.
type MacroEntry struct {
	Name    string   `yaml:"name,omitempty"`
	Entries []string `yaml:"entries"`
}

// DPIValue is a dpi override. A bare scalar applies to both axes; a
// two-element [x, y] sequence sets them separately.
type DPIValue struct {
	model.DPI
}

func (v *DPIValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var dpi uint32
		if err := node.Decode(&dpi); err != nil {
			return fmt.Errorf("dpi: %w", err)
		}
		v.DPI = model.UniformDPI(dpi)
		return nil
	case yaml.SequenceNode:
		var pair []uint32
		if err := node.Decode(&pair); err != nil {
			return fmt.Errorf("dpi: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("dpi: want [x, y], got %d values", len(pair))
		}
		v.DPI = model.DPI{X: pair[0], Y: pair[1]}
		return nil
	default:
		return errors.New("dpi: want a number or [x, y]")
	}
}

// Parse parses and validates a batch-configuration document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func (d *Document) validate() error {
	if len(d.Profiles) == 0 {
		return errors.New("document has no profile overrides")
	}
	for i, p := range d.Profiles {
		if err := p.validate(); err != nil {
			return fmt.Errorf("profiles[%d]: %w", i, err)
		}
	}
	return nil
}

func (p *ProfileEntry) validate() error {
	if p.Index == nil {
		return errors.New("missing index")
	}
	if *p.Index < 0 {
		return fmt.Errorf("negative index %d", *p.Index)
	}
	if p.ReportRate < 0 {
		return fmt.Errorf("negative report rate %d", p.ReportRate)
	}
	for j, r := range p.Resolutions {
		if r.Index == nil {
			return fmt.Errorf("resolutions[%d]: missing index", j)
		}
		if *r.Index < 0 {
			return fmt.Errorf("resolutions[%d]: negative index %d", j, *r.Index)
		}
	}
	for j, b := range p.Buttons {
		if b.Index == nil {
			return fmt.Errorf("buttons[%d]: missing index", j)
		}
		if *b.Index < 0 {
			return fmt.Errorf("buttons[%d]: negative index %d", j, *b.Index)
		}
		if err := b.validate(); err != nil {
			return fmt.Errorf("buttons[%d]: %w", j, err)
		}
	}
	return nil
}

func (b *ButtonEntry) validate() error {
	set := 0
	if b.Button != nil {
		set++
	}
	if b.Special != "" {
		set++
	}
	if b.Macro != nil {
		set++
	}
	if b.Disable {
		set++
	}
	if set != 1 {
		return errors.New("want exactly one of button, special, macro or disable")
	}
	_, err := b.action()
	return err
}

// action builds the model action the entry describes.
func (b *ButtonEntry) action() (model.Action, error) {
	switch {
	case b.Disable:
		return model.ActionNone{}, nil
	case b.Button != nil:
		if *b.Button < 1 {
			return nil, fmt.Errorf("button number %d is not positive", *b.Button)
		}
		return model.ActionButton{Button: *b.Button}, nil
	case b.Special != "":
		special, err := model.ParseSpecialFunction(b.Special)
		if err != nil {
			return nil, err
		}
		return model.ActionSpecial{Special: special}, nil
	case b.Macro != nil:
		if len(b.Macro.Entries) == 0 {
			return nil, errors.New("macro has no entries")
		}
		events := make([]model.MacroEvent, 0, len(b.Macro.Entries))
		for _, entry := range b.Macro.Entries {
			ev, err := model.ParseMacroEvent(entry)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
		return model.ActionMacro{Name: b.Macro.Name, Events: events}, nil
	default:
		return nil, errors.New("want exactly one of button, special, macro or disable")
	}
}
