package devicedb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ratchet-hid/ratchet-go/pkg/hid"
)

// Description declares one device family: a human-readable name, the
// driver that handles it, the match strings selecting it, and opaque
// driver options.
type Description struct {
	Name    string            `yaml:"name"`
	Driver  string            `yaml:"driver"`
	Matches []DeviceMatch     `yaml:"matches"`
	Options map[string]string `yaml:"options,omitempty"`
}

// Covers returns true if any match string of the description applies
// to the bus/vendor/product triple.
func (d *Description) Covers(bus hid.BusType, vendor, product uint16) bool {
	for _, m := range d.Matches {
		if m.Covers(bus, vendor, product) {
			return true
		}
	}
	return false
}

// Option returns a driver option value.
func (d *Description) Option(key string) (string, bool) {
	v, ok := d.Options[key]
	return v, ok
}

// ParseDescription parses a device description from YAML bytes.
func ParseDescription(data []byte) (*Description, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing device description: %w", err)
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("device description missing name")
	}
	if desc.Driver == "" {
		return nil, fmt.Errorf("device description %q missing driver", desc.Name)
	}
	if len(desc.Matches) == 0 {
		return nil, fmt.Errorf("device description %q has no matches", desc.Name)
	}
	return &desc, nil
}

// LoadDescription loads and parses a device description from a file.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDescription(data)
}
