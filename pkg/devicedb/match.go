package devicedb

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ratchet-hid/ratchet-go/pkg/hid"
)

// DeviceMatch is one parsed bus:vid:pid match string.
type DeviceMatch struct {
	// Bus is the bus the match applies to.
	Bus hid.BusType

	// VendorID is the USB/Bluetooth vendor ID.
	VendorID uint16

	// ProductID is the product ID; ignored when AnyProduct is set.
	ProductID uint16

	// AnyProduct covers every product of the vendor (a * in the match
	// string).
	AnyProduct bool
}

// ParseDeviceMatch parses a bus:vid:pid match string. The vendor ID is
// exactly four hex digits; the product ID is four hex digits or *.
func ParseDeviceMatch(s string) (DeviceMatch, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return DeviceMatch{}, fmt.Errorf("match %q: want bus:vid:pid", s)
	}

	bus, err := hid.ParseBusType(parts[0])
	if err != nil {
		return DeviceMatch{}, fmt.Errorf("match %q: %w", s, err)
	}

	vendor, err := parseHexID(parts[1])
	if err != nil {
		return DeviceMatch{}, fmt.Errorf("match %q: vendor: %w", s, err)
	}

	m := DeviceMatch{Bus: bus, VendorID: vendor}
	if parts[2] == "*" {
		m.AnyProduct = true
		return m, nil
	}

	product, err := parseHexID(parts[2])
	if err != nil {
		return DeviceMatch{}, fmt.Errorf("match %q: product: %w", s, err)
	}
	m.ProductID = product
	return m, nil
}

func parseHexID(s string) (uint16, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("%q is not a 4-digit hex ID", s)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 4-digit hex ID", s)
	}
	return uint16(v), nil
}

// Covers returns true if the match applies to the bus/vendor/product
// triple.
func (m DeviceMatch) Covers(bus hid.BusType, vendor, product uint16) bool {
	if m.Bus != bus || m.VendorID != vendor {
		return false
	}
	return m.AnyProduct || m.ProductID == product
}

// String renders the match in its bus:vid:pid form.
func (m DeviceMatch) String() string {
	if m.AnyProduct {
		return fmt.Sprintf("%s:%04x:*", m.Bus, m.VendorID)
	}
	return fmt.Sprintf("%s:%04x:%04x", m.Bus, m.VendorID, m.ProductID)
}

// UnmarshalYAML parses the match from its string form.
func (m *DeviceMatch) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDeviceMatch(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalYAML renders the match in its string form.
func (m DeviceMatch) MarshalYAML() (any, error) {
	return m.String(), nil
}
