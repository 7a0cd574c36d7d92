package emulated

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ratchet-hid/ratchet-go/pkg/codec"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// VendorID is the USB vendor ID of the Nibbler family.
const VendorID = 0x4e42

// Feature report IDs. Profile-indexed reports add the profile index,
// macro reports add the slot number.
const (
	reportVersion = 0x01
	reportSelect  = 0x02
	reportInput   = 0x03
	reportProfile = 0x10
	reportButtons = 0x20
	reportMacro   = 0x30
)

// Fixed family geometry. Every Nibbler exposes the same feature counts;
// only the profile count varies per product.
const (
	maxProfiles     = 4
	resolutionCount = 4
	buttonCount     = 6
	maxMacroEvents  = 32
	macroNameLen    = 16

	// DPI values are stored on the wire in units of 50.
	dpiQuantum = 50
)

// Input report event codes.
const inputProfileSwitched = 0x01

// Byte offset of the active profile within the version report.
const versionActiveOffset = 6

// versionReportMax bounds the version report read; the trailing
// diagnostic string is variable length.
const versionReportMax = 64

// Action triple type codes in the button-map report.
const (
	actionNone    = 0x00
	actionButton  = 0x01
	actionSpecial = 0x02
	actionMacro   = 0x03
)

// Macro entry opcodes.
const (
	macroOpNone    = 0x00
	macroOpPress   = 0x01
	macroOpRelease = 0x02
	macroOpWait    = 0x03
)

var reportRates = []int{125, 250, 500, 1000}

const defaultRateIndex = 2 // 500 Hz

// specialCodes maps the vendor's special-function codes to model
// special functions.
var specialCodes = map[byte]model.SpecialFunction{
	0x01: model.SpecialDoubleclick,
	0x02: model.SpecialWheelLeft,
	0x03: model.SpecialWheelRight,
	0x04: model.SpecialWheelUp,
	0x05: model.SpecialWheelDown,
	0x10: model.SpecialResolutionCycleUp,
	0x11: model.SpecialResolutionUp,
	0x12: model.SpecialResolutionDown,
	0x13: model.SpecialResolutionAlternate,
	0x14: model.SpecialResolutionDefault,
	0x20: model.SpecialProfileCycleUp,
	0x21: model.SpecialProfileUp,
	0x22: model.SpecialProfileDown,
	0x30: model.SpecialSecondMode,
	0x31: model.SpecialBatteryLevel,
}

func specialFromCode(code byte) (model.SpecialFunction, bool) {
	s, ok := specialCodes[code]
	return s, ok
}

func codeForSpecial(s model.SpecialFunction) (byte, bool) {
	for code, have := range specialCodes {
		if have == s {
			return code, true
		}
	}
	return 0, false
}

// supportedDPIs returns the DPI values the sensor accepts.
func supportedDPIs() []uint32 {
	list := make([]uint32, 0, 80)
	for dpi := uint32(100); dpi <= 8000; dpi += 100 {
		list = append(list, dpi)
	}
	return list
}

// buttonActionTypes returns the action kinds a Nibbler button can
// store. Unknown re-writes a raw triple unchanged.
func buttonActionTypes() []model.ActionType {
	return []model.ActionType{
		model.ActionTypeNone,
		model.ActionTypeButton,
		model.ActionTypeSpecial,
		model.ActionTypeMacro,
		model.ActionTypeUnknown,
	}
}

// additiveChecksum is the family's checksum: the truncated sum of all
// covered bytes, stored little-endian.
func additiveChecksum(data []byte) uint64 {
	var sum uint64
	for _, b := range data {
		sum += uint64(b)
	}
	return sum
}

// checksumOK verifies the trailing little-endian additive checksum of
// a report.
func checksumOK(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	sum := additiveChecksum(data[:len(data)-2])
	return binary.LittleEndian.Uint16(data[len(data)-2:]) == uint16(sum)
}

func diagFromWire(data []byte) (any, error) {
	return string(bytes.TrimRight(data, "\x00")), nil
}

func diagToWire(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("want a string, got %T", value)
	}
}

// macroEventsFromWire unpacks the fixed-size table of 4-byte key
// entries into model macro events. Entries are [op, reserved, value-le16];
// the report's count field decides how many are meaningful.
func macroEventsFromWire(data []byte) (any, error) {
	events := make([]model.MacroEvent, 0, len(data)/4)
	for off := 0; off+4 <= len(data); off += 4 {
		value := int(binary.LittleEndian.Uint16(data[off+2:]))
		var typ model.MacroEventType
		switch data[off] {
		case macroOpNone:
			typ = model.MacroNone
		case macroOpPress:
			typ = model.MacroKeyPress
		case macroOpRelease:
			typ = model.MacroKeyRelease
		case macroOpWait:
			typ = model.MacroWait
		default:
			return nil, fmt.Errorf("unknown macro op 0x%02x", data[off])
		}
		events = append(events, model.MacroEvent{Type: typ, Value: value})
	}
	return events, nil
}

func macroEventsToWire(value any) ([]byte, error) {
	events, ok := value.([]model.MacroEvent)
	if !ok {
		return nil, fmt.Errorf("want []model.MacroEvent, got %T", value)
	}
	if len(events) > maxMacroEvents {
		return nil, fmt.Errorf("%d events exceed the %d-entry table", len(events), maxMacroEvents)
	}

	buf := make([]byte, maxMacroEvents*4)
	for i, ev := range events {
		var op byte
		switch ev.Type {
		case model.MacroNone:
			op = macroOpNone
		case model.MacroKeyPress:
			op = macroOpPress
		case model.MacroKeyRelease:
			op = macroOpRelease
		case model.MacroWait:
			op = macroOpWait
		default:
			return nil, fmt.Errorf("macro event %q is not representable", ev)
		}
		if ev.Value < 0 || ev.Value > 0xffff {
			return nil, fmt.Errorf("macro event value %d out of range", ev.Value)
		}
		off := i * 4
		buf[off] = op
		binary.LittleEndian.PutUint16(buf[off+2:], uint16(ev.Value))
	}
	return buf, nil
}

// versionSchema is the read-only identity report: firmware version,
// feature counts, the active profile, and a trailing free-form
// diagnostic string.
var versionSchema = codec.MustSchema(
	codec.Field{Name: "fw_major", Kind: codec.KindUint8},
	codec.Field{Name: "fw_minor", Kind: codec.KindUint8},
	codec.Field{Name: "fw_patch", Kind: codec.KindUint8},
	codec.Field{Name: "profile_count", Kind: codec.KindUint8},
	codec.Field{Name: "resolution_count", Kind: codec.KindUint8},
	codec.Field{Name: "button_count", Kind: codec.KindUint8},
	codec.Field{Name: "active_profile", Kind: codec.KindUint8},
	codec.Field{Name: "_", Kind: codec.KindUint8},
	codec.Field{Name: "diag", Kind: codec.KindUint8, Greedy: true, FromWire: diagFromWire, ToWire: diagToWire},
)

// profileSchema is the per-profile settings report.
var profileSchema = codec.MustSchema(
	codec.Field{Name: "enabled", Kind: codec.KindUint8},
	codec.Field{Name: "rate_index", Kind: codec.KindUint8},
	codec.Field{Name: "active_res", Kind: codec.KindUint8},
	codec.Field{Name: "default_res", Kind: codec.KindUint8},
	codec.Field{Name: "res_disabled", Kind: codec.KindUint8},
	codec.Field{Name: "?", Kind: codec.KindUint8},
	codec.Field{Name: "dpi_x", Kind: codec.KindUint16, Endian: codec.EndianLittle, Repeat: resolutionCount},
	codec.Field{Name: "dpi_y", Kind: codec.KindUint16, Endian: codec.EndianLittle, Repeat: resolutionCount},
	codec.Field{Name: "_", Kind: codec.KindBytes, Len: 2},
	codec.Field{Name: "checksum", Kind: codec.KindUint16, Endian: codec.EndianLittle, Checksum: additiveChecksum},
)

// buttonSchema is the per-profile button map: one 3-byte action triple
// per button.
var buttonSchema = codec.MustSchema(
	codec.Field{Name: "actions", Kind: codec.KindBytes, Len: 3, Repeat: buttonCount},
	codec.Field{Name: "_", Kind: codec.KindUint8},
	codec.Field{Name: "checksum", Kind: codec.KindUint16, Endian: codec.EndianLittle, Checksum: additiveChecksum},
)

// macroSchema is one macro slot: slot header, fixed-size name, entry
// count and the key entry table.
var macroSchema = codec.MustSchema(
	codec.Field{Name: "slot", Kind: codec.KindUint8},
	codec.Field{Name: "name", Kind: codec.KindBytes, Len: macroNameLen},
	codec.Field{Name: "count", Kind: codec.KindUint8},
	codec.Field{Name: "events", Kind: codec.KindBytes, Len: 4, Repeat: maxMacroEvents, FromWire: macroEventsFromWire, ToWire: macroEventsToWire},
	codec.Field{Name: "checksum", Kind: codec.KindUint16, Endian: codec.EndianLittle, Checksum: additiveChecksum},
)

// macroSlot returns the macro slot assigned to a button. Slots are
// statically partitioned per profile.
func macroSlot(profile, button int) int {
	return profile*buttonCount + button
}
