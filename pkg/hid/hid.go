package hid

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned for operations on a closed device.
	ErrClosed = errors.New("device closed")

	// ErrReportTooLarge is returned when a report exceeds the
	// transport's buffer limit.
	ErrReportTooLarge = errors.New("report too large")
)

// BusType identifies the bus a device is attached to, using the Linux
// input bus constants.
type BusType uint16

const (
	BusUSB       BusType = 0x03
	BusBluetooth BusType = 0x05
	BusVirtual   BusType = 0x06
	BusI2C       BusType = 0x18
)

// String returns the lowercase bus name used in match strings and
// model identifiers.
func (b BusType) String() string {
	switch b {
	case BusUSB:
		return "usb"
	case BusBluetooth:
		return "bluetooth"
	case BusVirtual:
		return "virtual"
	case BusI2C:
		return "i2c"
	default:
		return "unknown"
	}
}

// ParseBusType maps a bus name to its BusType.
func ParseBusType(s string) (BusType, error) {
	switch strings.ToLower(s) {
	case "usb":
		return BusUSB, nil
	case "bluetooth":
		return BusBluetooth, nil
	case "virtual":
		return BusVirtual, nil
	case "i2c":
		return BusI2C, nil
	default:
		return 0, fmt.Errorf("unknown bus type %q", s)
	}
}

// Info describes an opened HID device.
type Info struct {
	// Path is the transport path the device was opened from.
	Path string

	// Bus is the bus the device is attached to.
	Bus BusType

	// VendorID and ProductID identify the device model.
	VendorID  uint16
	ProductID uint16

	// Product is the human-readable product name.
	Product string

	// ReportDescriptor is the raw HID report descriptor, when the
	// transport can provide it.
	ReportDescriptor []byte
}

// Device is an open HID device. Implementations are safe for
// concurrent use.
type Device interface {
	// Write sends an output report. The first byte of data carries
	// the report ID; devices without numbered reports use 0.
	Write(data []byte) error

	// Read returns the next input report, blocking until one
	// arrives, the context is cancelled, or the device goes away.
	// Numbered reports arrive with their ID in the first byte.
	Read(ctx context.Context) ([]byte, error)

	// GetFeatureReport fetches a feature report. length is the
	// expected payload size excluding the report ID; the returned
	// payload excludes it as well.
	GetFeatureReport(reportID byte, length int) ([]byte, error)

	// SetFeatureReport sends a feature report. data excludes the
	// report ID; the transport prepends it.
	SetFeatureReport(reportID byte, data []byte) error

	// Info describes the device.
	Info() Info

	// Close releases the device. Blocked reads fail after Close.
	Close() error
}
