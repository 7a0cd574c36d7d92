package diag

import "time"

// Reports are tiny; anything above this is captured truncated.
const maxCaptureBytes = 4096

// Event is one captured exchange with a device. CBOR encoding uses
// integer keys for compactness.
type Event struct {
	// Timestamp when the exchange occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the capture session (UUID). All events of
	// one sink share it.
	SessionID string `cbor:"2,keyasint"`

	// Channel is the transport path the data took.
	Channel Channel `cbor:"3,keyasint"`

	// Direction indicates data flow relative to the host.
	Direction Direction `cbor:"4,keyasint"`

	// Ioctl is the request name for ChannelIoctl events.
	Ioctl string `cbor:"5,keyasint,omitempty"`

	// DeviceName is the human-readable device name.
	DeviceName string `cbor:"6,keyasint,omitempty"`

	// DevicePath is the system path of the captured device.
	DevicePath string `cbor:"7,keyasint,omitempty"`

	// Size is the full payload size in bytes.
	Size int `cbor:"8,keyasint"`

	// Data is the payload (may be truncated for oversized buffers).
	Data []byte `cbor:"9,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"10,keyasint,omitempty"`
}

// Channel is the transport path of a captured exchange.
type Channel uint8

const (
	// ChannelReport is a plain HID report read or write.
	ChannelReport Channel = 0
	// ChannelIoctl is a named ioctl exchange.
	ChannelIoctl Channel = 1
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelReport:
		return "REPORT"
	case ChannelIoctl:
		return "IOCTL"
	default:
		return "UNKNOWN"
	}
}

// Direction indicates data flow relative to the host.
type Direction uint8

const (
	// DirectionRx indicates data read from the device.
	DirectionRx Direction = 0
	// DirectionTx indicates data written to the device.
	DirectionTx Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionRx:
		return "RX"
	case DirectionTx:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// DeviceInfo identifies the device a capture session observes.
type DeviceInfo struct {
	Name      string
	Path      string
	VendorID  uint16
	ProductID uint16
}

// newEvent stamps a captured payload with session metadata. The
// payload is copied so sinks stay safe against caller reuse of the
// buffer.
func newEvent(session string, device DeviceInfo, ch Channel, dir Direction, ioctl string, data []byte) Event {
	ev := Event{
		Timestamp:  time.Now(),
		SessionID:  session,
		Channel:    ch,
		Direction:  dir,
		Ioctl:      ioctl,
		DeviceName: device.Name,
		DevicePath: device.Path,
		Size:       len(data),
	}

	n := len(data)
	if n > maxCaptureBytes {
		n = maxCaptureBytes
		ev.Truncated = true
	}
	ev.Data = append([]byte(nil), data[:n]...)
	return ev
}
