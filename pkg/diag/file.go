package diag

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// FileSink writes capture events to a file in CBOR format. Every sink
// opens its own session; all events it writes share one session ID.
// It is safe for concurrent use from multiple goroutines.
type FileSink struct {
	session string
	device  DeviceInfo

	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileSink creates a FileSink that writes to the specified path.
// If the file exists, new events are appended. The file is created
// with permissions 0644 if it doesn't exist.
func NewFileSink(path string, device DeviceInfo) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileSink{
		session: uuid.NewString(),
		device:  device,
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// SessionID returns the capture session identifier.
func (s *FileSink) SessionID() string {
	return s.session
}

// LogRx records a report read from the device.
func (s *FileSink) LogRx(data []byte) {
	s.log(newEvent(s.session, s.device, ChannelReport, DirectionRx, "", data))
}

// LogTx records a report written to the device.
func (s *FileSink) LogTx(data []byte) {
	s.log(newEvent(s.session, s.device, ChannelReport, DirectionTx, "", data))
}

// LogIoctlTx records the buffer sent with a named ioctl.
func (s *FileSink) LogIoctlTx(name string, data []byte) {
	s.log(newEvent(s.session, s.device, ChannelIoctl, DirectionTx, name, data))
}

// LogIoctlRx records the buffer returned by a named ioctl.
func (s *FileSink) LogIoctlRx(name string, data []byte) {
	s.log(newEvent(s.session, s.device, ChannelIoctl, DirectionRx, name, data))
}

// log writes an event to the capture file.
// This method is safe for concurrent use.
func (s *FileSink) log(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	// Ignore encoding errors - capture should not disrupt the exchange
	_ = s.encoder.Encode(event)
}

// Close closes the capture file.
// It is safe to call Close multiple times.
// After Close is called, subsequent events are silently discarded.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.file.Close()
}

// Compile-time interface satisfaction check.
var _ Sink = (*FileSink)(nil)
