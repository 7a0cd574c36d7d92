package diag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SlogSink writes capture events to an slog.Logger. Useful for
// development when you want to see device traffic in the console.
type SlogSink struct {
	session string
	device  DeviceInfo
	logger  *slog.Logger
}

// NewSlogSink creates a SlogSink that writes to the given slog.Logger.
func NewSlogSink(logger *slog.Logger, device DeviceInfo) *SlogSink {
	return &SlogSink{
		session: uuid.NewString(),
		device:  device,
		logger:  logger,
	}
}

// LogRx records a report read from the device.
func (s *SlogSink) LogRx(data []byte) {
	s.log(newEvent(s.session, s.device, ChannelReport, DirectionRx, "", data))
}

// LogTx records a report written to the device.
func (s *SlogSink) LogTx(data []byte) {
	s.log(newEvent(s.session, s.device, ChannelReport, DirectionTx, "", data))
}

// LogIoctlTx records the buffer sent with a named ioctl.
func (s *SlogSink) LogIoctlTx(name string, data []byte) {
	s.log(newEvent(s.session, s.device, ChannelIoctl, DirectionTx, name, data))
}

// LogIoctlRx records the buffer returned by a named ioctl.
func (s *SlogSink) LogIoctlRx(name string, data []byte) {
	s.log(newEvent(s.session, s.device, ChannelIoctl, DirectionRx, name, data))
}

// log writes the event to the slog logger at Debug level.
func (s *SlogSink) log(event Event) {
	attrs := []slog.Attr{
		slog.String("device", event.DeviceName),
		slog.String("channel", event.Channel.String()),
		slog.String("direction", event.Direction.String()),
		slog.Int("size", event.Size),
		slog.String("data", fmt.Sprintf("%x", event.Data)),
	}

	if event.Ioctl != "" {
		attrs = append(attrs, slog.String("ioctl", event.Ioctl))
	}
	if event.Truncated {
		attrs = append(attrs, slog.Bool("truncated", true))
	}

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "hid", attrs...)
}

// Compile-time interface satisfaction check.
var _ Sink = (*SlogSink)(nil)
