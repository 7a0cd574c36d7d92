package diag

// Sink is the interface drivers log device traffic to. Pass nil or
// NoopSink to disable capture.
//
// Implementations must be safe for concurrent use and must never
// propagate failures back into the device exchange; events should be
// processed quickly or queued.
type Sink interface {
	// LogRx records a report read from the device.
	LogRx(data []byte)

	// LogTx records a report written to the device.
	LogTx(data []byte)

	// LogIoctlTx records the buffer sent with a named ioctl.
	LogIoctlTx(name string, data []byte)

	// LogIoctlRx records the buffer returned by a named ioctl.
	LogIoctlRx(name string, data []byte)
}

// NoopSink discards all events. Use when capture is disabled.
// NoopSink is safe for concurrent use and usable as a zero value.
type NoopSink struct{}

// LogRx discards the report.
func (NoopSink) LogRx([]byte) {}

// LogTx discards the report.
func (NoopSink) LogTx([]byte) {}

// LogIoctlTx discards the ioctl buffer.
func (NoopSink) LogIoctlTx(string, []byte) {}

// LogIoctlRx discards the ioctl buffer.
func (NoopSink) LogIoctlRx(string, []byte) {}

// Compile-time interface satisfaction check.
var _ Sink = NoopSink{}
