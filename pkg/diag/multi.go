package diag

import "io"

// MultiSink sends events to multiple sinks. Useful when you want both
// console output (via SlogSink) and a capture file (via FileSink)
// simultaneously.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink that forwards to all provided
// sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// LogRx forwards the report to all configured sinks.
func (m *MultiSink) LogRx(data []byte) {
	for _, s := range m.sinks {
		s.LogRx(data)
	}
}

// LogTx forwards the report to all configured sinks.
func (m *MultiSink) LogTx(data []byte) {
	for _, s := range m.sinks {
		s.LogTx(data)
	}
}

// LogIoctlTx forwards the ioctl buffer to all configured sinks.
func (m *MultiSink) LogIoctlTx(name string, data []byte) {
	for _, s := range m.sinks {
		s.LogIoctlTx(name, data)
	}
}

// LogIoctlRx forwards the ioctl buffer to all configured sinks.
func (m *MultiSink) LogIoctlRx(name string, data []byte) {
	for _, s := range m.sinks {
		s.LogIoctlRx(name, data)
	}
}

// Close closes every wrapped sink that supports closing and returns
// the first error encountered.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Compile-time interface satisfaction check.
var _ Sink = (*MultiSink)(nil)
