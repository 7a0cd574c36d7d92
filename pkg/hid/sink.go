package hid

import (
	"context"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
)

// sinkDevice mirrors all traffic crossing the Device interface to a
// diagnostics sink.
type sinkDevice struct {
	dev  Device
	sink diag.Sink
}

// WithSink wraps a device so every report write/read hits the sink's
// LogTx/LogRx and every feature report exchange hits
// LogIoctlTx/LogIoctlRx with the request name. Captured buffers are
// the on-wire ones, report ID included. A nil sink returns the device
// unchanged.
func WithSink(dev Device, sink diag.Sink) Device {
	if sink == nil {
		return dev
	}
	return &sinkDevice{dev: dev, sink: sink}
}

// capture runs a sink call. Sink panics must never disturb device
// traffic.
func capture(log func()) {
	defer func() { _ = recover() }()
	log()
}

func (d *sinkDevice) Write(data []byte) error {
	capture(func() { d.sink.LogTx(data) })
	return d.dev.Write(data)
}

func (d *sinkDevice) Read(ctx context.Context) ([]byte, error) {
	data, err := d.dev.Read(ctx)
	if err != nil {
		return nil, err
	}
	capture(func() { d.sink.LogRx(data) })
	return data, nil
}

func (d *sinkDevice) GetFeatureReport(reportID byte, length int) ([]byte, error) {
	capture(func() { d.sink.LogIoctlTx("HIDIOCGFEATURE", []byte{reportID}) })
	data, err := d.dev.GetFeatureReport(reportID, length)
	if err != nil {
		return nil, err
	}
	capture(func() { d.sink.LogIoctlRx("HIDIOCGFEATURE", append([]byte{reportID}, data...)) })
	return data, nil
}

func (d *sinkDevice) SetFeatureReport(reportID byte, data []byte) error {
	capture(func() { d.sink.LogIoctlTx("HIDIOCSFEATURE", append([]byte{reportID}, data...)) })
	return d.dev.SetFeatureReport(reportID, data)
}

func (d *sinkDevice) Info() Info {
	return d.dev.Info()
}

func (d *sinkDevice) Close() error {
	return d.dev.Close()
}

// Compile-time interface satisfaction check.
var _ Device = (*sinkDevice)(nil)
