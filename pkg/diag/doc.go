// Package diag captures the raw traffic between drivers and devices.
//
// A Sink receives every report and ioctl exchanged with a device.
// Sinks are write-only and best-effort: they never return errors into
// the calling driver, and a failing sink must not disturb the device
// exchange it observes.
//
// Implementations:
//
//   - NoopSink discards everything (the default).
//   - FileSink appends CBOR-encoded events to a capture file, one
//     session per sink. Reader streams them back, optionally filtered.
//   - SlogSink mirrors events to an slog.Logger for development.
//   - Recorder writes the YAML capture format used for driver bug
//     reports and emulation fixtures.
//   - MultiSink fans out to several sinks at once.
//
// Wrap a device with hid.WithSink to capture its traffic without
// touching driver code.
package diag
