// Package hid provides transport access to HID devices.
//
// Two backends implement the Device interface: OpenPath talks to a
// Linux hidraw character device, OpenUSB goes through the
// cross-platform usbhid library. WithSink wraps any Device so all
// traffic crossing the interface is mirrored to a diagnostics sink.
//
// Report conventions follow the hidraw contract: stream reports carry
// their report ID in the first byte (0 for devices without numbered
// reports), feature report payloads exclude the ID, which is passed
// separately.
package hid
