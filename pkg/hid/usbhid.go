package hid

import (
	"context"
	"fmt"

	"rafaelmartins.com/p/usbhid"
)

// usbDevice adapts a usbhid handle to the Device interface.
type usbDevice struct {
	dev  *usbhid.Device
	info Info
}

// EnumerateUSB lists the HID devices visible to the USB backend.
func EnumerateUSB() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(devs))
	for _, d := range devs {
		infos = append(infos, Info{
			Path:      d.Path(),
			Bus:       BusUSB,
			VendorID:  d.VendorId(),
			ProductID: d.ProductId(),
			Product:   d.Product(),
		})
	}
	return infos, nil
}

// OpenUSB opens the first USB HID device matching the vendor and
// product IDs.
func OpenUSB(vendorID, productID uint16) (Device, error) {
	dev, err := usbhid.Get(func(d *usbhid.Device) bool {
		return d.VendorId() == vendorID && d.ProductId() == productID
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("usb %04x:%04x: %w", vendorID, productID, err)
	}
	return newUSBDevice(dev), nil
}

// OpenUSBPath opens the USB HID device with the given platform path.
func OpenUSBPath(path string) (Device, error) {
	dev, err := usbhid.Get(func(d *usbhid.Device) bool {
		return d.Path() == path
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("usb %s: %w", path, err)
	}
	return newUSBDevice(dev), nil
}

func newUSBDevice(dev *usbhid.Device) *usbDevice {
	return &usbDevice{
		dev: dev,
		info: Info{
			Path:      dev.Path(),
			Bus:       BusUSB,
			VendorID:  dev.VendorId(),
			ProductID: dev.ProductId(),
			Product:   dev.Product(),
		},
	}
}

func (d *usbDevice) Write(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty report")
	}
	return d.dev.SetOutputReport(data[0], data[1:])
}

type inputResult struct {
	id   byte
	data []byte
	err  error
}

func (d *usbDevice) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The library read has no cancellation hook. A cancelled read
	// leaves the call running; its report is dropped when it lands.
	ch := make(chan inputResult, 1)
	go func() {
		id, buf, err := d.dev.GetInputReport()
		ch <- inputResult{id: id, data: buf, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return append([]byte{res.id}, res.data...), nil
	}
}

func (d *usbDevice) GetFeatureReport(reportID byte, length int) ([]byte, error) {
	buf, err := d.dev.GetFeatureReport(reportID)
	if err != nil {
		return nil, err
	}
	if length > 0 && len(buf) > length {
		buf = buf[:length]
	}
	return buf, nil
}

func (d *usbDevice) SetFeatureReport(reportID byte, data []byte) error {
	return d.dev.SetFeatureReport(reportID, data)
}

func (d *usbDevice) Info() Info {
	return d.info
}

func (d *usbDevice) Close() error {
	return d.dev.Close()
}

// Compile-time interface satisfaction check.
var _ Device = (*usbDevice)(nil)
