//go:build !linux

package hid

import "fmt"

// EnumeratePaths returns no paths on platforms without hidraw.
func EnumeratePaths() ([]string, error) {
	return nil, nil
}

// OpenPath fails on platforms without hidraw support. Use the USB
// backend or an emulated device instead.
func OpenPath(path string) (Device, error) {
	return nil, fmt.Errorf("opening %s: hidraw devices require linux", path)
}
