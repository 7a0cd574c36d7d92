package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// fakeHandle is a hid.Device that only carries identity.
type fakeHandle struct {
	info hid.Info
}

func (h *fakeHandle) Write(data []byte) error { return nil }

func (h *fakeHandle) Read(ctx context.Context) ([]byte, error) { return nil, nil }

func (h *fakeHandle) GetFeatureReport(reportID byte, length int) ([]byte, error) { return nil, nil }

func (h *fakeHandle) SetFeatureReport(reportID byte, data []byte) error { return nil }

func (h *fakeHandle) Info() hid.Info { return h.info }

func (h *fakeHandle) Close() error { return nil }

// stubDriver records the probe it receives and returns a scripted
// result.
type stubDriver struct {
	name string

	probed   bool
	gotDesc  *devicedb.Description
	gotPath  string
	device   *model.Device
	probeErr error
}

func (d *stubDriver) Name() string { return d.name }

func (d *stubDriver) Probe(ctx context.Context, handle hid.Device, desc *devicedb.Description, opts Options) (*model.Device, error) {
	d.probed = true
	d.gotDesc = desc
	d.gotPath = handle.Info().Path
	return d.device, d.probeErr
}

func validDevice(t *testing.T) *model.Device {
	t.Helper()

	dev := model.NewDevice(nil, &model.DeviceSettings{Name: "Test Mouse", Path: "/dev/hidraw0"})
	_, err := model.NewProfile(dev, 0, &model.ProfileSettings{Enabled: true, Active: true})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return dev
}

func testDescription(driver string) *devicedb.Description {
	return &devicedb.Description{
		Name:    "Test Mouse",
		Driver:  driver,
		Matches: []devicedb.DeviceMatch{{Bus: hid.BusUSB, VendorID: 0x4e42, ProductID: 0x0001}},
	}
}

func TestRegistryRegisterLookup(t *testing.T) {
	reg := NewRegistry()
	drv := &stubDriver{name: "nibbler"}

	if err := reg.Register(drv); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Lookup("nibbler")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != Driver(drv) {
		t.Error("Lookup returned a different driver")
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&stubDriver{name: "nibbler"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := reg.Register(&stubDriver{name: "nibbler"})
	if !errors.Is(err, ErrDuplicateDriver) {
		t.Errorf("second Register error = %v, want ErrDuplicateDriver", err)
	}
}

func TestRegistryUnknownName(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup("hidpp20")
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Lookup error = %v, want ErrUnknownDriver", err)
	}
	if err != nil && !strings.Contains(err.Error(), "hidpp20") {
		t.Errorf("Lookup error %q should name the driver", err)
	}
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"sinowealth", "nibbler", "asus"} {
		if err := reg.Register(&stubDriver{name: name}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	names := reg.Names()
	want := []string{"asus", "nibbler", "sinowealth"}
	if len(names) != len(want) {
		t.Fatalf("Names returned %d entries, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestProbeDevice(t *testing.T) {
	reg := NewRegistry()
	drv := &stubDriver{name: "nibbler", device: validDevice(t)}
	if err := reg.Register(drv); err != nil {
		t.Fatalf("Register: %v", err)
	}

	handle := &fakeHandle{info: hid.Info{Path: "/dev/hidraw3"}}
	desc := testDescription("nibbler")

	dev, err := reg.ProbeDevice(context.Background(), handle, desc, Options{})
	if err != nil {
		t.Fatalf("ProbeDevice: %v", err)
	}
	if dev != drv.device {
		t.Error("ProbeDevice returned a different device")
	}
	if !drv.probed {
		t.Error("driver was not probed")
	}
	if drv.gotDesc != desc {
		t.Error("driver did not receive the description")
	}
	if drv.gotPath != "/dev/hidraw3" {
		t.Errorf("driver probed path %q, want /dev/hidraw3", drv.gotPath)
	}
}

func TestProbeDeviceUnknownDriver(t *testing.T) {
	reg := NewRegistry()

	handle := &fakeHandle{info: hid.Info{Path: "/dev/hidraw0"}}
	_, err := reg.ProbeDevice(context.Background(), handle, testDescription("hidpp10"), Options{})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("ProbeDevice error = %v, want ErrUnknownDriver", err)
	}
}

func TestProbeDeviceWrapsDriverError(t *testing.T) {
	reg := NewRegistry()
	probeErr := fmt.Errorf("feature report timeout")
	if err := reg.Register(&stubDriver{name: "nibbler", probeErr: probeErr}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	handle := &fakeHandle{info: hid.Info{Path: "/dev/hidraw5"}}
	_, err := reg.ProbeDevice(context.Background(), handle, testDescription("nibbler"), Options{})
	if !errors.Is(err, probeErr) {
		t.Fatalf("ProbeDevice error = %v, want wrapped probe error", err)
	}
	for _, part := range []string{"nibbler", "/dev/hidraw5"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("ProbeDevice error %q should mention %q", err, part)
		}
	}
}

func TestProbeDeviceRejectsInvalidTree(t *testing.T) {
	reg := NewRegistry()
	empty := model.NewDevice(nil, &model.DeviceSettings{Name: "Broken"})
	if err := reg.Register(&stubDriver{name: "nibbler", device: empty}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	handle := &fakeHandle{info: hid.Info{Path: "/dev/hidraw0"}}
	_, err := reg.ProbeDevice(context.Background(), handle, testDescription("nibbler"), Options{})
	if err == nil {
		t.Fatal("ProbeDevice accepted a device with no profiles")
	}
	if !strings.Contains(err.Error(), "invalid device tree") {
		t.Errorf("ProbeDevice error = %q, want invalid device tree", err)
	}
}

func TestModelString(t *testing.T) {
	info := hid.Info{Bus: hid.BusUSB, VendorID: 0x4e42, ProductID: 0x0001}
	if got := ModelString(info, 0); got != "usb:4e42:0001:0" {
		t.Errorf("ModelString = %q, want usb:4e42:0001:0", got)
	}

	info = hid.Info{Bus: hid.BusBluetooth, VendorID: 0x046d, ProductID: 0xb01e}
	if got := ModelString(info, 2); got != "bluetooth:046d:b01e:2" {
		t.Errorf("ModelString = %q, want bluetooth:046d:b01e:2", got)
	}
}
