package devicedb

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ratchet-hid/ratchet-go/pkg/hid"
)

func TestParseDeviceMatch(t *testing.T) {
	tests := []struct {
		in      string
		want    DeviceMatch
		wantErr bool
	}{
		{
			in:   "usb:4e42:0001",
			want: DeviceMatch{Bus: hid.BusUSB, VendorID: 0x4e42, ProductID: 0x0001},
		},
		{
			in:   "usb:4e42:*",
			want: DeviceMatch{Bus: hid.BusUSB, VendorID: 0x4e42, AnyProduct: true},
		},
		{
			in:   "bluetooth:046d:b01e",
			want: DeviceMatch{Bus: hid.BusBluetooth, VendorID: 0x046d, ProductID: 0xb01e},
		},
		{in: "usb:4e42", wantErr: true},
		{in: "usb:4e42:0001:0", wantErr: true},
		{in: "floppy:4e42:0001", wantErr: true},
		{in: "usb:4e4:0001", wantErr: true},
		{in: "usb:4e42:001", wantErr: true},
		{in: "usb:xyzw:0001", wantErr: true},
		{in: "usb:4e42:00*", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeviceMatch(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDeviceMatch(%q) = %+v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDeviceMatch(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDeviceMatch(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeviceMatchCovers(t *testing.T) {
	exact := DeviceMatch{Bus: hid.BusUSB, VendorID: 0x4e42, ProductID: 0x0001}
	if !exact.Covers(hid.BusUSB, 0x4e42, 0x0001) {
		t.Error("exact match does not cover its own triple")
	}
	if exact.Covers(hid.BusUSB, 0x4e42, 0x0002) {
		t.Error("exact match covers a different product")
	}
	if exact.Covers(hid.BusBluetooth, 0x4e42, 0x0001) {
		t.Error("exact match covers a different bus")
	}

	wild := DeviceMatch{Bus: hid.BusUSB, VendorID: 0x4e42, AnyProduct: true}
	if !wild.Covers(hid.BusUSB, 0x4e42, 0x0001) || !wild.Covers(hid.BusUSB, 0x4e42, 0xffff) {
		t.Error("wildcard match does not cover vendor products")
	}
	if wild.Covers(hid.BusUSB, 0x1234, 0x0001) {
		t.Error("wildcard match covers a different vendor")
	}
}

func TestDeviceMatchStringRoundTrip(t *testing.T) {
	for _, s := range []string{"usb:4e42:0001", "usb:4e42:*", "bluetooth:046d:b01e"} {
		m, err := ParseDeviceMatch(s)
		if err != nil {
			t.Fatalf("ParseDeviceMatch(%q) failed: %v", s, err)
		}
		if m.String() != s {
			t.Errorf("String() = %q, want %q", m.String(), s)
		}
	}
}

func TestDeviceMatchYAML(t *testing.T) {
	var matches []DeviceMatch
	doc := "- usb:4e42:0001\n- usb:4e42:*\n"
	if err := yaml.Unmarshal([]byte(doc), &matches); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].ProductID != 0x0001 || matches[1].AnyProduct != true {
		t.Errorf("matches = %+v", matches)
	}

	out, err := yaml.Marshal(matches)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back []DeviceMatch
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal failed: %v", err)
	}
	if len(back) != 2 || back[0] != matches[0] || back[1] != matches[1] {
		t.Errorf("round trip = %+v, want %+v", back, matches)
	}

	var bad []DeviceMatch
	if err := yaml.Unmarshal([]byte("- usb:4e42:zz01\n"), &bad); err == nil {
		t.Error("unmarshal accepted a malformed match string")
	}
}
