package model

import (
	"errors"
	"testing"
)

// newTestDevice builds a two-profile device resembling a small gaming
// mouse: three resolutions, four buttons and two leds per profile.
func newTestDevice(t *testing.T, backend DriverBackend) *Device {
	t.Helper()

	dev := NewDevice(backend, &DeviceSettings{
		Name:  "Nibbler Optical",
		Path:  "/dev/hidraw3",
		Model: "usb:4e42:0001:0",
	})

	for i := 0; i < 2; i++ {
		p, err := NewProfile(dev, i, &ProfileSettings{
			Capabilities: []ProfileCapability{ProfileCapSetDefault, ProfileCapDisable},
			ReportRate:   500,
			ReportRates:  []int{125, 250, 500, 1000},
			Enabled:      true,
			Active:       i == 0,
			Default:      i == 0,
		})
		if err != nil {
			t.Fatalf("NewProfile(%d) failed: %v", i, err)
		}

		for j := 0; j < 3; j++ {
			_, err := NewResolution(p, j, &ResolutionSettings{
				DPI:          UniformDPI(800),
				DPIList:      []uint32{400, 800, 1600, 3200},
				Capabilities: []ResolutionCapability{ResolutionCapSeparateXY},
				Enabled:      true,
				Active:       j == 0,
				Default:      j == 0,
			})
			if err != nil {
				t.Fatalf("NewResolution(%d) failed: %v", j, err)
			}
		}

		for j := 0; j < 4; j++ {
			_, err := NewButton(p, j, &ButtonSettings{
				Action: ActionButton{Button: j + 1},
				Types: []ActionType{
					ActionTypeNone, ActionTypeButton, ActionTypeSpecial,
				},
			})
			if err != nil {
				t.Fatalf("NewButton(%d) failed: %v", j, err)
			}
		}

		for j := 0; j < 2; j++ {
			_, err := NewLed(p, j, &LedSettings{
				Color:      Color{R: 255},
				Brightness: 200,
				ColorDepth: ColorDepthRGB888,
				Mode:       LedOn,
				Modes:      []LedMode{LedOff, LedOn, LedBreathing},
			})
			if err != nil {
				t.Fatalf("NewLed(%d) failed: %v", j, err)
			}
		}
	}

	if err := dev.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return dev
}

func TestPopulationIsClean(t *testing.T) {
	dev := newTestDevice(t, nil)

	if dev.Dirty() {
		t.Error("freshly populated device is dirty")
	}
	if got := len(dev.DirtyFeatures()); got != 0 {
		t.Errorf("DirtyFeatures() = %d features, want 0", got)
	}
	if dev.ActiveProfile() == nil || dev.ActiveProfile().Index() != 0 {
		t.Error("active profile not profile 0")
	}
}

func TestDuplicateIndexes(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, err := dev.Profile(0)
	if err != nil {
		t.Fatalf("Profile(0) failed: %v", err)
	}

	if _, err := NewProfile(dev, 0, &ProfileSettings{Enabled: true}); !errors.Is(err, ErrDuplicateIndex) {
		t.Errorf("duplicate profile error = %v, want ErrDuplicateIndex", err)
	}
	if _, err := NewResolution(p, 1, &ResolutionSettings{DPI: UniformDPI(400)}); !errors.Is(err, ErrDuplicateIndex) {
		t.Errorf("duplicate resolution error = %v, want ErrDuplicateIndex", err)
	}
	if _, err := NewButton(p, 0, &ButtonSettings{}); !errors.Is(err, ErrDuplicateIndex) {
		t.Errorf("duplicate button error = %v, want ErrDuplicateIndex", err)
	}
	if _, err := NewLed(p, 0, &LedSettings{}); !errors.Is(err, ErrDuplicateIndex) {
		t.Errorf("duplicate led error = %v, want ErrDuplicateIndex", err)
	}
}

func TestSecondActiveProfileRejected(t *testing.T) {
	dev := NewDevice(nil, &DeviceSettings{Name: "test"})

	if _, err := NewProfile(dev, 0, &ProfileSettings{Enabled: true, Active: true}); err != nil {
		t.Fatalf("NewProfile(0) failed: %v", err)
	}
	if _, err := NewProfile(dev, 1, &ProfileSettings{Enabled: true, Active: true}); err == nil {
		t.Error("second active profile accepted")
	}
}

func TestSetReportRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    int
		wantErr error
	}{
		{name: "supported rate", rate: 1000},
		{name: "unsupported rate", rate: 333, wantErr: ErrCapability},
		{name: "zero rate", rate: 0, wantErr: ErrCapability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t, nil)
			p, _ := dev.Profile(0)

			err := p.SetReportRate(tt.rate)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetReportRate(%d) = %v, want %v", tt.rate, err, tt.wantErr)
				}
				if p.Dirty() {
					t.Error("failed setter marked profile dirty")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetReportRate(%d) failed: %v", tt.rate, err)
			}
			if p.ReportRate() != tt.rate {
				t.Errorf("ReportRate() = %d, want %d", p.ReportRate(), tt.rate)
			}
			if !p.Dirty() {
				t.Error("successful setter did not mark profile dirty")
			}
		})
	}
}

func TestSetReportRateNoop(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, _ := dev.Profile(0)

	if err := p.SetReportRate(500); err != nil {
		t.Fatalf("SetReportRate(500) failed: %v", err)
	}
	if p.Dirty() {
		t.Error("setting the current rate marked the profile dirty")
	}
}

func TestProfileEnableDisable(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, _ := dev.Profile(1)

	if err := p.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled(false) failed: %v", err)
	}
	if p.Enabled() {
		t.Error("profile still enabled")
	}

	// A profile without the disable capability must reject the change.
	bare := NewDevice(nil, &DeviceSettings{Name: "bare"})
	q, err := NewProfile(bare, 0, &ProfileSettings{Enabled: true, Active: true})
	if err != nil {
		t.Fatalf("NewProfile failed: %v", err)
	}
	if err := q.SetEnabled(false); !errors.Is(err, ErrCapability) {
		t.Errorf("SetEnabled without capability = %v, want ErrCapability", err)
	}
}

func TestSetActiveProfile(t *testing.T) {
	dev := newTestDevice(t, nil)
	p0, _ := dev.Profile(0)
	p1, _ := dev.Profile(1)

	if err := p1.SetActive(); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	if p0.Active() {
		t.Error("profile 0 still active")
	}
	if !p1.Active() {
		t.Error("profile 1 not active")
	}
	if !p0.Dirty() || !p1.Dirty() {
		t.Error("profile switch did not dirty both profiles")
	}
	if dev.ActiveProfile() != p1 {
		t.Error("ActiveProfile() did not follow the switch")
	}

	// Re-activating is a no-op.
	before := len(dev.DirtyFeatures())
	if err := p1.SetActive(); err != nil {
		t.Fatalf("repeated SetActive failed: %v", err)
	}
	if got := len(dev.DirtyFeatures()); got != before {
		t.Errorf("repeated SetActive changed dirty set: %d -> %d", before, got)
	}
}

func TestSetDefaultProfile(t *testing.T) {
	dev := newTestDevice(t, nil)
	p0, _ := dev.Profile(0)
	p1, _ := dev.Profile(1)

	if err := p1.SetDefault(); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if p0.Default() {
		t.Error("profile 0 still default")
	}
	if !p1.Default() {
		t.Error("profile 1 not default")
	}

	bare := NewDevice(nil, &DeviceSettings{Name: "bare"})
	q, err := NewProfile(bare, 0, &ProfileSettings{Enabled: true, Active: true})
	if err != nil {
		t.Fatalf("NewProfile failed: %v", err)
	}
	if err := q.SetDefault(); !errors.Is(err, ErrCapability) {
		t.Errorf("SetDefault without capability = %v, want ErrCapability", err)
	}
}

func TestSetDPI(t *testing.T) {
	tests := []struct {
		name    string
		dpi     DPI
		wantErr error
	}{
		{name: "uniform value from list", dpi: UniformDPI(1600)},
		{name: "separate axes from list", dpi: DPI{X: 400, Y: 1600}},
		{name: "value not in list", dpi: UniformDPI(900), wantErr: ErrCapability},
		{name: "one axis not in list", dpi: DPI{X: 400, Y: 500}, wantErr: ErrCapability},
		{name: "zero dpi", dpi: DPI{}, wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t, nil)
			p, _ := dev.Profile(0)
			r, _ := p.Resolution(1)

			err := r.SetDPI(tt.dpi)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetDPI(%s) = %v, want %v", tt.dpi, err, tt.wantErr)
				}
				if r.Dirty() {
					t.Error("failed setter marked resolution dirty")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetDPI(%s) failed: %v", tt.dpi, err)
			}
			if r.DPI() != tt.dpi {
				t.Errorf("DPI() = %s, want %s", r.DPI(), tt.dpi)
			}
			if !r.Dirty() {
				t.Error("successful setter did not mark resolution dirty")
			}
		})
	}
}

func TestSetDPIWithoutSeparateXY(t *testing.T) {
	dev := NewDevice(nil, &DeviceSettings{Name: "test"})
	p, err := NewProfile(dev, 0, &ProfileSettings{Enabled: true, Active: true})
	if err != nil {
		t.Fatalf("NewProfile failed: %v", err)
	}
	r, err := NewResolution(p, 0, &ResolutionSettings{
		DPI:     UniformDPI(800),
		DPIList: []uint32{400, 800, 1600},
		Enabled: true,
		Active:  true,
	})
	if err != nil {
		t.Fatalf("NewResolution failed: %v", err)
	}

	if err := r.SetDPI(DPI{X: 400, Y: 1600}); !errors.Is(err, ErrCapability) {
		t.Errorf("separate-xy without capability = %v, want ErrCapability", err)
	}
	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Errorf("uniform dpi rejected: %v", err)
	}
}

func TestSetDPIUnconstrained(t *testing.T) {
	// An empty dpi list means the hardware takes arbitrary values.
	dev := NewDevice(nil, &DeviceSettings{Name: "test"})
	p, err := NewProfile(dev, 0, &ProfileSettings{Enabled: true, Active: true})
	if err != nil {
		t.Fatalf("NewProfile failed: %v", err)
	}
	r, err := NewResolution(p, 0, &ResolutionSettings{
		DPI:     UniformDPI(800),
		Enabled: true,
		Active:  true,
	})
	if err != nil {
		t.Fatalf("NewResolution failed: %v", err)
	}

	if err := r.SetDPI(UniformDPI(12345)); err != nil {
		t.Errorf("SetDPI on unconstrained resolution failed: %v", err)
	}
}

func TestResolutionActiveUnique(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, _ := dev.Profile(0)
	r0, _ := p.Resolution(0)
	r2, _ := p.Resolution(2)

	if err := r2.SetActive(); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	if r0.Active() {
		t.Error("resolution 0 still active")
	}
	if !r2.Active() {
		t.Error("resolution 2 not active")
	}
	if !r0.Dirty() || !r2.Dirty() {
		t.Error("active switch did not dirty both resolutions")
	}
	if p.ActiveResolution() != r2 {
		t.Error("ActiveResolution() did not follow the switch")
	}
}

func TestButtonSetAction(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr error
	}{
		{name: "logical button", action: ActionButton{Button: 2}},
		{name: "special function", action: ActionSpecial{Special: SpecialWheelUp}},
		{name: "disable", action: ActionNone{}},
		{name: "unsupported macro", action: ActionMacro{Events: []MacroEvent{{Type: MacroKeyPress, Value: 4}}}, wantErr: ErrCapability},
		{name: "nil action", action: nil, wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t, nil)
			p, _ := dev.Profile(0)
			b, _ := p.Button(0)

			err := b.SetAction(tt.action)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetAction = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetAction failed: %v", err)
			}
			if b.Action() != tt.action {
				t.Errorf("Action() = %v, want %v", b.Action(), tt.action)
			}
			if !b.Dirty() {
				t.Error("successful SetAction did not mark button dirty")
			}
		})
	}
}

func TestLedSetters(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, _ := dev.Profile(0)
	l, _ := p.Led(0)

	if err := l.SetColor(Color{R: 0, G: 255, B: 128}); err != nil {
		t.Fatalf("SetColor failed: %v", err)
	}
	if l.Color() != (Color{G: 255, B: 128}) {
		t.Errorf("Color() = %v", l.Color())
	}

	if err := l.SetMode(LedBreathing); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if err := l.SetMode(LedCycle); !errors.Is(err, ErrCapability) {
		t.Errorf("SetMode(cycle) = %v, want ErrCapability", err)
	}

	if err := l.SetEffectDuration(5000); err != nil {
		t.Fatalf("SetEffectDuration failed: %v", err)
	}
	if err := l.SetEffectDuration(20000); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("SetEffectDuration(20000) = %v, want ErrInvalidValue", err)
	}
	if err := l.SetEffectDuration(-1); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("SetEffectDuration(-1) = %v, want ErrInvalidValue", err)
	}

	if err := l.SetBrightness(50); err != nil {
		t.Fatalf("SetBrightness failed: %v", err)
	}
	if !l.Dirty() {
		t.Error("led not dirty after changes")
	}
}

func TestChangeEvents(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	var events []Event
	dev.OnEvent(func(ev Event) {
		events = append(events, ev)
	})

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != EventFeatureChanged {
		t.Errorf("event type = %v, want EventFeatureChanged", ev.Type)
	}
	if ev.Attr != "dpi" {
		t.Errorf("event attr = %q, want \"dpi\"", ev.Attr)
	}
	if ev.Feature.(*Resolution) != r {
		t.Error("event feature is not the changed resolution")
	}

	// Listeners observe settled state.
	if got := ev.Feature.(*Resolution).DPI(); got != UniformDPI(1600) {
		t.Errorf("dpi observed in event = %s, want 1600", got)
	}
}

func TestActiveSwitchEventOrder(t *testing.T) {
	dev := newTestDevice(t, nil)
	p1, _ := dev.Profile(1)

	var changed []int
	dev.OnEvent(func(ev Event) {
		if ev.Type == EventFeatureChanged && ev.Attr == "active" {
			changed = append(changed, ev.Feature.Index())
		}
	})

	if err := p1.SetActive(); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	// Deactivation of the old holder is reported before the activation.
	if len(changed) != 2 || changed[0] != 0 || changed[1] != 1 {
		t.Errorf("active change order = %v, want [0 1]", changed)
	}
}

func TestValidate(t *testing.T) {
	t.Run("profile gap", func(t *testing.T) {
		dev := NewDevice(nil, &DeviceSettings{Name: "test"})
		if _, err := NewProfile(dev, 1, &ProfileSettings{Enabled: true, Active: true}); err != nil {
			t.Fatalf("NewProfile failed: %v", err)
		}
		if err := dev.Validate(); err == nil {
			t.Error("Validate accepted a profile gap")
		}
	})

	t.Run("no profiles", func(t *testing.T) {
		dev := NewDevice(nil, &DeviceSettings{Name: "test"})
		if err := dev.Validate(); err == nil {
			t.Error("Validate accepted an empty device")
		}
	})

	t.Run("no active profile", func(t *testing.T) {
		dev := NewDevice(nil, &DeviceSettings{Name: "test"})
		if _, err := NewProfile(dev, 0, &ProfileSettings{Enabled: true}); err != nil {
			t.Fatalf("NewProfile failed: %v", err)
		}
		if err := dev.Validate(); err == nil {
			t.Error("Validate accepted a device without an active profile")
		}
	})

	t.Run("inconsistent feature counts", func(t *testing.T) {
		dev := NewDevice(nil, &DeviceSettings{Name: "test"})
		p0, err := NewProfile(dev, 0, &ProfileSettings{Enabled: true, Active: true})
		if err != nil {
			t.Fatalf("NewProfile(0) failed: %v", err)
		}
		if _, err := NewProfile(dev, 1, &ProfileSettings{Enabled: true}); err != nil {
			t.Fatalf("NewProfile(1) failed: %v", err)
		}
		if _, err := NewButton(p0, 0, &ButtonSettings{}); err != nil {
			t.Fatalf("NewButton failed: %v", err)
		}
		if err := dev.Validate(); err == nil {
			t.Error("Validate accepted inconsistent feature counts")
		}
	})
}

func TestSnapshot(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)
	b, _ := p.Button(1)

	if err := r.SetDPI(UniformDPI(3200)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}
	if err := b.SetAction(ActionSpecial{Special: SpecialResolutionCycleUp}); err != nil {
		t.Fatalf("SetAction failed: %v", err)
	}

	snap := dev.Snapshot()
	if snap.Name != "Nibbler Optical" || snap.Model != "usb:4e42:0001:0" {
		t.Errorf("snapshot identity = %q %q", snap.Name, snap.Model)
	}
	if len(snap.Profiles) != 2 {
		t.Fatalf("snapshot has %d profiles, want 2", len(snap.Profiles))
	}

	ps := snap.Profiles[0]
	if !ps.Active || ps.ReportRate != 500 {
		t.Errorf("profile snapshot = active %v rate %d", ps.Active, ps.ReportRate)
	}
	if len(ps.Resolutions) != 3 || len(ps.Buttons) != 4 || len(ps.Leds) != 2 {
		t.Fatalf("snapshot feature counts = %d/%d/%d", len(ps.Resolutions), len(ps.Buttons), len(ps.Leds))
	}
	if ps.Resolutions[0].DPI != [2]uint32{3200, 3200} || !ps.Resolutions[0].Dirty {
		t.Errorf("resolution snapshot = %+v", ps.Resolutions[0])
	}
	if ps.Buttons[1].Action.Type != "special" || ps.Buttons[1].Action.Special != "resolution-cycle-up" {
		t.Errorf("button snapshot action = %+v", ps.Buttons[1].Action)
	}
	if ps.Leds[0].Mode != "on" || ps.Leds[0].Color != [3]uint8{255, 0, 0} {
		t.Errorf("led snapshot = %+v", ps.Leds[0])
	}
}

func TestRestoreClearsDirty(t *testing.T) {
	dev := newTestDevice(t, nil)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}
	if !r.Dirty() {
		t.Fatal("resolution not dirty after SetDPI")
	}

	r.Restore(&ResolutionSettings{
		DPI:     UniformDPI(800),
		DPIList: []uint32{400, 800, 1600, 3200},
		Enabled: true,
		Active:  true,
	})

	if r.Dirty() {
		t.Error("Restore left the resolution dirty")
	}
	if r.DPI() != UniformDPI(800) {
		t.Errorf("DPI() = %s after Restore, want 800", r.DPI())
	}
}
