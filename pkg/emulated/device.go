package emulated

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ratchet-hid/ratchet-go/pkg/codec"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// ErrInjectedFailure is returned by operations failed through
// FailNextWrites or FailNextReads.
var ErrInjectedFailure = errors.New("injected failure")

var deviceSeq atomic.Int64

// Config selects the Nibbler product a Device emulates. Zero fields
// fall back to the Nibbler Optical defaults.
type Config struct {
	// Product is the marketing name reported over USB.
	Product string

	// ProductID is the USB product ID.
	ProductID uint16

	// Profiles is the number of onboard profiles, at most 4.
	Profiles int

	// Firmware is the major, minor and patch version bytes.
	Firmware [3]uint8

	// Diag is the free-form diagnostic string appended to the version
	// report.
	Diag string
}

func (c *Config) applyDefaults() {
	if c.Product == "" {
		c.Product = "Nibbler Optical"
	}
	if c.ProductID == 0 {
		c.ProductID = 0x0001
	}
	if c.Profiles <= 0 {
		c.Profiles = 2
	}
	if c.Profiles > maxProfiles {
		c.Profiles = maxProfiles
	}
	if c.Firmware == [3]uint8{} {
		c.Firmware = [3]uint8{1, 4, 2}
	}
	if c.Diag == "" {
		c.Diag = "boot ok"
	}
}

// Device is an in-memory Nibbler. It stores its feature reports as raw
// bytes, validates checksums on every write like the firmware would,
// and supports the fault injection the driver tests need.
type Device struct {
	info hid.Info

	mu         sync.Mutex
	reports    map[byte][]byte
	writes     map[byte]int
	active     int
	profiles   int
	failWrites int
	failReads  int
	closed     bool

	input     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ hid.Device = (*Device)(nil)

// NewDevice creates an emulated Nibbler with factory-default report
// contents.
func NewDevice(config Config) *Device {
	config.applyDefaults()

	d := &Device{
		info: hid.Info{
			Path:      fmt.Sprintf("emulated/nibbler%d", deviceSeq.Add(1)-1),
			Bus:       hid.BusVirtual,
			VendorID:  VendorID,
			ProductID: config.ProductID,
			Product:   config.Product,
			// Generic Desktop / Mouse collection stub.
			ReportDescriptor: []byte{0x05, 0x01, 0x09, 0x02, 0xa1, 0x01, 0xc0},
		},
		reports:  make(map[byte][]byte),
		writes:   make(map[byte]int),
		profiles: config.Profiles,
		input:    make(chan []byte, 16),
		done:     make(chan struct{}),
	}

	d.reports[reportVersion] = mustEncode(versionSchema, versionRecord(config))
	for p := 0; p < config.Profiles; p++ {
		d.reports[byte(reportProfile+p)] = mustEncode(profileSchema, factoryProfileRecord())
		d.reports[byte(reportButtons+p)] = mustEncode(buttonSchema, factoryButtonRecord())
		for b := 0; b < buttonCount; b++ {
			slot := macroSlot(p, b)
			d.reports[byte(reportMacro+slot)] = mustEncode(macroSchema, emptyMacroRecord(slot))
		}
	}
	return d
}

func mustEncode(s *codec.Schema, rec *codec.Record) []byte {
	data, err := s.Encode(rec)
	if err != nil {
		panic(fmt.Sprintf("emulated: encoding factory report: %v", err))
	}
	return data
}

func versionRecord(config Config) *codec.Record {
	rec := codec.NewRecord()
	rec.Set("fw_major", config.Firmware[0])
	rec.Set("fw_minor", config.Firmware[1])
	rec.Set("fw_patch", config.Firmware[2])
	rec.Set("profile_count", uint8(config.Profiles))
	rec.Set("resolution_count", uint8(resolutionCount))
	rec.Set("button_count", uint8(buttonCount))
	rec.Set("active_profile", uint8(0))
	rec.Set("diag", config.Diag)
	return rec
}

func factoryProfileRecord() *codec.Record {
	dpis := []uint16{400 / dpiQuantum, 800 / dpiQuantum, 1600 / dpiQuantum, 3200 / dpiQuantum}

	rec := codec.NewRecord()
	rec.Set("enabled", uint8(1))
	rec.Set("rate_index", uint8(defaultRateIndex))
	rec.Set("active_res", uint8(1))
	rec.Set("default_res", uint8(1))
	rec.Set("res_disabled", uint8(0))
	rec.Set("dpi_x", append([]uint16(nil), dpis...))
	rec.Set("dpi_y", append([]uint16(nil), dpis...))
	return rec
}

func factoryButtonRecord() *codec.Record {
	rec := codec.NewRecord()
	rec.Set("actions", [][]byte{
		{actionButton, 1, 0},
		{actionButton, 2, 0},
		{actionButton, 3, 0},
		{actionSpecial, 0x10, 0}, // resolution-cycle-up
		{actionSpecial, 0x20, 0}, // profile-cycle-up
		{actionNone, 0, 0},
	})
	return rec
}

func emptyMacroRecord(slot int) *codec.Record {
	rec := codec.NewRecord()
	rec.Set("slot", uint8(slot))
	rec.Set("name", []byte{})
	rec.Set("count", uint8(0))
	rec.Set("events", []model.MacroEvent{})
	return rec
}

// Info returns the device identity.
func (d *Device) Info() hid.Info {
	return d.info
}

// ActiveProfile returns the profile the emulated hardware currently
// runs.
func (d *Device) ActiveProfile() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// WriteCount returns how many writes a report has accepted.
func (d *Device) WriteCount(reportID byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[reportID]
}

// FailNextWrites makes the next n report writes fail with
// ErrInjectedFailure.
func (d *Device) FailNextWrites(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWrites = n
}

// FailNextReads makes the next n report reads fail with
// ErrInjectedFailure.
func (d *Device) FailNextReads(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failReads = n
}

// PushInput queues an input report for Read. The report is dropped if
// the queue is full.
func (d *Device) PushInput(report []byte) {
	buf := make([]byte, len(report))
	copy(buf, report)
	select {
	case d.input <- buf:
	default:
	}
}

// Disconnect simulates unplugging the device. All subsequent
// operations fail with hid.ErrClosed. Disconnection is permanent.
func (d *Device) Disconnect() {
	d.shutdown()
}

// Close releases the device. Closing twice is allowed.
func (d *Device) Close() error {
	d.shutdown()
	return nil
}

func (d *Device) shutdown() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.closeOnce.Do(func() { close(d.done) })
}

// Read blocks until an input report is queued, the context is
// cancelled, or the device goes away.
func (d *Device) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-d.done:
		return nil, hid.ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, hid.ErrClosed
	case report := <-d.input:
		return report, nil
	}
}

// Write sends an output report; the first byte is the report ID. The
// emulated firmware treats output and feature writes identically.
func (d *Device) Write(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty report")
	}
	return d.SetFeatureReport(data[0], data[1:])
}

// GetFeatureReport returns up to length bytes of the stored report.
func (d *Device) GetFeatureReport(reportID byte, length int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, hid.ErrClosed
	}
	if d.failReads > 0 {
		d.failReads--
		return nil, fmt.Errorf("report 0x%02x: %w", reportID, ErrInjectedFailure)
	}

	report, ok := d.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("no report 0x%02x", reportID)
	}
	if length < len(report) {
		report = report[:length]
	}
	buf := make([]byte, len(report))
	copy(buf, report)
	return buf, nil
}

// SetFeatureReport validates and stores a report the way the firmware
// would: writable IDs only, exact length, correct trailing checksum.
func (d *Device) SetFeatureReport(reportID byte, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return hid.ErrClosed
	}
	if d.failWrites > 0 {
		d.failWrites--
		return fmt.Errorf("report 0x%02x: %w", reportID, ErrInjectedFailure)
	}
	return d.setReportLocked(reportID, data)
}

func (d *Device) setReportLocked(id byte, data []byte) error {
	rid := int(id)
	switch {
	case rid == reportSelect:
		if len(data) != 1 {
			return fmt.Errorf("select report: %d bytes, want 1", len(data))
		}
		idx := int(data[0])
		if idx >= d.profiles {
			return fmt.Errorf("select report: no profile %d", idx)
		}
		d.active = idx
		d.reports[reportVersion][versionActiveOffset] = data[0]
		d.writes[id]++
		d.pushInputLocked([]byte{reportInput, inputProfileSwitched, data[0]})
		return nil

	case rid >= reportProfile && rid < reportProfile+d.profiles:
		return d.storeCheckedLocked(id, data, profileSchema.MinSize())

	case rid >= reportButtons && rid < reportButtons+d.profiles:
		return d.storeCheckedLocked(id, data, buttonSchema.MinSize())

	case rid >= reportMacro && rid < reportMacro+d.profiles*buttonCount:
		return d.storeCheckedLocked(id, data, macroSchema.MinSize())

	default:
		return fmt.Errorf("report 0x%02x is not writable", id)
	}
}

func (d *Device) storeCheckedLocked(id byte, data []byte, size int) error {
	if len(data) != size {
		return fmt.Errorf("report 0x%02x: %d bytes, want %d", id, len(data), size)
	}
	if !checksumOK(data) {
		return fmt.Errorf("report 0x%02x: checksum mismatch", id)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	d.reports[id] = buf
	d.writes[id]++
	return nil
}

func (d *Device) pushInputLocked(report []byte) {
	select {
	case d.input <- report:
	default:
	}
}
