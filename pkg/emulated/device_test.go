package emulated

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratchet-hid/ratchet-go/pkg/hid"
)

// TestNewDeviceFactoryReports verifies a fresh device exposes the full
// report set with factory contents.
func TestNewDeviceFactoryReports(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	info := dev.Info()
	assert.Equal(t, hid.BusVirtual, info.Bus)
	assert.Equal(t, uint16(VendorID), info.VendorID)
	assert.Equal(t, uint16(0x0001), info.ProductID)
	assert.Equal(t, "Nibbler Optical", info.Product)
	assert.NotEmpty(t, info.Path)

	data, err := dev.GetFeatureReport(reportVersion, versionReportMax)
	require.NoError(t, err)
	rec, err := versionSchema.Decode(data)
	require.NoError(t, err)

	major, _ := rec.Uint("fw_major")
	minor, _ := rec.Uint("fw_minor")
	patch, _ := rec.Uint("fw_patch")
	assert.Equal(t, []uint64{1, 4, 2}, []uint64{major, minor, patch})
	profiles, _ := rec.Uint("profile_count")
	assert.Equal(t, uint64(2), profiles)
	active, _ := rec.Uint("active_profile")
	assert.Equal(t, uint64(0), active)
	diag, _ := rec.Get("diag")
	assert.Equal(t, "boot ok", diag)

	for p := 0; p < 2; p++ {
		_, err := dev.GetFeatureReport(byte(reportProfile+p), profileSchema.MinSize())
		assert.NoError(t, err, "profile report %d", p)
		_, err = dev.GetFeatureReport(byte(reportButtons+p), buttonSchema.MinSize())
		assert.NoError(t, err, "button report %d", p)
	}
	for slot := 0; slot < 2*buttonCount; slot++ {
		_, err := dev.GetFeatureReport(byte(reportMacro+slot), macroSchema.MinSize())
		assert.NoError(t, err, "macro slot %d", slot)
	}

	// A third profile does not exist on the two-profile model.
	_, err = dev.GetFeatureReport(byte(reportProfile+2), profileSchema.MinSize())
	assert.Error(t, err)
}

// TestSetFeatureReportValidatesChecksum verifies the firmware rejects
// writes whose trailing checksum does not match.
func TestSetFeatureReportValidatesChecksum(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	good := mustEncode(profileSchema, factoryProfileRecord())
	require.NoError(t, dev.SetFeatureReport(reportProfile, good))
	assert.Equal(t, 1, dev.WriteCount(reportProfile))

	bad := append([]byte(nil), good...)
	bad[6] ^= 0xff // corrupt a dpi byte, leave the checksum alone
	err := dev.SetFeatureReport(reportProfile, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Equal(t, 1, dev.WriteCount(reportProfile))
}

// TestSetFeatureReportRejectsBadWrites verifies length, report ID and
// writability checks.
func TestSetFeatureReportRejectsBadWrites(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	err := dev.SetFeatureReport(reportProfile, []byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 26")

	err = dev.SetFeatureReport(reportVersion, make([]byte, 8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not writable")

	err = dev.SetFeatureReport(0x7f, make([]byte, 4))
	assert.Error(t, err)
}

// TestProfileSelect verifies switching the active profile updates the
// version report and emits an input notification.
func TestProfileSelect(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	require.NoError(t, dev.SetFeatureReport(reportSelect, []byte{1}))
	assert.Equal(t, 1, dev.ActiveProfile())

	data, err := dev.GetFeatureReport(reportVersion, versionReportMax)
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[versionActiveOffset])

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	report, err := dev.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{reportInput, inputProfileSwitched, 1}, report)

	err = dev.SetFeatureReport(reportSelect, []byte{5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile 5")
}

// TestWriteRoutesToReportStore verifies output reports take the same
// validation path as feature writes.
func TestWriteRoutesToReportStore(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	data := mustEncode(buttonSchema, factoryButtonRecord())
	require.NoError(t, dev.Write(append([]byte{reportButtons}, data...)))
	assert.Equal(t, 1, dev.WriteCount(reportButtons))

	assert.Error(t, dev.Write(nil))
}

// TestFailNextWrites verifies write failure injection is consumed per
// write.
func TestFailNextWrites(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	dev.FailNextWrites(1)
	data := mustEncode(profileSchema, factoryProfileRecord())

	err := dev.SetFeatureReport(reportProfile, data)
	assert.ErrorIs(t, err, ErrInjectedFailure)
	assert.NoError(t, dev.SetFeatureReport(reportProfile, data))
}

// TestFailNextReads verifies read failure injection.
func TestFailNextReads(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	dev.FailNextReads(1)
	_, err := dev.GetFeatureReport(reportVersion, versionReportMax)
	assert.ErrorIs(t, err, ErrInjectedFailure)

	_, err = dev.GetFeatureReport(reportVersion, versionReportMax)
	assert.NoError(t, err)
}

// TestDisconnect verifies a disconnected device fails everything with
// hid.ErrClosed.
func TestDisconnect(t *testing.T) {
	dev := NewDevice(Config{})
	dev.Disconnect()

	_, err := dev.GetFeatureReport(reportVersion, versionReportMax)
	assert.ErrorIs(t, err, hid.ErrClosed)

	err = dev.SetFeatureReport(reportSelect, []byte{0})
	assert.ErrorIs(t, err, hid.ErrClosed)

	_, err = dev.Read(context.Background())
	assert.ErrorIs(t, err, hid.ErrClosed)

	// Close after disconnect is still fine.
	assert.NoError(t, dev.Close())
}

// TestReadDeliversPushedInput verifies Read wakes up for queued input
// reports.
func TestReadDeliversPushedInput(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	go func() {
		time.Sleep(20 * time.Millisecond)
		dev.PushInput([]byte{reportInput, 0x7a})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	report, err := dev.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{reportInput, 0x7a}, report)
}

// TestReadHonorsContext verifies cancellation unblocks a pending Read.
func TestReadHonorsContext(t *testing.T) {
	dev := NewDevice(Config{})
	defer func() { _ = dev.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := dev.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
