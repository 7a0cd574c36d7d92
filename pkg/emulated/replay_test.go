package emulated

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
	"github.com/ratchet-hid/ratchet-go/pkg/driver"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// recordSession probes a factory-fresh Nibbler with a Recorder
// attached, runs fn against the probed device and returns the
// recording path.
func recordSession(t *testing.T, fn func(t *testing.T, dev *model.Device)) string {
	t.Helper()

	hw := NewDevice(Config{})
	t.Cleanup(func() { _ = hw.Close() })

	path := filepath.Join(t.TempDir(), "nibbler.yml")
	info := hw.Info()
	rec, err := diag.NewRecorder(path, diag.DeviceInfo{
		Name:      info.Product,
		Path:      info.Path,
		VendorID:  info.VendorID,
		ProductID: info.ProductID,
	}, diag.Attribute{Name: "report_descriptor", Value: info.ReportDescriptor})
	require.NoError(t, err)

	dev, err := NewDriver().Probe(context.Background(), hid.WithSink(hw, rec), nibblerDescription(), driver.Options{})
	require.NoError(t, err)

	fn(t, dev)
	require.NoError(t, rec.Close())
	return path
}

// TestReplayRebuildsRecordedDevice verifies a probe recording loads
// back into a replay device the driver can probe to the same tree.
func TestReplayRebuildsRecordedDevice(t *testing.T) {
	path := recordSession(t, func(t *testing.T, dev *model.Device) {})

	replay, err := OpenRecording(path)
	require.NoError(t, err)
	defer replay.Close()

	info := replay.Info()
	assert.Equal(t, "Nibbler Optical", info.Product)
	assert.Equal(t, hid.BusVirtual, info.Bus)
	assert.Equal(t, uint16(VendorID), info.VendorID)
	assert.Equal(t, uint16(0x0001), info.ProductID)
	assert.NotEmpty(t, info.ReportDescriptor)

	dev, err := NewDriver().Probe(context.Background(), replay, nibblerDescription(), driver.Options{})
	require.NoError(t, err)

	assert.Equal(t, "1.4.2", dev.FirmwareVersion())
	require.Len(t, dev.Profiles(), 2)
	p0 := dev.Profiles()[0]
	assert.Equal(t, 500, p0.ReportRate())
	assert.Equal(t, model.UniformDPI(800), p0.ActiveResolution().DPI())
	assert.False(t, dev.Dirty())
}

// TestReplayFullSessionLoopback verifies a recorded
// probe/commit/resync session replays end to end: the replayed device
// accepts the same writes and serves the post-commit reads in order.
func TestReplayFullSessionLoopback(t *testing.T) {
	path := recordSession(t, func(t *testing.T, dev *model.Device) {
		res := dev.ActiveProfile().ActiveResolution()
		require.NoError(t, res.SetDPI(model.UniformDPI(1600)))

		tx, err := dev.Commit(context.Background())
		require.NoError(t, err)
		waitCommit(t, tx)
		require.True(t, tx.Succeeded())
		require.NoError(t, dev.Resync(context.Background()))
	})

	replay, err := OpenRecording(path)
	require.NoError(t, err)
	defer replay.Close()

	dev, err := NewDriver().Probe(context.Background(), replay, nibblerDescription(), driver.Options{})
	require.NoError(t, err)
	res := dev.ActiveProfile().ActiveResolution()
	assert.Equal(t, model.UniformDPI(800), res.DPI())

	require.NoError(t, res.SetDPI(model.UniformDPI(1600)))
	tx, err := dev.Commit(context.Background())
	require.NoError(t, err)
	waitCommit(t, tx)
	assert.True(t, tx.Succeeded())

	// The resync picks up the second recorded settings read, taken
	// after the commit.
	require.NoError(t, dev.Resync(context.Background()))
	assert.Equal(t, model.UniformDPI(1600), dev.ActiveProfile().ActiveResolution().DPI())
	assert.False(t, dev.Dirty())
}

// TestReplayDivergentCommitFails verifies a write the recording never
// saw fails the commit and leaves the device dirty.
func TestReplayDivergentCommitFails(t *testing.T) {
	path := recordSession(t, func(t *testing.T, dev *model.Device) {
		res := dev.ActiveProfile().ActiveResolution()
		require.NoError(t, res.SetDPI(model.UniformDPI(1600)))

		tx, err := dev.Commit(context.Background())
		require.NoError(t, err)
		waitCommit(t, tx)
	})

	replay, err := OpenRecording(path)
	require.NoError(t, err)
	defer replay.Close()

	dev, err := NewDriver().Probe(context.Background(), replay, nibblerDescription(), driver.Options{})
	require.NoError(t, err)

	// 2400 was never written during the recorded session.
	require.NoError(t, dev.ActiveProfile().ActiveResolution().SetDPI(model.UniformDPI(2400)))
	tx, err := dev.Commit(context.Background())
	require.NoError(t, err)
	waitCommit(t, tx)
	assert.False(t, tx.Succeeded())
	assert.True(t, dev.Dirty())
}

func TestReplayRejectsUnrecordedRequests(t *testing.T) {
	path := recordSession(t, func(t *testing.T, dev *model.Device) {})

	replay, err := OpenRecording(path)
	require.NoError(t, err)
	defer replay.Close()

	err = replay.SetFeatureReport(byte(reportProfile), make([]byte, profileSchema.MinSize()))
	require.ErrorIs(t, err, ErrNotRecorded)

	_, err = replay.GetFeatureReport(0x7f, 16)
	require.ErrorIs(t, err, ErrNotRecorded)
}

// TestReplayCyclesRepeatedReplies pins the reply ordering: distinct
// replies come back in capture order and run out, an unchanged reply
// repeats forever.
func TestReplayCyclesRepeatedReplies(t *testing.T) {
	rec := &diag.Recording{
		Version: 1,
		Data: []diag.RecordingEntry{
			{Type: "ioctl", Name: "HIDIOCGFEATURE", Tx: []byte{0x42}, Rx: []byte{0x42, 10}},
			{Type: "ioctl", Name: "HIDIOCGFEATURE", Tx: []byte{0x42}, Rx: []byte{0x42, 20}},
			{Type: "ioctl", Name: "HIDIOCGFEATURE", Tx: []byte{0x43}, Rx: []byte{0x43, 7}},
		},
	}
	dev, err := NewReplayDevice(rec)
	require.NoError(t, err)

	first, err := dev.GetFeatureReport(0x42, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{10}, first)

	second, err := dev.GetFeatureReport(0x42, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{20}, second)

	_, err = dev.GetFeatureReport(0x42, 1)
	assert.ErrorIs(t, err, ErrNotRecorded)

	for i := 0; i < 3; i++ {
		data, err := dev.GetFeatureReport(0x43, 1)
		require.NoError(t, err)
		assert.Equal(t, []byte{7}, data, "read %d", i)
	}
}

// TestReplayServesRecordedInputReports verifies loose input reports
// are queued for Read and request/reply pairs replay through Write.
func TestReplayServesRecordedInputReports(t *testing.T) {
	rec := &diag.Recording{
		Version: 1,
		Data: []diag.RecordingEntry{
			{Type: "fd", Rx: []byte{reportInput, inputProfileSwitched, 1}},
			{Type: "fd", Tx: []byte{0x01, 0x02}},
			{Type: "fd", Rx: []byte{0x03, 0x04}},
		},
	}
	dev, err := NewReplayDevice(rec)
	require.NoError(t, err)

	report, err := dev.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{reportInput, inputProfileSwitched, 1}, report)

	require.NoError(t, dev.Write([]byte{0x01, 0x02}))
	reply, err := dev.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x04}, reply)

	require.ErrorIs(t, dev.Write([]byte{0xff}), ErrNotRecorded)
}

func TestReplayRejectsMalformedEntries(t *testing.T) {
	_, err := NewReplayDevice(&diag.Recording{Version: 1, Data: []diag.RecordingEntry{{Type: "socket"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown type "socket"`)

	_, err = NewReplayDevice(&diag.Recording{Version: 1, Data: []diag.RecordingEntry{{Type: "ioctl", Tx: []byte{1}}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ioctl without name")
}

func TestReplayClosedDevice(t *testing.T) {
	dev, err := NewReplayDevice(&diag.Recording{Version: 1})
	require.NoError(t, err)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	_, err = dev.GetFeatureReport(0x01, 8)
	assert.ErrorIs(t, err, hid.ErrClosed)
	_, err = dev.Read(context.Background())
	assert.ErrorIs(t, err, hid.ErrClosed)
}
