package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
)

func TestViewPrintsHexDump(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	events := []diag.Event{
		{
			Timestamp: ts,
			SessionID: "s-1",
			Channel:   diag.ChannelReport,
			Direction: diag.DirectionTx,
			Size:      4,
			Data:      []byte{0xa1, 0x01, 0x02, 0x03},
		},
	}

	path := createTestCapture(t, events)

	var buf bytes.Buffer
	err := RunView(context.Background(), path, ViewOptions{}, &buf)
	if err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()

	// Check header
	if !strings.Contains(output, "REPORT") {
		t.Errorf("expected REPORT channel, got: %s", output)
	}
	if !strings.Contains(output, "TX") {
		t.Errorf("expected TX direction, got: %s", output)
	}
	if !strings.Contains(output, "4 bytes") {
		t.Errorf("expected payload size, got: %s", output)
	}

	// Check hex dump body
	if !strings.Contains(output, "a1 01 02 03") {
		t.Errorf("expected hex bytes, got: %s", output)
	}
	if !strings.Contains(output, "|....|") {
		t.Errorf("expected ASCII gutter, got: %s", output)
	}
}

func TestViewRelativeTimestamps(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []diag.Event{
		{Timestamp: ts, SessionID: "s-1", Channel: diag.ChannelReport, Direction: diag.DirectionTx, Size: 1, Data: []byte{0x01}},
		{Timestamp: ts.Add(1500 * time.Millisecond), SessionID: "s-1", Channel: diag.ChannelReport, Direction: diag.DirectionRx, Size: 1, Data: []byte{0x02}},
	}

	path := createTestCapture(t, events)

	var buf bytes.Buffer
	err := RunView(context.Background(), path, ViewOptions{}, &buf)
	if err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()

	// Offsets are relative to the first event
	if !strings.Contains(output, "+0.000000") {
		t.Errorf("expected zero offset for first event, got: %s", output)
	}
	if !strings.Contains(output, "+1.500000") {
		t.Errorf("expected 1.5s offset for second event, got: %s", output)
	}
}

func TestViewAbsoluteTimestamps(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	events := []diag.Event{
		{Timestamp: ts, SessionID: "s-1", Channel: diag.ChannelReport, Direction: diag.DirectionTx, Size: 1, Data: []byte{0x01}},
	}

	path := createTestCapture(t, events)

	var buf bytes.Buffer
	err := RunView(context.Background(), path, ViewOptions{Absolute: true}, &buf)
	if err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "10:15:32.123456") {
		t.Errorf("expected wall-clock timestamp, got: %s", output)
	}
	if strings.Contains(output, "+0.000000") {
		t.Errorf("expected no offset timestamp, got: %s", output)
	}
}

func TestViewIoctlHeader(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []diag.Event{
		{
			Timestamp: ts,
			SessionID: "s-1",
			Channel:   diag.ChannelIoctl,
			Direction: diag.DirectionTx,
			Ioctl:     "HIDIOCSFEATURE",
			Size:      2,
			Data:      []byte{0x10, 0x01},
		},
	}

	path := createTestCapture(t, events)

	var buf bytes.Buffer
	err := RunView(context.Background(), path, ViewOptions{}, &buf)
	if err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "IOCTL") {
		t.Errorf("expected IOCTL channel, got: %s", output)
	}
	if !strings.Contains(output, "HIDIOCSFEATURE") {
		t.Errorf("expected ioctl name, got: %s", output)
	}
}

func TestViewTruncatedMarker(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []diag.Event{
		{
			Timestamp: ts,
			SessionID: "s-1",
			Channel:   diag.ChannelReport,
			Direction: diag.DirectionRx,
			Size:      4096,
			Data:      []byte{0x01, 0x02},
			Truncated: true,
		},
	}

	path := createTestCapture(t, events)

	var buf bytes.Buffer
	err := RunView(context.Background(), path, ViewOptions{}, &buf)
	if err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "4096 bytes (truncated)") {
		t.Errorf("expected truncated marker, got: %s", output)
	}
}

func TestViewFilterByDirection(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []diag.Event{
		{Timestamp: ts, SessionID: "s-1", Channel: diag.ChannelReport, Direction: diag.DirectionTx, Size: 1, Data: []byte{0x01}},
		{Timestamp: ts, SessionID: "s-1", Channel: diag.ChannelReport, Direction: diag.DirectionRx, Size: 1, Data: []byte{0x02}},
		{Timestamp: ts, SessionID: "s-1", Channel: diag.ChannelReport, Direction: diag.DirectionTx, Size: 1, Data: []byte{0x03}},
	}

	path := createTestCapture(t, events)

	rx := diag.DirectionRx
	var buf bytes.Buffer
	err := RunView(context.Background(), path, ViewOptions{Filter: diag.Filter{Direction: &rx}}, &buf)
	if err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Count(output, "1 bytes") != 1 {
		t.Errorf("expected exactly one event, got: %s", output)
	}
	if !strings.Contains(output, "RX") {
		t.Errorf("expected RX event, got: %s", output)
	}
	if strings.Contains(output, "TX") {
		t.Errorf("expected no TX events, got: %s", output)
	}
}

func TestViewFollowStopsOnCancel(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []diag.Event{
		{Timestamp: ts, SessionID: "s-1", Channel: diag.ChannelReport, Direction: diag.DirectionTx, Size: 1, Data: []byte{0x01}},
	}

	path := createTestCapture(t, events)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var buf bytes.Buffer
	err := RunView(ctx, path, ViewOptions{Follow: true}, &buf)
	if err != nil {
		t.Fatalf("expected clean stop on cancel, got: %v", err)
	}

	// The existing event is still printed before the tail blocks
	if !strings.Contains(buf.String(), "1 bytes") {
		t.Errorf("expected existing event in output, got: %s", buf.String())
	}
}
