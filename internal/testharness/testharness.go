// Package testharness provides shared fixtures for driver and
// integration tests: an emulated device probed into its model tree,
// plus helpers for driving commits to completion and observing device
// events.
package testharness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
	"github.com/ratchet-hid/ratchet-go/pkg/driver"
	"github.com/ratchet-hid/ratchet-go/pkg/emulated"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// Description returns a devicedb entry covering the emulated Nibbler
// family.
func Description() *devicedb.Description {
	return &devicedb.Description{
		Name:   "Nibbler Optical",
		Driver: emulated.DriverName,
		Matches: []devicedb.DeviceMatch{
			{Bus: hid.BusVirtual, VendorID: emulated.VendorID, AnyProduct: true},
		},
	}
}

// Fixture bundles an emulated device with the model tree a probe of it
// produced.
type Fixture struct {
	// HW is the emulated hardware handle.
	HW *emulated.Device

	// Dev is the probed model device.
	Dev *model.Device
}

// New probes a factory-fresh emulated device.
func New(t testing.TB) *Fixture {
	return NewWithConfig(t, emulated.Config{})
}

// NewWithConfig probes an emulated device built from config. The
// hardware handle is closed when the test finishes.
func NewWithConfig(t testing.TB, config emulated.Config) *Fixture {
	t.Helper()

	hw := emulated.NewDevice(config)
	t.Cleanup(func() { _ = hw.Close() })

	dev, err := emulated.NewDriver().Probe(context.Background(), hw, Description(), driver.Options{})
	if err != nil {
		t.Fatalf("probing emulated device: %v", err)
	}
	return &Fixture{HW: hw, Dev: dev}
}

// Commit commits the device's dirty state and waits for the
// transaction to reach a terminal state.
func (f *Fixture) Commit(t testing.TB) *model.Transaction {
	t.Helper()

	tx, err := f.Dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	WaitDone(t, tx)
	return tx
}

// MustCommit is Commit plus a success check.
func (f *Fixture) MustCommit(t testing.TB) *model.Transaction {
	t.Helper()

	tx := f.Commit(t)
	if !tx.Succeeded() {
		t.Fatalf("commit %s failed", tx.ID())
	}
	return tx
}

// WaitDone blocks until the transaction completes.
func WaitDone(t testing.TB, tx *model.Transaction) {
	t.Helper()
	select {
	case <-tx.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("transaction %s did not complete", tx.ID())
	}
}

// EventLog collects device events for later inspection. Safe for use
// from the commit goroutine and the test goroutine.
type EventLog struct {
	mu     sync.Mutex
	events []model.Event
}

// RecordEvents subscribes a fresh EventLog to the device.
func (f *Fixture) RecordEvents() *EventLog {
	log := &EventLog{}
	f.Dev.OnEvent(log.add)
	return log
}

func (l *EventLog) add(ev model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the events recorded so far.
func (l *EventLog) Events() []model.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Event(nil), l.events...)
}

// WaitFor blocks until an event satisfying match has been recorded and
// returns it.
func (l *EventLog) WaitFor(t testing.TB, match func(model.Event) bool) model.Event {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range l.Events() {
			if match(ev) {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for event")
	return model.Event{}
}
