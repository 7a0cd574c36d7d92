package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Transaction errors.
var (
	ErrTransactionDone  = errors.New("transaction already completed")
	ErrResyncInProgress = errors.New("device resync in progress")
)

// TransactionState is the lifecycle state of a commit exchange.
type TransactionState uint8

const (
	// TransactionNew is a transaction created but not yet handed to
	// the driver.
	TransactionNew TransactionState = 0

	// TransactionInUse is a transaction the driver is writing.
	TransactionInUse TransactionState = 1

	// TransactionSuccess means all writes were applied.
	TransactionSuccess TransactionState = 2

	// TransactionFailure means at least one write did not apply; the
	// write set stays dirty for a retry.
	TransactionFailure TransactionState = 3
)

// String returns the state name.
func (s TransactionState) String() string {
	switch s {
	case TransactionNew:
		return "new"
	case TransactionInUse:
		return "in-use"
	case TransactionSuccess:
		return "success"
	case TransactionFailure:
		return "failure"
	default:
		return fmt.Sprintf("TransactionState(%d)", s)
	}
}

// Transaction captures one commit exchange with the hardware. It is
// created by Device.Commit, handed to the driver backend, and
// completed by the driver exactly once.
type Transaction struct {
	dev *Device

	id  string
	seq uint64

	// Guarded by the device lock.
	state     TransactionState
	writeSet  []Feature
	callbacks []func(*Transaction)

	done chan struct{}
}

// ID returns the transaction's unique identifier.
func (t *Transaction) ID() string {
	return t.id
}

// Seq returns the device sequence number stamped on this transaction.
// Later transactions and resyncs on the same device carry strictly
// larger values.
func (t *Transaction) Seq() uint64 {
	return t.seq
}

// Device returns the device this transaction commits.
func (t *Transaction) Device() *Device {
	return t.dev
}

// State returns the transaction's lifecycle state.
func (t *Transaction) State() TransactionState {
	t.dev.mu.RLock()
	defer t.dev.mu.RUnlock()
	return t.state
}

// Succeeded reports whether the transaction completed successfully.
func (t *Transaction) Succeeded() bool {
	return t.State() == TransactionSuccess
}

// WriteSet returns the features captured as dirty when the transaction
// was created. The driver writes exactly these.
func (t *Transaction) WriteSet() []Feature {
	t.dev.mu.RLock()
	defer t.dev.mu.RUnlock()

	result := make([]Feature, len(t.writeSet))
	copy(result, t.writeSet)
	return result
}

// Done returns a channel closed when the transaction reaches a
// terminal state.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// OnComplete registers a callback invoked when the transaction
// completes. A callback registered after completion is invoked
// immediately.
func (t *Transaction) OnComplete(fn func(*Transaction)) {
	d := t.dev
	d.mu.Lock()
	if t.terminalLocked() {
		d.mu.Unlock()
		fn(t)
		return
	}
	t.callbacks = append(t.callbacks, fn)
	d.mu.Unlock()
}

func (t *Transaction) terminalLocked() bool {
	return t.state == TransactionSuccess || t.state == TransactionFailure
}

// Complete moves the transaction to its terminal state. Drivers call
// it exactly once after attempting all writes. On success the write
// set's dirty flags are cleared; on failure they are left as they are
// so a later commit retries. Completing a finished transaction returns
// ErrTransactionDone.
func (t *Transaction) Complete(success bool) error {
	d := t.dev
	d.mu.Lock()
	if t.terminalLocked() {
		d.mu.Unlock()
		return ErrTransactionDone
	}

	// A disconnect in flight forces failure regardless of the driver's
	// verdict.
	if d.disconnected {
		success = false
	}

	if success {
		t.state = TransactionSuccess
		for _, f := range t.writeSet {
			f.base().dirty = false
		}
	} else {
		t.state = TransactionFailure
	}
	if d.inFlight == t {
		d.inFlight = nil
	}

	callbacks := make([]func(*Transaction), len(t.callbacks))
	copy(callbacks, t.callbacks)
	ev := Event{
		Type:          EventCommitComplete,
		Seq:           t.seq,
		Success:       success,
		TransactionID: t.id,
	}
	d.mu.Unlock()

	close(t.done)
	for _, fn := range callbacks {
		fn(t)
	}
	d.emit(ev)
	return nil
}

// Commit snapshots the device's dirty features into a new Transaction
// and hands it to the driver backend asynchronously. It returns
// without waiting for the hardware; observe completion through the
// transaction's Done channel, OnComplete callbacks, or device events.
//
// Only one transaction may be in flight per device; a second commit
// request fails with ErrCommitInProgress.
func (d *Device) Commit(ctx context.Context) (*Transaction, error) {
	d.mu.Lock()
	if d.disconnected {
		d.mu.Unlock()
		return nil, ErrDeviceUnavailable
	}
	if d.inFlight != nil {
		d.mu.Unlock()
		return nil, ErrCommitInProgress
	}
	if d.resyncing {
		d.mu.Unlock()
		return nil, ErrResyncInProgress
	}
	if d.backend == nil {
		d.mu.Unlock()
		return nil, ErrNoBackend
	}

	d.seq++
	tx := &Transaction{
		dev:      d,
		id:       uuid.NewString(),
		seq:      d.seq,
		state:    TransactionNew,
		writeSet: d.dirtyFeaturesLocked(),
		done:     make(chan struct{}),
	}
	d.inFlight = tx
	backend := d.backend
	d.mu.Unlock()

	go func() {
		d.mu.Lock()
		// A disconnect may have failed the transaction before handoff.
		if tx.state != TransactionNew {
			d.mu.Unlock()
			return
		}
		tx.state = TransactionInUse
		d.mu.Unlock()

		backend.CommitDevice(ctx, tx)
	}()

	return tx, nil
}

// Resync re-reads hardware state through the driver backend, replacing
// local values and dirty flags wholesale. It blocks until the driver
// returns. Resync cannot run while a commit is in flight.
func (d *Device) Resync(ctx context.Context) error {
	d.mu.Lock()
	if d.disconnected {
		d.mu.Unlock()
		return ErrDeviceUnavailable
	}
	if d.inFlight != nil {
		d.mu.Unlock()
		return ErrCommitInProgress
	}
	if d.resyncing {
		d.mu.Unlock()
		return ErrResyncInProgress
	}
	if d.backend == nil {
		d.mu.Unlock()
		return ErrNoBackend
	}
	d.resyncing = true
	d.seq++
	seq := d.seq
	backend := d.backend
	d.mu.Unlock()

	err := backend.ResyncDevice(ctx)

	d.mu.Lock()
	d.resyncing = false
	d.mu.Unlock()

	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}

	d.emit(Event{Type: EventResynced, Seq: seq})
	return nil
}

// SetDisconnected marks the device as gone. Any in-flight transaction
// is forced to failure, and all later commit and resync requests fail
// with ErrDeviceUnavailable. Disconnection is terminal.
func (d *Device) SetDisconnected() {
	d.mu.Lock()
	if d.disconnected {
		d.mu.Unlock()
		return
	}
	d.disconnected = true
	tx := d.inFlight
	d.mu.Unlock()

	if tx != nil {
		// Already-terminal transactions are left alone.
		_ = tx.Complete(false)
	}
	d.emit(Event{Type: EventDisconnected})
}
