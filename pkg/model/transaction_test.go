package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubBackend is a driver backend with pluggable commit and resync
// behavior. The default completes every transaction successfully.
type stubBackend struct {
	mu      sync.Mutex
	commits int

	commit func(ctx context.Context, tx *Transaction)
	resync func(ctx context.Context) error
}

func (b *stubBackend) CommitDevice(ctx context.Context, tx *Transaction) {
	b.mu.Lock()
	b.commits++
	fn := b.commit
	b.mu.Unlock()

	if fn != nil {
		fn(ctx, tx)
		return
	}
	_ = tx.Complete(true)
}

func (b *stubBackend) ResyncDevice(ctx context.Context) error {
	if b.resync != nil {
		return b.resync(ctx)
	}
	return nil
}

func (b *stubBackend) commitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commits
}

func waitDone(t *testing.T, tx *Transaction) {
	t.Helper()
	select {
	case <-tx.Done():
	case <-time.After(time.Second):
		t.Fatal("transaction did not complete")
	}
}

func TestCommitSuccess(t *testing.T) {
	backend := &stubBackend{}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}

	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	waitDone(t, tx)

	if !tx.Succeeded() {
		t.Errorf("transaction state = %v, want success", tx.State())
	}
	if tx.Seq() != 1 {
		t.Errorf("Seq() = %d, want 1", tx.Seq())
	}
	if got := tx.WriteSet(); len(got) != 1 || got[0].(*Resolution) != r {
		t.Errorf("WriteSet() = %v, want the changed resolution", got)
	}
	if dev.Dirty() {
		t.Error("device still dirty after successful commit")
	}
}

func TestCommitFailureKeepsDirty(t *testing.T) {
	outcomes := make(chan bool, 2)
	outcomes <- false // first commit fails
	outcomes <- true  // the retry succeeds
	backend := &stubBackend{
		commit: func(_ context.Context, tx *Transaction) {
			_ = tx.Complete(<-outcomes)
		},
	}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}

	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	waitDone(t, tx)

	if tx.State() != TransactionFailure {
		t.Errorf("transaction state = %v, want failure", tx.State())
	}
	if !r.Dirty() {
		t.Error("failed commit cleared the dirty flag")
	}

	// The same changes can be committed again without re-specifying.
	tx2, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("retry Commit failed: %v", err)
	}
	waitDone(t, tx2)
	if !tx2.Succeeded() {
		t.Errorf("retry state = %v, want success", tx2.State())
	}
	if r.Dirty() {
		t.Error("retry did not clear the dirty flag")
	}
}

func TestCommitWriteSetSnapshot(t *testing.T) {
	release := make(chan struct{})
	backend := &stubBackend{
		commit: func(_ context.Context, tx *Transaction) {
			<-release
			_ = tx.Complete(true)
		},
	}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)
	l, _ := p.Led(0)

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}

	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Dirtied mid-flight: not part of the write set, must survive.
	if err := l.SetBrightness(10); err != nil {
		t.Fatalf("SetBrightness failed: %v", err)
	}

	close(release)
	waitDone(t, tx)

	if r.Dirty() {
		t.Error("write set member still dirty after success")
	}
	if !l.Dirty() {
		t.Error("mid-flight change was cleared by an older commit")
	}
	if !dev.Dirty() {
		t.Error("device reported clean despite pending led change")
	}
}

func TestSingleInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &stubBackend{
		commit: func(_ context.Context, tx *Transaction) {
			close(entered)
			<-release
			_ = tx.Complete(true)
		},
	}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}

	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	<-entered

	if tx.State() != TransactionInUse {
		t.Errorf("transaction state = %v, want in-use", tx.State())
	}
	if _, err := dev.Commit(context.Background()); !errors.Is(err, ErrCommitInProgress) {
		t.Errorf("concurrent Commit = %v, want ErrCommitInProgress", err)
	}
	if err := dev.Resync(context.Background()); !errors.Is(err, ErrCommitInProgress) {
		t.Errorf("Resync during commit = %v, want ErrCommitInProgress", err)
	}

	close(release)
	waitDone(t, tx)
}

func TestSequenceNumbers(t *testing.T) {
	backend := &stubBackend{}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)

	tx1, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
	waitDone(t, tx1)

	if err := p.SetReportRate(1000); err != nil {
		t.Fatalf("SetReportRate failed: %v", err)
	}
	tx2, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	waitDone(t, tx2)

	if tx1.Seq() != 1 || tx2.Seq() != 2 {
		t.Errorf("transaction seqs = %d, %d, want 1, 2", tx1.Seq(), tx2.Seq())
	}
	if tx1.ID() == tx2.ID() {
		t.Error("transactions share an ID")
	}

	if err := dev.Resync(context.Background()); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}
	if dev.Seq() != 3 {
		t.Errorf("device seq after resync = %d, want 3", dev.Seq())
	}
}

func TestDoubleCompleteRejected(t *testing.T) {
	backend := &stubBackend{}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	if err := r.SetDPI(UniformDPI(400)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}
	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	waitDone(t, tx)

	if err := tx.Complete(false); !errors.Is(err, ErrTransactionDone) {
		t.Errorf("second Complete = %v, want ErrTransactionDone", err)
	}
	if !tx.Succeeded() {
		t.Error("second Complete changed the terminal state")
	}
}

func TestCommitCleanDevice(t *testing.T) {
	backend := &stubBackend{}
	dev := newTestDevice(t, backend)

	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	waitDone(t, tx)

	if !tx.Succeeded() {
		t.Errorf("clean commit state = %v, want success", tx.State())
	}
	if len(tx.WriteSet()) != 0 {
		t.Errorf("clean commit write set has %d features", len(tx.WriteSet()))
	}
	if backend.commitCount() != 1 {
		t.Errorf("driver invoked %d times, want 1", backend.commitCount())
	}
}

func TestCommitCompleteEvent(t *testing.T) {
	backend := &stubBackend{}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	events := make(chan Event, 8)
	dev.OnEvent(func(ev Event) {
		if ev.Type == EventCommitComplete {
			events <- ev
		}
	})

	if err := r.SetDPI(UniformDPI(3200)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}
	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	waitDone(t, tx)

	select {
	case ev := <-events:
		if !ev.Success {
			t.Error("commit event reported failure")
		}
		if ev.Seq != tx.Seq() {
			t.Errorf("event seq = %d, want %d", ev.Seq, tx.Seq())
		}
		if ev.TransactionID != tx.ID() {
			t.Errorf("event transaction ID = %q, want %q", ev.TransactionID, tx.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("no commit-complete event")
	}
}

func TestOnCompleteAfterTerminal(t *testing.T) {
	backend := &stubBackend{}
	dev := newTestDevice(t, backend)

	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	waitDone(t, tx)

	called := false
	tx.OnComplete(func(*Transaction) { called = true })
	if !called {
		t.Error("OnComplete on a finished transaction was not invoked")
	}
}

func TestResyncRestoresState(t *testing.T) {
	var dev *Device
	backend := &stubBackend{}
	backend.resync = func(context.Context) error {
		p, _ := dev.Profile(0)
		r, _ := p.Resolution(0)
		r.Restore(&ResolutionSettings{
			DPI:          UniformDPI(800),
			DPIList:      []uint32{400, 800, 1600, 3200},
			Capabilities: []ResolutionCapability{ResolutionCapSeparateXY},
			Enabled:      true,
			Active:       true,
		})
		return nil
	}
	dev = newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}

	var resynced []Event
	dev.OnEvent(func(ev Event) {
		if ev.Type == EventResynced {
			resynced = append(resynced, ev)
		}
	})

	if err := dev.Resync(context.Background()); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}

	if r.DPI() != UniformDPI(800) {
		t.Errorf("DPI() after resync = %s, want 800", r.DPI())
	}
	if r.Dirty() {
		t.Error("resync left the resolution dirty")
	}
	if len(resynced) != 1 || resynced[0].Seq != 1 {
		t.Errorf("resync events = %+v, want one with seq 1", resynced)
	}
}

func TestResyncError(t *testing.T) {
	wantErr := errors.New("read failed")
	backend := &stubBackend{
		resync: func(context.Context) error { return wantErr },
	}
	dev := newTestDevice(t, backend)

	var resynced int
	dev.OnEvent(func(ev Event) {
		if ev.Type == EventResynced {
			resynced++
		}
	})

	if err := dev.Resync(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Resync = %v, want wrapped %v", err, wantErr)
	}
	if resynced != 0 {
		t.Error("failed resync emitted a resync event")
	}

	// The device stays usable after a failed resync.
	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit after failed resync: %v", err)
	}
	waitDone(t, tx)
}

func TestDisconnect(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	driverDone := make(chan struct{})
	backend := &stubBackend{
		commit: func(_ context.Context, tx *Transaction) {
			close(entered)
			<-release
			// The transaction was already forced to failure; this
			// late completion must not flip it.
			_ = tx.Complete(true)
			close(driverDone)
		},
	}
	dev := newTestDevice(t, backend)
	p, _ := dev.Profile(0)
	r, _ := p.Resolution(0)

	if err := r.SetDPI(UniformDPI(1600)); err != nil {
		t.Fatalf("SetDPI failed: %v", err)
	}

	var disconnects int
	dev.OnEvent(func(ev Event) {
		if ev.Type == EventDisconnected {
			disconnects++
		}
	})

	tx, err := dev.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	<-entered

	dev.SetDisconnected()
	waitDone(t, tx)

	if tx.Succeeded() {
		t.Error("in-flight transaction survived the disconnect")
	}
	if !r.Dirty() {
		t.Error("forced failure cleared the dirty flag")
	}
	if !dev.Disconnected() {
		t.Error("device not marked disconnected")
	}
	if disconnects != 1 {
		t.Errorf("got %d disconnect events, want 1", disconnects)
	}

	if _, err := dev.Commit(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Commit after disconnect = %v, want ErrDeviceUnavailable", err)
	}
	if err := dev.Resync(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Resync after disconnect = %v, want ErrDeviceUnavailable", err)
	}

	close(release)
	select {
	case <-driverDone:
	case <-time.After(time.Second):
		t.Fatal("driver goroutine did not finish")
	}
	if tx.Succeeded() {
		t.Error("late driver completion flipped the terminal state")
	}
	if !r.Dirty() {
		t.Error("late driver completion cleared the dirty flag")
	}

	// Disconnecting again is a no-op.
	dev.SetDisconnected()
	if disconnects != 1 {
		t.Errorf("repeated SetDisconnected emitted %d events, want 1", disconnects)
	}
}

func TestCommitWithoutBackend(t *testing.T) {
	dev := newTestDevice(t, nil)

	if _, err := dev.Commit(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Errorf("Commit = %v, want ErrNoBackend", err)
	}
	if err := dev.Resync(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Errorf("Resync = %v, want ErrNoBackend", err)
	}
}
