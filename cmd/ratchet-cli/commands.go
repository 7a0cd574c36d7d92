package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ratchet-hid/ratchet-go/pkg/batch"
	"github.com/ratchet-hid/ratchet-go/pkg/diag"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/inspect"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// commitTimeout bounds how long a command waits for the driver to
// finish a commit.
const commitTimeout = 10 * time.Second

// runCommand dispatches a non-interactive subcommand.
func runCommand(ctx context.Context, sess *session, args []string) error {
	switch args[0] {
	case "list":
		return cmdList(sess)
	case "show":
		if len(args) != 2 {
			return fmt.Errorf("usage: show <device>")
		}
		return cmdShow(sess, args[1])
	case "dpi":
		if len(args) != 3 {
			return fmt.Errorf("usage: dpi <device> <value>")
		}
		return cmdDPI(ctx, sess, args[1], args[2])
	case "rate":
		if len(args) != 3 {
			return fmt.Errorf("usage: rate <device> <hz>")
		}
		return cmdRate(ctx, sess, args[1], args[2])
	case "apply":
		if len(args) != 3 {
			return fmt.Errorf("usage: apply <config.yaml> <device>")
		}
		return cmdApply(ctx, sess, args[1], args[2])
	case "record":
		return cmdRecord(ctx, sess)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdList(sess *session) error {
	f := inspect.NewFormatter()
	for i, od := range sess.devices {
		fmt.Printf("%d: %s\n", i, f.Summary(od.Dev.Snapshot()))
	}
	return nil
}

func cmdShow(sess *session, key string) error {
	od, err := sess.find(key)
	if err != nil {
		return err
	}

	f := inspect.NewFormatter()
	snap := od.Dev.Snapshot()
	if showYAML {
		out, err := inspect.FormatYAML(snap)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	fmt.Print(f.FormatDevice(snap))
	return nil
}

// cmdDPI sets the DPI of the active resolution of the active profile.
func cmdDPI(ctx context.Context, sess *session, key, value string) error {
	od, err := sess.find(key)
	if err != nil {
		return err
	}
	dpi, err := model.ParseDPI(value)
	if err != nil {
		return err
	}

	profile := od.Dev.ActiveProfile()
	if profile == nil {
		return fmt.Errorf("%s has no active profile", od.Dev.Name())
	}
	res := profile.ActiveResolution()
	if res == nil {
		return fmt.Errorf("%s has no active resolution", od.Dev.Name())
	}
	if err := res.SetDPI(dpi); err != nil {
		return err
	}
	return commitAndWait(ctx, od.Dev)
}

// cmdRate sets the report rate of the active profile.
func cmdRate(ctx context.Context, sess *session, key, value string) error {
	od, err := sess.find(key)
	if err != nil {
		return err
	}
	hz, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid report rate %q", value)
	}

	profile := od.Dev.ActiveProfile()
	if profile == nil {
		return fmt.Errorf("%s has no active profile", od.Dev.Name())
	}
	if err := profile.SetReportRate(hz); err != nil {
		return err
	}
	return commitAndWait(ctx, od.Dev)
}

func cmdApply(ctx context.Context, sess *session, docPath, key string) error {
	od, err := sess.find(key)
	if err != nil {
		return err
	}
	doc, err := batch.Load(docPath)
	if err != nil {
		return err
	}
	if err := batch.Apply(od.Dev, doc, sess.logger); err != nil {
		return err
	}
	if !od.Dev.Dirty() {
		fmt.Println("nothing to commit")
		return nil
	}
	return commitAndWait(ctx, od.Dev)
}

// cmdRecord streams device traffic into the capture files until the
// tool is interrupted. The sinks were attached before probing, so the
// captures include the probe exchange.
func cmdRecord(ctx context.Context, sess *session) error {
	for _, od := range sess.devices {
		fmt.Printf("recording %s\n", od.Dev.Name())
		go pumpInput(ctx, od.Handle)
	}
	fmt.Println("press Ctrl-C to stop")
	<-ctx.Done()
	return nil
}

// pumpInput drains input reports so they reach the capture sink.
func pumpInput(ctx context.Context, handle hid.Device) {
	for {
		if _, err := handle.Read(ctx); err != nil {
			return
		}
	}
}

// recordSinks returns the sink factory for the record subcommand. Each
// device gets a CBOR capture file and a YAML recording in dir; the
// recording can be handed back to -replay.
func recordSinks(dir string) sinkFactory {
	return func(info hid.Info) (diag.Sink, error) {
		stem := fmt.Sprintf("ratchet-%s-%04x-%04x",
			time.Now().Format("20060102-150405"), info.VendorID, info.ProductID)
		device := diag.DeviceInfo{
			Name:      info.Product,
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
		}

		capturePath := filepath.Join(dir, stem+".rlog")
		capture, err := diag.NewFileSink(capturePath, device)
		if err != nil {
			return nil, err
		}

		recordingPath := filepath.Join(dir, stem+".yml")
		recording, err := diag.NewRecorder(recordingPath, device,
			diag.Attribute{Name: "report_descriptor", Value: info.ReportDescriptor})
		if err != nil {
			capture.Close()
			return nil, err
		}

		fmt.Printf("capture file %s\n", capturePath)
		fmt.Printf("recording file %s\n", recordingPath)
		return diag.NewMultiSink(capture, recording), nil
	}
}

// commitAndWait runs one commit against the device and reports the
// outcome.
func commitAndWait(ctx context.Context, dev *model.Device) error {
	tx, err := dev.Commit(ctx)
	if err != nil {
		return err
	}

	select {
	case <-tx.Done():
	case <-time.After(commitTimeout):
		return fmt.Errorf("commit %s timed out", tx.ID())
	case <-ctx.Done():
		return ctx.Err()
	}

	if !tx.Succeeded() {
		return fmt.Errorf("commit %s failed, device state left dirty", tx.ID())
	}
	fmt.Printf("committed (seq %d)\n", tx.Seq())
	return nil
}
