// Command ratchet-log is a tool for viewing and analyzing hidraw capture
// files.
//
// Capture files are created by ratchet-cli record or by attaching a
// diag.FileSink to a device handle. Every event in the stream is a raw
// HID exchange: an input report, an output report, or a feature-report
// ioctl.
//
// Usage:
//
//	ratchet-log <command> [flags] <file.rlog>
//
// Commands:
//
//	view     View capture as timestamped hex dumps
//	export   Export capture to JSONL or CSV format
//	filter   Filter capture and write to new file
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View all events
//	ratchet-log view mouse.rlog
//
//	# Tail a live capture
//	ratchet-log view -follow mouse.rlog
//
//	# View only feature-report ioctls
//	ratchet-log view -channel ioctl mouse.rlog
//
//	# Export to JSONL
//	ratchet-log export -format jsonl mouse.rlog
//
//	# Filter by session and save to new file
//	ratchet-log filter -session 9f3c -o filtered.rlog mouse.rlog
//
//	# Show statistics
//	ratchet-log stats mouse.rlog
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ratchet-hid/ratchet-go/cmd/ratchet-log/commands"
)

const usage = `ratchet-log - HID Capture Analyzer

Usage:
  ratchet-log <command> [flags] <file.rlog>

Commands:
  view     View capture as timestamped hex dumps
  export   Export capture to JSONL or CSV format
  filter   Filter capture and write to new file
  stats    Show statistics about the capture

Use "ratchet-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ratchet-log view - View capture as timestamped hex dumps

Usage:
  ratchet-log view [flags] <file.rlog>

Flags:
`)
		fs.PrintDefaults()
	}

	session := fs.String("session", "", "Filter by capture session ID")
	device := fs.String("device", "", "Filter by device name")
	channel := fs.String("channel", "", "Filter by channel (report, ioctl)")
	direction := fs.String("direction", "", "Filter by direction (rx, tx)")
	ioctl := fs.String("ioctl", "", "Filter by ioctl request name")
	follow := fs.Bool("follow", false, "Keep reading as the capture grows")
	absolute := fs.Bool("absolute", false, "Print wall-clock timestamps instead of offsets")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	opts := commands.ViewOptions{
		Follow:   *follow,
		Absolute: *absolute,
	}
	opts.Filter.SessionID = *session
	opts.Filter.DeviceName = *device
	opts.Filter.Ioctl = *ioctl

	if *channel != "" {
		ch, err := commands.ParseChannelFlag(*channel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts.Filter.Channel = &ch
	}

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts.Filter.Direction = &d
	}

	// Ctrl-C ends a follow cleanly
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := commands.RunView(ctx, path, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ratchet-log export - Export capture to JSONL or CSV format

Usage:
  ratchet-log export [flags] <file.rlog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ratchet-log filter - Filter capture and write to new file

Usage:
  ratchet-log filter [flags] <file.rlog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	session := fs.String("session", "", "Filter by capture session ID")
	device := fs.String("device", "", "Filter by device name")
	channel := fs.String("channel", "", "Filter by channel (report, ioctl)")
	direction := fs.String("direction", "", "Filter by direction (rx, tx)")
	ioctl := fs.String("ioctl", "", "Filter by ioctl request name")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	opts := commands.FilterOptions{
		Output:    *output,
		Session:   *session,
		Device:    *device,
		Channel:   *channel,
		Direction: *direction,
		Ioctl:     *ioctl,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
	}

	if err := commands.RunFilter(path, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ratchet-log stats - Show statistics about the capture

Usage:
  ratchet-log stats <file.rlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
