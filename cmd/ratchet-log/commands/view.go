// Package commands implements the ratchet-log subcommands.
package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
)

// ViewOptions select and shape the view output.
type ViewOptions struct {
	// Filter drops events that do not match.
	Filter diag.Filter

	// Follow tails the capture instead of stopping at end of file.
	Follow bool

	// Absolute prints wall-clock timestamps instead of offsets from
	// the first event.
	Absolute bool
}

// RunView prints a capture as timestamped hex dumps. In follow mode it
// keeps printing until the context ends.
func RunView(ctx context.Context, path string, opts ViewOptions, w io.Writer) error {
	var (
		reader *diag.Reader
		err    error
	)
	if opts.Follow {
		reader, err = diag.NewFollowReader(ctx, path, opts.Filter)
	} else {
		reader, err = diag.NewFilteredReader(path, opts.Filter)
	}
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer reader.Close()

	var first time.Time
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// A canceled follow is a clean stop.
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading capture: %w", err)
		}

		if first.IsZero() {
			first = event.Timestamp
		}
		printEvent(w, event, first, opts.Absolute)
	}
}

// printEvent renders one header line plus the payload hex dump.
func printEvent(w io.Writer, event diag.Event, first time.Time, absolute bool) {
	var stamp string
	if absolute {
		stamp = event.Timestamp.Format("15:04:05.000000")
	} else {
		stamp = fmt.Sprintf("+%.6f", event.Timestamp.Sub(first).Seconds())
	}

	header := fmt.Sprintf("%s %s %s", stamp, event.Channel, event.Direction)
	if event.Ioctl != "" {
		header += " " + event.Ioctl
	}
	header += fmt.Sprintf(" %d bytes", event.Size)
	if event.Truncated {
		header += " (truncated)"
	}

	fmt.Fprintln(w, header)
	if len(event.Data) > 0 {
		fmt.Fprint(w, hex.Dump(event.Data))
	}
}
