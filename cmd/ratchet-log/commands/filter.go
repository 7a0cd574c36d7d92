package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
)

// FilterOptions describe the filter subcommand: match criteria in
// string form plus the output path.
type FilterOptions struct {
	Output    string
	Session   string
	Device    string
	Channel   string
	Direction string
	Ioctl     string
	TimeStart string
	TimeEnd   string
}

// Filter builds the diag filter from the string options.
func (o *FilterOptions) Filter() (diag.Filter, error) {
	filter := diag.Filter{
		SessionID:  o.Session,
		DeviceName: o.Device,
		Ioctl:      o.Ioctl,
	}

	if o.Channel != "" {
		ch, err := ParseChannelFlag(o.Channel)
		if err != nil {
			return diag.Filter{}, err
		}
		filter.Channel = &ch
	}
	if o.Direction != "" {
		dir, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return diag.Filter{}, err
		}
		filter.Direction = &dir
	}
	if o.TimeStart != "" {
		ts, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return diag.Filter{}, fmt.Errorf("invalid time-start: %w", err)
		}
		filter.TimeStart = &ts
	}
	if o.TimeEnd != "" {
		ts, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return diag.Filter{}, fmt.Errorf("invalid time-end: %w", err)
		}
		filter.TimeEnd = &ts
	}
	return filter, nil
}

// RunFilter copies the matching events into a new capture file.
func RunFilter(path string, opts FilterOptions) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := diag.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", opts.Output, err)
	}
	defer out.Close()

	encoder := diag.NewEncoder(out)
	kept := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("writing %s: %w", opts.Output, err)
		}
		kept++
	}

	fmt.Printf("wrote %d event(s) to %s\n", kept, opts.Output)
	return nil
}

// ParseChannelFlag resolves a channel name used on the command line.
func ParseChannelFlag(s string) (diag.Channel, error) {
	switch s {
	case "report":
		return diag.ChannelReport, nil
	case "ioctl":
		return diag.ChannelIoctl, nil
	default:
		return 0, fmt.Errorf("unknown channel %q (report, ioctl)", s)
	}
}

// ParseDirectionFlag resolves a direction name used on the command
// line.
func ParseDirectionFlag(s string) (diag.Direction, error) {
	switch s {
	case "rx":
		return diag.DirectionRx, nil
	case "tx":
		return diag.DirectionTx, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (rx, tx)", s)
	}
}
