package commands

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
)

// exportRecord is the flat JSONL form of a capture event. Payloads are
// hex strings so every line stays greppable.
type exportRecord struct {
	Time      string `json:"time"`
	Session   string `json:"session"`
	Channel   string `json:"channel"`
	Direction string `json:"direction"`
	Ioctl     string `json:"ioctl,omitempty"`
	Device    string `json:"device,omitempty"`
	Path      string `json:"path,omitempty"`
	Size      int    `json:"size"`
	Data      string `json:"data,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// RunExport converts a capture file to JSONL or CSV.
func RunExport(path, format, output string) error {
	reader, err := diag.NewReader(path)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format %q (jsonl, csv)", format)
	}
}

func exportJSONL(reader *diag.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}
		if err := encoder.Encode(record(event)); err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
	}
}

func exportCSV(reader *diag.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"time", "session", "channel", "direction", "ioctl", "device", "path", "size", "truncated", "data"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return cw.Error()
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}

		rec := record(event)
		row := []string{
			rec.Time,
			rec.Session,
			rec.Channel,
			rec.Direction,
			rec.Ioctl,
			rec.Device,
			rec.Path,
			strconv.Itoa(rec.Size),
			strconv.FormatBool(rec.Truncated),
			rec.Data,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
}

func record(event diag.Event) exportRecord {
	return exportRecord{
		Time:      event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		Session:   event.SessionID,
		Channel:   event.Channel.String(),
		Direction: event.Direction.String(),
		Ioctl:     event.Ioctl,
		Device:    event.DeviceName,
		Path:      event.DevicePath,
		Size:      event.Size,
		Data:      hex.EncodeToString(event.Data),
		Truncated: event.Truncated,
	}
}
