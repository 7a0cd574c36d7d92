package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents int
	TotalBytes  int
	Truncated   int

	EventsByChannel   map[diag.Channel]int
	EventsByDirection map[diag.Direction]int
	Ioctls            map[string]int

	Sessions map[string]*SessionStats

	TimeRange struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds per-capture-session statistics.
type SessionStats struct {
	Device    string
	Events    int
	Bytes     int
	FirstSeen time.Time
	LastSeen  time.Time
}

// CollectStats reads the whole capture and aggregates it.
func CollectStats(path string) (*Stats, error) {
	reader, err := diag.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByChannel:   make(map[diag.Channel]int),
		EventsByDirection: make(map[diag.Direction]int),
		Ioctls:            make(map[string]int),
		Sessions:          make(map[string]*SessionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading capture: %w", err)
		}

		stats.TotalEvents++
		stats.TotalBytes += event.Size
		if event.Truncated {
			stats.Truncated++
		}
		stats.EventsByChannel[event.Channel]++
		stats.EventsByDirection[event.Direction]++
		if event.Ioctl != "" {
			stats.Ioctls[event.Ioctl]++
		}

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		session, ok := stats.Sessions[event.SessionID]
		if !ok {
			session = &SessionStats{Device: event.DeviceName, FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			stats.Sessions[event.SessionID] = session
		}
		session.Events++
		session.Bytes += event.Size
		if event.Timestamp.Before(session.FirstSeen) {
			session.FirstSeen = event.Timestamp
		}
		if event.Timestamp.After(session.LastSeen) {
			session.LastSeen = event.Timestamp
		}
		if session.Device == "" {
			session.Device = event.DeviceName
		}
	}

	return stats, nil
}

// RunStats analyzes the capture file and prints the statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Events:    %d (%d bytes", stats.TotalEvents, stats.TotalBytes)
	if stats.Truncated > 0 {
		fmt.Fprintf(w, ", %d truncated", stats.Truncated)
	}
	fmt.Fprintln(w, ")")

	if stats.TotalEvents == 0 {
		return nil
	}

	duration := stats.TimeRange.End.Sub(stats.TimeRange.Start)
	fmt.Fprintf(w, "Duration:  %s (%s to %s)\n",
		duration.Round(time.Millisecond),
		stats.TimeRange.Start.Format("15:04:05.000"),
		stats.TimeRange.End.Format("15:04:05.000"))

	fmt.Fprintln(w, "\nBy channel:")
	for _, ch := range []diag.Channel{diag.ChannelReport, diag.ChannelIoctl} {
		if n := stats.EventsByChannel[ch]; n > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", ch, n)
		}
	}

	fmt.Fprintln(w, "\nBy direction:")
	for _, dir := range []diag.Direction{diag.DirectionRx, diag.DirectionTx} {
		if n := stats.EventsByDirection[dir]; n > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", dir, n)
		}
	}

	if len(stats.Ioctls) > 0 {
		fmt.Fprintln(w, "\nIoctls:")
		names := make([]string, 0, len(stats.Ioctls))
		for name := range stats.Ioctls {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-20s %d\n", name, stats.Ioctls[name])
		}
	}

	fmt.Fprintf(w, "\nSessions (%d):\n", len(stats.Sessions))
	ids := make([]string, 0, len(stats.Sessions))
	for id := range stats.Sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		session := stats.Sessions[id]
		fmt.Fprintf(w, "  %s\n", id)
		if session.Device != "" {
			fmt.Fprintf(w, "    device: %s\n", session.Device)
		}
		fmt.Fprintf(w, "    events: %d (%d bytes) over %s\n",
			session.Events, session.Bytes,
			session.LastSeen.Sub(session.FirstSeen).Round(time.Millisecond))
	}

	return nil
}
