package diag

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// followInterval is the poll delay while waiting for capture growth.
const followInterval = 200 * time.Millisecond

// Filter specifies criteria for filtering capture events. Empty/nil
// fields match all events for that criterion.
type Filter struct {
	// SessionID filters by exact capture session match.
	SessionID string

	// Channel filters by transport path.
	Channel *Channel

	// Direction filters by data flow.
	Direction *Direction

	// Ioctl filters by ioctl request name.
	Ioctl string

	// DeviceName filters by device name.
	DeviceName string

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.SessionID != "" && event.SessionID != f.SessionID {
		return false
	}
	if f.Channel != nil && event.Channel != *f.Channel {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Ioctl != "" && event.Ioctl != f.Ioctl {
		return false
	}
	if f.DeviceName != "" && event.DeviceName != f.DeviceName {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader reads capture events from a CBOR-encoded file. It provides an
// iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that reads all events from the specified
// capture file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the
// filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// NewFollowReader creates a Reader that tails a live capture: instead
// of returning io.EOF at the end of the file, Next waits for more
// events to be appended. When the context ends, Next returns the
// context error.
func NewFollowReader(ctx context.Context, path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(&tailReader{ctx: ctx, f: f}),
		filter:  filter,
	}, nil
}

// tailReader blocks at end of file until more bytes are appended or
// the context ends. The decoder above it never sees EOF on a live
// capture.
type tailReader struct {
	ctx context.Context
	f   *os.File
}

func (t *tailReader) Read(p []byte) (int, error) {
	for {
		n, err := t.f.Read(p)
		if n > 0 || err != io.EOF {
			return n, err
		}
		select {
		case <-t.ctx.Done():
			return 0, t.ctx.Err()
		case <-time.After(followInterval):
		}
	}
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		if r.filter.matches(event) {
			return event, nil
		}
		// Event doesn't match filter, continue to next
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
