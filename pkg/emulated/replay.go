package emulated

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ratchet-hid/ratchet-go/pkg/diag"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
)

// ErrNotRecorded is returned by a ReplayDevice when a request has no
// matching traffic left in the recording.
var ErrNotRecorded = errors.New("not covered by the recording")

// ReplayDevice serves a recorded session back as a hid.Device. Feature
// reads look up the recorded replies by report ID and yield them in
// capture order; feature writes are accepted only if the same buffer
// was written during the recording. Probing one through a driver
// reconstructs the recorded device without the hardware present.
type ReplayDevice struct {
	info hid.Info

	mu            sync.Mutex
	ioctls        map[string]map[string]*replySequence
	conversations map[string][]byte
	closed        bool

	input     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ hid.Device = (*ReplayDevice)(nil)

// NewReplayDevice builds a replay device from a parsed recording.
// Input reports recorded outside a request/reply exchange are queued
// for Read up front.
func NewReplayDevice(rec *diag.Recording) (*ReplayDevice, error) {
	d := &ReplayDevice{
		info:          infoFromAttributes(rec),
		ioctls:        make(map[string]map[string]*replySequence),
		conversations: make(map[string][]byte),
		input:         make(chan []byte, len(rec.Data)+1),
		done:          make(chan struct{}),
	}

	var request []byte
	for i, entry := range rec.Data {
		switch entry.Type {
		case "fd":
			if entry.Tx != nil {
				request = entry.Tx
			}
			if entry.Rx == nil {
				continue
			}
			if request != nil {
				d.conversations[string(request)] = entry.Rx
				request = nil
			} else {
				d.input <- entry.Rx
			}

		case "ioctl":
			if entry.Name == "" || entry.Tx == nil {
				return nil, fmt.Errorf("entry %d: ioctl without name or tx", i)
			}
			byRequest := d.ioctls[entry.Name]
			if byRequest == nil {
				byRequest = make(map[string]*replySequence)
				d.ioctls[entry.Name] = byRequest
			}
			if seq, ok := byRequest[string(entry.Tx)]; ok {
				seq.values = append(seq.values, entry.Rx)
			} else {
				byRequest[string(entry.Tx)] = &replySequence{values: [][]byte{entry.Rx}}
			}

		default:
			return nil, fmt.Errorf("entry %d: unknown type %q", i, entry.Type)
		}
	}
	return d, nil
}

// OpenRecording loads a recording file and builds a replay device from
// it.
func OpenRecording(path string) (*ReplayDevice, error) {
	rec, err := diag.LoadRecording(path)
	if err != nil {
		return nil, err
	}
	return NewReplayDevice(rec)
}

// infoFromAttributes reconstructs the device identity from the
// recording header. A replay device always sits on the virtual bus.
func infoFromAttributes(rec *diag.Recording) hid.Info {
	info := hid.Info{Bus: hid.BusVirtual}
	if v, ok := rec.StringAttr("name"); ok {
		info.Product = v
	}
	if v, ok := rec.StringAttr("path"); ok {
		info.Path = v
	}
	if v, ok := rec.IntAttr("vendor_id"); ok {
		info.VendorID = uint16(v)
	}
	if v, ok := rec.IntAttr("product_id"); ok {
		info.ProductID = uint16(v)
	}
	if v, ok := rec.BytesAttr("report_descriptor"); ok {
		info.ReportDescriptor = v
	}
	return info
}

// replySequence yields the recorded replies for one request. A request
// that always produced the same reply repeats it forever; one with
// differing replies yields them in capture order until exhausted.
type replySequence struct {
	values [][]byte
	idx    int
	same   bool
	final  bool
}

func (s *replySequence) next() ([]byte, bool) {
	if !s.final {
		s.final = true
		s.same = allEqual(s.values)
	}
	if s.same {
		return s.values[0], true
	}
	if s.idx >= len(s.values) {
		return nil, false
	}
	v := s.values[s.idx]
	s.idx++
	return v, true
}

func allEqual(values [][]byte) bool {
	for _, v := range values[1:] {
		if !bytes.Equal(v, values[0]) {
			return false
		}
	}
	return true
}

// Info returns the identity reconstructed from the recording header.
func (d *ReplayDevice) Info() hid.Info {
	return d.info
}

// GetFeatureReport returns the next recorded reply for the report ID.
func (d *ReplayDevice) GetFeatureReport(reportID byte, length int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, hid.ErrClosed
	}

	for request, seq := range d.ioctls["HIDIOCGFEATURE"] {
		if len(request) == 0 || request[0] != reportID {
			continue
		}
		reply, ok := seq.next()
		if !ok {
			return nil, fmt.Errorf("report 0x%02x: replies exhausted: %w", reportID, ErrNotRecorded)
		}
		if len(reply) == 0 {
			// A request captured without a reply replays as the
			// failure it was.
			return nil, fmt.Errorf("report 0x%02x: read failed during recording: %w", reportID, ErrNotRecorded)
		}
		data := reply[1:]
		if len(data) > length {
			data = data[:length]
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		return buf, nil
	}
	return nil, fmt.Errorf("report 0x%02x: %w", reportID, ErrNotRecorded)
}

// SetFeatureReport accepts a write only if the recording contains the
// same buffer for the same report.
func (d *ReplayDevice) SetFeatureReport(reportID byte, data []byte) error {
	key := make([]byte, 0, len(data)+1)
	key = append(key, reportID)
	key = append(key, data...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return hid.ErrClosed
	}
	seq, ok := d.ioctls["HIDIOCSFEATURE"][string(key)]
	if !ok {
		return fmt.Errorf("writing report 0x%02x: %w", reportID, ErrNotRecorded)
	}
	seq.next()
	return nil
}

// Write answers an output report with its recorded reply, queueing the
// reply for Read.
func (d *ReplayDevice) Write(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return hid.ErrClosed
	}
	reply, ok := d.conversations[string(data)]
	if !ok {
		return fmt.Errorf("write % x: %w", data, ErrNotRecorded)
	}
	select {
	case d.input <- reply:
	default:
	}
	return nil
}

// Read blocks until a recorded input report is available, the context
// is cancelled, or the device is closed.
func (d *ReplayDevice) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-d.done:
		return nil, hid.ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, hid.ErrClosed
	case report := <-d.input:
		return report, nil
	}
}

// Close releases the device. Closing twice is allowed.
func (d *ReplayDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}
