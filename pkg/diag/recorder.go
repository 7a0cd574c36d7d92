package diag

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Entries more than this far apart get a wall-clock comment between
// them.
const stampInterval = 5 * time.Minute

// Attribute is one entry of a recording's attribute header.
type Attribute struct {
	Name  string
	Value any
}

// Recorder writes device traffic as a YAML document that both humans
// and the emulated replay device can consume. The format keeps the
// decimal byte lists machine-readable and carries the hex rendering in
// trailing comments:
//
//	# generated 26-08-23 14:05
//	logger: ratchet-recorder
//	version: 1
//	attributes:
//	  - {name: name, type: str, value: Nibbler Optical}
//	  - {name: path, type: str, value: /dev/hidraw3}
//	data:
//	  - type: fd
//	    tx: [ 16, 255,   0,  24,   0,   0,   0]          # 10 ff 00 18 00 00 00
//	  - type: ioctl
//	    name: HIDIOCGFEATURE
//	    tx: [  5,   1]                                   # 05 01
//	    rx: [  5,   1, 244,   1]                         # 05 01 f4 01
//
// Recorder is safe for concurrent use, but an ioctl tx and its rx
// should be logged without interleaved traffic to keep the pair in one
// entry.
type Recorder struct {
	mu        sync.Mutex
	file      *os.File
	lastStamp time.Time
	closed    bool
}

// NewRecorder creates a recording at the specified path, truncating
// any previous content, and writes the attribute header. Extra
// attributes (like a report descriptor) are appended after the device
// identity.
func NewRecorder(path string, device DeviceInfo, extra ...Attribute) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	r := &Recorder{file: f}

	now := time.Now()
	fmt.Fprintf(f, "# generated %s\n", now.Format("06-01-02 15:04"))
	fmt.Fprintf(f, "logger: ratchet-recorder\n")
	fmt.Fprintf(f, "version: 1\n")
	fmt.Fprintf(f, "attributes:\n")

	attrs := []Attribute{
		{Name: "name", Value: device.Name},
		{Name: "path", Value: device.Path},
	}
	if device.VendorID != 0 || device.ProductID != 0 {
		attrs = append(attrs,
			Attribute{Name: "vendor_id", Value: int(device.VendorID)},
			Attribute{Name: "product_id", Value: int(device.ProductID)},
		)
	}
	attrs = append(attrs, extra...)
	for _, attr := range attrs {
		r.writeAttribute(attr)
	}

	fmt.Fprintf(f, "data:\n")
	r.stampLocked()
	return r, nil
}

func (r *Recorder) writeAttribute(attr Attribute) {
	switch v := attr.Value.(type) {
	case int:
		fmt.Fprintf(r.file, "  - {name: %s, type: int, value: %d}  # %04x\n", attr.Name, v, v)
	case []byte:
		dec := make([]string, 0, len(v))
		for _, b := range v {
			dec = append(dec, fmt.Sprintf("%d", b))
		}
		fmt.Fprintf(r.file, "  - {name: %s, type: bytes, value: [%s]}\n", attr.Name, strings.Join(dec, ", "))
	default:
		fmt.Fprintf(r.file, "  - {name: %s, type: str, value: %v}\n", attr.Name, v)
	}
}

// LogRx records a report read from the device.
func (r *Recorder) LogRx(data []byte) {
	r.logData("rx", data, [][2]string{{"type", "fd"}})
}

// LogTx records a report written to the device.
func (r *Recorder) LogTx(data []byte) {
	r.logData("tx", data, [][2]string{{"type", "fd"}})
}

// LogIoctlTx records the buffer sent with a named ioctl, opening a new
// entry.
func (r *Recorder) LogIoctlTx(name string, data []byte) {
	r.logData("tx", data, [][2]string{{"type", "ioctl"}, {"name", name}})
}

// LogIoctlRx records the buffer returned by an ioctl. The bytes are
// appended to the entry opened by the matching LogIoctlTx.
func (r *Recorder) LogIoctlRx(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.logBytesLocked("    rx: ", data)
}

func (r *Recorder) logData(direction string, data []byte, meta [][2]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.stampLocked()

	for i, kv := range meta {
		if i == 0 {
			fmt.Fprintf(r.file, "  - %s: %s\n", kv[0], kv[1])
		} else {
			fmt.Fprintf(r.file, "    %s: %s\n", kv[0], kv[1])
		}
	}
	r.logBytesLocked(fmt.Sprintf("    %s: ", direction), data)
}

// logBytesLocked writes a byte list in groups of eight decimal values
// with the hex rendering as a trailing comment, continuation lines
// aligned under the opening bracket.
func (r *Recorder) logBytesLocked(prefix string, data []byte) {
	const grouping = 8

	prefix += "["
	pad := strings.Repeat(" ", len(prefix))
	groupWidth := len(prefix) + 40

	for idx := 0; idx < len(data); idx += grouping {
		end := idx + grouping
		if end > len(data) {
			end = len(data)
		}
		chunk := data[idx:end]

		dec := make([]string, 0, len(chunk))
		hex := make([]string, 0, len(chunk))
		for _, v := range chunk {
			dec = append(dec, fmt.Sprintf("%3d", v))
			hex = append(hex, fmt.Sprintf("%02x", v))
		}

		line := prefix + strings.Join(dec, ", ")
		if end == len(data) {
			line += "]"
		} else {
			line += ","
		}
		fmt.Fprintf(r.file, "%-*s  # %s\n", groupWidth, line, strings.Join(hex, " "))
		prefix = pad
	}
}

func (r *Recorder) stampLocked() {
	now := time.Now()
	if now.Sub(r.lastStamp) > stampInterval {
		r.lastStamp = now
		fmt.Fprintf(r.file, "# Current time: %s\n", now.Format("15:04"))
	}
}

// Close closes the recording.
// It is safe to call Close multiple times.
// After Close is called, subsequent events are silently discarded.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	return r.file.Close()
}

// Compile-time interface satisfaction check.
var _ Sink = (*Recorder)(nil)
