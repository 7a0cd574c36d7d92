package hid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kernel limits from hidraw.h.
const (
	hidMaxDescriptorSize = 4096
	hidMaxBufferSize     = 16384
)

// readBufSize bounds a single input report.
const readBufSize = 4096

// ioctl request encoding per asm-generic/ioctl.h.
const (
	iocWrite uintptr = 1
	iocRead  uintptr = 2

	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

// hidraw ioctl requests, 'H' command set.
func hidiocgrdescsize() uintptr { return ioc(iocRead, 'H', 0x01, 4) }
func hidiocgrdesc() uintptr {
	return ioc(iocRead, 'H', 0x02, unsafe.Sizeof(hidrawReportDescriptor{}))
}
func hidiocgrawinfo() uintptr         { return ioc(iocRead, 'H', 0x03, unsafe.Sizeof(hidrawDevinfo{})) }
func hidiocgrawname(size int) uintptr { return ioc(iocRead, 'H', 0x04, uintptr(size)) }
func hidiocsfeature(size int) uintptr { return ioc(iocRead|iocWrite, 'H', 0x06, uintptr(size)) }
func hidiocgfeature(size int) uintptr { return ioc(iocRead|iocWrite, 'H', 0x07, uintptr(size)) }

// hidraw_devinfo from hidraw.h.
type hidrawDevinfo struct {
	Bustype uint32
	Vendor  int16
	Product int16
}

// hidraw_report_descriptor from hidraw.h.
type hidrawReportDescriptor struct {
	Size  uint32
	Value [hidMaxDescriptorSize]byte
}

// hidrawDevice is the Linux hidraw backend.
type hidrawDevice struct {
	file *os.File
	info Info

	mu     sync.Mutex
	closed bool
}

// EnumeratePaths lists the hidraw device nodes present on the system.
func EnumeratePaths() ([]string, error) {
	return filepath.Glob("/dev/hidraw*")
}

// OpenPath opens a hidraw character device and queries its identity
// and report descriptor.
func OpenPath(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d := &hidrawDevice{file: f}
	if err := d.queryInfo(path); err != nil {
		f.Close()
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	return d, nil
}

// ioctl issues a request through the raw connection so the file stays
// registered with the runtime poller and read deadlines keep working.
func (d *hidrawDevice) ioctl(req uintptr, arg unsafe.Pointer) (int, error) {
	conn, err := d.file.SyscallConn()
	if err != nil {
		return 0, err
	}

	var n int
	var ioctlErr error
	ctrlErr := conn.Control(func(fd uintptr) {
		r, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
		if errno != 0 {
			ioctlErr = errno
			return
		}
		n = int(r)
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return n, ioctlErr
}

func (d *hidrawDevice) queryInfo(path string) error {
	var devinfo hidrawDevinfo
	if _, err := d.ioctl(hidiocgrawinfo(), unsafe.Pointer(&devinfo)); err != nil {
		return fmt.Errorf("HIDIOCGRAWINFO: %w", err)
	}

	name := make([]byte, 256)
	if _, err := d.ioctl(hidiocgrawname(len(name)), unsafe.Pointer(&name[0])); err != nil {
		return fmt.Errorf("HIDIOCGRAWNAME: %w", err)
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	var descSize int32
	if _, err := d.ioctl(hidiocgrdescsize(), unsafe.Pointer(&descSize)); err != nil {
		return fmt.Errorf("HIDIOCGRDESCSIZE: %w", err)
	}
	desc := hidrawReportDescriptor{Size: uint32(descSize)}
	if _, err := d.ioctl(hidiocgrdesc(), unsafe.Pointer(&desc)); err != nil {
		return fmt.Errorf("HIDIOCGRDESC: %w", err)
	}

	d.info = Info{
		Path:             path,
		Bus:              BusType(devinfo.Bustype),
		VendorID:         uint16(devinfo.Vendor),
		ProductID:        uint16(devinfo.Product),
		Product:          string(name),
		ReportDescriptor: append([]byte(nil), desc.Value[:descSize]...),
	}
	return nil
}

func (d *hidrawDevice) Write(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty report")
	}
	if len(data) > hidMaxBufferSize {
		return ErrReportTooLarge
	}
	if d.isClosed() {
		return ErrClosed
	}

	_, err := d.file.Write(data)
	if errors.Is(err, os.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (d *hidrawDevice) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.isClosed() {
		return nil, ErrClosed
	}

	// Clear any deadline left behind by an earlier cancellation.
	_ = d.file.SetReadDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		_ = d.file.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, readBufSize)
	n, err := d.file.Read(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, os.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return buf[:n], nil
}

func (d *hidrawDevice) GetFeatureReport(reportID byte, length int) ([]byte, error) {
	if length < 0 || length+1 > hidMaxBufferSize {
		return nil, ErrReportTooLarge
	}
	if d.isClosed() {
		return nil, ErrClosed
	}

	// The kernel buffer carries the report ID in the first byte.
	buf := make([]byte, length+1)
	buf[0] = reportID
	n, err := d.ioctl(hidiocgfeature(len(buf)), unsafe.Pointer(&buf[0]))
	if err != nil {
		return nil, fmt.Errorf("HIDIOCGFEATURE: %w", err)
	}
	if n > len(buf) {
		n = len(buf)
	}
	if n < 1 {
		return []byte{}, nil
	}
	return buf[1:n], nil
}

func (d *hidrawDevice) SetFeatureReport(reportID byte, data []byte) error {
	if len(data)+1 > hidMaxBufferSize {
		return ErrReportTooLarge
	}
	if d.isClosed() {
		return ErrClosed
	}

	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, reportID)
	buf = append(buf, data...)
	if _, err := d.ioctl(hidiocsfeature(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return fmt.Errorf("HIDIOCSFEATURE: %w", err)
	}
	return nil
}

func (d *hidrawDevice) Info() Info {
	return d.info
}

func (d *hidrawDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *hidrawDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true
	return d.file.Close()
}

// Compile-time interface satisfaction check.
var _ Device = (*hidrawDevice)(nil)
