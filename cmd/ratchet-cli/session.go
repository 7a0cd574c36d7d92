package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
	"github.com/ratchet-hid/ratchet-go/pkg/diag"
	"github.com/ratchet-hid/ratchet-go/pkg/driver"
	"github.com/ratchet-hid/ratchet-go/pkg/emulated"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// sinkFactory creates the capture sink wrapped around one device
// handle. A nil factory disables capture.
type sinkFactory func(info hid.Info) (diag.Sink, error)

// openDevice is one probed device together with its transport handle
// and the database entry that selected the driver.
type openDevice struct {
	Handle hid.Device
	Desc   *devicedb.Description
	Dev    *model.Device

	sink diag.Sink
}

// session owns the devices opened for one tool invocation.
type session struct {
	drivers *driver.Registry
	db      *devicedb.Registry
	logger  *slog.Logger

	devices []*openDevice
}

// openSession builds the driver and database registries and probes
// the configured devices: a recorded device with -replay, the
// in-memory emulated device with -emulated, otherwise every hidraw
// node matching a database entry.
func openSession(ctx context.Context, cfg *Config, logger *slog.Logger, sinks sinkFactory) (*session, error) {
	drivers := driver.NewRegistry()
	if err := drivers.Register(emulated.NewDriver()); err != nil {
		return nil, err
	}

	db := devicedb.NewRegistry()
	db.SetLogger(logger)
	if cfg.DatabaseDir != "" {
		if err := db.LoadDirectory(cfg.DatabaseDir); err != nil {
			return nil, err
		}
	}

	s := &session{drivers: drivers, db: db, logger: logger}

	switch {
	case replayPath != "":
		hw, err := emulated.OpenRecording(replayPath)
		if err != nil {
			return nil, err
		}
		if err := s.attach(ctx, hw, sinks); err != nil {
			hw.Close()
			s.Close()
			return nil, err
		}
	case useEmulated:
		hw := emulated.NewDevice(emulated.Config{})
		if err := s.attach(ctx, hw, sinks); err != nil {
			hw.Close()
			s.Close()
			return nil, err
		}
	default:
		paths, err := hid.EnumeratePaths()
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			handle, err := hid.OpenPath(path)
			if err != nil {
				logger.Debug("skipping device", "path", path, "err", err)
				continue
			}
			info := handle.Info()
			if _, ok := db.Match(info.Bus, info.VendorID, info.ProductID); !ok {
				handle.Close()
				continue
			}
			if err := s.attach(ctx, handle, sinks); err != nil {
				logger.Warn("probe failed", "path", path, "err", err)
				handle.Close()
			}
		}
	}

	if len(s.devices) == 0 {
		s.Close()
		return nil, fmt.Errorf("no supported devices found")
	}
	return s, nil
}

// attach wraps the handle in its capture sink, matches it against the
// database and probes it through the selected driver.
func (s *session) attach(ctx context.Context, handle hid.Device, sinks sinkFactory) error {
	info := handle.Info()
	desc, ok := s.db.Match(info.Bus, info.VendorID, info.ProductID)
	if !ok {
		return fmt.Errorf("no database entry for %s", info.Path)
	}

	var sink diag.Sink
	if sinks != nil {
		var err error
		sink, err = sinks(info)
		if err != nil {
			return err
		}
		handle = hid.WithSink(handle, sink)
	}

	dev, err := s.drivers.ProbeDevice(ctx, handle, desc, driver.Options{Logger: s.logger, Sink: sink})
	if err != nil {
		closeSink(sink)
		return err
	}

	s.devices = append(s.devices, &openDevice{Handle: handle, Desc: desc, Dev: dev, sink: sink})
	return nil
}

// find resolves a device argument: a list index, a device path, or a
// case-insensitive name.
func (s *session) find(key string) (*openDevice, error) {
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n < len(s.devices) {
		return s.devices[n], nil
	}
	for _, od := range s.devices {
		if od.Dev.Path() == key || strings.EqualFold(od.Dev.Name(), key) {
			return od, nil
		}
	}
	return nil, fmt.Errorf("no device %q (try 'list')", key)
}

// Close closes every probed device and its capture sink.
func (s *session) Close() {
	for _, od := range s.devices {
		od.Handle.Close()
		closeSink(od.sink)
	}
	s.devices = nil
}

func closeSink(sink diag.Sink) {
	if c, ok := sink.(io.Closer); ok {
		c.Close()
	}
}
