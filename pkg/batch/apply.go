package batch

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// Apply applies the document to the device through the regular setter
// contract. If the document carries a match list and the device's name
// is not on it, nothing happens and Apply returns nil. Overrides that
// name a profile, resolution or button the device does not have are
// skipped with a warning; a failing setter aborts the whole apply.
func Apply(dev *model.Device, doc *Document, logger *slog.Logger) error {
	if err := doc.validate(); err != nil {
		return err
	}
	if len(doc.Matches) > 0 && !slices.Contains(doc.Matches, dev.Name()) {
		debugLog(logger, "document does not match device", "device", dev.Name())
		return nil
	}

	for i := range doc.Profiles {
		entry := &doc.Profiles[i]
		profile, err := dev.Profile(*entry.Index)
		if err != nil {
			warnLog(logger, "skipping override for missing profile",
				"device", dev.Name(), "profile", *entry.Index)
			continue
		}
		if err := applyProfile(profile, entry, logger); err != nil {
			return fmt.Errorf("profile %d: %w", *entry.Index, err)
		}
	}
	return nil
}

func applyProfile(profile *model.Profile, entry *ProfileEntry, logger *slog.Logger) error {
	if entry.Disable {
		if err := profile.SetEnabled(false); err != nil {
			return err
		}
	}
	if entry.ReportRate != 0 {
		if err := profile.SetReportRate(entry.ReportRate); err != nil {
			return err
		}
	}

	for i := range entry.Resolutions {
		re := &entry.Resolutions[i]
		res, err := profile.Resolution(*re.Index)
		if err != nil {
			warnLog(logger, "skipping override for missing resolution",
				"profile", profile.Index(), "resolution", *re.Index)
			continue
		}
		if re.DPI != nil {
			if err := res.SetDPI(re.DPI.DPI); err != nil {
				return fmt.Errorf("resolution %d: %w", *re.Index, err)
			}
		}
		if re.Disable {
			if err := res.SetEnabled(false); err != nil {
				return fmt.Errorf("resolution %d: %w", *re.Index, err)
			}
		}
	}

	for i := range entry.Buttons {
		be := &entry.Buttons[i]
		btn, err := profile.Button(*be.Index)
		if err != nil {
			warnLog(logger, "skipping override for missing button",
				"profile", profile.Index(), "button", *be.Index)
			continue
		}
		action, err := be.action()
		if err != nil {
			return fmt.Errorf("button %d: %w", *be.Index, err)
		}
		if err := btn.SetAction(action); err != nil {
			return fmt.Errorf("button %d: %w", *be.Index, err)
		}
	}
	return nil
}

func warnLog(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, args...)
}

func debugLog(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Debug(msg, args...)
}
