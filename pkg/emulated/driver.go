package emulated

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/ratchet-hid/ratchet-go/pkg/codec"
	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
	"github.com/ratchet-hid/ratchet-go/pkg/driver"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
	"github.com/ratchet-hid/ratchet-go/pkg/version"
)

// DriverName is the name the driver registers under.
const DriverName = "nibbler"

// Driver probes Nibbler-family devices. It is stateless; per-device
// state lives in the backend created by each probe.
type Driver struct{}

var _ driver.Driver = (*Driver)(nil)

// NewDriver returns the nibbler driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns "nibbler".
func (*Driver) Name() string {
	return DriverName
}

// Probe reads the version report and every profile, button map and
// macro slot, and builds the populated device tree.
func (*Driver) Probe(ctx context.Context, handle hid.Device, desc *devicedb.Description, opts driver.Options) (*model.Device, error) {
	b := &backend{handle: handle, logger: opts.Logger}

	data, err := handle.GetFeatureReport(reportVersion, versionReportMax)
	if err != nil {
		return nil, fmt.Errorf("reading version report: %w", err)
	}
	rec, err := versionSchema.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("version report: %w", err)
	}

	profiles := int(uint8Field(rec, "profile_count"))
	if profiles < 1 || profiles > maxProfiles {
		return nil, fmt.Errorf("version report: implausible profile count %d", profiles)
	}
	if want, ok := desc.Option("profiles"); ok {
		if n, err := strconv.Atoi(want); err == nil && n != profiles {
			b.debugLog("device database profile count differs",
				"database", n, "device", profiles)
		}
	}

	fw := version.Version{
		Major: uint16(uint8Field(rec, "fw_major")),
		Minor: uint16(uint8Field(rec, "fw_minor")),
		Patch: uint16(uint8Field(rec, "fw_patch")),
	}
	if want, ok := desc.Option("min-firmware"); ok {
		if minimum, err := version.Parse(want); err == nil && !fw.AtLeast(minimum) {
			b.debugLog("firmware below the database minimum",
				"firmware", fw, "minimum", minimum)
		}
	}

	active := int(uint8Field(rec, "active_profile"))
	if active >= profiles {
		active = 0
	}

	if diag, ok := rec.Get("diag"); ok {
		b.debugLog("device diagnostic", "diag", diag)
	}

	name := desc.Name
	if name == "" {
		name = handle.Info().Product
	}
	dev := model.NewDevice(b, &model.DeviceSettings{
		Name:            name,
		Path:            handle.Info().Path,
		Model:           driver.ModelString(handle.Info(), 0),
		FirmwareVersion: fw.String(),
	})
	b.dev = dev
	b.profiles = profiles
	b.hwActive = active

	for i := 0; i < profiles; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.populateProfile(i, active); err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
	}
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	return dev, nil
}

// backend carries one probed device's driver state. The model
// serializes commits and resyncs, so hwActive needs no lock of its
// own.
type backend struct {
	handle hid.Device
	logger *slog.Logger

	dev      *model.Device
	profiles int
	hwActive int
}

var _ model.DriverBackend = (*backend)(nil)

func (b *backend) debugLog(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func uint8Field(rec *codec.Record, name string) uint8 {
	v, _ := rec.Uint(name)
	return uint8(v)
}

func (b *backend) populateProfile(index, active int) error {
	prof, res, err := b.readProfileSettings(index, active)
	if err != nil {
		return err
	}
	p, err := model.NewProfile(b.dev, index, prof)
	if err != nil {
		return err
	}
	for j, rs := range res {
		if _, err := model.NewResolution(p, j, rs); err != nil {
			return err
		}
	}

	buttons, err := b.readButtonSettings(index)
	if err != nil {
		return err
	}
	for j, bs := range buttons {
		if _, err := model.NewButton(p, j, bs); err != nil {
			return err
		}
	}
	return nil
}

func (b *backend) readProfileSettings(index, active int) (*model.ProfileSettings, []*model.ResolutionSettings, error) {
	data, err := b.handle.GetFeatureReport(byte(reportProfile+index), profileSchema.MinSize())
	if err != nil {
		return nil, nil, fmt.Errorf("reading settings report: %w", err)
	}
	rec, err := profileSchema.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("settings report: %w", err)
	}

	rateIdx := int(uint8Field(rec, "rate_index"))
	if rateIdx >= len(reportRates) {
		rateIdx = defaultRateIndex
	}
	prof := &model.ProfileSettings{
		Capabilities: []model.ProfileCapability{model.ProfileCapDisable},
		ReportRate:   reportRates[rateIdx],
		ReportRates:  append([]int(nil), reportRates...),
		Enabled:      uint8Field(rec, "enabled") != 0,
		Active:       index == active,
	}

	xs, _ := rec.Uints("dpi_x")
	ys, _ := rec.Uints("dpi_y")
	if len(xs) != resolutionCount || len(ys) != resolutionCount {
		return nil, nil, fmt.Errorf("settings report: malformed dpi tables")
	}
	activeRes := int(uint8Field(rec, "active_res"))
	if activeRes >= resolutionCount {
		activeRes = 0
	}
	defaultRes := int(uint8Field(rec, "default_res"))
	if defaultRes >= resolutionCount {
		defaultRes = 0
	}
	disabled := uint8Field(rec, "res_disabled")

	res := make([]*model.ResolutionSettings, resolutionCount)
	for j := range res {
		res[j] = &model.ResolutionSettings{
			DPI:          model.DPI{X: uint32(xs[j]) * dpiQuantum, Y: uint32(ys[j]) * dpiQuantum},
			DPIList:      supportedDPIs(),
			Capabilities: []model.ResolutionCapability{model.ResolutionCapSeparateXY},
			Enabled:      disabled&(1<<j) == 0,
			Active:       j == activeRes,
			Default:      j == defaultRes,
		}
	}
	return prof, res, nil
}

func (b *backend) readButtonSettings(index int) ([]*model.ButtonSettings, error) {
	data, err := b.handle.GetFeatureReport(byte(reportButtons+index), buttonSchema.MinSize())
	if err != nil {
		return nil, fmt.Errorf("reading button report: %w", err)
	}
	rec, err := buttonSchema.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("button report: %w", err)
	}

	raw, _ := rec.Get("actions")
	triples, ok := raw.([][]byte)
	if !ok || len(triples) != buttonCount {
		return nil, fmt.Errorf("button report: malformed action table")
	}

	settings := make([]*model.ButtonSettings, buttonCount)
	for j, triple := range triples {
		action, err := b.decodeAction(triple)
		if err != nil {
			return nil, fmt.Errorf("button %d: %w", j, err)
		}
		settings[j] = &model.ButtonSettings{Action: action, Types: buttonActionTypes()}
	}
	return settings, nil
}

func (b *backend) decodeAction(triple []byte) (model.Action, error) {
	switch triple[0] {
	case actionNone:
		return model.ActionNone{}, nil
	case actionButton:
		return model.ActionButton{Button: int(triple[1])}, nil
	case actionSpecial:
		if s, ok := specialFromCode(triple[1]); ok {
			return model.ActionSpecial{Special: s}, nil
		}
		return model.ActionUnknown{Data: append([]byte(nil), triple...)}, nil
	case actionMacro:
		return b.readMacro(int(triple[1]))
	default:
		return model.ActionUnknown{Data: append([]byte(nil), triple...)}, nil
	}
}

func (b *backend) readMacro(slot int) (model.Action, error) {
	data, err := b.handle.GetFeatureReport(byte(reportMacro+slot), macroSchema.MinSize())
	if err != nil {
		return nil, fmt.Errorf("reading macro slot %d: %w", slot, err)
	}
	rec, err := macroSchema.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("macro slot %d: %w", slot, err)
	}

	nameRaw, _ := rec.Bytes("name")
	raw, _ := rec.Get("events")
	events, ok := raw.([]model.MacroEvent)
	if !ok {
		return nil, fmt.Errorf("macro slot %d: malformed entry table", slot)
	}
	count := int(uint8Field(rec, "count"))
	if count > len(events) {
		count = len(events)
	}
	return model.ActionMacro{
		Name:   string(bytes.TrimRight(nameRaw, "\x00")),
		Events: append([]model.MacroEvent(nil), events[:count]...),
	}, nil
}

// CommitDevice writes every report covered by the transaction's write
// set and completes the transaction. A vanished device additionally
// marks the model disconnected.
func (b *backend) CommitDevice(ctx context.Context, tx *model.Transaction) {
	if err := b.commit(ctx, tx); err != nil {
		b.debugLog("commit failed", "tx", tx.ID(), "error", err)
		if errors.Is(err, hid.ErrClosed) {
			// Unplugged mid-commit; this also fails the transaction.
			tx.Device().SetDisconnected()
			return
		}
		_ = tx.Complete(false)
		return
	}
	_ = tx.Complete(true)
}

// pendingWrites accumulates the reports one profile needs rewritten.
type pendingWrites struct {
	settings bool
	buttons  []*model.Button
}

func (b *backend) commit(ctx context.Context, tx *model.Transaction) error {
	pending := make(map[int]*pendingWrites)
	activate := -1

	get := func(idx int) *pendingWrites {
		pw := pending[idx]
		if pw == nil {
			pw = &pendingWrites{}
			pending[idx] = pw
		}
		return pw
	}
	for _, f := range tx.WriteSet() {
		switch feat := f.(type) {
		case *model.Profile:
			get(feat.Index()).settings = true
			if feat.Active() {
				activate = feat.Index()
			}
		case *model.Resolution:
			get(feat.Profile().Index()).settings = true
		case *model.Button:
			pw := get(feat.Profile().Index())
			pw.buttons = append(pw.buttons, feat)
		}
	}

	for _, idx := range sortedProfileIndexes(pending) {
		if err := ctx.Err(); err != nil {
			return err
		}
		pw := pending[idx]
		if len(pw.buttons) > 0 {
			if err := b.writeButtons(idx, pw.buttons); err != nil {
				return fmt.Errorf("profile %d: %w", idx, err)
			}
		}
		if pw.settings {
			if err := b.writeProfile(idx); err != nil {
				return fmt.Errorf("profile %d: %w", idx, err)
			}
		}
	}

	if activate >= 0 && activate != b.hwActive {
		if err := b.handle.SetFeatureReport(reportSelect, []byte{byte(activate)}); err != nil {
			return fmt.Errorf("selecting profile %d: %w", activate, err)
		}
		b.hwActive = activate
	}
	return nil
}

// writeButtons rewrites a profile's macro slots and button map. Macro
// slots go first so the map never references a stale slot.
func (b *backend) writeButtons(index int, dirty []*model.Button) error {
	for _, btn := range dirty {
		m, ok := btn.Action().(model.ActionMacro)
		if !ok {
			continue
		}
		slot := macroSlot(index, btn.Index())
		data, err := encodeMacro(slot, m)
		if err != nil {
			return fmt.Errorf("button %d: %w", btn.Index(), err)
		}
		if err := b.handle.SetFeatureReport(byte(reportMacro+slot), data); err != nil {
			return fmt.Errorf("writing macro slot %d: %w", slot, err)
		}
	}

	p, err := b.dev.Profile(index)
	if err != nil {
		return err
	}
	data, err := encodeButtons(index, p)
	if err != nil {
		return err
	}
	if err := b.handle.SetFeatureReport(byte(reportButtons+index), data); err != nil {
		return fmt.Errorf("writing button report: %w", err)
	}
	return nil
}

func (b *backend) writeProfile(index int) error {
	p, err := b.dev.Profile(index)
	if err != nil {
		return err
	}
	data, err := encodeProfile(p)
	if err != nil {
		return err
	}
	if err := b.handle.SetFeatureReport(byte(reportProfile+index), data); err != nil {
		return fmt.Errorf("writing settings report: %w", err)
	}
	return nil
}

func encodeProfile(p *model.Profile) ([]byte, error) {
	rateIdx := -1
	for i, rate := range reportRates {
		if rate == p.ReportRate() {
			rateIdx = i
			break
		}
	}
	if rateIdx < 0 {
		return nil, fmt.Errorf("report rate %d is not representable", p.ReportRate())
	}

	var activeRes, defaultRes, disabled uint8
	xs := make([]uint16, resolutionCount)
	ys := make([]uint16, resolutionCount)
	for j, r := range p.Resolutions() {
		if r.Active() {
			activeRes = uint8(j)
		}
		if r.Default() {
			defaultRes = uint8(j)
		}
		if !r.Enabled() {
			disabled |= 1 << j
		}
		dpi := r.DPI()
		xs[j] = uint16(dpi.X / dpiQuantum)
		ys[j] = uint16(dpi.Y / dpiQuantum)
	}

	rec := codec.NewRecord()
	rec.Set("enabled", boolByte(p.Enabled()))
	rec.Set("rate_index", uint8(rateIdx))
	rec.Set("active_res", activeRes)
	rec.Set("default_res", defaultRes)
	rec.Set("res_disabled", disabled)
	rec.Set("dpi_x", xs)
	rec.Set("dpi_y", ys)
	return profileSchema.Encode(rec)
}

func encodeButtons(index int, p *model.Profile) ([]byte, error) {
	triples := make([][]byte, 0, buttonCount)
	for _, btn := range p.Buttons() {
		triple, err := encodeAction(index, btn)
		if err != nil {
			return nil, fmt.Errorf("button %d: %w", btn.Index(), err)
		}
		triples = append(triples, triple)
	}

	rec := codec.NewRecord()
	rec.Set("actions", triples)
	return buttonSchema.Encode(rec)
}

func encodeAction(index int, btn *model.Button) ([]byte, error) {
	switch a := btn.Action().(type) {
	case model.ActionNone:
		return []byte{actionNone, 0, 0}, nil
	case model.ActionButton:
		if a.Button < 0 || a.Button > 0xff {
			return nil, fmt.Errorf("button number %d out of range", a.Button)
		}
		return []byte{actionButton, byte(a.Button), 0}, nil
	case model.ActionSpecial:
		code, ok := codeForSpecial(a.Special)
		if !ok {
			return nil, fmt.Errorf("special function %s is not supported", a.Special)
		}
		return []byte{actionSpecial, code, 0}, nil
	case model.ActionMacro:
		return []byte{actionMacro, byte(macroSlot(index, btn.Index())), 0}, nil
	case model.ActionUnknown:
		if len(a.Data) != 3 {
			return nil, fmt.Errorf("unknown action payload of %d bytes", len(a.Data))
		}
		return append([]byte(nil), a.Data...), nil
	default:
		return nil, fmt.Errorf("action type %s is not supported", btn.Action().Type())
	}
}

func encodeMacro(slot int, m model.ActionMacro) ([]byte, error) {
	if len(m.Events) > maxMacroEvents {
		return nil, fmt.Errorf("macro %q: %d events exceed the %d-entry slot", m.Name, len(m.Events), maxMacroEvents)
	}
	name := m.Name
	if len(name) > macroNameLen {
		name = name[:macroNameLen]
	}

	rec := codec.NewRecord()
	rec.Set("slot", uint8(slot))
	rec.Set("name", []byte(name))
	rec.Set("count", uint8(len(m.Events)))
	rec.Set("events", append([]model.MacroEvent(nil), m.Events...))
	return macroSchema.Encode(rec)
}

// ResyncDevice re-reads every report and restores the model tree to
// the hardware state.
func (b *backend) ResyncDevice(ctx context.Context) error {
	data, err := b.handle.GetFeatureReport(reportVersion, versionReportMax)
	if err != nil {
		return fmt.Errorf("reading version report: %w", err)
	}
	rec, err := versionSchema.Decode(data)
	if err != nil {
		return fmt.Errorf("version report: %w", err)
	}
	active := int(uint8Field(rec, "active_profile"))
	if active >= b.profiles {
		active = 0
	}
	b.hwActive = active

	for i := 0; i < b.profiles; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.restoreProfile(i, active); err != nil {
			return fmt.Errorf("profile %d: %w", i, err)
		}
	}
	return nil
}

func (b *backend) restoreProfile(index, active int) error {
	p, err := b.dev.Profile(index)
	if err != nil {
		return err
	}

	prof, res, err := b.readProfileSettings(index, active)
	if err != nil {
		return err
	}
	p.Restore(prof)
	for j, rs := range res {
		r, err := p.Resolution(j)
		if err != nil {
			return err
		}
		r.Restore(rs)
	}

	buttons, err := b.readButtonSettings(index)
	if err != nil {
		return err
	}
	for j, bs := range buttons {
		btn, err := p.Button(j)
		if err != nil {
			return err
		}
		btn.Restore(bs)
	}
	return nil
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func sortedProfileIndexes(m map[int]*pendingWrites) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
