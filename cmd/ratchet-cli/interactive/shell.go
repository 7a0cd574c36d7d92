// Package interactive provides the readline shell for ratchet-cli.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
	"github.com/ratchet-hid/ratchet-go/pkg/inspect"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// commitTimeout bounds how long the commit command waits for the
// driver.
const commitTimeout = 10 * time.Second

// Target is one probed device the shell can drive.
type Target struct {
	Desc *devicedb.Description
	Dev  *model.Device
}

// Shell runs the interactive command loop over the probed devices.
type Shell struct {
	rl        *readline.Instance
	targets   []Target
	current   int
	formatter *inspect.Formatter

	watching atomic.Bool
}

// New creates the shell. The first target starts selected.
func New(targets []Target) (*Shell, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no devices to drive")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ratchet> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("creating readline: %w", err)
	}

	s := &Shell{
		rl:        rl,
		targets:   targets,
		formatter: inspect.NewFormatter(),
	}
	for i := range targets {
		target := targets[i]
		target.Dev.OnEvent(func(ev model.Event) {
			s.handleEvent(target, ev)
		})
	}
	return s, nil
}

// Stdout returns a writer that coordinates with the prompt. Route log
// output here while the shell runs.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns the prompt-coordinated error writer.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run starts the command loop. It returns when the user exits or the
// context ends.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "list", "ls":
			s.cmdList()

		case "use", "u":
			s.cmdUse(args)

		case "show", "s":
			s.cmdShow(args)

		case "dpi":
			s.cmdDPI(args)

		case "rate":
			s.cmdRate(args)

		case "button", "b":
			s.cmdButton(args)

		case "led":
			s.cmdLed(args)

		case "enable":
			s.cmdEnable(args, true)

		case "disable":
			s.cmdEnable(args, false)

		case "active":
			s.cmdActive(args)

		case "default":
			s.cmdDefault(args)

		case "commit", "c":
			s.cmdCommit(ctx)

		case "resync":
			s.cmdResync(ctx)

		case "status":
			s.cmdStatus()

		case "watch", "w":
			s.cmdWatch()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Ratchet Commands:
  Devices:
    list               - List devices
    use <n>            - Select device n
    show [yaml]        - Show the selected device (optionally as YAML)
    status             - Show dirty state and commit counters

  Settings (staged until commit):
    dpi <p> <r> <value>   - Set resolution r of profile p (800 or 1600x800)
    rate <p> <hz>         - Set the report rate of profile p
    button <p> <b> <act>  - Bind button b: none, button <n>,
                            special <name>, macro [name] +K -K t<ms>
    led <p> <l> <mode> [#rrggbb] [brightness]
                          - Set led l: off, on, cycle, breathing
    enable <p>            - Enable profile p
    disable <p>           - Disable profile p
    active <p>            - Make profile p active
    default <p>           - Make profile p the default

  Hardware:
    commit             - Write staged changes to the device
    resync             - Drop staged changes, re-read the hardware
    watch              - Toggle event printing

  General:
    help               - Show this help
    quit               - Exit`)
}

// dev returns the selected device.
func (s *Shell) dev() *model.Device {
	return s.targets[s.current].Dev
}

// profile resolves a profile index argument on the selected device.
func (s *Shell) profile(arg string) (*model.Profile, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid profile index %q\n", arg)
		return nil, false
	}
	p, err := s.dev().Profile(n)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return nil, false
	}
	return p, true
}

func (s *Shell) cmdList() {
	for i, target := range s.targets {
		marker := " "
		if i == s.current {
			marker = "*"
		}
		fmt.Fprintf(s.rl.Stdout(), "%s %d: %s\n", marker, i, s.formatter.Summary(target.Dev.Snapshot()))
	}
}

func (s *Shell) cmdUse(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: use <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= len(s.targets) {
		fmt.Fprintf(s.rl.Stdout(), "No device %s (0..%d)\n", args[0], len(s.targets)-1)
		return
	}
	s.current = n
	fmt.Fprintf(s.rl.Stdout(), "Using %s\n", s.dev().Name())
}

func (s *Shell) cmdShow(args []string) {
	snap := s.dev().Snapshot()
	if len(args) > 0 && strings.EqualFold(args[0], "yaml") {
		out, err := inspect.FormatYAML(snap)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
		fmt.Fprint(s.rl.Stdout(), out)
		return
	}
	fmt.Fprint(s.rl.Stdout(), s.formatter.FormatDevice(snap))
}

func (s *Shell) cmdDPI(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: dpi <profile> <resolution> <value>")
		return
	}
	p, ok := s.profile(args[0])
	if !ok {
		return
	}
	ri, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid resolution index %q\n", args[1])
		return
	}
	res, err := p.Resolution(ri)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	dpi, err := model.ParseDPI(args[2])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := res.SetDPI(dpi); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Staged dpi %s (commit to write)\n", dpi)
}

func (s *Shell) cmdRate(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: rate <profile> <hz>")
		return
	}
	p, ok := s.profile(args[0])
	if !ok {
		return
	}
	hz, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid report rate %q\n", args[1])
		return
	}
	if err := p.SetReportRate(hz); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Staged %d Hz (commit to write)\n", hz)
}

func (s *Shell) cmdButton(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: button <profile> <button> none|button <n>|special <name>|macro [name] <events>")
		return
	}
	p, ok := s.profile(args[0])
	if !ok {
		return
	}
	bi, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid button index %q\n", args[1])
		return
	}
	btn, err := p.Button(bi)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	action, err := parseAction(args[2:])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := btn.SetAction(action); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Staged %s (commit to write)\n", action)
}

// parseAction parses the shell's button action grammar.
func parseAction(args []string) (model.Action, error) {
	switch args[0] {
	case "none":
		return model.ActionNone{}, nil

	case "button":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: button <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid button number %q", args[1])
		}
		return model.ActionButton{Button: n}, nil

	case "special":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: special <name>")
		}
		fn, err := model.ParseSpecialFunction(args[1])
		if err != nil {
			return nil, err
		}
		return model.ActionSpecial{Special: fn}, nil

	case "macro":
		rest := args[1:]
		var name string
		if len(rest) > 0 && strings.HasPrefix(rest[0], "[") {
			name = strings.Trim(rest[0], "[]")
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return nil, fmt.Errorf("macro has no events")
		}
		events, err := model.ParseMacro(strings.Join(rest, " "))
		if err != nil {
			return nil, err
		}
		return model.ActionMacro{Name: name, Events: events}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", args[0])
	}
}

func (s *Shell) cmdLed(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: led <profile> <led> <mode> [#rrggbb] [brightness]")
		return
	}
	p, ok := s.profile(args[0])
	if !ok {
		return
	}
	li, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid led index %q\n", args[1])
		return
	}
	led, err := p.Led(li)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	mode, err := model.ParseLedMode(args[2])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := led.SetMode(mode); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	for _, arg := range args[3:] {
		if strings.HasPrefix(arg, "#") {
			color, err := model.ParseColor(arg)
			if err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
				return
			}
			if err := led.SetColor(color); err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
				return
			}
			continue
		}
		brightness, err := strconv.Atoi(arg)
		if err != nil || brightness < 0 || brightness > 255 {
			fmt.Fprintf(s.rl.Stdout(), "Invalid brightness %q (0-255)\n", arg)
			return
		}
		if err := led.SetBrightness(uint8(brightness)); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
	}
	fmt.Fprintln(s.rl.Stdout(), "Staged led change (commit to write)")
}

func (s *Shell) cmdEnable(args []string, enable bool) {
	verb := "enable"
	if !enable {
		verb = "disable"
	}
	if len(args) != 1 {
		fmt.Fprintf(s.rl.Stdout(), "Usage: %s <profile>\n", verb)
		return
	}
	p, ok := s.profile(args[0])
	if !ok {
		return
	}
	if err := p.SetEnabled(enable); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Staged %s of profile %d (commit to write)\n", verb, p.Index())
}

func (s *Shell) cmdActive(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: active <profile>")
		return
	}
	p, ok := s.profile(args[0])
	if !ok {
		return
	}
	if err := p.SetActive(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Staged profile %d activation (commit to write)\n", p.Index())
}

func (s *Shell) cmdDefault(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: default <profile>")
		return
	}
	p, ok := s.profile(args[0])
	if !ok {
		return
	}
	if err := p.SetDefault(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Staged profile %d as default (commit to write)\n", p.Index())
}

func (s *Shell) cmdCommit(ctx context.Context) {
	dev := s.dev()
	if !dev.Dirty() {
		fmt.Fprintln(s.rl.Stdout(), "Nothing to commit")
		return
	}

	tx, err := dev.Commit(ctx)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	select {
	case <-tx.Done():
	case <-time.After(commitTimeout):
		fmt.Fprintf(s.rl.Stdout(), "Commit %s timed out\n", tx.ID())
		return
	case <-ctx.Done():
		return
	}

	if tx.Succeeded() {
		fmt.Fprintf(s.rl.Stdout(), "Committed (seq %d)\n", tx.Seq())
	} else {
		fmt.Fprintf(s.rl.Stdout(), "Commit %s failed, staged changes kept\n", tx.ID())
	}
}

func (s *Shell) cmdResync(ctx context.Context) {
	if err := s.dev().Resync(ctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Resynced from hardware")
}

func (s *Shell) cmdStatus() {
	target := s.targets[s.current]
	dev := target.Dev
	out := s.rl.Stdout()

	fmt.Fprintf(out, "\nDevice: %s\n", dev.Name())
	fmt.Fprintf(out, "  Model:        %s\n", dev.Model())
	fmt.Fprintf(out, "  Firmware:     %s\n", dev.FirmwareVersion())
	fmt.Fprintf(out, "  Driver:       %s\n", target.Desc.Driver)
	fmt.Fprintf(out, "  Seq:          %d\n", dev.Seq())
	fmt.Fprintf(out, "  Disconnected: %v\n", dev.Disconnected())

	dirty := dev.DirtyFeatures()
	fmt.Fprintf(out, "  Dirty:        %d feature(s)\n", len(dirty))
	for _, f := range dirty {
		fmt.Fprintf(out, "    %s\n", featureName(f))
	}
	fmt.Fprintln(out)
}

func (s *Shell) cmdWatch() {
	on := !s.watching.Load()
	s.watching.Store(on)
	if on {
		fmt.Fprintln(s.rl.Stdout(), "Event printing on")
	} else {
		fmt.Fprintln(s.rl.Stdout(), "Event printing off")
	}
}

// handleEvent prints device events while watch mode is on.
func (s *Shell) handleEvent(target Target, ev model.Event) {
	if !s.watching.Load() {
		return
	}
	out := s.rl.Stdout()

	switch ev.Type {
	case model.EventFeatureChanged:
		fmt.Fprintf(out, "event [%s]: %s %s changed\n", target.Dev.Name(), featureName(ev.Feature), ev.Attr)
	case model.EventCommitComplete:
		outcome := "ok"
		if !ev.Success {
			outcome = "failed"
		}
		fmt.Fprintf(out, "event [%s]: commit %s %s (seq %d)\n", target.Dev.Name(), ev.TransactionID, outcome, ev.Seq)
	case model.EventResynced:
		fmt.Fprintf(out, "event [%s]: resynced (seq %d)\n", target.Dev.Name(), ev.Seq)
	case model.EventDisconnected:
		fmt.Fprintf(out, "event [%s]: disconnected\n", target.Dev.Name())
	}
}

// featureName renders a short position description of a feature.
func featureName(f model.Feature) string {
	switch v := f.(type) {
	case *model.Profile:
		return fmt.Sprintf("profile %d", v.Index())
	case *model.Resolution:
		return fmt.Sprintf("profile %d resolution %d", v.Profile().Index(), v.Index())
	case *model.Button:
		return fmt.Sprintf("profile %d button %d", v.Profile().Index(), v.Index())
	case *model.Led:
		return fmt.Sprintf("profile %d led %d", v.Profile().Index(), v.Index())
	case nil:
		return "device"
	default:
		return fmt.Sprintf("feature %d", f.Index())
	}
}
