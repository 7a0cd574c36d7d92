// Command ratchet-cli configures gaming mice.
//
// The tool discovers supported devices through the device database,
// probes them with the matching driver and exposes their profiles,
// resolutions, buttons and leds for inspection and change. Changes are
// staged locally and written to the hardware in one commit.
//
// Usage:
//
//	ratchet-cli [flags] <command> [args]
//
// Commands:
//
//	list                          List detected devices
//	show <device>                 Show the full device state
//	dpi <device> <value>          Set the active resolution (800 or 1600x800)
//	rate <device> <hz>            Set the active profile's report rate
//	apply <config.yaml> <device>  Apply a configuration document
//	record                        Capture device traffic for analysis and replay
//
// Devices are addressed by list index, device path or name.
//
// Flags:
//
//	-config string      Configuration file path (default ~/.config/ratchet/config.toml)
//	-db string          Device database directory (default: compiled-in table)
//	-emulated           Run against the in-memory emulated device
//	-interactive        Start the interactive shell
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-record-dir string  Directory for capture files
//	-replay string      Run against a device recording instead of hardware
//	-yaml               Print device state as YAML (show)
//
// Examples:
//
//	# List devices, then inspect the first one
//	ratchet-cli list
//	ratchet-cli show 0
//
//	# Set the active resolution to 1600 DPI
//	ratchet-cli dpi 0 1600
//
//	# Try the tool without hardware
//	ratchet-cli -emulated -interactive
//
//	# Re-run a recorded session's device without the hardware
//	ratchet-cli -replay nibbler.yml show 0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ratchet-hid/ratchet-go/cmd/ratchet-cli/interactive"
)

var (
	configPath      string
	dbDir           string
	useEmulated     bool
	interactiveMode bool
	logLevel        string
	recordDir       string
	replayPath      string
	showYAML        bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Configuration file path")
	flag.StringVar(&dbDir, "db", "", "Device database directory")
	flag.BoolVar(&useEmulated, "emulated", false, "Run against the in-memory emulated device")
	flag.BoolVar(&interactiveMode, "interactive", false, "Start the interactive shell")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&recordDir, "record-dir", "", "Directory for capture files")
	flag.StringVar(&replayPath, "replay", "", "Run against a device recording instead of hardware")
	flag.BoolVar(&showYAML, "yaml", false, "Print device state as YAML (show)")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadToolConfig()
	if err != nil {
		log.Fatalf("Loading configuration: %v", err)
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	args := flag.Args()
	if len(args) == 0 && !interactiveMode {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// The record sinks wrap the handles before probing so the capture
	// includes the probe exchange.
	var sinks sinkFactory
	if len(args) > 0 && args[0] == "record" {
		dir := cfg.RecordingDir
		if dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("Creating recording directory: %v", err)
			}
		}
		sinks = recordSinks(dir)
	}

	sess, err := openSession(ctx, cfg, logger, sinks)
	if err != nil {
		log.Fatalf("Opening devices: %v", err)
	}
	defer sess.Close()

	if interactiveMode {
		sh, err := interactive.New(shellTargets(sess))
		if err != nil {
			log.Fatalf("Starting shell: %v", err)
		}
		log.SetOutput(sh.Stdout())
		sh.Run(ctx, cancel)
		log.SetOutput(os.Stderr)
		return
	}

	if err := runCommand(ctx, sess, args); err != nil {
		log.Fatalf("%v", err)
	}
}

// loadToolConfig reads the TOML config and applies flag overrides.
func loadToolConfig() (*Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DatabaseDir = dbDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if recordDir != "" {
		cfg.RecordingDir = recordDir
	}
	return cfg, nil
}

// parseLogLevel maps the config names onto slog levels.
func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// shellTargets adapts the session devices for the interactive shell.
func shellTargets(sess *session) []interactive.Target {
	targets := make([]interactive.Target, 0, len(sess.devices))
	for _, od := range sess.devices {
		targets = append(targets, interactive.Target{Desc: od.Desc, Dev: od.Dev})
	}
	return targets
}
