// Package scenario runs YAML-described device exercises against the
// emulated device. A scenario stages changes through the regular model
// setters, commits them, and checks device state between steps; test
// packages use it for data-driven acceptance coverage of the
// stage-commit lifecycle.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one parsed scenario file.
type Scenario struct {
	// ID is the scenario identifier, e.g. "dpi-change".
	ID string `yaml:"id"`

	// Name is a human-readable summary.
	Name string `yaml:"name,omitempty"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Device configures the emulated device the scenario runs against.
	Device DeviceConfig `yaml:"device,omitempty"`

	// Timeout bounds the whole run, e.g. "10s". Empty means the runner
	// default.
	Timeout string `yaml:"timeout,omitempty"`

	// Steps are executed in order; the run stops at the first failing
	// step.
	Steps []Step `yaml:"steps"`
}

// DeviceConfig selects the emulated device variant.
type DeviceConfig struct {
	// Profiles is the profile count; zero means the factory default.
	Profiles int `yaml:"profiles,omitempty"`
}

// Step is one action with optional expectations on its outputs.
type Step struct {
	// Action names the handler to run, e.g. "apply" or "commit".
	Action string `yaml:"action"`

	// Params are handler-specific arguments.
	Params map[string]any `yaml:"params,omitempty"`

	// Expect maps output keys to expected values, checked after the
	// action ran.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Description explains the step in results.
	Description string `yaml:"description,omitempty"`
}

// Parse parses and validates a scenario from YAML bytes.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if sc.ID == "" {
		return nil, fmt.Errorf("scenario missing id")
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", sc.ID)
	}
	for i, step := range sc.Steps {
		if step.Action == "" {
			return nil, fmt.Errorf("scenario %q: steps[%d]: missing action", sc.ID, i)
		}
	}
	return &sc, nil
}

// Load reads and parses the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// LoadDirectory loads every *.yaml/*.yml scenario in dir, sorted by
// file name. A broken scenario fails the load.
func LoadDirectory(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		sc, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
