package scenario_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ratchet-hid/ratchet-go/internal/testharness/scenario"
)

func TestParseBasic(t *testing.T) {
	input := `
id: dpi-smoke
name: DPI smoke test
device:
  profiles: 2
timeout: 10s
steps:
  - action: apply
    params:
      profiles:
        - {index: 0, report-rate: 1000}
  - action: commit
    expect:
      status: complete
    description: the override must land
`
	sc, err := scenario.Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if sc.ID != "dpi-smoke" {
		t.Errorf("ID mismatch: got %s", sc.ID)
	}
	if sc.Device.Profiles != 2 {
		t.Errorf("device profiles mismatch: got %d", sc.Device.Profiles)
	}
	if sc.Timeout != "10s" {
		t.Errorf("timeout mismatch: got %s", sc.Timeout)
	}
	if len(sc.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(sc.Steps))
	}
	if sc.Steps[0].Action != "apply" {
		t.Errorf("step 0 action mismatch: got %s", sc.Steps[0].Action)
	}
	if sc.Steps[1].Expect["status"] != "complete" {
		t.Errorf("step 1 expect mismatch: got %v", sc.Steps[1].Expect)
	}
	if sc.Steps[1].Description == "" {
		t.Error("step 1 description lost")
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"missing id", "steps:\n  - action: commit\n", "missing id"},
		{"no steps", "id: empty\n", "has no steps"},
		{"missing action", "id: x\nsteps:\n  - params: {}\n", "missing action"},
		{"malformed yaml", "id: [\n", "parsing scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scenario.Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDirectorySorted(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "20-second.yaml", "id: second\nsteps:\n  - action: commit\n")
	writeScenario(t, dir, "10-first.yaml", "id: first\nsteps:\n  - action: commit\n")
	writeScenario(t, dir, "notes.txt", "not a scenario")

	scenarios, err := scenario.LoadDirectory(dir)
	if err != nil {
		t.Fatalf("LoadDirectory failed: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
	if scenarios[0].ID != "first" || scenarios[1].ID != "second" {
		t.Errorf("wrong order: %s, %s", scenarios[0].ID, scenarios[1].ID)
	}
}

func TestLoadDirectoryBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "10-ok.yaml", "id: ok\nsteps:\n  - action: commit\n")
	writeScenario(t, dir, "20-broken.yaml", "steps:\n  - action: commit\n")

	_, err := scenario.LoadDirectory(dir)
	if err == nil {
		t.Fatal("expected error for broken scenario")
	}
	if !strings.Contains(err.Error(), "20-broken.yaml") {
		t.Errorf("error %q does not name the broken file", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := scenario.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
