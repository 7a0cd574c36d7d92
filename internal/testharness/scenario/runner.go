package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ratchet-hid/ratchet-go/internal/testharness"
	"github.com/ratchet-hid/ratchet-go/pkg/driver"
	"github.com/ratchet-hid/ratchet-go/pkg/emulated"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

// defaultTimeout bounds a scenario run unless the file overrides it.
const defaultTimeout = 30 * time.Second

// State is the live device a scenario runs against, plus the outputs
// accumulated from completed steps.
type State struct {
	// HW is the emulated hardware handle, exposed for fault injection.
	HW *emulated.Device

	// Dev is the probed model device.
	Dev *model.Device

	// Outputs collects every handler output, later steps overwrite
	// earlier keys.
	Outputs map[string]any
}

// Handler executes one step action and returns outputs for expectation
// checks and later steps. An error is a harness failure; device-level
// rejections belong in the outputs so scenarios can assert them.
type Handler func(ctx context.Context, st *State, step *Step) (map[string]any, error)

// Checker verifies one expectation key against the run state.
type Checker func(st *State, key string, expected any) *CheckResult

// Result is the outcome of one scenario run.
type Result struct {
	Scenario *Scenario
	Passed   bool
	Error    error
	Steps    []*StepResult
	Duration time.Duration
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step   *Step
	Index  int
	Passed bool
	Error  error
	Checks map[string]*CheckResult
	Output map[string]any
}

// CheckResult is the outcome of one expectation.
type CheckResult struct {
	Key      string
	Expected any
	Actual   any
	Passed   bool
	Message  string
}

// Runner executes scenarios, each against a freshly probed emulated
// device.
type Runner struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	checkers map[string]Checker
	logger   *slog.Logger
}

// NewRunner returns a runner with the builtin action handlers
// registered.
func NewRunner() *Runner {
	r := &Runner{
		handlers: make(map[string]Handler),
		checkers: make(map[string]Checker),
	}
	registerBuiltinActions(r)
	return r
}

// SetLogger routes runner debug output to logger. A nil logger
// silences it.
func (r *Runner) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

func (r *Runner) debugLog(msg string, args ...any) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()

	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// RegisterHandler registers an action handler. Registering an existing
// action replaces the builtin.
func (r *Runner) RegisterHandler(action string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = handler
}

// RegisterChecker registers an expectation checker for one key.
// Keys without a checker use output equality.
func (r *Runner) RegisterChecker(key string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[key] = checker
}

// Run builds the scenario's device, probes it and executes the steps
// in order, stopping at the first failure.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *Result {
	result := &Result{Scenario: sc}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	timeout := defaultTimeout
	if sc.Timeout != "" {
		d, err := time.ParseDuration(sc.Timeout)
		if err != nil {
			result.Error = fmt.Errorf("scenario %q: bad timeout: %w", sc.ID, err)
			return result
		}
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hw := emulated.NewDevice(emulated.Config{Profiles: sc.Device.Profiles})
	defer hw.Close()

	dev, err := emulated.NewDriver().Probe(ctx, hw, testharness.Description(), driver.Options{})
	if err != nil {
		result.Error = fmt.Errorf("probing emulated device: %w", err)
		return result
	}

	r.debugLog("scenario started", "id", sc.ID, "steps", len(sc.Steps))

	st := &State{HW: hw, Dev: dev, Outputs: make(map[string]any)}
	result.Passed = true
	for i := range sc.Steps {
		stepResult := r.runStep(ctx, st, &sc.Steps[i], i)
		result.Steps = append(result.Steps, stepResult)
		if !stepResult.Passed {
			result.Passed = false
			result.Error = stepResult.Error
			r.debugLog("scenario failed", "id", sc.ID, "step", i, "error", stepResult.Error)
			break
		}
	}
	return result
}

func (r *Runner) runStep(ctx context.Context, st *State, step *Step, index int) *StepResult {
	result := &StepResult{
		Step:   step,
		Index:  index,
		Checks: make(map[string]*CheckResult),
		Output: make(map[string]any),
	}

	r.mu.RLock()
	handler, ok := r.handlers[step.Action]
	r.mu.RUnlock()
	if !ok {
		result.Error = fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
		return result
	}

	outputs, err := handler(ctx, st, step)
	if err != nil {
		result.Error = fmt.Errorf("steps[%d] %s: %w", index, step.Action, err)
		return result
	}
	for k, v := range outputs {
		st.Outputs[k] = v
		result.Output[k] = v
	}

	result.Passed = true
	for key, expected := range step.Expect {
		check := r.check(st, key, expected)
		result.Checks[key] = check
		if !check.Passed {
			result.Passed = false
			result.Error = fmt.Errorf("steps[%d] %s: %s: %s", index, step.Action, key, check.Message)
		}
	}
	return result
}

func (r *Runner) check(st *State, key string, expected any) *CheckResult {
	r.mu.RLock()
	checker, ok := r.checkers[key]
	r.mu.RUnlock()

	if !ok {
		return defaultCheck(st, key, expected)
	}
	return checker(st, key, expected)
}

// defaultCheck compares the expectation against the accumulated
// outputs. The string "present" passes for any recorded value.
func defaultCheck(st *State, key string, expected any) *CheckResult {
	actual, ok := st.Outputs[key]
	result := &CheckResult{Key: key, Expected: expected, Actual: actual}
	if !ok {
		result.Message = fmt.Sprintf("no output %q", key)
		return result
	}

	if s, ok := expected.(string); ok && s == "present" {
		result.Passed = true
		result.Message = fmt.Sprintf("%s = %v", key, actual)
		return result
	}

	if fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual) {
		result.Passed = true
		result.Message = fmt.Sprintf("%s = %v", key, expected)
		return result
	}
	result.Message = fmt.Sprintf("expected %v, got %v", expected, actual)
	return result
}
