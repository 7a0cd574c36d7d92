package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action errors.
var (
	ErrUnknownSpecial    = errors.New("unknown special function")
	ErrInvalidMacroEvent = errors.New("invalid macro event")
)

// ActionType identifies the kind of action bound to a button.
type ActionType uint8

const (
	// ActionTypeNone is a button with no action assigned.
	ActionTypeNone ActionType = 0

	// ActionTypeButton sends a logical button event.
	ActionTypeButton ActionType = 1

	// ActionTypeSpecial triggers a device-internal function.
	ActionTypeSpecial ActionType = 2

	// ActionTypeMacro replays a sequence of key events.
	ActionTypeMacro ActionType = 3

	// ActionTypeUnknown is an action the driver could not interpret.
	ActionTypeUnknown ActionType = 4
)

// String returns the action type name.
func (t ActionType) String() string {
	switch t {
	case ActionTypeNone:
		return "none"
	case ActionTypeButton:
		return "button"
	case ActionTypeSpecial:
		return "special"
	case ActionTypeMacro:
		return "macro"
	case ActionTypeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("ActionType(%d)", t)
	}
}

// Action is the behavior assigned to a button. It is one of
// ActionNone, ActionButton, ActionSpecial, ActionMacro or
// ActionUnknown.
type Action interface {
	// Type returns the action kind.
	Type() ActionType

	// String returns a short human-readable description.
	String() string

	isAction()
}

// ActionNone means the button does nothing.
type ActionNone struct{}

func (ActionNone) Type() ActionType { return ActionTypeNone }
func (ActionNone) String() string   { return "none" }
func (ActionNone) isAction()        {}

// ActionButton sends a logical button number. Button numbers are
// 1-based: ActionButton{Button: 1} is a regular left click.
type ActionButton struct {
	Button int
}

func (ActionButton) Type() ActionType { return ActionTypeButton }
func (a ActionButton) String() string { return fmt.Sprintf("button %d", a.Button) }
func (ActionButton) isAction()        {}

// ActionSpecial triggers a function handled by the device itself, like
// cycling resolutions or switching profiles.
type ActionSpecial struct {
	Special SpecialFunction
}

func (ActionSpecial) Type() ActionType { return ActionTypeSpecial }
func (a ActionSpecial) String() string { return "special " + a.Special.String() }
func (ActionSpecial) isAction()        {}

// ActionMacro replays a sequence of key press, key release and wait
// events. Name is an optional client-assigned label.
type ActionMacro struct {
	Name   string
	Events []MacroEvent
}

func (ActionMacro) Type() ActionType { return ActionTypeMacro }
func (ActionMacro) isAction()        {}

func (a ActionMacro) String() string {
	parts := make([]string, 0, len(a.Events))
	for _, ev := range a.Events {
		parts = append(parts, ev.String())
	}
	if a.Name == "" {
		return "macro " + strings.Join(parts, " ")
	}
	return fmt.Sprintf("macro [%s] %s", a.Name, strings.Join(parts, " "))
}

// ActionUnknown wraps a raw payload the driver read from the device
// but could not map to a known action. Committing it back writes the
// payload unchanged.
type ActionUnknown struct {
	Data []byte
}

func (ActionUnknown) Type() ActionType { return ActionTypeUnknown }
func (ActionUnknown) String() string   { return "unknown" }
func (ActionUnknown) isAction()        {}

// SpecialFunction is a device-internal function a button can trigger.
type SpecialFunction uint16

const (
	SpecialUnknown             SpecialFunction = 0
	SpecialDoubleclick         SpecialFunction = 1
	SpecialWheelLeft           SpecialFunction = 2
	SpecialWheelRight          SpecialFunction = 3
	SpecialWheelUp             SpecialFunction = 4
	SpecialWheelDown           SpecialFunction = 5
	SpecialRatchetModeSwitch   SpecialFunction = 6
	SpecialResolutionUp        SpecialFunction = 7
	SpecialResolutionDown      SpecialFunction = 8
	SpecialResolutionCycleUp   SpecialFunction = 9
	SpecialResolutionCycleDown SpecialFunction = 10
	SpecialResolutionAlternate SpecialFunction = 11
	SpecialResolutionDefault   SpecialFunction = 12
	SpecialProfileUp           SpecialFunction = 13
	SpecialProfileDown         SpecialFunction = 14
	SpecialProfileCycleUp      SpecialFunction = 15
	SpecialProfileCycleDown    SpecialFunction = 16
	SpecialSecondMode          SpecialFunction = 17
	SpecialBatteryLevel        SpecialFunction = 18
)

var specialNames = map[SpecialFunction]string{
	SpecialUnknown:             "unknown",
	SpecialDoubleclick:         "doubleclick",
	SpecialWheelLeft:           "wheel-left",
	SpecialWheelRight:          "wheel-right",
	SpecialWheelUp:             "wheel-up",
	SpecialWheelDown:           "wheel-down",
	SpecialRatchetModeSwitch:   "ratchet-mode-switch",
	SpecialResolutionUp:        "resolution-up",
	SpecialResolutionDown:      "resolution-down",
	SpecialResolutionCycleUp:   "resolution-cycle-up",
	SpecialResolutionCycleDown: "resolution-cycle-down",
	SpecialResolutionAlternate: "resolution-alternate",
	SpecialResolutionDefault:   "resolution-default",
	SpecialProfileUp:           "profile-up",
	SpecialProfileDown:         "profile-down",
	SpecialProfileCycleUp:      "profile-cycle-up",
	SpecialProfileCycleDown:    "profile-cycle-down",
	SpecialSecondMode:          "second-mode",
	SpecialBatteryLevel:        "battery-level",
}

// String returns the special function name, e.g. "wheel-up".
func (s SpecialFunction) String() string {
	if name, ok := specialNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SpecialFunction(%d)", s)
}

// ParseSpecialFunction resolves a special function by name. Names are
// case-insensitive and may use underscores instead of hyphens.
func ParseSpecialFunction(name string) (SpecialFunction, error) {
	normalized := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	for s, n := range specialNames {
		if n == normalized {
			return s, nil
		}
	}
	return SpecialUnknown, fmt.Errorf("%w: %q", ErrUnknownSpecial, name)
}

// MacroEventType identifies one step in a macro.
type MacroEventType uint8

const (
	MacroInvalid    MacroEventType = 0
	MacroNone       MacroEventType = 1
	MacroKeyPress   MacroEventType = 2
	MacroKeyRelease MacroEventType = 3
	MacroWait       MacroEventType = 4
)

// MacroEvent is a single macro step. Value is the key code for press
// and release events and the duration in milliseconds for waits.
type MacroEvent struct {
	Type  MacroEventType
	Value int
}

// String formats the event in the compact macro notation: "+4" presses
// key code 4, "-4" releases it, "t150" waits 150 ms.
func (e MacroEvent) String() string {
	switch e.Type {
	case MacroKeyPress:
		return "+" + strconv.Itoa(e.Value)
	case MacroKeyRelease:
		return "-" + strconv.Itoa(e.Value)
	case MacroWait:
		return "t" + strconv.Itoa(e.Value)
	case MacroNone:
		return ""
	default:
		return "x" + strconv.Itoa(e.Value)
	}
}

// ParseMacroEvent parses a single event in compact macro notation.
func ParseMacroEvent(s string) (MacroEvent, error) {
	if len(s) < 2 {
		return MacroEvent{}, fmt.Errorf("%w: %q", ErrInvalidMacroEvent, s)
	}

	var typ MacroEventType
	switch s[0] {
	case '+':
		typ = MacroKeyPress
	case '-':
		typ = MacroKeyRelease
	case 't':
		typ = MacroWait
	case 'x':
		typ = MacroInvalid
	default:
		return MacroEvent{}, fmt.Errorf("%w: %q", ErrInvalidMacroEvent, s)
	}

	value, err := strconv.Atoi(s[1:])
	if err != nil || value < 0 {
		return MacroEvent{}, fmt.Errorf("%w: %q", ErrInvalidMacroEvent, s)
	}
	return MacroEvent{Type: typ, Value: value}, nil
}

// ParseMacro parses a whitespace-separated sequence of macro events,
// e.g. "+4 -4 t150 +5 -5".
func ParseMacro(s string) ([]MacroEvent, error) {
	fields := strings.Fields(s)
	events := make([]MacroEvent, 0, len(fields))
	for _, field := range fields {
		ev, err := ParseMacroEvent(field)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
