package model

import "fmt"

// Button is one physical button of a profile with its assigned action.
type Button struct {
	feature

	profile *Profile

	action Action

	// Types lists the action kinds the hardware can store for this
	// button.
	types []ActionType
}

// ButtonSettings carries the initial hardware state of a button.
type ButtonSettings struct {
	// Action currently assigned; nil means ActionNone.
	Action Action

	// Types lists the action kinds the hardware accepts. An empty list
	// defaults to ActionTypeButton only.
	Types []ActionType
}

// NewButton creates a button at the given index and attaches it to the
// profile.
func NewButton(p *Profile, index int, settings *ButtonSettings) (*Button, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: button index %d", ErrInvalidValue, index)
	}

	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < len(p.buttons) && p.buttons[index] != nil {
		return nil, fmt.Errorf("%w: button %d", ErrDuplicateIndex, index)
	}

	action := settings.Action
	if action == nil {
		action = ActionNone{}
	}
	types := append([]ActionType(nil), settings.Types...)
	if len(types) == 0 {
		types = []ActionType{ActionTypeButton}
	}

	b := &Button{
		feature: feature{dev: d, index: index},
		profile: p,
		action:  action,
		types:   types,
	}

	for index >= len(p.buttons) {
		p.buttons = append(p.buttons, nil)
	}
	p.buttons[index] = b
	return b, nil
}

// Profile returns the profile this button belongs to.
func (b *Button) Profile() *Profile {
	return b.profile
}

// Action returns the currently assigned action.
func (b *Button) Action() Action {
	b.dev.mu.RLock()
	defer b.dev.mu.RUnlock()
	return b.action
}

// ActionTypes returns the action kinds the hardware accepts for this
// button.
func (b *Button) ActionTypes() []ActionType {
	b.dev.mu.RLock()
	defer b.dev.mu.RUnlock()
	return append([]ActionType(nil), b.types...)
}

// SupportsActionType reports whether the button can store actions of
// the given kind.
func (b *Button) SupportsActionType(t ActionType) bool {
	b.dev.mu.RLock()
	defer b.dev.mu.RUnlock()
	return b.supportsTypeLocked(t)
}

func (b *Button) supportsTypeLocked(t ActionType) bool {
	for _, have := range b.types {
		if have == t {
			return true
		}
	}
	return false
}

// SetAction assigns an action to the button. The action's kind must be
// one the hardware accepts. The button is always marked dirty, even
// when the action compares equal to the current one.
func (b *Button) SetAction(action Action) error {
	d := b.dev
	d.mu.Lock()

	if action == nil {
		d.mu.Unlock()
		return fmt.Errorf("nil action: %w", ErrInvalidValue)
	}
	if !b.supportsTypeLocked(action.Type()) {
		d.mu.Unlock()
		return fmt.Errorf("action type %s: %w", action.Type(), ErrCapability)
	}

	b.action = action
	b.dirty = true
	d.mu.Unlock()

	d.notifyChanged(b, "action")
	return nil
}

// Restore overwrites the button's state with freshly read hardware
// values and clears its dirty flag. Drivers call it during resync; it
// bypasses capability checks and fires no events.
func (b *Button) Restore(settings *ButtonSettings) {
	d := b.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	action := settings.Action
	if action == nil {
		action = ActionNone{}
	}
	b.action = action
	if len(settings.Types) > 0 {
		b.types = append([]ActionType(nil), settings.Types...)
	}
	b.dirty = false
}
