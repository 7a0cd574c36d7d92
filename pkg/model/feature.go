package model

// Feature is implemented by every indexed, configurable entity in the
// device tree: Profile, Resolution, Button and Led. Each feature
// carries a dirty flag marking local changes not yet committed to the
// hardware.
type Feature interface {
	// Index returns the feature's position within its parent.
	Index() int

	// Dirty reports whether the feature has uncommitted changes.
	Dirty() bool

	// Device returns the device this feature belongs to.
	Device() *Device

	// base restricts the interface to types in this package.
	base() *feature
}

// feature is the embedded base of all feature types. Its fields are
// guarded by the owning device's lock.
type feature struct {
	dev   *Device
	index int
	dirty bool
}

func (f *feature) base() *feature { return f }

// Index returns the feature's position within its parent.
func (f *feature) Index() int {
	return f.index
}

// Device returns the device this feature belongs to.
func (f *feature) Device() *Device {
	return f.dev
}

// Dirty reports whether the feature has uncommitted changes.
func (f *feature) Dirty() bool {
	f.dev.mu.RLock()
	defer f.dev.mu.RUnlock()
	return f.dirty
}
