// Package model implements the device configuration data model.
//
// # Hierarchy
//
// A Device owns an ordered list of Profiles, and each Profile owns
// ordered lists of Resolutions, Buttons and Leds:
//
//	Device (Nibbler Optical)
//	├── Profile 0
//	│   ├── Resolution 0..2
//	│   ├── Button 0..5
//	│   └── Led 0..1
//	├── Profile 1
//	│   └── ...
//	└── Profile 2
//
// Profiles, Resolutions, Buttons and Leds are features: indexed
// entities that track a dirty flag for local changes not yet written
// to the hardware. Drivers build the tree during probe, clients mutate
// it through setters, and Device.Commit hands the accumulated changes
// back to the driver as a Transaction.
//
// # Mutation and commit
//
// Setters validate against the capabilities and value lists the driver
// declared at population time; invalid calls fail without touching the
// model. Valid calls update the in-memory state, mark the feature
// dirty, and notify event listeners. Nothing reaches the hardware
// until Commit.
//
// Commit snapshots the dirty features into a Transaction and invokes
// the driver backend asynchronously. The transaction completes exactly
// once with success (dirty flags of the write set are cleared) or
// failure (dirty flags remain, so a later commit retries). Resync goes
// the other way: the driver re-reads the hardware and replaces local
// state through the Restore methods.
//
// # Concurrency
//
// All state of a device and its feature tree is guarded by a single
// per-device lock. Getters may be called from any goroutine. Event
// listeners are invoked outside the lock, after the mutation has fully
// settled.
package model
