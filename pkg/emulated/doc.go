// Package emulated implements the nibbler driver and an in-memory
// device for the fictional "Nibbler" gaming-mouse family.
//
// A Nibbler stores its configuration in checksummed feature reports:
// a per-profile settings report (report rate, per-axis DPI tables,
// resolution flags), a per-profile button map of 3-byte action
// triples, one report per macro slot, and a read-only version report
// whose tail is a free-form diagnostic string. All multi-byte values
// are little-endian and every writable report ends in an additive
// checksum the firmware verifies before accepting a write.
//
// The emulated Device behaves like that firmware: it validates report
// IDs, lengths and checksums, switches profiles through the select
// report, and can inject write failures or a disconnect for driver
// tests. The Driver is a complete probe/commit/resync implementation
// on top of any hid.Device exposing the Nibbler report layout.
package emulated
