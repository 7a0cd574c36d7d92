// Package devicedb maps physical devices to drivers.
//
// Device families are described by YAML files, one family per file:
//
//	name: Nibbler Optical
//	driver: nibbler
//	matches:
//	  - usb:4e42:0001
//	options:
//	  profiles: "2"
//
// A match string is bus:vid:pid with 4-hex-digit IDs; the product ID
// may be * to cover a whole vendor. Option values are strings; drivers
// parse them as needed.
//
// The Registry holds loaded descriptions, answers Match queries, can
// reload a directory on filesystem changes, and is seeded with a
// compiled-in table when no directory is loaded.
package devicedb
