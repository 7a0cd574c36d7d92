package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
)

// driverSlug converts "Nibbler" to "nibbler".
func driverSlug(name string) string {
	return strings.ToLower(name)
}

// formatMatches renders the match strings as code spans.
func formatMatches(matches []devicedb.DeviceMatch) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("`%s`", m)
	}
	return strings.Join(parts, ", ")
}

// formatOptions renders driver options as sorted key=value code spans.
// Empty options render as an empty cell.
func formatOptions(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}
	parts := make([]string, 0, len(options))
	for _, key := range sortedKeys(options) {
		parts = append(parts, fmt.Sprintf("`%s=%s`", key, options[key]))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
