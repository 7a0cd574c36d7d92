package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
	"github.com/ratchet-hid/ratchet-go/pkg/hid"
)

// loadDescriptions reads every *.yaml/*.yml file in dir, sorted by file
// name so the generated table keeps the registry's first-match order.
// Unlike the runtime registry, a file that fails to parse is an error.
func loadDescriptions(dir string) ([]*devicedb.Description, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading device database %s: %w", dir, err)
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

	if len(names) == 0 {
		return nil, fmt.Errorf("no device descriptions in %s", dir)
	}

	descs := make([]*devicedb.Description, 0, len(names))
	for _, name := range names {
		desc, err := devicedb.LoadDescription(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

var funcMap = template.FuncMap{
	"quote":    func(s string) string { return fmt.Sprintf("%q", s) },
	"hexID":    func(v uint16) string { return fmt.Sprintf("0x%04x", v) },
	"busConst": busConst,
}

// busConst maps a bus type to its hid constant name.
func busConst(bus hid.BusType) (string, error) {
	switch bus {
	case hid.BusUSB:
		return "hid.BusUSB", nil
	case hid.BusBluetooth:
		return "hid.BusBluetooth", nil
	case hid.BusVirtual:
		return "hid.BusVirtual", nil
	case hid.BusI2C:
		return "hid.BusI2C", nil
	default:
		return "", fmt.Errorf("no hid constant for bus %d", bus)
	}
}

var builtinTemplate = template.Must(template.New("builtin").Funcs(funcMap).Parse(builtinTmpl))

// Generate renders the builtin table source for pkg/devicedb. The
// output needs a goimports pass before it is valid gofmt output.
func Generate(descs []*devicedb.Description) (string, error) {
	var b strings.Builder
	if err := builtinTemplate.Execute(&b, descs); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Map ranges in text/template iterate in sorted key order, so the
// Options block is deterministic.
const builtinTmpl = `// Code generated by ratchet-devicegen; DO NOT EDIT.

package devicedb

import "github.com/ratchet-hid/ratchet-go/pkg/hid"

// Builtin returns the compiled-in device descriptions.
func Builtin() []*Description {
return []*Description{
{{- range .}}
{
Name: {{quote .Name}},
Driver: {{quote .Driver}},
Matches: []DeviceMatch{
{{- range .Matches}}
{Bus: {{busConst .Bus}}, VendorID: {{hexID .VendorID}}{{if .AnyProduct}}, AnyProduct: true{{else}}, ProductID: {{hexID .ProductID}}{{end}}},
{{- end}}
},
{{- if .Options}}
Options: map[string]string{
{{- range $key, $value := .Options}}
{{quote $key}}: {{quote $value}},
{{- end}}
},
{{- end}}
},
{{- end}}
}
}
`
