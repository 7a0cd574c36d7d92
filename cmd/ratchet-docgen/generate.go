package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
)

// GenerateDeviceIndexPage produces the top-level supported devices page.
func GenerateDeviceIndexPage(m *DocModel) string {
	var b strings.Builder

	b.WriteString("# Supported Devices\n\n")
	fmt.Fprintf(&b, "%d device entries across %d drivers. Entries are listed in match\n", len(m.Descriptions), len(m.Drivers))
	b.WriteString("order; the first entry covering a bus/vendor/product triple wins.\n\n")

	b.WriteString("| Name | Driver | Matches |\n")
	b.WriteString("|------|--------|---------|\n")
	for _, desc := range m.Descriptions {
		fmt.Fprintf(&b, "| %s | [%s](drivers/%s.md) | %s |\n",
			desc.Name, desc.Driver, driverSlug(desc.Driver), formatMatches(desc.Matches))
	}
	b.WriteString("\n")

	writeDriverSummary(&b, m)

	return b.String()
}

func writeDriverSummary(b *strings.Builder, m *DocModel) {
	b.WriteString("## Drivers\n\n")
	for _, driver := range m.Drivers {
		fmt.Fprintf(b, "- [%s](drivers/%s.md) (%d entries)\n",
			driver, driverSlug(driver), len(m.ByDriver[driver]))
	}
	b.WriteString("\n")
}

// GenerateDriverPage produces the reference page for one driver.
func GenerateDriverPage(driver string, m *DocModel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s driver\n\n", driver)

	descs := m.ByDriver[driver]
	writeDriverDevices(&b, descs)
	writeDriverOptions(&b, descs)

	return b.String()
}

func writeDriverDevices(b *strings.Builder, descs []*devicedb.Description) {
	b.WriteString("## Devices\n\n")
	b.WriteString("| Name | Matches | Options |\n")
	b.WriteString("|------|---------|---------|\n")
	for _, desc := range descs {
		fmt.Fprintf(b, "| %s | %s | %s |\n",
			desc.Name, formatMatches(desc.Matches), formatOptions(desc.Options))
	}
	b.WriteString("\n")
}

// writeDriverOptions lists every option key the driver's entries set and
// which entries set it, so a missing knob is easy to spot.
func writeDriverOptions(b *strings.Builder, descs []*devicedb.Description) {
	byKey := make(map[string][]string)
	for _, desc := range descs {
		for key := range desc.Options {
			byKey[key] = append(byKey[key], desc.Name)
		}
	}
	if len(byKey) == 0 {
		return
	}

	b.WriteString("## Options\n\n")
	b.WriteString("| Option | Set by |\n")
	b.WriteString("|--------|--------|\n")
	for _, key := range sortedKeys(byKey) {
		fmt.Fprintf(b, "| `%s` | %s |\n", key, strings.Join(byKey[key], ", "))
	}
	b.WriteString("\n")
}

// generateAll writes the device index and all driver pages to outputDir.
func generateAll(m *DocModel, outputDir string) error {
	if err := generateAllDriverPages(m, outputDir); err != nil {
		return err
	}

	indexPath := filepath.Join(outputDir, "index.md")
	if err := os.WriteFile(indexPath, []byte(GenerateDeviceIndexPage(m)), 0o644); err != nil {
		return fmt.Errorf("writing device index: %w", err)
	}
	return nil
}

func generateAllDriverPages(m *DocModel, outputDir string) error {
	driverDir := filepath.Join(outputDir, "drivers")
	if err := os.MkdirAll(driverDir, 0o755); err != nil {
		return fmt.Errorf("creating drivers dir: %w", err)
	}

	for _, driver := range m.Drivers {
		content := GenerateDriverPage(driver, m)
		slug := driverSlug(driver)
		path := filepath.Join(driverDir, slug+".md")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", slug, err)
		}
	}
	return nil
}
