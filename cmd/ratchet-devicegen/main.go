// Command ratchet-devicegen regenerates the builtin device table from a
// device database directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

func main() {
	dbDir := flag.String("db", "", "Device database directory (data/devices/)")
	output := flag.String("o", "", "Output path for the generated Go file")
	flag.Parse()

	if *dbDir == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Usage: ratchet-devicegen -db <dir> -o <file>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*dbDir, *output); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbDir, output string) error {
	descs, err := loadDescriptions(dbDir)
	if err != nil {
		return err
	}

	code, err := Generate(descs)
	if err != nil {
		return fmt.Errorf("generating builtin table: %w", err)
	}

	if err := writeFormatted(output, code); err != nil {
		return err
	}
	fmt.Printf("  generated %s (%d descriptions)\n", output, len(descs))
	return nil
}

// writeFormatted formats Go source code with goimports and writes it to a file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Write unformatted so you can debug the generator output
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
