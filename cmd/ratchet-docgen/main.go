// Command ratchet-docgen renders a Markdown device support reference
// from the device database.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ratchet-hid/ratchet-go/pkg/devicedb"
)

func main() {
	dbDir := flag.String("db", "", "Device database directory (default: compiled-in table)")
	outputDir := flag.String("output", "", "Output directory for generated Markdown")
	flag.Parse()

	if *outputDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: ratchet-docgen -output <dir> [-db <dir>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*dbDir, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbDir, outputDir string) error {
	descs := devicedb.Builtin()
	if dbDir != "" {
		reg := devicedb.NewRegistry()
		if err := reg.LoadDirectory(dbDir); err != nil {
			return fmt.Errorf("loading device database: %w", err)
		}
		descs = reg.Descriptions()
	}

	return generateAll(BuildDocModel(descs), outputDir)
}
