// Command pwb-odgen generates the object index constants of package od
// and an optional Markdown object table from the YAML dictionary
// definitions.
//
// Usage:
//
//	pwb-odgen -o objects_gen.go [-package od] [-markdown objects.md] <definition.yaml>...
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"

	"github.com/powerbridge/pwb-go/pkg/od"
)

func main() {
	output := flag.String("o", "", "Output path of the generated Go file")
	pkg := flag.String("package", "od", "Package name of the generated file")
	markdown := flag.String("markdown", "", "Output path of the Markdown object table (optional)")
	flag.Parse()

	if *output == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pwb-odgen -o <file.go> [-package <name>] [-markdown <file.md>] <definition.yaml>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(flag.Args(), *pkg, *output, *markdown); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(paths []string, pkg, output, markdown string) error {
	var defs []*od.RawDefinition
	for _, p := range paths {
		def, err := od.LoadDefinition(p)
		if err != nil {
			return err
		}
		// Reject definitions the dictionary builder would refuse.
		if _, err := def.Build(); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		defs = append(defs, def)
	}

	code, err := GenerateConstants(pkg, defs)
	if err != nil {
		return err
	}
	if err := writeFormatted(output, code); err != nil {
		return err
	}
	fmt.Printf("  generated %s\n", output)

	if markdown != "" {
		doc, err := GenerateMarkdown(defs)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(markdown), 0o755); err != nil {
			return fmt.Errorf("creating markdown dir: %w", err)
		}
		if err := os.WriteFile(markdown, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing markdown: %w", err)
		}
		fmt.Printf("  generated %s\n", markdown)
	}
	return nil
}

// writeFormatted formats Go source code with goimports and writes it to a file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
