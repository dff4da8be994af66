// Command pwb-log views and analyzes power bridge protocol capture files.
//
// Capture files are written by pwb-ctl, pwb-sim and pwb-monitor when
// started with the -capture flag.
//
// Usage:
//
//	pwb-log <command> [flags] <file.plog>
//
// Commands:
//
//	view     View the capture in human-readable format
//	export   Export the capture to JSON lines or CSV
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View SDO traffic of object 0x2402
//	pwb-log view -layer sdo -index 0x2402 bridge.plog
//
//	# Follow an update run
//	pwb-log view -layer update bridge.plog
//
//	# Show statistics
//	pwb-log stats bridge.plog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/powerbridge/pwb-go/cmd/pwb-log/commands"
)

const usage = `pwb-log - Power Bridge Protocol Log Analyzer

Usage:
  pwb-log <command> [flags] <file.plog>

Commands:
  view     View the capture in human-readable format
  export   Export the capture to JSON lines or CSV
  stats    Show statistics about the capture

Use "pwb-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the event filter flags on fs.
func filterFlags(fs *flag.FlagSet) *commands.ViewOptions {
	o := &commands.ViewOptions{}
	fs.StringVar(&o.Layer, "layer", "", "Filter by layer (transport, sdo, update)")
	fs.StringVar(&o.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&o.Category, "category", "", "Filter by category (message, progress, state, error)")
	fs.StringVar(&o.ConnID, "conn-id", "", "Filter by connection ID")
	fs.IntVar(&o.Node, "node", 0, "Filter by bridge node id")
	fs.StringVar(&o.Index, "index", "", "Filter SDO messages by object index (e.g. 0x2402)")
	fs.StringVar(&o.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&o.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return o
}

func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `pwb-log view - View the capture in human-readable format

Usage:
  pwb-log view [flags] <file.plog>

Flags:
`)
		fs.PrintDefaults()
	}
	opts := filterFlags(fs)
	path := parse(fs, args)

	filter, err := opts.Filter()
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `pwb-log export - Export the capture to JSON lines or CSV

Usage:
  pwb-log export [flags] <file.plog>

Flags:
`)
		fs.PrintDefaults()
	}
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	opts := filterFlags(fs)
	path := parse(fs, args)

	filter, err := opts.Filter()
	if err != nil {
		fail(err)
	}
	if err := commands.RunExport(path, *format, *output, filter); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `pwb-log stats - Show statistics about the capture

Usage:
  pwb-log stats <file.plog>

`)
	}
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
