package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/deskiziarecords/OpenGate/pkg/artifacts"
	"github.com/deskiziarecords/OpenGate/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = pass
//	1 = verdict fail
//	2 = usage or runtime error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "entropy":
		return runEntropyCmd(args[2:], stdout, stderr)
	case "pack":
		return runPackCmd(args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "admit":
		return runAdmitCmd(args[2:], stdout, stderr)
	case "table":
		return runTableCmd(args[2:], stdout, stderr)
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "serve", "server":
		return runServeCmd(args[2:], stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "opengate %s\n", config.Version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sOPEN GATE %s%s\n", ColorBold+ColorBlue, config.Version, ColorReset)
	_, _ = fmt.Fprintf(w, "%sΛ-budget gate for model patches.%s\n", ColorGray, ColorReset)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	_, _ = fmt.Fprintln(w, "  opengate <command> [flags]")
	_, _ = fmt.Fprintln(w, "")

	printSection(w, "MEASURE")
	printCommand(w, "entropy", "Measure the Λ-cost of a file (-v for details)")
	printCommand(w, "table", "Print the Λ-table (--json)")

	printSection(w, "CERTIFICATES")
	printCommand(w, "pack", "Pack a 512-byte certificate (--patch, --B, --H, --epsilon, --parent, --out)")
	printCommand(w, "validate", "Run the core validator (--patch, --cert)")
	printCommand(w, "admit", "Run the full trust pipeline (--patch, --cert, --profile)")
	printCommand(w, "keygen", "Generate an issuer key pair")

	printSection(w, "SERVER")
	printCommand(w, "serve", "Run the HTTP gate (configured from the environment)")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	_, _ = fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %s%-10s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// newArtifacts resolves file paths and s3:// or gs:// URIs.
var newArtifacts = func(ctx context.Context) (*artifacts.Mux, error) {
	return artifacts.NewMuxFromEnv(ctx, artifacts.DefaultMaxBlobSize)
}
