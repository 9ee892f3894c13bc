package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// runEntropyCmd implements `opengate entropy <file>`.
//
// The printed cost is the exact sum with no early exit.
func runEntropyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("entropy", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var verbose bool
	cmd.BoolVar(&verbose, "v", false, "Print size, average and budget comparison")
	cmd.BoolVar(&verbose, "verbose", false, "Alias for -v")

	if err := cmd.Parse(reorderFlags(args)); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: opengate entropy <file> [-v]")
		return 2
	}

	ctx := context.Background()
	mux, err := newArtifacts(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	data, err := mux.Load(ctx, cmd.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cost := gate.TotalCost(data)
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(stdout, "Λ-cost = %d pJ\n", cost)

	if verbose {
		avg := 0.0
		if len(data) > 0 {
			avg = float64(cost) / float64(len(data))
		}
		_, _ = p.Fprintf(stdout, "File size: %d bytes\n", len(data))
		_, _ = p.Fprintf(stdout, "Average: %.1f pJ/byte\n", avg)
		switch {
		case cost > uint64(gate.BudgetHardMax):
			_, _ = p.Fprintf(stdout, "%s⚠️  Exceeds hard maximum (%d pJ)%s\n", ColorRed, gate.BudgetHardMax, ColorReset)
		case cost > uint64(gate.BudgetDefault):
			_, _ = p.Fprintf(stdout, "%s⚠️  Exceeds default budget (%d pJ)%s\n", ColorYellow, gate.BudgetDefault, ColorReset)
		default:
			_, _ = p.Fprintf(stdout, "%s✓ Within default budget%s\n", ColorGreen, ColorReset)
		}
	}
	return 0
}

// reorderFlags moves flags ahead of positional arguments so that
// `entropy file -v` parses like `entropy -v file`.
func reorderFlags(args []string) []string {
	var flags, rest []string
	for _, a := range args {
		if len(a) > 1 && a[0] == '-' {
			flags = append(flags, a)
		} else {
			rest = append(rest, a)
		}
	}
	return append(flags, rest...)
}
