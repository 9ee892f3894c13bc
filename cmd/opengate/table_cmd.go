package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// runTableCmd implements `opengate table`.
func runTableCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("table", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var jsonOut bool
	cmd.BoolVar(&jsonOut, "json", false, "Output the 256 entries as a JSON array")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	table := gate.Table()
	if jsonOut {
		data, _ := json.Marshal(table)
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "%sΛ-table (pJ per byte)%s\n", ColorBold, ColorReset)
	_, _ = fmt.Fprint(stdout, "     ")
	for col := 0; col < 16; col++ {
		_, _ = fmt.Fprintf(stdout, "  _%X", col)
	}
	_, _ = fmt.Fprintln(stdout)
	for row := 0; row < 16; row++ {
		_, _ = fmt.Fprintf(stdout, "%s%X_%s  ", ColorCyan, row, ColorReset)
		for col := 0; col < 16; col++ {
			_, _ = fmt.Fprintf(stdout, " %3d", table[row*16+col])
		}
		_, _ = fmt.Fprintln(stdout)
	}
	return 0
}

// runKeygenCmd implements `opengate keygen`.
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		seedOut string
		keyID   string
	)
	cmd.StringVar(&seedOut, "seed-out", "", "Write the hex seed to this file instead of stdout")
	cmd.StringVar(&keyID, "id", "issuer", "Key identifier")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	signer, err := attest.NewEd25519Signer(keyID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Public key: ed25519:%s\n", signer.PublicKeyHex())
	if seedOut != "" {
		if err := os.WriteFile(seedOut, []byte(signer.SeedHex()+"\n"), 0o600); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Seed written to %s\n", seedOut)
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "Seed:       %s\n", signer.SeedHex())
	return 0
}
