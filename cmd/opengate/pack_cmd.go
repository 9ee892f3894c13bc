package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/gate"
	"github.com/deskiziarecords/OpenGate/pkg/issuance"
)

// runPackCmd implements `opengate pack`.
func runPackCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("pack", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		patchPath string
		budget    uint
		hardMax   uint
		epsilon   uint
		parent    string
		outPath   string
		seedHex   string
	)
	cmd.StringVar(&patchPath, "patch", "", "Patch file or URI (REQUIRED)")
	cmd.UintVar(&budget, "B", uint(gate.BudgetDefault), "Λ-budget in pJ")
	cmd.UintVar(&hardMax, "H", uint(gate.BudgetHardMax), "Hard maximum recorded in the certificate")
	cmd.UintVar(&epsilon, "epsilon", uint(gate.EpsilonMax), "Epsilon")
	cmd.StringVar(&parent, "parent", "", "Parent certificate digest (hex)")
	cmd.StringVar(&outPath, "out", "cert.bin", "Output file or URI")
	cmd.StringVar(&seedHex, "seed", "", "Hex Ed25519 seed; signs the certificate when set")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if patchPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --patch is required")
		return 2
	}
	for name, v := range map[string]uint{"B": budget, "H": hardMax, "epsilon": epsilon} {
		if v > uint(^uint32(0)) {
			_, _ = fmt.Fprintf(stderr, "Error: --%s out of range\n", name)
			return 2
		}
	}

	ctx := context.Background()
	mux, err := newArtifacts(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	patch, err := mux.Load(ctx, patchPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	opts := []issuance.Option{
		issuance.WithBudget(uint32(budget)),
		issuance.WithHardMax(uint32(hardMax)),
		issuance.WithEpsilon(uint32(epsilon)),
		issuance.WithParent(parent),
	}
	if seedHex != "" {
		signer, err := attest.NewEd25519SignerFromHexSeed(seedHex, "cli")
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		opts = append(opts, issuance.WithSigner(signer))
	}

	cert, err := issuance.Pack(patch, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	packed := cert.MarshalPacked()
	if err := mux.Save(ctx, outPath, packed[:]); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintf(stdout, "Certificate packed to %s\n", outPath)
	_, _ = p.Fprintf(stdout, "  Budget: %d pJ\n", cert.Budget)
	_, _ = fmt.Fprintf(stdout, "  Patch hash: %s...\n", hex.EncodeToString(cert.PatchHash[:8]))

	if rep := issuance.Preflight(cert, patch); !rep.Result.OK() {
		_, _ = fmt.Fprintf(stdout, "%s⚠️  Gate would reject this certificate: %s%s\n", ColorYellow, rep.Result, ColorReset)
	}
	return 0
}
