package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/deskiziarecords/OpenGate/pkg/admission"
	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/config"
	"github.com/deskiziarecords/OpenGate/pkg/gate"
	"github.com/deskiziarecords/OpenGate/pkg/issuance"
)

// loadPair reads a certificate and patch from paths or URIs.
func loadPair(ctx context.Context, certPath, patchPath string) (cert, patch []byte, err error) {
	mux, err := newArtifacts(ctx)
	if err != nil {
		return nil, nil, err
	}
	if cert, err = mux.Load(ctx, certPath); err != nil {
		return nil, nil, fmt.Errorf("certificate: %w", err)
	}
	if patch, err = mux.Load(ctx, patchPath); err != nil {
		return nil, nil, fmt.Errorf("patch: %w", err)
	}
	return cert, patch, nil
}

// runValidateCmd implements `opengate validate`, the offline checker. On top
// of the core verdict it checks the patch hash and, unless --strict=false,
// that the budget does not exceed the certificate's own hard_max.
//
// Exit codes:
//
//	0 = valid
//	1 = rejected
//	2 = usage or I/O error
func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		patchPath string
		certPath  string
		jsonOut   bool
		strict    bool
	)
	cmd.StringVar(&patchPath, "patch", "", "Patch file or URI (REQUIRED)")
	cmd.StringVar(&certPath, "cert", "", "Certificate file or URI (REQUIRED)")
	cmd.BoolVar(&jsonOut, "json", false, "Output JSON")
	cmd.BoolVar(&strict, "strict", true, "Reject budgets above the certificate's hard_max")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if patchPath == "" || certPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --patch and --cert are required")
		return 2
	}

	raw, patch, err := loadPair(context.Background(), certPath, patchPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cert, _, err := gate.Decode(raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s✗ %v%s\n", ColorRed, err, ColorReset)
		return 1
	}
	rep := issuance.Preflight(&cert, patch)

	// Checked in og-validate order: magic, patch hash, hard_max, then the
	// remaining core verdicts.
	var checkErr error
	if rep.Result != gate.InvalidMagic {
		checkErr = attest.VerifyPatchHash(&cert, patch)
		if checkErr == nil && strict && cert.Budget > cert.HardMax {
			checkErr = fmt.Errorf("budget %d exceeds certificate hard_max %d", cert.Budget, cert.HardMax)
		}
	}
	valid := rep.Result.OK() && checkErr == nil

	if jsonOut {
		out := map[string]any{
			"valid":  valid,
			"result": rep.Result.String(),
			"code":   rep.Result.Code(),
			"cost":   rep.Cost,
			"budget": cert.Budget,
			"margin": rep.Margin,
		}
		if checkErr != nil {
			out["detail"] = checkErr.Error()
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		if valid {
			return 0
		}
		return 1
	}

	if checkErr != nil {
		_, _ = fmt.Fprintf(stdout, "%s✗ %v%s\n", ColorRed, checkErr, ColorReset)
		return 1
	}
	if !rep.Result.OK() {
		_, _ = fmt.Fprintf(stdout, "%s✗ %v (code %d)%s\n", ColorRed, rep.Result.Err(), rep.Result.Code(), ColorReset)
		return 1
	}

	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintf(stdout, "%s✓ Certificate valid%s\n", ColorGreen, ColorReset)
	_, _ = p.Fprintf(stdout, "  Budget: %d pJ\n", cert.Budget)
	_, _ = p.Fprintf(stdout, "  Λ-cost: %d pJ\n", rep.Cost)
	_, _ = p.Fprintf(stdout, "  Margin: %d pJ\n", rep.Margin)
	_, _ = p.Fprintf(stdout, "  Epsilon: %d\n", cert.Epsilon)
	return 0
}

// runAdmitCmd implements `opengate admit`: the full trust pipeline with
// in-memory ledger and receipts. The decision is printed as JSON.
func runAdmitCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("admit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		patchPath   string
		certPath    string
		profilePath string
	)
	cmd.StringVar(&patchPath, "patch", "", "Patch file or URI (REQUIRED)")
	cmd.StringVar(&certPath, "cert", "", "Certificate file or URI (REQUIRED)")
	cmd.StringVar(&profilePath, "profile", "", "Gate profile (YAML or JSON)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if patchPath == "" || certPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --patch and --cert are required")
		return 2
	}

	profile := config.DefaultProfile()
	if profilePath != "" {
		var err error
		if profile, err = config.LoadProfile(profilePath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	g, err := admission.New(profile, admission.WithLogger(discardLogger()))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	raw, patch, err := loadPair(ctx, certPath, patchPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	d, err := g.Admit(ctx, admission.Request{Certificate: raw, Patch: patch})
	data, _ := json.MarshalIndent(d, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(data))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if !d.Admitted {
		return 1
	}
	return 0
}
