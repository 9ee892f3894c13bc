// Package admission runs the full trust pipeline around the core validator:
// decode, core verdict, profile checks, signature, hash chain and rules, then
// records the decision as a signed receipt.
//
// A core Valid verdict only bounds cost. Admission is where authenticity is
// established, and every collaborator failure denies.
package admission

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/config"
	"github.com/deskiziarecords/OpenGate/pkg/gate"
	"github.com/deskiziarecords/OpenGate/pkg/ledger"
	"github.com/deskiziarecords/OpenGate/pkg/observability"
	"github.com/deskiziarecords/OpenGate/pkg/policy"
	"github.com/deskiziarecords/OpenGate/pkg/receipts"
)

// Gate admits or rejects patches. Safe for concurrent use.
type Gate struct {
	profile  *config.Profile
	verifier attest.SignatureVerifier
	chain    attest.ChainVerifier
	rules    *policy.RuleSet
	ledger   ledger.Ledger
	recorder *receipts.Recorder
	metrics  *observability.Provider
	slo      *observability.SLOTracker
	logger   *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLedger sets the accepted-certificate ledger. Default: in memory.
func WithLedger(l ledger.Ledger) Option {
	return func(g *Gate) { g.ledger = l }
}

// WithRecorder sets the receipt recorder. Default: unsigned, in memory.
func WithRecorder(r *receipts.Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// WithVerifier overrides the verifier built from the profile's trusted keys.
func WithVerifier(v attest.SignatureVerifier) Option {
	return func(g *Gate) { g.verifier = v }
}

// WithMetrics records every decision on p.
func WithMetrics(p *observability.Provider) Option {
	return func(g *Gate) { g.metrics = p }
}

// WithSLO records core and pipeline latency on t.
func WithSLO(t *observability.SLOTracker) Option {
	return func(g *Gate) { g.slo = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New builds a gate for profile. A nil profile uses config.DefaultProfile.
func New(profile *config.Profile, opts ...Option) (*Gate, error) {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	g := &Gate{profile: profile}
	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = slog.Default().With("component", "admission")
	}
	if g.ledger == nil {
		g.ledger = ledger.NewMemoryLedger()
	}
	if g.recorder == nil {
		g.recorder = receipts.NewRecorder(receipts.NewMemoryStore(), nil)
	}
	g.chain = attest.NewLedgerChain(g.ledger)

	if g.verifier == nil && len(profile.TrustedKeys) > 0 {
		keys, err := attest.ParsePublicKeys(profile.TrustedKeys)
		if err != nil {
			return nil, fmt.Errorf("profile %s: trusted keys: %w", profile.Name, err)
		}
		v, err := attest.NewEd25519Verifier(keys...)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
		}
		g.verifier = v
	}
	if profile.RequireSignature && g.verifier == nil {
		return nil, fmt.Errorf("profile %s requires signatures: %w", profile.Name, attest.ErrNoTrustedKeys)
	}

	rules, err := policy.Compile(profile.Rules)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
	}
	g.rules = rules
	return g, nil
}

// Profile returns the active profile.
func (g *Gate) Profile() *config.Profile { return g.profile }

// Ledger returns the accepted-certificate ledger.
func (g *Gate) Ledger() ledger.Ledger { return g.ledger }

// Receipts returns the receipt store.
func (g *Gate) Receipts() receipts.Store { return g.recorder.Store() }

// SLO returns the latency tracker, or nil.
func (g *Gate) SLO() *observability.SLOTracker { return g.slo }

// Validate runs only the core validator. Nothing is recorded.
func (g *Gate) Validate(req Request) *Decision {
	d, _ := g.core(req)
	return d
}

// core decodes the certificate and runs gate.Validate. The returned
// certificate is nil when decoding failed.
func (g *Gate) core(req Request) (*Decision, *gate.Certificate) {
	d := &Decision{
		Cost:      gate.ComputeCost(req.Patch),
		PatchSize: len(req.Patch),
	}

	cert, layout, err := gate.Decode(req.Certificate)
	if err != nil {
		d.Result = ResultMalformed
		d.Code = gate.InvalidMagic.Code()
		return d.deny(ReasonMalformed, err), nil
	}
	digest := cert.Digest()
	d.Layout = layout.String()
	d.CertificateDigest = hex.EncodeToString(digest[:])
	d.Budget = cert.Budget
	d.HardMax = cert.HardMax
	d.Epsilon = cert.Epsilon

	start := time.Now()
	res := gate.Validate(&cert, req.Patch)
	g.observe(observability.OpValidate, time.Since(start), true)

	d.setResult(res)
	if !res.OK() {
		return d.deny(ReasonCoreRejected, res.Err()), &cert
	}
	d.Admitted = true
	d.Reason = ReasonAdmitted
	return d, &cert
}

// Admit runs the whole pipeline and records a receipt for the decision,
// admitted or not. The error is non-nil only when the decision could not be
// recorded; callers must then treat the patch as rejected.
func (g *Gate) Admit(ctx context.Context, req Request) (*Decision, error) {
	start := time.Now()
	if g.metrics != nil {
		var span trace.Span
		ctx, span = g.metrics.StartSpan(ctx, "opengate.admit",
			trace.WithAttributes(observability.AttrProfile.String(g.profile.Name)),
		)
		defer span.End()
	}

	d, cert := g.core(req)
	if d.Admitted {
		g.trust(ctx, d, cert, req.Patch)
	}

	// A digest reaches the ledger only after its admitting receipt is stored.
	// A ledger failure then gets a second, denying receipt.
	err := g.emit(ctx, d, req.Patch)
	if err == nil && d.Admitted {
		if lerr := g.ledger.Record(ctx, cert.Digest(), cert); lerr != nil {
			d.deny(ReasonLedgerUnavailable, lerr)
			err = g.emit(ctx, d, req.Patch)
		}
	}

	elapsed := time.Since(start)
	g.observe(observability.OpAdmit, elapsed, err == nil)
	if g.metrics != nil {
		g.metrics.RecordAdmission(ctx, d.Result, d.Cost, elapsed,
			observability.AttrReason.String(d.Reason),
			observability.AttrProfile.String(g.profile.Name),
		)
	}

	level := slog.LevelInfo
	if !d.Admitted {
		level = slog.LevelWarn
	}
	g.logger.Log(ctx, level, "admission decided",
		"admitted", d.Admitted,
		"result", d.Result,
		"reason", d.Reason,
		"cost", d.Cost,
		"budget", d.Budget,
		"digest", d.CertificateDigest,
		"receipt", d.ReceiptID,
		"duration", elapsed,
	)
	return d, err
}

// trust applies the profile checks after a Valid core verdict.
func (g *Gate) trust(ctx context.Context, d *Decision, cert *gate.Certificate, patch []byte) {
	p := g.profile
	if p.StrictHardMax && cert.Budget > cert.HardMax {
		d.deny(ReasonHardMaxExceeded, fmt.Errorf("budget %d > certificate hard_max %d", cert.Budget, cert.HardMax))
		return
	}
	if p.RequirePatchHash {
		if err := attest.VerifyPatchHash(cert, patch); err != nil {
			d.deny(ReasonPatchHashMismatch, err)
			return
		}
	}
	if p.RequireSignature {
		if err := g.verifier.VerifySignature(cert); err != nil {
			d.deny(ReasonSignatureInvalid, err)
			return
		}
	}
	if p.RequireChain {
		if err := g.chain.VerifyHashChain(ctx, cert); err != nil {
			d.deny(ReasonChainUnverified, err)
			return
		}
	}
	if err := g.rules.Evaluate(policy.FactsFor(cert, patch)); err != nil {
		d.deny(ReasonRuleDenied, err)
		return
	}
}

func (g *Gate) emit(ctx context.Context, d *Decision, patch []byte) error {
	ph := attest.PatchHash(patch)
	r := receipts.New()
	r.CertificateDigest = d.CertificateDigest
	r.PatchHash = hex.EncodeToString(ph[:])
	r.Result = d.Result
	r.Code = d.Code
	r.Admitted = d.Admitted
	r.Reason = d.Reason
	r.Cost = d.Cost
	r.Budget = d.Budget
	r.Epsilon = d.Epsilon
	r.PatchSize = d.PatchSize

	if err := g.recorder.Emit(ctx, r); err != nil {
		d.deny(ReasonReceiptUnavailable, err)
		g.logger.ErrorContext(ctx, "receipt emission failed", "error", err)
		return fmt.Errorf("record decision: %w", err)
	}
	d.ReceiptID = r.ID
	return nil
}

func (g *Gate) observe(op string, d time.Duration, ok bool) {
	if g.slo != nil {
		g.slo.Record(observability.SLOObservation{Operation: op, Latency: d, Success: ok})
	}
}
