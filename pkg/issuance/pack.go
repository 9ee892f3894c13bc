// Package issuance builds OGT1 certificates for a patch.
package issuance

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

type options struct {
	budget  uint32
	hardMax uint32
	epsilon uint32
	parent  string
	signer  attest.Signer
}

// Option sets one certificate field. Values are written as given, zero
// included.
type Option func(*options)

// WithBudget sets the Λ-budget. Default gate.BudgetDefault.
func WithBudget(b uint32) Option {
	return func(o *options) { o.budget = b }
}

// WithHardMax sets the recorded hard maximum. Default gate.BudgetHardMax.
func WithHardMax(h uint32) Option {
	return func(o *options) { o.hardMax = h }
}

// WithEpsilon sets epsilon. Default gate.EpsilonMax.
func WithEpsilon(e uint32) Option {
	return func(o *options) { o.epsilon = e }
}

// WithParent sets the parent digest from hex, with an optional "0x" prefix.
// Empty means genesis.
func WithParent(hexDigest string) Option {
	return func(o *options) { o.parent = hexDigest }
}

// WithSigner signs the certificate once every other field is set.
func WithSigner(s attest.Signer) Option {
	return func(o *options) { o.signer = s }
}

// Pack returns a certificate for patch. The patch hash is SHA-256.
//
// Pack is policy-free: it will issue a certificate the gate later rejects. Use
// Preflight to see the verdict before publishing.
func Pack(patch []byte, opts ...Option) (*gate.Certificate, error) {
	o := options{
		budget:  gate.BudgetDefault,
		hardMax: gate.BudgetHardMax,
		epsilon: gate.EpsilonMax,
	}
	for _, opt := range opts {
		opt(&o)
	}

	parent, err := ParseHash(o.parent)
	if err != nil {
		return nil, fmt.Errorf("parent hash: %w", err)
	}
	c := &gate.Certificate{
		Magic:      gate.Magic(),
		Budget:     o.budget,
		HardMax:    o.hardMax,
		Epsilon:    o.epsilon,
		ParentHash: parent,
		PatchHash:  attest.PatchHash(patch),
	}

	if o.signer != nil {
		if err := o.signer.Sign(c); err != nil {
			return nil, fmt.Errorf("sign certificate: %w", err)
		}
	}
	return c, nil
}

// ParseHash decodes a 32-byte hex hash. Empty input yields the zero hash.
func ParseHash(s string) ([32]byte, error) {
	var h [32]byte
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return h, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("want %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Report is the outcome of Preflight.
type Report struct {
	Result gate.Result
	Cost   uint64
	Margin int64 // budget minus cost; negative when over budget
}

// Preflight runs the core validator over a freshly packed certificate.
func Preflight(c *gate.Certificate, patch []byte) Report {
	cost := gate.ComputeCost(patch)
	return Report{
		Result: gate.Validate(c, patch),
		Cost:   cost,
		Margin: int64(c.Budget) - int64(cost),
	}
}
