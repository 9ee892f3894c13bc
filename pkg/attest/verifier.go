package attest

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

var (
	// ErrUnsigned is returned for a certificate whose signature field is all zero.
	ErrUnsigned = errors.New("attest: certificate is unsigned")
	// ErrBadSignature is returned when no trusted key verifies the signature.
	ErrBadSignature = errors.New("attest: signature does not verify against any trusted key")
	// ErrNoTrustedKeys is returned by a verifier configured without keys.
	ErrNoTrustedKeys = errors.New("attest: no trusted issuer keys configured")
)

// SignatureVerifier authenticates a certificate.
type SignatureVerifier interface {
	VerifySignature(c *gate.Certificate) error
}

// Ed25519Verifier accepts a certificate signed by any of its trusted issuers.
// The OGT1 record carries no key identifier, so every key is tried.
type Ed25519Verifier struct {
	keys []ed25519.PublicKey
}

// NewEd25519Verifier creates a verifier trusting the given public keys.
func NewEd25519Verifier(keys ...ed25519.PublicKey) (*Ed25519Verifier, error) {
	v := &Ed25519Verifier{}
	for _, k := range keys {
		if len(k) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid public key size: %d", len(k))
		}
		v.keys = append(v.keys, k)
	}
	return v, nil
}

// ParsePublicKeys decodes hex-encoded Ed25519 public keys. An optional
// "ed25519:" prefix is accepted.
func ParsePublicKeys(hexKeys []string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, 0, len(hexKeys))
	for _, h := range hexKeys {
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(h), "ed25519:"))
		if err != nil {
			return nil, fmt.Errorf("invalid public key hex %q: %w", h, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid public key size: %d", len(raw))
		}
		keys = append(keys, ed25519.PublicKey(raw))
	}
	return keys, nil
}

// Len returns the number of trusted keys.
func (v *Ed25519Verifier) Len() int {
	return len(v.keys)
}

func (v *Ed25519Verifier) VerifySignature(c *gate.Certificate) error {
	if c == nil {
		return ErrBadSignature
	}
	if len(v.keys) == 0 {
		return ErrNoTrustedKeys
	}
	if c.Signature == ([64]byte{}) {
		return ErrUnsigned
	}
	payload := c.SigningPayload()
	for _, k := range v.keys {
		if ed25519.Verify(k, payload[:], c.Signature[:]) {
			return nil
		}
	}
	return ErrBadSignature
}
