// Package attest implements the authenticity checks that package gate leaves to
// its callers: the issuer's Ed25519 signature over a certificate, the SHA-256
// binding between a certificate and its patch, and the parent-hash chain.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// Signer signs certificates on behalf of an issuer.
type Signer interface {
	Sign(c *gate.Certificate) error
	SignBytes(msg []byte) []byte
	PublicKey() ed25519.PublicKey
	KeyID() string
}

// Ed25519Signer holds an issuer key pair in memory.
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	keyID string
}

// NewEd25519Signer generates a fresh issuer key.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return NewEd25519SignerFromKey(priv, keyID), nil
}

// NewEd25519SignerFromKey wraps an existing private key.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) *Ed25519Signer {
	return &Ed25519Signer{
		priv:  priv,
		pub:   priv.Public().(ed25519.PublicKey),
		keyID: keyID,
	}
}

// NewEd25519SignerFromSeed builds a signer from a 32-byte seed.
func NewEd25519SignerFromSeed(seed []byte, keyID string) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed size: %d", len(seed))
	}
	return NewEd25519SignerFromKey(ed25519.NewKeyFromSeed(seed), keyID), nil
}

// NewEd25519SignerFromHexSeed is NewEd25519SignerFromSeed for hex input.
func NewEd25519SignerFromHexSeed(seedHex, keyID string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid seed hex: %w", err)
	}
	return NewEd25519SignerFromSeed(seed, keyID)
}

// Sign writes the issuer signature over c.SigningPayload into c.Signature.
func (s *Ed25519Signer) Sign(c *gate.Certificate) error {
	if c == nil {
		return fmt.Errorf("attest: nil certificate")
	}
	payload := c.SigningPayload()
	copy(c.Signature[:], ed25519.Sign(s.priv, payload[:]))
	return nil
}

// SignBytes signs an arbitrary message with the issuer key.
func (s *Ed25519Signer) SignBytes(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// PublicKeyHex returns the public key as lowercase hex.
func (s *Ed25519Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.pub)
}

// SeedHex returns the private seed as hex. Handle with care.
func (s *Ed25519Signer) SeedHex() string {
	return hex.EncodeToString(s.priv.Seed())
}

func (s *Ed25519Signer) KeyID() string {
	return s.keyID
}

// DeriveIssuer derives an issuer-specific signer from a master seed with
// HKDF-SHA256, using issuerID as the info string. The same inputs always yield
// the same key.
func DeriveIssuer(masterSeed []byte, issuerID string) (*Ed25519Signer, error) {
	if issuerID == "" {
		return nil, fmt.Errorf("issuerID must not be empty")
	}
	if len(masterSeed) < ed25519.SeedSize {
		return nil, fmt.Errorf("master seed too short: %d bytes", len(masterSeed))
	}

	r := hkdf.New(sha256.New, masterSeed, []byte("opengate-issuer-kdf"), []byte(issuerID))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}
	return NewEd25519SignerFromSeed(seed, issuerID)
}
