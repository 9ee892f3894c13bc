// Package receipts records every admission decision as a signed, hash-chained
// receipt so that the decisions of a gate can be audited after the fact.
package receipts

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

var (
	// ErrNotFound is returned for an unknown receipt ID.
	ErrNotFound = errors.New("receipts: receipt not found")
	// ErrBadSignature is returned when a receipt signature does not verify.
	ErrBadSignature = errors.New("receipts: signature verification failed")
	// ErrBrokenChain is returned when PrevHash does not match the predecessor.
	ErrBrokenChain = errors.New("receipts: hash chain broken")
)

// Receipt is the audit record of one admission decision.
type Receipt struct {
	ID                string    `json:"id"`
	CertificateDigest string    `json:"certificate_digest"`
	PatchHash         string    `json:"patch_hash"`
	Result            string    `json:"result"`
	Code              int       `json:"code"`
	Admitted          bool      `json:"admitted"`
	Reason            string    `json:"reason"`
	Cost              uint64    `json:"cost"`
	Budget            uint32    `json:"budget"`
	Epsilon           uint32    `json:"epsilon"`
	PatchSize         int       `json:"patch_size"`
	Timestamp         time.Time `json:"timestamp"`
	PrevHash          string    `json:"prev_hash"`
	SignerKey         string    `json:"signer_key,omitempty"`
	Signature         string    `json:"signature,omitempty"`
}

// New returns a receipt with a fresh ID and a microsecond-precision UTC
// timestamp, so that it survives a round trip through any of the stores.
func New() *Receipt {
	return &Receipt{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func canonical(r *Receipt) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("receipt marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("receipt canonicalize: %w", err)
	}
	return out, nil
}

// SigningBytes returns the RFC 8785 form of r without its signature.
func SigningBytes(r *Receipt) ([]byte, error) {
	unsigned := *r
	unsigned.Signature = ""
	return canonical(&unsigned)
}

// Hash returns the hex SHA-256 of the canonical form of the complete receipt.
// The next receipt in the chain carries it as PrevHash.
func Hash(r *Receipt) (string, error) {
	b, err := canonical(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ByteSigner is the part of attest.Signer that receipts need.
type ByteSigner interface {
	SignBytes(msg []byte) []byte
	PublicKey() ed25519.PublicKey
}

// Sign sets SignerKey and Signature on r.
func Sign(r *Receipt, s ByteSigner) error {
	r.SignerKey = hex.EncodeToString(s.PublicKey())
	msg, err := SigningBytes(r)
	if err != nil {
		return err
	}
	r.Signature = hex.EncodeToString(s.SignBytes(msg))
	return nil
}

// Verify checks r's signature against pub.
func Verify(r *Receipt, pub ed25519.PublicKey) error {
	if r.Signature == "" {
		return fmt.Errorf("%w: missing signature", ErrBadSignature)
	}
	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	msg, err := SigningBytes(r)
	if err != nil {
		return err
	}
	if len(pub) != ed25519.PublicKeySize || !ed25519.Verify(pub, msg, sig) {
		return ErrBadSignature
	}
	return nil
}

// VerifyChain checks the PrevHash links of receipts ordered oldest first.
func VerifyChain(rs []*Receipt) error {
	for i := 1; i < len(rs); i++ {
		h, err := Hash(rs[i-1])
		if err != nil {
			return err
		}
		if rs[i].PrevHash != h {
			return fmt.Errorf("%w at receipt %s", ErrBrokenChain, rs[i].ID)
		}
	}
	return nil
}
