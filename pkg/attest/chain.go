package attest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// ErrUnknownParent is returned when a certificate's parent was never admitted.
var ErrUnknownParent = errors.New("attest: parent certificate unknown")

// ChainVerifier checks that a certificate chains to a previously accepted one.
type ChainVerifier interface {
	VerifyHashChain(ctx context.Context, c *gate.Certificate) error
}

// DigestLookup reports whether a certificate digest has been accepted.
// ledger.Ledger satisfies it.
type DigestLookup interface {
	Has(ctx context.Context, digest [32]byte) (bool, error)
}

// LedgerChain accepts a genesis certificate (all-zero parent hash) or one whose
// parent digest is present in the lookup.
type LedgerChain struct {
	lookup DigestLookup
}

// NewLedgerChain creates a chain verifier backed by lookup.
func NewLedgerChain(lookup DigestLookup) *LedgerChain {
	return &LedgerChain{lookup: lookup}
}

// IsGenesis reports whether c has no parent.
func IsGenesis(c *gate.Certificate) bool {
	return c.ParentHash == [32]byte{}
}

func (l *LedgerChain) VerifyHashChain(ctx context.Context, c *gate.Certificate) error {
	if c == nil {
		return ErrUnknownParent
	}
	if IsGenesis(c) {
		return nil
	}
	ok, err := l.lookup.Has(ctx, c.ParentHash)
	if err != nil {
		// FAIL-CLOSED: a lookup error never admits.
		return fmt.Errorf("parent lookup failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParent, hex.EncodeToString(c.ParentHash[:]))
	}
	return nil
}
