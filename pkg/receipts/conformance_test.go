package receipts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/receipts"
)

// A stored decision cannot be rewritten without breaking both its own
// signature and the link from its successor.
func TestReceiptTamperResistance(t *testing.T) {
	ctx := context.Background()
	signer, err := attest.NewEd25519Signer("gate")
	require.NoError(t, err)
	rec := receipts.NewRecorder(receipts.NewMemoryStore(), signer)

	results := []string{"Valid", "ComputedCostExceedsBudget", "Valid"}
	for i, res := range results {
		r := receipts.New()
		r.Result = res
		r.Admitted = res == "Valid"
		r.Cost = uint64(100 * (i + 1))
		require.NoError(t, rec.Emit(ctx, r))
	}

	newest, err := rec.Store().List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, newest, 3)
	chain := []*receipts.Receipt{newest[2], newest[1], newest[0]}
	require.NoError(t, receipts.VerifyChain(chain))

	// Flip the rejection into an admission.
	forged := *chain[1]
	forged.Admitted = true
	forged.Result = "Valid"
	chain[1] = &forged

	assert.ErrorIs(t, receipts.Verify(&forged, signer.PublicKey()), receipts.ErrBadSignature)
	assert.ErrorIs(t, receipts.VerifyChain(chain), receipts.ErrBrokenChain)

	// Re-signing with another key fixes neither the trust root nor the chain.
	other, err := attest.NewEd25519Signer("attacker")
	require.NoError(t, err)
	require.NoError(t, receipts.Sign(&forged, other))
	assert.ErrorIs(t, receipts.Verify(&forged, signer.PublicKey()), receipts.ErrBadSignature)
	assert.ErrorIs(t, receipts.VerifyChain(chain), receipts.ErrBrokenChain)
}
