package receipts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskiziarecords/OpenGate/pkg/attest"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	signer, err := attest.NewEd25519Signer("gate")
	require.NoError(t, err)
	rec := NewRecorder(s, signer)

	first := sample("Valid", true)
	second := sample("ComputedCostExceedsBudget", false)
	second.Reason = "cost 1010 > budget 1000"
	require.NoError(t, rec.Emit(ctx, first))
	require.NoError(t, rec.Emit(ctx, second))

	got, err := s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, *second, *got)
	assert.NoError(t, Verify(got, signer.PublicKey()))

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.NoError(t, VerifyChain([]*Receipt{list[1], list[0]}))

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	last, err = s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, last.ID)

	assert.Error(t, s.Append(ctx, first), "duplicate id")
}
