package admission_test

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/deskiziarecords/OpenGate/pkg/admission"
	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/config"
	"github.com/deskiziarecords/OpenGate/pkg/gate"
	"github.com/deskiziarecords/OpenGate/pkg/issuance"
	"github.com/deskiziarecords/OpenGate/pkg/ledger"
	"github.com/deskiziarecords/OpenGate/pkg/observability"
	"github.com/deskiziarecords/OpenGate/pkg/receipts"
)

func packed(t *testing.T, patch []byte, opts ...issuance.Option) []byte {
	t.Helper()
	c, err := issuance.Pack(patch, opts...)
	require.NoError(t, err)
	b := c.MarshalPacked()
	return b[:]
}

func newGate(t *testing.T, p *config.Profile, opts ...admission.Option) *admission.Gate {
	t.Helper()
	g, err := admission.New(p, opts...)
	require.NoError(t, err)
	return g
}

func TestAdmit_DefaultProfile(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewMemoryLedger()
	g := newGate(t, nil, admission.WithLedger(led))

	patch := []byte("cat")
	cert := packed(t, patch, issuance.WithBudget(1000))

	d, err := g.Admit(ctx, admission.Request{Certificate: cert, Patch: patch})
	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.Equal(t, "Valid", d.Result)
	assert.Equal(t, 0, d.Code)
	assert.Equal(t, admission.ReasonAdmitted, d.Reason)
	assert.Equal(t, uint64(820), d.Cost)
	assert.Equal(t, "packed", d.Layout)
	assert.NotEmpty(t, d.ReceiptID)

	decoded, _, err := gate.Decode(cert)
	require.NoError(t, err)
	digest := decoded.Digest()
	assert.Equal(t, hex.EncodeToString(digest[:]), d.CertificateDigest)
	ok, err := led.Has(ctx, digest)
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := g.Receipts().Get(ctx, d.ReceiptID)
	require.NoError(t, err)
	assert.True(t, r.Admitted)
	assert.Equal(t, d.CertificateDigest, r.CertificateDigest)
	assert.Equal(t, uint32(1000), r.Budget)
}

func TestAdmit_HostLayout(t *testing.T) {
	g := newGate(t, nil)
	patch := []byte("cat")
	c, err := issuance.Pack(patch, issuance.WithBudget(1000))
	require.NoError(t, err)
	host := c.MarshalHost()

	d, err := g.Admit(context.Background(), admission.Request{Certificate: host[:], Patch: patch})
	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.Equal(t, "host", d.Layout)
}

func TestAdmit_Malformed(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewMemoryLedger()
	g := newGate(t, nil, admission.WithLedger(led))

	d, err := g.Admit(ctx, admission.Request{Certificate: make([]byte, 10), Patch: []byte("A")})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ResultMalformed, d.Result)
	assert.Equal(t, gate.InvalidMagic.Code(), d.Code)
	assert.Equal(t, admission.ReasonMalformed, d.Reason)
	assert.Equal(t, uint64(450), d.Cost)
	assert.Empty(t, d.CertificateDigest)
	assert.NotEmpty(t, d.ReceiptID)
	assert.Equal(t, 0, led.Len())
}

func TestAdmit_CoreRejections(t *testing.T) {
	g := newGate(t, nil)

	tests := []struct {
		name  string
		opts  []issuance.Option
		patch []byte
		want  gate.Result
	}{
		{"over budget", []issuance.Option{issuance.WithBudget(449)}, []byte("A"), gate.ComputedCostExceedsBudget},
		{"budget above ceiling", []issuance.Option{issuance.WithBudget(gate.BudgetHardMax + 1)}, nil, gate.BudgetExceedsHardMax},
		{"epsilon above max", []issuance.Option{issuance.WithEpsilon(gate.EpsilonMax + 1)}, nil, gate.EpsilonExceedsMax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := g.Admit(context.Background(), admission.Request{
				Certificate: packed(t, tt.patch, tt.opts...),
				Patch:       tt.patch,
			})
			require.NoError(t, err)
			assert.False(t, d.Admitted)
			assert.Equal(t, tt.want.String(), d.Result)
			assert.Equal(t, tt.want.Code(), d.Code)
			assert.Equal(t, admission.ReasonCoreRejected, d.Reason)
			assert.Contains(t, d.Detail, tt.want.Err().Error())
		})
	}

	magic := packed(t, nil)
	copy(magic, "XXXX")
	d, err := g.Admit(context.Background(), admission.Request{Certificate: magic})
	require.NoError(t, err)
	assert.Equal(t, gate.InvalidMagic.String(), d.Result)
}

func TestAdmit_PatchHashMismatch(t *testing.T) {
	g := newGate(t, config.DefaultProfile())
	cert := packed(t, []byte("cat"), issuance.WithBudget(1000))

	d, err := g.Admit(context.Background(), admission.Request{Certificate: cert, Patch: []byte("dog")})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, "Valid", d.Result)
	assert.Equal(t, admission.ReasonPatchHashMismatch, d.Reason)

	// Without the check, the core verdict is all that matters.
	g = newGate(t, &config.Profile{Name: "lax"})
	d, err = g.Admit(context.Background(), admission.Request{Certificate: cert, Patch: []byte("dog")})
	require.NoError(t, err)
	assert.True(t, d.Admitted)
}

func TestAdmit_StrictHardMax(t *testing.T) {
	patch := []byte("cat")
	cert := packed(t, patch, issuance.WithBudget(1000), issuance.WithHardMax(900))

	lax := newGate(t, nil)
	d, err := lax.Admit(context.Background(), admission.Request{Certificate: cert, Patch: patch})
	require.NoError(t, err)
	assert.True(t, d.Admitted, "core ignores the certificate's hard_max")

	strict := newGate(t, &config.Profile{Name: "strict", StrictHardMax: true})
	d, err = strict.Admit(context.Background(), admission.Request{Certificate: cert, Patch: patch})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonHardMaxExceeded, d.Reason)
}

func TestAdmit_Signature(t *testing.T) {
	ctx := context.Background()
	issuer, err := attest.NewEd25519Signer("vendor")
	require.NoError(t, err)
	rogue, err := attest.NewEd25519Signer("rogue")
	require.NoError(t, err)

	p := &config.Profile{
		Name:             "signed",
		RequireSignature: true,
		TrustedKeys:      []string{"ed25519:" + issuer.PublicKeyHex()},
	}
	g := newGate(t, p)
	patch := []byte("cat")

	d, err := g.Admit(ctx, admission.Request{Certificate: packed(t, patch), Patch: patch})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonSignatureInvalid, d.Reason)
	assert.Contains(t, d.Detail, attest.ErrUnsigned.Error())

	d, err = g.Admit(ctx, admission.Request{Certificate: packed(t, patch, issuance.WithSigner(rogue)), Patch: patch})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonSignatureInvalid, d.Reason)

	d, err = g.Admit(ctx, admission.Request{Certificate: packed(t, patch, issuance.WithSigner(issuer)), Patch: patch})
	require.NoError(t, err)
	assert.True(t, d.Admitted)
}

func TestAdmit_HashChain(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, &config.Profile{Name: "chained", RequireChain: true})

	parent, err := issuance.Pack([]byte("v1"))
	require.NoError(t, err)
	parentDigest := parent.Digest()
	child := packed(t, []byte("v2"), issuance.WithParent(hex.EncodeToString(parentDigest[:])))

	d, err := g.Admit(ctx, admission.Request{Certificate: child, Patch: []byte("v2")})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonChainUnverified, d.Reason)

	pb := parent.MarshalPacked()
	d, err = g.Admit(ctx, admission.Request{Certificate: pb[:], Patch: []byte("v1")})
	require.NoError(t, err)
	require.True(t, d.Admitted, "genesis certificate")

	d, err = g.Admit(ctx, admission.Request{Certificate: child, Patch: []byte("v2")})
	require.NoError(t, err)
	assert.True(t, d.Admitted)
}

func TestAdmit_Rules(t *testing.T) {
	g := newGate(t, &config.Profile{Name: "ruled", Rules: []string{"margin >= 500"}})
	patch := []byte("cat")

	d, err := g.Admit(context.Background(), admission.Request{
		Certificate: packed(t, patch, issuance.WithBudget(1000)),
		Patch:       patch,
	})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonRuleDenied, d.Reason)
	assert.Contains(t, d.Detail, "margin >= 500")

	d, err = g.Admit(context.Background(), admission.Request{
		Certificate: packed(t, patch, issuance.WithBudget(2000)),
		Patch:       patch,
	})
	require.NoError(t, err)
	assert.True(t, d.Admitted)
}

type brokenLedger struct{ ledger.Ledger }

func (brokenLedger) Record(context.Context, [32]byte, *gate.Certificate) error {
	return errors.New("connection refused")
}

func TestAdmit_LedgerFailureDenies(t *testing.T) {
	ctx := context.Background()
	store := receipts.NewMemoryStore()
	g := newGate(t, nil,
		admission.WithLedger(brokenLedger{ledger.NewMemoryLedger()}),
		admission.WithRecorder(receipts.NewRecorder(store, nil)),
	)
	patch := []byte("cat")

	d, err := g.Admit(ctx, admission.Request{
		Certificate: packed(t, patch),
		Patch:       patch,
	})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonLedgerUnavailable, d.Reason)

	// The admitting receipt is superseded by a denying one.
	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, d.ReceiptID, list[0].ID)
	assert.False(t, list[0].Admitted)
	assert.Equal(t, admission.ReasonLedgerUnavailable, list[0].Reason)
	assert.True(t, list[1].Admitted)
	assert.NoError(t, receipts.VerifyChain([]*receipts.Receipt{list[1], list[0]}))
}

type brokenStore struct{ *receipts.MemoryStore }

func (brokenStore) Append(context.Context, *receipts.Receipt) error {
	return errors.New("disk full")
}

func TestAdmit_ReceiptFailureIsError(t *testing.T) {
	ctx := context.Background()
	rec := receipts.NewRecorder(brokenStore{receipts.NewMemoryStore()}, nil)
	g := newGate(t, nil, admission.WithRecorder(rec))
	patch := []byte("cat")
	raw := packed(t, patch)

	d, err := g.Admit(ctx, admission.Request{Certificate: raw, Patch: patch})
	require.Error(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonReceiptUnavailable, d.Reason)
	assert.Empty(t, d.ReceiptID)

	cert, _, err := gate.Decode(raw)
	require.NoError(t, err)
	has, err := g.Ledger().Has(ctx, cert.Digest())
	require.NoError(t, err)
	assert.False(t, has, "unrecorded admission must not reach the ledger")
}

func TestAdmit_ReceiptFailureBlocksChildren(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewMemoryLedger()
	broken := newGate(t, nil,
		admission.WithLedger(led),
		admission.WithRecorder(receipts.NewRecorder(brokenStore{receipts.NewMemoryStore()}, nil)),
	)
	parent := packed(t, []byte("v1"))
	_, err := broken.Admit(ctx, admission.Request{Certificate: parent, Patch: []byte("v1")})
	require.Error(t, err)
	assert.Zero(t, led.Len())

	chained := newGate(t, &config.Profile{Name: "chain", RequireChain: true}, admission.WithLedger(led))
	pc, _, err := gate.Decode(parent)
	require.NoError(t, err)
	digest := pc.Digest()
	child := packed(t, []byte("v2"), issuance.WithParent(hex.EncodeToString(digest[:])))

	d, err := chained.Admit(ctx, admission.Request{Certificate: child, Patch: []byte("v2")})
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, admission.ReasonChainUnverified, d.Reason)
}

func TestAdmit_SignedReceiptChain(t *testing.T) {
	ctx := context.Background()
	signer, err := attest.NewEd25519Signer("gate")
	require.NoError(t, err)
	store := receipts.NewMemoryStore()
	g := newGate(t, nil, admission.WithRecorder(receipts.NewRecorder(store, signer)))

	for _, p := range []string{"cat", "AAA", "dog"} {
		_, err := g.Admit(ctx, admission.Request{
			Certificate: packed(t, []byte(p), issuance.WithBudget(1000)),
			Patch:       []byte(p),
		})
		require.NoError(t, err)
	}

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, r := range list {
		assert.NoError(t, receipts.Verify(r, signer.PublicKey()))
	}
	oldestFirst := []*receipts.Receipt{list[2], list[1], list[0]}
	assert.NoError(t, receipts.VerifyChain(oldestFirst))
	assert.False(t, list[1].Admitted, "AAA costs 1350")
}

func TestAdmit_MetricsAndSLO(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(ctx) }()
	metrics, err := observability.NewWithMeterProvider(mp)
	require.NoError(t, err)
	slo := observability.NewSLOTracker(observability.DefaultTargets()...)

	g := newGate(t, nil, admission.WithMetrics(metrics), admission.WithSLO(slo))
	patch := []byte("cat")
	_, err = g.Admit(ctx, admission.Request{Certificate: packed(t, patch), Patch: patch})
	require.NoError(t, err)
	_, err = g.Admit(ctx, admission.Request{Certificate: []byte("short"), Patch: patch})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "opengate.admissions.total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)

	st, err := slo.Status(observability.OpAdmit)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ObservationCount)
	st, err = slo.Status(observability.OpValidate)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ObservationCount, "malformed records never reach the core")
}

func TestValidate_RecordsNothing(t *testing.T) {
	led := ledger.NewMemoryLedger()
	g := newGate(t, nil, admission.WithLedger(led))
	patch := []byte("cat")

	d := g.Validate(admission.Request{Certificate: packed(t, patch), Patch: patch})
	assert.True(t, d.Admitted)
	assert.Equal(t, "Valid", d.Result)
	assert.Empty(t, d.ReceiptID)
	assert.Equal(t, 0, led.Len())

	list, err := g.Receipts().List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNew_Errors(t *testing.T) {
	_, err := admission.New(&config.Profile{Name: "p", RequireSignature: true})
	assert.ErrorIs(t, err, attest.ErrNoTrustedKeys)

	_, err = admission.New(&config.Profile{Name: "p", TrustedKeys: []string{"zz"}})
	assert.Error(t, err)

	_, err = admission.New(&config.Profile{Name: "p", Rules: []string{"cost +"}})
	assert.Error(t, err)
}
