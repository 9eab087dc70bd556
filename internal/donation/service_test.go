package donation

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefpool/internal/events"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
)

const (
	poolAddr  = domain.Address("rPoolWalletAddress1234567890")
	donorAddr = domain.Address("rDonorWalletAddress123456789")
)

// capturingPublisher records events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event{}, p.events...)
}

func newTestService(t *testing.T) (*Service, *xrpl.MemoryGateway, *capturingPublisher) {
	t.Helper()
	gateway := xrpl.NewMemoryGateway()
	gateway.SeedAccount(poolAddr, domain.FromXRP(50))
	publisher := &capturingPublisher{}
	svc := NewService(
		NewInMemoryStore(),
		gateway,
		poolAddr,
		publisher,
		metrics.NewWith(prometheus.NewRegistry()),
		slog.New(slog.DiscardHandler),
	)
	return svc, gateway, publisher
}

// ============================================================
// Prepare
// ============================================================

func TestPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("builds an unsigned payment with autofilled fields", func(t *testing.T) {
		svc, gateway, _ := newTestService(t)
		gateway.SeedAccount(donorAddr, domain.FromXRP(100))

		prepared, err := svc.Prepare(ctx, donorAddr, domain.FromXRP(25), domain.CurrencyXRP)
		require.NoError(t, err)

		assert.Equal(t, "Payment", prepared.Payment.TransactionType)
		assert.Equal(t, donorAddr, prepared.Payment.Account)
		assert.Equal(t, poolAddr, prepared.Payment.Destination)
		assert.Equal(t, "25000000", prepared.Payment.Amount)
		assert.NotEmpty(t, prepared.Payment.Fee)
		assert.NotZero(t, prepared.Payment.Sequence)
		assert.Greater(t, prepared.Payment.LastLedgerSequence, prepared.Payment.Sequence)
		assert.NotEmpty(t, prepared.Payment.MemoData)
		assert.False(t, prepared.Funded)
	})

	t.Run("activates unknown donor accounts via the faucet", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		prepared, err := svc.Prepare(ctx, donorAddr, domain.FromXRP(5), domain.CurrencyXRP)
		require.NoError(t, err)
		assert.True(t, prepared.Funded)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Prepare(ctx, donorAddr, 0, domain.CurrencyXRP)
		assert.True(t, dErrors.IsCode(err, dErrors.CodeBadRequest))
	})

	t.Run("maps node outage to unavailable", func(t *testing.T) {
		svc, gateway, _ := newTestService(t)
		gateway.SetUnavailable(true)

		_, err := svc.Prepare(ctx, donorAddr, domain.FromXRP(1), domain.CurrencyXRP)
		assert.True(t, dErrors.IsCode(err, dErrors.CodeUnavailable))
	})
}

// ============================================================
// Submit
// ============================================================

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("records a validated payment", func(t *testing.T) {
		svc, _, publisher := newTestService(t)

		blob := xrpl.MarshalSignedBlob(poolAddr, domain.FromXRP(25), domain.CurrencyXRP)
		d, err := svc.Submit(ctx, donorAddr, blob)
		require.NoError(t, err)

		assert.Equal(t, donorAddr, d.DonorAddress)
		assert.Equal(t, domain.FromXRP(25), d.Amount)
		assert.Equal(t, domain.CurrencyXRP, d.Currency)
		assert.Equal(t, BatchStatusPending, d.BatchStatus)
		assert.Empty(t, d.BatchID)
		assert.NotEmpty(t, d.PaymentTxHash)

		evs := publisher.all()
		require.Len(t, evs, 1)
		assert.Equal(t, events.TypeDonationConfirmed, evs[0].Type)
		assert.Equal(t, d.ID.String(), evs[0].ID)
	})

	t.Run("rejects payments that fund another wallet", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		blob := xrpl.MarshalSignedBlob("rSomeOtherWalletAddress12345", domain.FromXRP(5), domain.CurrencyXRP)
		_, err := svc.Submit(ctx, donorAddr, blob)
		assert.True(t, dErrors.IsCode(err, dErrors.CodeBadRequest))
	})

	t.Run("maps signer failure to signing_failed", func(t *testing.T) {
		svc, gateway, _ := newTestService(t)
		gateway.BreakSigning(true)

		blob := xrpl.MarshalSignedBlob(poolAddr, domain.FromXRP(5), domain.CurrencyXRP)
		_, err := svc.Submit(ctx, donorAddr, blob)
		assert.True(t, dErrors.IsCode(err, dErrors.CodeSigningFailed))
	})

	t.Run("rejects an empty blob", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Submit(ctx, donorAddr, "")
		assert.True(t, dErrors.IsCode(err, dErrors.CodeBadRequest))
	})
}

// ============================================================
// Confirm
// ============================================================

func TestConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("records a payment found on ledger", func(t *testing.T) {
		svc, gateway, _ := newTestService(t)
		gateway.SeedAccount(donorAddr, domain.FromXRP(100))
		hash, err := gateway.Payment(ctx, donorAddr, poolAddr, domain.FromXRP(10), domain.CurrencyXRP)
		require.NoError(t, err)

		d, err := svc.Confirm(ctx, donorAddr, hash)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(10), d.Amount)
		assert.Equal(t, hash, d.PaymentTxHash)
	})

	t.Run("is idempotent on the payment hash", func(t *testing.T) {
		svc, gateway, publisher := newTestService(t)
		gateway.SeedAccount(donorAddr, domain.FromXRP(100))
		hash, err := gateway.Payment(ctx, donorAddr, poolAddr, domain.FromXRP(10), domain.CurrencyXRP)
		require.NoError(t, err)

		first, err := svc.Confirm(ctx, donorAddr, hash)
		require.NoError(t, err)
		second, err := svc.Confirm(ctx, donorAddr, hash)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, publisher.all(), 1)
	})

	t.Run("unknown hash is not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Confirm(ctx, donorAddr, "DEADBEEF")
		assert.True(t, dErrors.IsCode(err, dErrors.CodeNotFound))
	})
}

func TestDonations(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for _, amount := range []float64{1, 2, 3} {
		blob := xrpl.MarshalSignedBlob(poolAddr, domain.FromXRP(amount), domain.CurrencyXRP)
		_, err := svc.Submit(ctx, donorAddr, blob)
		require.NoError(t, err)
	}
	blob := xrpl.MarshalSignedBlob(poolAddr, domain.FromXRP(9), domain.CurrencyXRP)
	_, err := svc.Submit(ctx, "rAnotherDonorAddress12345678", blob)
	require.NoError(t, err)

	ds, err := svc.Donations(ctx, donorAddr)
	require.NoError(t, err)
	require.Len(t, ds, 3)
	for _, d := range ds {
		assert.Equal(t, donorAddr, d.DonorAddress)
	}
}
