package batch

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefpool/internal/donation"
	"reliefpool/internal/events"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
)

const (
	testPool    = domain.Address("rPoolWalletAddress1234567890")
	testReserve = domain.Address("rReserveWalletAddress1234567")
)

type managerFixture struct {
	manager   *Manager
	batches   *InMemoryStore
	donations *donation.InMemoryStore
	gateway   *xrpl.MemoryGateway
	events    *events.Broadcaster
	stream    <-chan events.Event
	now       time.Time
}

func newManagerFixture(t *testing.T, threshold domain.Drops) *managerFixture {
	t.Helper()

	f := &managerFixture{
		batches:   NewInMemoryStore(),
		donations: donation.NewInMemoryStore(),
		gateway:   xrpl.NewMemoryGateway(),
		events:    events.NewBroadcaster(),
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.gateway.SeedAccount(testPool, domain.FromXRP(1000))
	f.gateway.SeedAccount(testReserve, domain.FromXRP(20))

	stream, cancel := f.events.Subscribe()
	t.Cleanup(cancel)
	f.stream = stream

	f.manager = NewManager(ManagerConfig{
		Batches:      f.batches,
		Donations:    f.donations,
		Gateway:      f.gateway,
		Thresholds:   StaticThreshold(threshold),
		Publisher:    f.events,
		Metrics:      metrics.NewWith(prometheus.NewRegistry()),
		Logger:       slog.New(slog.DiscardHandler),
		Pool:         testPool,
		Reserve:      testReserve,
		Window:       15 * time.Minute,
		PollInterval: time.Second,
		LockDuration: time.Minute,
	})
	f.manager.now = func() time.Time { return f.now }
	return f
}

func (f *managerFixture) addPending(t *testing.T, donor domain.Address, amount domain.Drops, currency domain.Currency, at time.Time) donation.Donation {
	t.Helper()
	d := pendingDonation(donor, amount, currency, at)
	d.PaymentTxHash = domain.TxHash("HASH_" + d.ID.String())
	require.NoError(t, f.donations.Create(context.Background(), d))
	return d
}

func TestManagerSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("forms a locked batch when the threshold is met", func(t *testing.T) {
		f := newManagerFixture(t, domain.FromXRP(100))
		f.addPending(t, "rDonorA1234567890123456789012", domain.FromXRP(60), domain.CurrencyXRP, f.now.Add(-time.Minute))
		f.addPending(t, "rDonorB1234567890123456789012", domain.FromXRP(45), domain.CurrencyXRP, f.now.Add(-time.Minute))

		require.NoError(t, f.manager.Sweep(ctx))

		batches, err := f.batches.List(ctx)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		b := batches[0]
		assert.Equal(t, StatusLocked, b.Status)
		assert.Equal(t, TriggerThreshold, b.Trigger)
		assert.Equal(t, domain.FromXRP(105), b.TotalAmount)
		assert.Equal(t, 2, b.DonorCount)
		assert.NotEmpty(t, b.EscrowTxHash)

		// Donations now carry the batch and are no longer pending.
		pending, err := f.donations.ListPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
		swept, err := f.donations.ListByBatch(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, swept, 2)

		// Pool balance moved into the escrow.
		bal, err := f.gateway.AccountBalance(ctx, testPool)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(895), bal)

		ev := <-f.stream
		assert.Equal(t, events.TypeBatchCreated, ev.Type)
		assert.Equal(t, b.ID.String(), ev.ID)
	})

	t.Run("does nothing below threshold inside the window", func(t *testing.T) {
		f := newManagerFixture(t, domain.FromXRP(100))
		f.addPending(t, "rDonorA1234567890123456789012", domain.FromXRP(10), domain.CurrencyXRP, f.now.Add(-time.Minute))

		require.NoError(t, f.manager.Sweep(ctx))

		batches, err := f.batches.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, batches)
	})

	t.Run("time trigger sweeps stale small donations", func(t *testing.T) {
		f := newManagerFixture(t, domain.FromXRP(100))
		f.addPending(t, "rDonorA1234567890123456789012", domain.FromXRP(3), domain.CurrencyXRP, f.now.Add(-time.Hour))

		require.NoError(t, f.manager.Sweep(ctx))

		batches, err := f.batches.List(ctx)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Equal(t, TriggerTime, batches[0].Trigger)
		assert.Equal(t, domain.FromXRP(3), batches[0].TotalAmount)
	})

	t.Run("sweeps each currency into its own batch", func(t *testing.T) {
		f := newManagerFixture(t, domain.FromXRP(100))
		f.gateway.SeedTokenBalance(testPool, domain.CurrencyRLUSD, domain.FromXRP(500))
		f.addPending(t, "rDonorA1234567890123456789012", domain.FromXRP(120), domain.CurrencyXRP, f.now.Add(-time.Minute))
		f.addPending(t, "rDonorB1234567890123456789012", domain.FromXRP(130), domain.CurrencyRLUSD, f.now.Add(-time.Minute))

		require.NoError(t, f.manager.Sweep(ctx))

		batches, err := f.batches.List(ctx)
		require.NoError(t, err)
		require.Len(t, batches, 2)
		seen := map[domain.Currency]bool{}
		for _, b := range batches {
			seen[b.Currency] = true
			assert.Equal(t, StatusLocked, b.Status)
		}
		assert.True(t, seen[domain.CurrencyXRP])
		assert.True(t, seen[domain.CurrencyRLUSD])
	})

	t.Run("escrow failure leaves donations pending and no batch row", func(t *testing.T) {
		f := newManagerFixture(t, domain.FromXRP(100))
		f.gateway.FailEscrowsTo(testReserve, "destination unfunded")
		f.addPending(t, "rDonorA1234567890123456789012", domain.FromXRP(200), domain.CurrencyXRP, f.now.Add(-time.Minute))

		err := f.manager.Sweep(ctx)
		require.Error(t, err)

		batches, listErr := f.batches.List(ctx)
		require.NoError(t, listErr)
		assert.Empty(t, batches)
		pending, listErr := f.donations.ListPending(ctx)
		require.NoError(t, listErr)
		assert.Len(t, pending, 1)
	})

	t.Run("sweep is quiet with no pending donations", func(t *testing.T) {
		f := newManagerFixture(t, domain.FromXRP(100))
		require.NoError(t, f.manager.Sweep(ctx))
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t, domain.FromXRP(100))
	f.addPending(t, "rDonorA1234567890123456789012", domain.FromXRP(75), domain.CurrencyXRP, f.now.Add(-time.Minute))
	f.addPending(t, "rDonorB1234567890123456789012", domain.FromXRP(25), domain.CurrencyXRP, f.now.Add(-time.Minute))
	require.NoError(t, f.manager.Sweep(ctx))

	batches, err := f.batches.List(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	svc := NewService(f.batches, f.donations)
	detail, err := svc.Get(ctx, batches[0].ID)
	require.NoError(t, err)

	require.Len(t, detail.Donors, 2)
	byAddr := map[domain.Address]DonorShare{}
	for _, d := range detail.Donors {
		byAddr[d.Address] = d
	}
	assert.InDelta(t, 75.0, byAddr["rDonorA1234567890123456789012"].Pct, 1e-9)
	assert.InDelta(t, 25.0, byAddr["rDonorB1234567890123456789012"].Pct, 1e-9)
}
