package status

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefpool/internal/batch"
	"reliefpool/internal/donation"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
)

const (
	testPool    = domain.Address("rPoolWalletAddress1234567890")
	testReserve = domain.Address("rReserveWalletAddress1234567")
	testDonor   = domain.Address("rDonorWalletAddress123456789")
)

type statusFixture struct {
	service   *Service
	gateway   *xrpl.MemoryGateway
	donations *donation.InMemoryStore
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()
	f := &statusFixture{
		gateway:   xrpl.NewMemoryGateway(),
		donations: donation.NewInMemoryStore(),
	}
	f.gateway.SeedAccount(testPool, domain.FromXRP(500))
	f.gateway.SeedAccount(testReserve, domain.FromXRP(200))
	f.gateway.SeedTokenBalance(testReserve, domain.CurrencyRLUSD, domain.FromXRP(50))

	f.service = NewService(ServiceConfig{
		Gateway:          f.gateway,
		Donations:        f.donations,
		Metrics:          metrics.NewWith(prometheus.NewRegistry()),
		Logger:           slog.New(slog.DiscardHandler),
		Network:          "devnet",
		Pool:             testPool,
		Reserve:          testReserve,
		DefaultThreshold: domain.FromXRP(100),
		Window:           time.Hour,
	})
	return f
}

// ============================================================
// Status
// ============================================================

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("reports live wallet balances", func(t *testing.T) {
		f := newStatusFixture(t)

		result, err := f.service.Status(ctx)
		require.NoError(t, err)
		assert.True(t, result.Known)
		assert.Equal(t, "devnet", result.Snapshot.Network)
		assert.Equal(t, domain.FromXRP(500), result.Snapshot.PoolBalance)
		assert.Equal(t, domain.FromXRP(200), result.Snapshot.ReserveBalance)
		assert.Equal(t, domain.FromXRP(50), result.Snapshot.ReserveRLUSD)
		assert.NotZero(t, result.Snapshot.LedgerIndex)
		assert.False(t, result.Snapshot.FetchedAt.IsZero())
	})

	t.Run("serves the last good snapshot through an outage", func(t *testing.T) {
		f := newStatusFixture(t)

		first, err := f.service.Status(ctx)
		require.NoError(t, err)
		require.True(t, first.Known)

		f.gateway.SetUnavailable(true)

		stale, err := f.service.Status(ctx)
		require.NoError(t, err)
		assert.False(t, stale.Known)
		assert.Equal(t, first.Snapshot, stale.Snapshot)
	})

	t.Run("an outage with no prior snapshot is an error", func(t *testing.T) {
		f := newStatusFixture(t)
		f.gateway.SetUnavailable(true)

		_, err := f.service.Status(ctx)
		require.Error(t, err)
	})

	t.Run("a disconnecting caller does not kill the shared fetch", func(t *testing.T) {
		f := newStatusFixture(t)
		f.service.cfg.Gateway = cancelAwareGateway{f.gateway}

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		// The fetch is coalesced across callers, so it must survive the
		// request context of whoever started it.
		result, err := f.service.Status(canceled)
		require.NoError(t, err)
		assert.True(t, result.Known)
		assert.Equal(t, domain.FromXRP(500), result.Snapshot.PoolBalance)
	})

	t.Run("recovers once the node is back", func(t *testing.T) {
		f := newStatusFixture(t)
		f.gateway.SetUnavailable(true)
		_, err := f.service.Status(ctx)
		require.Error(t, err)

		f.gateway.SetUnavailable(false)
		result, err := f.service.Status(ctx)
		require.NoError(t, err)
		assert.True(t, result.Known)
	})
}

// cancelAwareGateway fails balance reads once the caller's context is done,
// the way a real node client would.
type cancelAwareGateway struct {
	*xrpl.MemoryGateway
}

func (g cancelAwareGateway) AccountBalance(ctx context.Context, addr domain.Address) (domain.Drops, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return g.MemoryGateway.AccountBalance(ctx, addr)
}

// ============================================================
// Threshold and progress
// ============================================================

func TestThreshold(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to the configured default without a cache", func(t *testing.T) {
		f := newStatusFixture(t)

		threshold, err := f.service.Threshold(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(100), threshold)
	})
}

func TestProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("measures pending donations against the threshold", func(t *testing.T) {
		f := newStatusFixture(t)
		require.NoError(t, f.donations.Create(ctx, donation.Donation{
			ID:            domain.NewDonationID(),
			DonorAddress:  testDonor,
			Amount:        domain.FromXRP(40),
			Currency:      domain.CurrencyXRP,
			PaymentTxHash: "PENDING_TX_1",
			BatchStatus:   donation.BatchStatusPending,
			CreatedAt:     time.Now().UTC(),
		}))

		progress, err := f.service.Progress(ctx, domain.CurrencyXRP)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(40), progress.PendingTotal)
		assert.Equal(t, domain.FromXRP(60), progress.Remaining)
		assert.Equal(t, 1, progress.Donations)
		assert.False(t, progress.Ready())
	})

	t.Run("reports ready at the threshold", func(t *testing.T) {
		f := newStatusFixture(t)
		for _, donor := range []domain.Address{testDonor, "rSecondDonorWallet1234567890"} {
			require.NoError(t, f.donations.Create(ctx, donation.Donation{
				ID:            domain.NewDonationID(),
				DonorAddress:  donor,
				Amount:        domain.FromXRP(50),
				Currency:      domain.CurrencyXRP,
				PaymentTxHash: domain.TxHash("PENDING_" + domain.NewDonationID().String()),
				BatchStatus:   donation.BatchStatusPending,
				CreatedAt:     time.Now().UTC(),
			}))
		}

		progress, err := f.service.Progress(ctx, domain.CurrencyXRP)
		require.NoError(t, err)
		assert.True(t, progress.Ready())
		assert.Equal(t, batch.TriggerThreshold, progress.Trigger)
		assert.Equal(t, domain.Drops(0), progress.Remaining)
	})
}
