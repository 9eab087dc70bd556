package settlement

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefpool/internal/batch"
	"reliefpool/internal/disaster"
	"reliefpool/internal/donation"
	"reliefpool/internal/events"
	"reliefpool/internal/organization"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
)

const (
	poolAddr    = domain.Address("rPoolWalletAddress1234567890")
	reserveAddr = domain.Address("rReserveWalletAddress1234567")
	healthAddr  = domain.Address("rHealthOrgWallet123456789012")
	shelterAddr = domain.Address("rShelterOrgWallet12345678901")
	donorAddr   = domain.Address("rDonorWalletAddress123456789")
)

type settlementFixture struct {
	worker    *Worker
	batches   *batch.InMemoryStore
	donations *donation.InMemoryStore
	disasters *disaster.InMemoryStore
	orgs      *organization.InMemoryStore
	gateway   *xrpl.MemoryGateway
	manager   *batch.Manager
	trigger   *disaster.Service
	now       time.Time
}

// advance moves the fixture clock for the worker, manager and trigger alike.
func (f *settlementFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	f := &settlementFixture{
		batches:   batch.NewInMemoryStore(),
		donations: donation.NewInMemoryStore(),
		disasters: disaster.NewInMemoryStore(),
		orgs:      organization.NewInMemoryStore(),
		gateway:   xrpl.NewMemoryGateway(),
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.gateway.SeedAccount(poolAddr, domain.FromXRP(1000))
	f.gateway.SeedAccount(reserveAddr, domain.FromXRP(10))
	f.gateway.SeedAccount(healthAddr, 0)
	f.gateway.SeedAccount(shelterAddr, 0)

	ctx := context.Background()
	for _, org := range []organization.Organization{
		{Name: "Health Relief Intl", CauseType: domain.CauseHealth, WalletAddress: healthAddr, NeedScore: 6},
		{Name: "Shelter Now", CauseType: domain.CauseShelter, WalletAddress: shelterAddr, NeedScore: 2},
	} {
		_, err := f.orgs.Create(ctx, org)
		require.NoError(t, err)
	}

	m := metrics.NewWith(prometheus.NewRegistry())
	logger := slog.New(slog.DiscardHandler)
	clock := func() time.Time { return f.now }

	f.manager = batch.NewManager(batch.ManagerConfig{
		Batches:      f.batches,
		Donations:    f.donations,
		Gateway:      f.gateway,
		Thresholds:   batch.StaticThreshold(domain.FromXRP(100)),
		Publisher:    events.NopPublisher{},
		Metrics:      m,
		Logger:       logger,
		Pool:         poolAddr,
		Reserve:      reserveAddr,
		Window:       15 * time.Minute,
		PollInterval: time.Second,
		LockDuration: time.Minute,
		Now:          clock,
	})

	f.trigger = disaster.NewService(disaster.ServiceConfig{
		Store:        f.disasters,
		Orgs:         f.orgs,
		Gateway:      f.gateway,
		Publisher:    events.NopPublisher{},
		Metrics:      m,
		Logger:       logger,
		Reserve:      reserveAddr,
		ReserveFloor: domain.FromXRP(10),
		LockDuration: time.Minute,
		Now:          clock,
	})

	f.worker = NewWorker(WorkerConfig{
		Batches:      f.batches,
		Disasters:    f.disasters,
		Orgs:         f.orgs,
		Gateway:      f.gateway,
		Publisher:    events.NopPublisher{},
		Metrics:      m,
		Logger:       logger,
		Pool:         poolAddr,
		Reserve:      reserveAddr,
		PollInterval: time.Second,
		Now:          clock,
	})
	return f
}

func (f *settlementFixture) confirmDonation(t *testing.T, amount domain.Drops) {
	t.Helper()
	d := donation.Donation{
		ID:            domain.NewDonationID(),
		DonorAddress:  donorAddr,
		Amount:        amount,
		Currency:      domain.CurrencyXRP,
		PaymentTxHash: domain.TxHash("HASH_" + domain.NewDonationID().String()),
		BatchStatus:   donation.BatchStatusPending,
		CreatedAt:     f.now,
	}
	require.NoError(t, f.donations.Create(context.Background(), d))
}

func TestSettleBatches(t *testing.T) {
	ctx := context.Background()

	t.Run("releases a matured batch escrow into the reserve", func(t *testing.T) {
		f := newSettlementFixture(t)
		f.confirmDonation(t, domain.FromXRP(120))
		require.NoError(t, f.manager.Sweep(ctx))

		// Before maturity nothing settles.
		f.worker.Settle(ctx)
		batches, err := f.batches.List(ctx)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Equal(t, batch.StatusLocked, batches[0].Status)

		f.advance(2 * time.Minute)
		f.worker.Settle(ctx)

		batches, err = f.batches.List(ctx)
		require.NoError(t, err)
		b := batches[0]
		assert.Equal(t, batch.StatusFinished, b.Status)
		assert.NotEmpty(t, b.FinishTxHash)
		require.NotNil(t, b.FinishedAt)

		bal, err := f.gateway.AccountBalance(ctx, reserveAddr)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(130), bal)
	})

	t.Run("settling twice is harmless", func(t *testing.T) {
		f := newSettlementFixture(t)
		f.confirmDonation(t, domain.FromXRP(120))
		require.NoError(t, f.manager.Sweep(ctx))
		f.advance(2 * time.Minute)

		f.worker.Settle(ctx)
		f.worker.Settle(ctx)

		bal, err := f.gateway.AccountBalance(ctx, reserveAddr)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(130), bal)
	})
}

func TestSettleOrgEscrows(t *testing.T) {
	ctx := context.Background()

	t.Run("releases matured org escrows and completes the disaster", func(t *testing.T) {
		f := newSettlementFixture(t)
		// Fund the reserve via a settled batch first.
		f.confirmDonation(t, domain.FromXRP(120))
		require.NoError(t, f.manager.Sweep(ctx))
		f.advance(2 * time.Minute)
		f.worker.Settle(ctx)

		detail, err := f.trigger.Trigger(ctx, disaster.TriggerRequest{
			Type:     "earthquake",
			Location: "Valparaiso",
			Severity: 8,
			Causes:   []domain.CauseType{domain.CauseHealth, domain.CauseShelter},
			Currency: domain.CurrencyXRP,
		})
		require.NoError(t, err)
		// 130 reserve - 10 floor = 120 XRP, split 90/30 on need 6:2.
		assert.Equal(t, domain.FromXRP(120), detail.Disaster.TotalAllocated)

		f.advance(2 * time.Minute)
		f.worker.Settle(ctx)

		got, err := f.trigger.Get(ctx, detail.Disaster.ID)
		require.NoError(t, err)
		assert.Equal(t, disaster.StatusCompleted, got.Disaster.Status)
		require.NotNil(t, got.Disaster.CompletedAt)
		for _, e := range got.Escrows {
			assert.Equal(t, disaster.EscrowStatusFinished, e.Status)
			assert.NotEmpty(t, e.FinishTxHash)
		}

		healthBal, err := f.gateway.AccountBalance(ctx, healthAddr)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(90), healthBal)
		shelterBal, err := f.gateway.AccountBalance(ctx, shelterAddr)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(30), shelterBal)

		orgs, err := f.orgs.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(90), orgs[0].TotalReceived)
		assert.Equal(t, domain.FromXRP(30), orgs[1].TotalReceived)
	})

	t.Run("failed escrows never block completion", func(t *testing.T) {
		f := newSettlementFixture(t)
		f.gateway.SeedAccount(reserveAddr, domain.FromXRP(50))
		f.gateway.FailEscrowsTo(shelterAddr, "destination unfunded")

		detail, err := f.trigger.Trigger(ctx, disaster.TriggerRequest{
			Type:     "flood",
			Location: "Porto Alegre",
			Severity: 5,
			Causes:   []domain.CauseType{domain.CauseHealth, domain.CauseShelter},
			Currency: domain.CurrencyXRP,
		})
		require.NoError(t, err)
		assert.True(t, detail.Reconciliation.Mismatch)

		f.advance(2 * time.Minute)
		f.worker.Settle(ctx)

		got, err := f.trigger.Get(ctx, detail.Disaster.ID)
		require.NoError(t, err)
		assert.Equal(t, disaster.StatusCompleted, got.Disaster.Status)
	})
}
