package disaster

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefpool/internal/events"
	"reliefpool/internal/organization"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
)

const (
	reserveAddr = domain.Address("rReserveWalletAddress1234567")
	healthAddr  = domain.Address("rHealthOrgWallet123456789012")
	shelterAddr = domain.Address("rShelterOrgWallet12345678901")
)

type disasterFixture struct {
	service *Service
	store   *InMemoryStore
	orgs    *organization.InMemoryStore
	gateway *xrpl.MemoryGateway
	now     time.Time
}

func newDisasterFixture(t *testing.T) *disasterFixture {
	t.Helper()
	ctx := context.Background()

	f := &disasterFixture{
		store:   NewInMemoryStore(),
		orgs:    organization.NewInMemoryStore(),
		gateway: xrpl.NewMemoryGateway(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	// 50 XRP reserve, 10 XRP floor: 40 XRP available.
	f.gateway.SeedAccount(reserveAddr, domain.FromXRP(50))

	for _, org := range []organization.Organization{
		{Name: "Health Relief Intl", CauseType: domain.CauseHealth, WalletAddress: healthAddr, NeedScore: 6},
		{Name: "Shelter Now", CauseType: domain.CauseShelter, WalletAddress: shelterAddr, NeedScore: 2},
	} {
		_, err := f.orgs.Create(ctx, org)
		require.NoError(t, err)
	}

	f.service = NewService(ServiceConfig{
		Store:        f.store,
		Orgs:         f.orgs,
		Gateway:      f.gateway,
		Publisher:    events.NopPublisher{},
		Metrics:      metrics.NewWith(prometheus.NewRegistry()),
		Logger:       slog.New(slog.DiscardHandler),
		Reserve:      reserveAddr,
		ReserveFloor: domain.FromXRP(10),
		LockDuration: time.Minute,
	})
	f.service.now = func() time.Time { return f.now }
	return f
}

func validTrigger() TriggerRequest {
	return TriggerRequest{
		Type:     "earthquake",
		Location: "Valparaiso",
		Severity: 8,
		Causes:   []domain.CauseType{domain.CauseHealth, domain.CauseShelter},
		Currency: domain.CurrencyXRP,
	}
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("splits available reserve by weighted need", func(t *testing.T) {
		f := newDisasterFixture(t)

		detail, err := f.service.Trigger(ctx, validTrigger())
		require.NoError(t, err)

		d := detail.Disaster
		assert.Equal(t, StatusActive, d.Status)
		assert.Equal(t, domain.FromXRP(40), d.TotalAllocated)

		// Need scores 6 and 2 at any severity split 75/25.
		require.Len(t, detail.Escrows, 2)
		byAddr := map[domain.Address]OrgEscrow{}
		for _, e := range detail.Escrows {
			byAddr[e.OrgAddress] = e
			assert.Equal(t, EscrowStatusLocked, e.Status)
			assert.NotEmpty(t, e.EscrowTxHash)
		}
		assert.Equal(t, domain.FromXRP(30), byAddr[healthAddr].Amount)
		assert.Equal(t, domain.FromXRP(10), byAddr[shelterAddr].Amount)

		assert.False(t, detail.Reconciliation.Mismatch)
		assert.Equal(t, domain.FromXRP(40), detail.Reconciliation.Escrowed)

		// Reserve is drawn down to the floor.
		bal, err := f.gateway.AccountBalance(ctx, reserveAddr)
		require.NoError(t, err)
		assert.Equal(t, domain.FromXRP(10), bal)
	})

	t.Run("records failed escrows and flags the mismatch", func(t *testing.T) {
		f := newDisasterFixture(t)
		f.gateway.FailEscrowsTo(shelterAddr, "destination unfunded")

		detail, err := f.service.Trigger(ctx, validTrigger())
		require.NoError(t, err)

		require.Len(t, detail.Escrows, 2)
		byAddr := map[domain.Address]OrgEscrow{}
		for _, e := range detail.Escrows {
			byAddr[e.OrgAddress] = e
		}
		assert.Equal(t, EscrowStatusLocked, byAddr[healthAddr].Status)
		failed := byAddr[shelterAddr]
		assert.Equal(t, EscrowStatusFailed, failed.Status)
		assert.Contains(t, failed.Error, "destination unfunded")
		assert.Empty(t, failed.EscrowTxHash)

		rec := detail.Reconciliation
		assert.True(t, rec.Mismatch)
		assert.Equal(t, domain.FromXRP(40), rec.Intended)
		assert.Equal(t, domain.FromXRP(30), rec.Escrowed)
		assert.Equal(t, domain.FromXRP(10), rec.Missing)
	})

	t.Run("rejects when no org serves the causes", func(t *testing.T) {
		f := newDisasterFixture(t)

		req := validTrigger()
		req.Causes = []domain.CauseType{domain.CauseEducation}
		_, err := f.service.Trigger(ctx, req)
		assert.True(t, dErrors.IsCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects an empty reserve", func(t *testing.T) {
		f := newDisasterFixture(t)
		f.gateway.SeedAccount(reserveAddr, domain.FromXRP(5))

		_, err := f.service.Trigger(ctx, validTrigger())
		assert.True(t, dErrors.IsCode(err, dErrors.CodeConflict))
	})

	t.Run("validates severity bounds", func(t *testing.T) {
		f := newDisasterFixture(t)

		for _, severity := range []int{0, 11, -3} {
			req := validTrigger()
			req.Severity = severity
			_, err := f.service.Trigger(ctx, req)
			assert.True(t, dErrors.IsCode(err, dErrors.CodeBadRequest), "severity %d", severity)
		}
	})

	t.Run("allocates the RLUSD token balance without the floor", func(t *testing.T) {
		f := newDisasterFixture(t)
		f.gateway.SeedTokenBalance(reserveAddr, domain.CurrencyRLUSD, domain.FromXRP(20))

		req := validTrigger()
		req.Currency = domain.CurrencyRLUSD
		detail, err := f.service.Trigger(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, domain.FromXRP(20), detail.Disaster.TotalRLUSDAllocated)
		assert.Equal(t, domain.Drops(0), detail.Disaster.TotalAllocated)
		for _, e := range detail.Escrows {
			assert.Equal(t, domain.CurrencyRLUSD, e.Currency)
		}
	})

	t.Run("maps node outage to unavailable", func(t *testing.T) {
		f := newDisasterFixture(t)
		f.gateway.SetUnavailable(true)

		_, err := f.service.Trigger(ctx, validTrigger())
		assert.True(t, dErrors.IsCode(err, dErrors.CodeUnavailable))
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newDisasterFixture(t)

	created, err := f.service.Trigger(ctx, validTrigger())
	require.NoError(t, err)

	detail, err := f.service.Get(ctx, created.Disaster.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Disaster.ID, detail.Disaster.ID)
	assert.Len(t, detail.Escrows, 2)
	assert.False(t, detail.Reconciliation.Mismatch)

	_, err = f.service.Get(ctx, "disaster_unknown")
	assert.True(t, dErrors.IsCode(err, dErrors.CodeNotFound))
}
