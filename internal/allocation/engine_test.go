package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefpool/pkg/domain"
)

func TestDonationShare(t *testing.T) {
	t.Run("proportional slice of the disaster total", func(t *testing.T) {
		// 25 XRP of a 100 XRP pool backing a 40 XRP allocation.
		share := DonationShare(domain.FromXRP(25), domain.FromXRP(100), domain.FromXRP(40))
		assert.Equal(t, domain.FromXRP(10), share.Amount)
		assert.InDelta(t, 25.0, share.Pct, 1e-9)
		assert.False(t, share.Unattributable)
	})

	t.Run("zero contributing set is unattributable, not an error", func(t *testing.T) {
		share := DonationShare(domain.FromXRP(25), 0, domain.FromXRP(40))
		assert.True(t, share.Unattributable)
		assert.Equal(t, domain.Drops(0), share.Amount)
		assert.Equal(t, 0.0, share.Pct)
	})

	t.Run("shares sum to the disaster total within tolerance", func(t *testing.T) {
		contributions := []domain.Drops{
			domain.FromXRP(25), domain.FromXRP(13.37), domain.FromXRP(61.63),
		}
		var pool domain.Drops
		for _, c := range contributions {
			pool += c
		}
		total := domain.FromXRP(40)

		var sum domain.Drops
		for _, c := range contributions {
			sum += DonationShare(c, pool, total).Amount
		}
		// Integer division floors each share, so the sum can fall short by at
		// most one drop per contributor.
		assert.LessOrEqual(t, total-sum, domain.Drops(len(contributions)))
		assert.GreaterOrEqual(t, total, sum)
	})

	t.Run("large pools keep shares exact", func(t *testing.T) {
		// 50,000 XRP of a 100,000 XRP pool backing a 100,000 XRP allocation:
		// the intermediate product is ~5e21 drops-squared, far past int64.
		share := DonationShare(domain.FromXRP(50_000), domain.FromXRP(100_000), domain.FromXRP(100_000))
		assert.Equal(t, domain.FromXRP(50_000), share.Amount)
		assert.InDelta(t, 50.0, share.Pct, 1e-9)
	})

	t.Run("shares are never negative at any magnitude", func(t *testing.T) {
		// A sole contributor to a multi-million-XRP allocation gets it all.
		total := domain.FromXRP(3_000_000)
		share := DonationShare(total, total, total)
		assert.Equal(t, total, share.Amount)
		assert.GreaterOrEqual(t, share.Amount, domain.Drops(0))
	})

	t.Run("shares sum to the disaster total for large pools", func(t *testing.T) {
		contributions := []domain.Drops{
			domain.Drops(7_777_777_777_777), // ~7.8M XRP
			domain.Drops(123_456_789_012_345),
			domain.Drops(999_999_999_999_999),
		}
		var pool domain.Drops
		for _, c := range contributions {
			pool += c
		}
		total := domain.Drops(450_000_000_000_000)

		var sum domain.Drops
		for _, c := range contributions {
			share := DonationShare(c, pool, total).Amount
			assert.GreaterOrEqual(t, share, domain.Drops(0))
			sum += share
		}
		assert.LessOrEqual(t, total-sum, domain.Drops(len(contributions)))
		assert.GreaterOrEqual(t, total, sum)
	})
}

func TestOrgShare(t *testing.T) {
	// 25/100 of a 40 XRP disaster split 30:10 across two orgs.
	share := DonationShare(domain.FromXRP(25), domain.FromXRP(100), domain.FromXRP(40))

	orgA := OrgShare(share, domain.FromXRP(30), domain.FromXRP(40))
	orgB := OrgShare(share, domain.FromXRP(10), domain.FromXRP(40))

	assert.Equal(t, domain.FromXRP(7.5), orgA)
	assert.Equal(t, domain.FromXRP(2.5), orgB)
	assert.Equal(t, share.Amount, orgA+orgB, "org-level shares partition the disaster-level share")

	t.Run("unattributable share yields zero", func(t *testing.T) {
		unattr := DonationShare(domain.FromXRP(25), 0, domain.FromXRP(40))
		assert.Equal(t, domain.Drops(0), OrgShare(unattr, domain.FromXRP(30), domain.FromXRP(40)))
	})

	t.Run("large escrows keep org shares exact", func(t *testing.T) {
		// 100,000 XRP disaster share split across a 75,000/25,000 XRP escrow
		// pair; share*escrow overflows int64 without the wide intermediate.
		big := DonationShare(domain.FromXRP(100_000), domain.FromXRP(200_000), domain.FromXRP(200_000))
		require.Equal(t, domain.FromXRP(100_000), big.Amount)

		orgA := OrgShare(big, domain.FromXRP(150_000), domain.FromXRP(200_000))
		orgB := OrgShare(big, domain.FromXRP(50_000), domain.FromXRP(200_000))
		assert.Equal(t, domain.FromXRP(75_000), orgA)
		assert.Equal(t, domain.FromXRP(25_000), orgB)
		assert.Equal(t, big.Amount, orgA+orgB)
	})
}

func TestReconcile(t *testing.T) {
	tolerance := domain.FromXRP(0.01)

	t.Run("shortfall beyond tolerance is a mismatch", func(t *testing.T) {
		rec := Reconcile(domain.FromXRP(100), []domain.Drops{domain.FromXRP(60), domain.FromXRP(37.5)}, tolerance)
		assert.True(t, rec.Mismatch)
		assert.Equal(t, domain.FromXRP(100), rec.Intended)
		assert.Equal(t, domain.FromXRP(97.5), rec.Escrowed)
		assert.Equal(t, domain.FromXRP(2.5), rec.Missing)
	})

	t.Run("exact escrows are clean", func(t *testing.T) {
		rec := Reconcile(domain.FromXRP(100), []domain.Drops{domain.FromXRP(60), domain.FromXRP(40)}, tolerance)
		assert.False(t, rec.Mismatch)
		assert.Equal(t, domain.Drops(0), rec.Missing)
	})

	t.Run("shortfall within tolerance is clean", func(t *testing.T) {
		rec := Reconcile(domain.FromXRP(100), []domain.Drops{domain.FromXRP(99.995)}, tolerance)
		assert.False(t, rec.Mismatch)
	})
}

func TestPlan(t *testing.T) {
	candidates := []Candidate{
		{OrgID: 1, Name: "Hospital-A", NeedScore: 8},
		{OrgID: 2, Name: "Shelter-B", NeedScore: 6},
		{OrgID: 3, Name: "NGO-C", NeedScore: 7},
	}

	t.Run("weighted by need score and sums exactly", func(t *testing.T) {
		total := domain.FromXRP(100)
		plan := Plan(candidates, total, 7)
		require.Len(t, plan, 3)

		var sum domain.Drops
		for _, p := range plan {
			sum += p.Amount
		}
		assert.Equal(t, total, sum, "remainder goes to the last org")

		// Higher need score gets the larger slice.
		assert.Greater(t, plan[0].Amount, plan[1].Amount)
	})

	t.Run("severity scales weights uniformly so proportions hold", func(t *testing.T) {
		low := Plan(candidates, domain.FromXRP(100), 2)
		high := Plan(candidates, domain.FromXRP(100), 10)
		for i := range low {
			assert.InDelta(t, low[i].Pct, high[i].Pct, 1e-9)
		}
	})

	t.Run("zero weights degrade to equal split", func(t *testing.T) {
		zeroed := []Candidate{
			{OrgID: 1, NeedScore: 0},
			{OrgID: 2, NeedScore: 0},
		}
		plan := Plan(zeroed, domain.FromXRP(10), 5)
		require.Len(t, plan, 2)
		assert.Equal(t, domain.FromXRP(5), plan[0].Amount)
		assert.Equal(t, domain.FromXRP(5), plan[1].Amount)
		assert.InDelta(t, 50.0, plan[0].Pct, 1e-9)
	})

	t.Run("no candidates yields no plan", func(t *testing.T) {
		assert.Nil(t, Plan(nil, domain.FromXRP(10), 5))
	})
}
