package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reliefpool/internal/donation"
	"reliefpool/pkg/domain"
)

func pendingDonation(donor domain.Address, amount domain.Drops, currency domain.Currency, createdAt time.Time) donation.Donation {
	return donation.Donation{
		ID:           domain.NewDonationID(),
		DonorAddress: donor,
		Amount:       amount,
		Currency:     currency,
		BatchStatus:  donation.BatchStatusPending,
		CreatedAt:    createdAt,
	}
}

func TestComputeProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 15 * time.Minute
	threshold := domain.FromXRP(100)

	t.Run("threshold trigger fires at exactly the threshold", func(t *testing.T) {
		pending := []donation.Donation{
			pendingDonation("rDonorA1234567890123456789012", domain.FromXRP(60), domain.CurrencyXRP, now.Add(-time.Minute)),
			pendingDonation("rDonorB1234567890123456789012", domain.FromXRP(40), domain.CurrencyXRP, now.Add(-time.Minute)),
		}
		p := ComputeProgress(pending, domain.CurrencyXRP, threshold, window, now)

		assert.Equal(t, TriggerThreshold, p.Trigger)
		assert.True(t, p.Ready())
		assert.Equal(t, domain.FromXRP(100), p.PendingTotal)
		assert.Equal(t, domain.Drops(0), p.Remaining)
		assert.Equal(t, 2, p.Donations)
		assert.Equal(t, 2, p.DonorCount)
	})

	t.Run("below threshold and inside window is not ready", func(t *testing.T) {
		pending := []donation.Donation{
			pendingDonation("rDonorA1234567890123456789012", domain.FromXRP(30), domain.CurrencyXRP, now.Add(-5*time.Minute)),
		}
		p := ComputeProgress(pending, domain.CurrencyXRP, threshold, window, now)

		assert.False(t, p.Ready())
		assert.Equal(t, domain.FromXRP(70), p.Remaining)
	})

	t.Run("time trigger fires once the oldest donation outlives the window", func(t *testing.T) {
		pending := []donation.Donation{
			pendingDonation("rDonorA1234567890123456789012", domain.FromXRP(1), domain.CurrencyXRP, now.Add(-window)),
		}
		p := ComputeProgress(pending, domain.CurrencyXRP, threshold, window, now)

		assert.Equal(t, TriggerTime, p.Trigger)
	})

	t.Run("threshold wins when both conditions hold", func(t *testing.T) {
		pending := []donation.Donation{
			pendingDonation("rDonorA1234567890123456789012", domain.FromXRP(150), domain.CurrencyXRP, now.Add(-time.Hour)),
		}
		p := ComputeProgress(pending, domain.CurrencyXRP, threshold, window, now)

		assert.Equal(t, TriggerThreshold, p.Trigger)
	})

	t.Run("other currencies are excluded from the group", func(t *testing.T) {
		pending := []donation.Donation{
			pendingDonation("rDonorA1234567890123456789012", domain.FromXRP(90), domain.CurrencyXRP, now.Add(-time.Minute)),
			pendingDonation("rDonorB1234567890123456789012", domain.FromXRP(90), domain.CurrencyRLUSD, now.Add(-time.Minute)),
		}
		p := ComputeProgress(pending, domain.CurrencyXRP, threshold, window, now)

		assert.Equal(t, domain.FromXRP(90), p.PendingTotal)
		assert.False(t, p.Ready())
	})

	t.Run("empty group never triggers", func(t *testing.T) {
		p := ComputeProgress(nil, domain.CurrencyXRP, threshold, window, now)

		assert.False(t, p.Ready())
		assert.Nil(t, p.Oldest)
		assert.Equal(t, threshold, p.Remaining)
	})

	t.Run("zero window disables the time trigger", func(t *testing.T) {
		pending := []donation.Donation{
			pendingDonation("rDonorA1234567890123456789012", domain.FromXRP(1), domain.CurrencyXRP, now.Add(-24*time.Hour)),
		}
		p := ComputeProgress(pending, domain.CurrencyXRP, threshold, 0, now)

		assert.False(t, p.Ready())
	})
}
