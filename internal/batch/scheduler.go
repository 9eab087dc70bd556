package batch

import (
	"context"
	"time"

	"reliefpool/internal/donation"
	"reliefpool/pkg/domain"
)

// ThresholdSource yields the current batch threshold. It is re-read every
// sweep so operators can raise or lower the threshold without a restart.
type ThresholdSource interface {
	Threshold(ctx context.Context) (domain.Drops, error)
}

// StaticThreshold is a ThresholdSource that always returns the same value.
type StaticThreshold domain.Drops

func (t StaticThreshold) Threshold(context.Context) (domain.Drops, error) {
	return domain.Drops(t), nil
}

// Progress describes how close a group of pending donations is to forming a
// batch.
type Progress struct {
	Currency     domain.Currency
	PendingTotal domain.Drops
	// Donations is how many pending donations are in the group, DonorCount
	// how many distinct donor addresses sent them.
	Donations  int
	DonorCount int
	Threshold  domain.Drops
	// Remaining is how far the pending total is below the threshold, zero
	// once met.
	Remaining domain.Drops
	// Oldest is the confirmation time of the oldest pending donation, nil
	// when the group is empty.
	Oldest *time.Time
	// Trigger is which condition fires now, empty if neither does.
	Trigger Trigger
}

// Ready reports whether a sweep should form a batch.
func (p Progress) Ready() bool { return p.Trigger != "" }

// ComputeProgress evaluates one currency group of pending donations against
// the threshold and time-window triggers. Threshold wins when both hold, so a
// full pool is never delayed by the window.
func ComputeProgress(pending []donation.Donation, currency domain.Currency, threshold domain.Drops, window time.Duration, now time.Time) Progress {
	p := Progress{Currency: currency, Threshold: threshold, Remaining: threshold}

	donors := make(map[domain.Address]bool)
	for _, d := range pending {
		if d.Currency != currency {
			continue
		}
		p.PendingTotal += d.Amount
		p.Donations++
		donors[d.DonorAddress] = true
		if p.Oldest == nil || d.CreatedAt.Before(*p.Oldest) {
			t := d.CreatedAt
			p.Oldest = &t
		}
	}
	p.DonorCount = len(donors)

	if p.PendingTotal >= threshold {
		p.Remaining = 0
	} else {
		p.Remaining = threshold - p.PendingTotal
	}

	if p.Donations == 0 {
		return p
	}
	switch {
	case p.PendingTotal >= threshold:
		p.Trigger = TriggerThreshold
	case window > 0 && now.Sub(*p.Oldest) >= window:
		p.Trigger = TriggerTime
	}
	return p
}

// currencies returns the distinct currencies present in pending order of
// first appearance.
func currencies(pending []donation.Donation) []domain.Currency {
	seen := make(map[domain.Currency]bool)
	var out []domain.Currency
	for _, d := range pending {
		if !seen[d.Currency] {
			seen[d.Currency] = true
			out = append(out, d.Currency)
		}
	}
	return out
}
