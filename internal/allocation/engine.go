// Package allocation computes how pooled funds are attributed and divided:
// need-weighted allocation plans for triggered disasters, pro-rata donor
// shares of those allocations, and reconciliation of intended versus actually
// escrowed totals. Everything here is a pure projection over integer drops;
// nothing mutates external state.
package allocation

import (
	"math"
	"math/bits"

	"reliefpool/pkg/domain"
)

// Share is a donation's attributed slice of a disaster allocation.
type Share struct {
	Amount domain.Drops
	Pct    float64
	// Unattributable is set when the contributing donation set sums to zero,
	// which makes a proportional share undefined. The amount is reported as
	// zero rather than failing the projection.
	Unattributable bool
}

// DonationShare computes a donation's pro-rata slice of a disaster's total
// allocation. contributed is the sum of all donations in the reserve-funding
// set at the time the allocation was computed.
func DonationShare(amount, contributed, disasterTotal domain.Drops) Share {
	if contributed <= 0 {
		return Share{Unattributable: true}
	}
	return Share{
		Amount: mulDiv(disasterTotal, amount, contributed),
		Pct:    float64(amount) / float64(contributed) * 100,
	}
}

// OrgShare splits a donation's disaster-level share across one org escrow,
// proportional to that escrow's slice of the disaster total. Funds are
// fungible once pooled, so every contributing donation is assumed to back
// each organization in the same proportion.
func OrgShare(donationShare Share, escrowAmount, disasterTotal domain.Drops) domain.Drops {
	if donationShare.Unattributable || disasterTotal <= 0 {
		return 0
	}
	return mulDiv(donationShare.Amount, escrowAmount, disasterTotal)
}

// mulDiv returns a*b/c with a 128-bit intermediate product. Drop amounts at
// realistic pool sizes push a*b past int64, so the naive form would silently
// overflow. A quotient outside int64 saturates.
func mulDiv(a, b, c domain.Drops) domain.Drops {
	if c == 0 {
		return 0
	}
	neg := (a < 0) != (b < 0)
	if c < 0 {
		neg = !neg
	}

	hi, lo := bits.Mul64(abs(int64(a)), abs(int64(b)))
	div := abs(int64(c))
	if hi >= div {
		if neg {
			return domain.Drops(math.MinInt64)
		}
		return domain.Drops(math.MaxInt64)
	}
	q, _ := bits.Div64(hi, lo, div)

	if neg {
		if q > -math.MinInt64 {
			return domain.Drops(math.MinInt64)
		}
		return domain.Drops(-int64(q))
	}
	if q > math.MaxInt64 {
		return domain.Drops(math.MaxInt64)
	}
	return domain.Drops(q)
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// Reconciliation compares what a disaster intended to allocate against what
// its org escrows actually locked.
type Reconciliation struct {
	Intended domain.Drops
	Escrowed domain.Drops
	Missing  domain.Drops
	// Mismatch is set when the shortfall exceeds the tolerance: one or more
	// per-organization escrow creations failed after the reserve draw
	// succeeded. Operators reconcile; the projection never hides it.
	Mismatch bool
}

// Reconcile sums escrow amounts and flags a shortfall beyond tolerance.
func Reconcile(intended domain.Drops, escrowed []domain.Drops, tolerance domain.Drops) Reconciliation {
	var total domain.Drops
	for _, amt := range escrowed {
		total += amt
	}

	rec := Reconciliation{Intended: intended, Escrowed: total}
	if missing := intended - total; missing > tolerance {
		rec.Missing = missing
		rec.Mismatch = true
	}
	return rec
}

// Candidate is an organization eligible for a disaster allocation.
type Candidate struct {
	OrgID   domain.OrgID
	Address domain.Address
	Name    string
	// NeedScore is the 1-10 operator-assigned urgency of the organization.
	NeedScore int
}

// Planned is one organization's slice of an allocation plan.
type Planned struct {
	OrgID   domain.OrgID
	Address domain.Address
	Name    string
	Amount  domain.Drops
	Pct     float64
}

// Plan divides total across candidates weighted by need score scaled with
// disaster severity. The last organization receives the integer remainder so
// the plan always sums exactly to total. A zero total weight degrades to an
// equal split.
func Plan(candidates []Candidate, total domain.Drops, severity int) []Planned {
	if len(candidates) == 0 {
		return nil
	}

	weights := make([]float64, len(candidates))
	var totalWeight float64
	for i, c := range candidates {
		weights[i] = float64(c.NeedScore) * (float64(severity) / 10.0)
		totalWeight += weights[i]
	}

	out := make([]Planned, 0, len(candidates))

	if totalWeight == 0 {
		equal := int64(total) / int64(len(candidates))
		for i, c := range candidates {
			amount := domain.Drops(equal)
			if i == len(candidates)-1 {
				amount = total - domain.Drops(equal*int64(len(candidates)-1))
			}
			out = append(out, Planned{
				OrgID:   c.OrgID,
				Address: c.Address,
				Name:    c.Name,
				Amount:  amount,
				Pct:     100 / float64(len(candidates)),
			})
		}
		return out
	}

	var allocated domain.Drops
	for i, c := range candidates {
		pct := weights[i] / totalWeight
		var amount domain.Drops
		if i == len(candidates)-1 {
			amount = total - allocated
		} else {
			amount = domain.Drops(float64(total) * pct)
		}
		allocated += amount

		out = append(out, Planned{
			OrgID:   c.OrgID,
			Address: c.Address,
			Name:    c.Name,
			Amount:  amount,
			Pct:     pct * 100,
		})
	}
	return out
}
