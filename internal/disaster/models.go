package disaster

import (
	"time"

	"github.com/google/uuid"

	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
)

// Status tracks a disaster allocation. Active means org escrows are still
// locked; completed means every successful escrow has been released.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Disaster is one triggered emergency allocation from the reserve. The totals
// record what the allocation plan intended per currency; actually escrowed
// amounts live on the org escrows and are reconciled on read.
type Disaster struct {
	ID       domain.DisasterID
	Type     string
	Location string
	// Severity scales org need scores, 1..10.
	Severity            int
	TotalAllocated      domain.Drops
	TotalRLUSDAllocated domain.Drops
	Status              Status
	CreatedAt           time.Time
	CompletedAt         *time.Time
}

// Intended returns the planned allocation for the given currency.
func (d Disaster) Intended(currency domain.Currency) domain.Drops {
	if currency == domain.CurrencyRLUSD {
		return d.TotalRLUSDAllocated
	}
	return d.TotalAllocated
}

// EscrowStatus tracks one per-organization escrow.
type EscrowStatus string

const (
	EscrowStatusLocked   EscrowStatus = "locked"
	EscrowStatusFinished EscrowStatus = "finished"
	// EscrowStatusFailed records an escrow creation the ledger rejected. The
	// amount stays in the reserve; the row preserves the shortfall.
	EscrowStatusFailed EscrowStatus = "failed"
)

// OrgEscrow is one organization's time-locked slice of a disaster allocation.
type OrgEscrow struct {
	ID           uuid.UUID
	DisasterID   domain.DisasterID
	OrgID        domain.OrgID
	OrgAddress   domain.Address
	EscrowTxHash domain.TxHash
	FinishTxHash domain.TxHash
	Sequence     uint32
	Amount       domain.Drops
	Currency     domain.Currency
	Status       EscrowStatus
	// Error is the ledger rejection for failed escrows.
	Error       string
	FinishAfter xrpl.RippleTime
	CancelAfter xrpl.RippleTime
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// Matured reports whether the escrow time lock has passed.
func (e OrgEscrow) Matured(now time.Time) bool {
	return now.Unix() >= e.FinishAfter.Time().Unix()
}
