package batch

import (
	"time"

	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
)

// Status tracks a batch through its escrow lifecycle. A batch is pending
// between row creation and escrow validation, locked while the time lock
// holds, and finished once the escrow released into the reserve.
type Status string

const (
	StatusPending  Status = "pending"
	StatusLocked   Status = "locked"
	StatusFinished Status = "finished"
)

// Trigger records what caused a batch to form.
type Trigger string

const (
	// TriggerThreshold fires when pending donations reach the pool threshold.
	TriggerThreshold Trigger = "threshold"
	// TriggerTime fires when the oldest pending donation outlives the batch
	// window, so small donations are never stranded.
	TriggerTime Trigger = "time"
)

// Batch is one escrow sweep of pending donations from the pool wallet into
// the reserve.
type Batch struct {
	ID           domain.BatchID
	EscrowTxHash domain.TxHash
	FinishTxHash domain.TxHash
	// Sequence is the escrow owner's transaction sequence, needed to finish.
	Sequence    uint32
	Currency    domain.Currency
	TotalAmount domain.Drops
	DonorCount  int
	Status      Status
	Trigger     Trigger
	FinishAfter xrpl.RippleTime
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// Matured reports whether the escrow time lock has passed.
func (b Batch) Matured(now time.Time) bool {
	return now.Unix() >= b.FinishAfter.Time().Unix()
}
