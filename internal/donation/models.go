package donation

import (
	"time"

	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
)

// BatchStatus tracks whether a confirmed donation still sits in the open pool
// or has been locked into a batch escrow.
type BatchStatus string

const (
	BatchStatusPending BatchStatus = "pending"
	BatchStatusLocked  BatchStatus = "locked_in_escrow"
)

// Donation is one confirmed donor payment into the pool wallet.
type Donation struct {
	ID            domain.DonationID
	DonorAddress  domain.Address
	Amount        domain.Drops
	Currency      domain.Currency
	PaymentTxHash domain.TxHash
	// BatchID is empty until the batcher sweeps this donation.
	BatchID     domain.BatchID
	BatchStatus BatchStatus
	CreatedAt   time.Time
}

// PreparedPayment is the unsigned transaction handed back to the donor's
// wallet, plus the pool address for display.
type PreparedPayment struct {
	Payment     xrpl.UnsignedPayment
	PoolAddress domain.Address
	// Funded reports whether the faucet had to activate the donor account
	// first (test networks only).
	Funded bool
}
