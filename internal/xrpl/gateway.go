package xrpl

import (
	"context"

	"reliefpool/pkg/domain"
)

// EscrowCreate describes a time-locked escrow to be created on the ledger.
// Currency XRP locks native drops; RLUSD locks the issued stable token.
type EscrowCreate struct {
	Source      domain.Address
	Destination domain.Address
	Amount      domain.Drops
	Currency    domain.Currency
	FinishAfter RippleTime
	CancelAfter RippleTime // zero means no cancel window
	Memo        Memo
}

// EscrowResult identifies a created escrow. The sequence number is required
// later to finish it.
type EscrowResult struct {
	TxHash   domain.TxHash
	Sequence uint32
}

// EscrowFinish names an escrow to release.
type EscrowFinish struct {
	Owner         domain.Address
	OfferSequence uint32
}

// TxRecord is the validated view of a ledger transaction.
type TxRecord struct {
	Hash        domain.TxHash
	Amount      domain.Drops
	Currency    domain.Currency
	Destination domain.Address
	Succeeded   bool
}

// UnsignedPayment is handed to the donor's wallet for signing; the service
// autofills sequence and fee so the wallet needs no RPC round trips.
type UnsignedPayment struct {
	TransactionType    string         `json:"TransactionType"`
	Account            domain.Address `json:"Account"`
	Destination        domain.Address `json:"Destination"`
	Amount             string         `json:"Amount"`
	Fee                string         `json:"Fee"`
	Sequence           uint32         `json:"Sequence"`
	LastLedgerSequence uint32         `json:"LastLedgerSequence"`
	MemoType           string         `json:"MemoType,omitempty"`
	MemoData           string         `json:"MemoData,omitempty"`
}

// Gateway is the narrow read/write contract with the ledger network. All
// monetary figures are drops; decimal display conversion happens at the HTTP
// boundary. Implementations return pkg/platform/sentinel errors:
// ErrNotFound for unknown accounts or transactions, ErrUnavailable when the
// node cannot be reached, ErrSigning when the signer rejects a submission.
type Gateway interface {
	// AccountBalance returns the native balance of an account.
	AccountBalance(ctx context.Context, addr domain.Address) (domain.Drops, error)

	// AccountSequence returns the next transaction sequence for an account.
	AccountSequence(ctx context.Context, addr domain.Address) (uint32, error)

	// TokenBalance returns an issued-token balance in token drops.
	TokenBalance(ctx context.Context, addr domain.Address, currency domain.Currency) (domain.Drops, error)

	// LedgerIndex returns the latest validated ledger index.
	LedgerIndex(ctx context.Context) (uint32, error)

	// RecommendedFee returns the current open-ledger fee.
	RecommendedFee(ctx context.Context) (domain.Drops, error)

	// SubmitSignedTx submits a wallet-signed transaction blob and waits for
	// validation.
	SubmitSignedTx(ctx context.Context, blob string) (TxRecord, error)

	// Tx looks up a validated transaction by hash.
	Tx(ctx context.Context, hash domain.TxHash) (TxRecord, error)

	// Payment moves funds between platform-controlled accounts.
	Payment(ctx context.Context, from, to domain.Address, amount domain.Drops, currency domain.Currency) (domain.TxHash, error)

	// CreateEscrow locks funds with a time-based release condition.
	CreateEscrow(ctx context.Context, req EscrowCreate) (EscrowResult, error)

	// FinishEscrow releases a matured escrow to its destination.
	FinishEscrow(ctx context.Context, req EscrowFinish) (domain.TxHash, error)

	// FundAccount asks the network faucet to activate a new account
	// (test networks only).
	FundAccount(ctx context.Context, addr domain.Address) error
}
