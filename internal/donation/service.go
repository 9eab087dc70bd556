package donation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"reliefpool/internal/events"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

// ledgerWindow is added to the current ledger index when preparing a payment,
// bounding how long an unsigned transaction stays submittable.
const ledgerWindow = 60

// memoType annotates donor payments on the ledger so pool inflows are
// distinguishable from operational transfers.
const memoType = "relief:donation"

type memoPayload struct {
	Donor string `json:"donor"`
}

// Service owns the donor-facing half of the lifecycle: preparing unsigned
// payments, submitting wallet-signed blobs, and confirming payments already
// on ledger. Confirmation is idempotent on the payment hash.
type Service struct {
	store     Store
	gateway   xrpl.Gateway
	pool      domain.Address
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(store Store, gateway xrpl.Gateway, pool domain.Address, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, gateway: gateway, pool: pool, publisher: publisher, metrics: m, logger: logger}
}

// Prepare builds an unsigned payment from the donor to the pool wallet with
// sequence, fee and expiry autofilled. On test networks an unknown donor
// account is activated via the faucet first.
func (s *Service) Prepare(ctx context.Context, donor domain.Address, amount domain.Drops, currency domain.Currency) (PreparedPayment, error) {
	if amount <= 0 {
		return PreparedPayment{}, dErrors.New(dErrors.CodeBadRequest, "donation amount must be positive")
	}
	if s.pool.IsNil() {
		return PreparedPayment{}, dErrors.New(dErrors.CodeInternal, "pool wallet is not configured")
	}

	funded := false
	seq, err := s.gateway.AccountSequence(ctx, donor)
	if errors.Is(err, sentinel.ErrNotFound) {
		if err := s.gateway.FundAccount(ctx, donor); err != nil {
			return PreparedPayment{}, xrpl.DomainError("fund donor account", err)
		}
		funded = true
		seq, err = s.gateway.AccountSequence(ctx, donor)
	}
	if err != nil {
		return PreparedPayment{}, xrpl.DomainError("donor sequence", err)
	}

	fee, err := s.gateway.RecommendedFee(ctx)
	if err != nil {
		return PreparedPayment{}, xrpl.DomainError("recommended fee", err)
	}
	ledgerIndex, err := s.gateway.LedgerIndex(ctx)
	if err != nil {
		return PreparedPayment{}, xrpl.DomainError("ledger index", err)
	}

	memo, err := xrpl.NewMemo(memoType, memoPayload{Donor: donor.String()})
	if err != nil {
		return PreparedPayment{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode donation memo")
	}

	payment := xrpl.UnsignedPayment{
		TransactionType:    "Payment",
		Account:            donor,
		Destination:        s.pool,
		Amount:             strconv.FormatInt(int64(amount), 10),
		Fee:                strconv.FormatInt(int64(fee), 10),
		Sequence:           seq,
		LastLedgerSequence: ledgerIndex + ledgerWindow,
		MemoType:           memo.Type,
		MemoData:           memo.Data,
	}
	return PreparedPayment{Payment: payment, PoolAddress: s.pool, Funded: funded}, nil
}

// Submit relays a wallet-signed blob to the ledger and records the resulting
// donation once validated.
func (s *Service) Submit(ctx context.Context, donor domain.Address, blob string) (Donation, error) {
	if blob == "" {
		return Donation{}, dErrors.New(dErrors.CodeBadRequest, "signed transaction blob is required")
	}

	rec, err := s.gateway.SubmitSignedTx(ctx, blob)
	if err != nil {
		return Donation{}, xrpl.DomainError("submit donation", err)
	}
	return s.record(ctx, donor, rec)
}

// Confirm records a payment the donor already sent directly. Calling it again
// with the same hash returns the stored donation.
func (s *Service) Confirm(ctx context.Context, donor domain.Address, hash domain.TxHash) (Donation, error) {
	if hash.IsNil() {
		return Donation{}, dErrors.New(dErrors.CodeBadRequest, "payment tx hash is required")
	}

	existing, err := s.store.GetByTxHash(ctx, hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return Donation{}, dErrors.Wrap(err, dErrors.CodeInternal, "load donation")
	}

	rec, err := s.gateway.Tx(ctx, hash)
	if err != nil {
		return Donation{}, xrpl.DomainError("look up payment", err)
	}
	return s.record(ctx, donor, rec)
}

// Donations lists every recorded donation for a donor, oldest first.
func (s *Service) Donations(ctx context.Context, donor domain.Address) ([]Donation, error) {
	ds, err := s.store.ListByDonor(ctx, donor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list donations")
	}
	return ds, nil
}

func (s *Service) record(ctx context.Context, donor domain.Address, rec xrpl.TxRecord) (Donation, error) {
	if !rec.Succeeded {
		return Donation{}, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("payment %s did not succeed on ledger", rec.Hash))
	}
	if rec.Destination != s.pool {
		return Donation{}, dErrors.New(dErrors.CodeBadRequest, "payment does not fund the pool wallet")
	}
	if rec.Amount <= 0 {
		return Donation{}, dErrors.New(dErrors.CodeBadRequest, "payment carries no amount")
	}

	d := Donation{
		ID:            domain.NewDonationID(),
		DonorAddress:  donor,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		PaymentTxHash: rec.Hash,
		BatchStatus:   BatchStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Donation{}, dErrors.Wrap(err, dErrors.CodeConflict, "payment already recorded")
		}
		return Donation{}, dErrors.Wrap(err, dErrors.CodeInternal, "store donation")
	}

	s.metrics.DonationsConfirmed.Inc()
	if err := s.publisher.Publish(ctx, events.Event{Type: events.TypeDonationConfirmed, ID: d.ID.String(), At: d.CreatedAt}); err != nil {
		s.logger.WarnContext(ctx, "publish donation event failed", "donation_id", d.ID, "error", err)
	}
	s.logger.InfoContext(ctx, "donation confirmed",
		"donation_id", d.ID, "donor", d.DonorAddress, "amount_drops", int64(d.Amount), "currency", d.Currency)
	return d, nil
}
