package disaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"reliefpool/internal/allocation"
	"reliefpool/internal/events"
	"reliefpool/internal/organization"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

const escrowMemoType = "relief:disaster"

type escrowMemo struct {
	DisasterID string `json:"disaster_id"`
	OrgID      int64  `json:"org_id"`
	Cause      string `json:"cause"`
}

// TriggerRequest describes an emergency to allocate reserve funds for.
type TriggerRequest struct {
	Type     string
	Location string
	Severity int
	Causes   []domain.CauseType
	Currency domain.Currency
}

// Detail is a disaster with its escrows and the intended-versus-escrowed
// reconciliation.
type Detail struct {
	Disaster       Disaster
	Escrows        []OrgEscrow
	Reconciliation allocation.Reconciliation
}

// ServiceConfig wires the disaster service.
type ServiceConfig struct {
	Store     Store
	Orgs      organization.Store
	Gateway   xrpl.Gateway
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	Reserve domain.Address
	// ReserveFloor is never drawn below; it covers the account's base
	// reserve requirement. Applies to the native balance only.
	ReserveFloor domain.Drops
	// LockDuration is the time lock on each org escrow.
	LockDuration time.Duration

	// Now overrides the clock; nil means wall time.
	Now func() time.Time
}

// Service triggers disaster allocations and answers reads over them. A
// trigger drains the available reserve into per-organization time-locked
// escrows according to the need-weighted plan; individual escrow failures are
// recorded, never retried silently, and surface as a reconciliation mismatch.
type Service struct {
	cfg    ServiceConfig
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:    cfg,
		tracer: otel.Tracer("reliefpool/disaster"),
		now:    now,
	}
}

// Trigger performs an emergency allocation.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest) (Detail, error) {
	ctx, span := s.tracer.Start(ctx, "disaster.trigger", trace.WithAttributes(
		attribute.String("disaster.type", req.Type),
		attribute.String("disaster.location", req.Location),
		attribute.Int("disaster.severity", req.Severity),
	))
	defer span.End()

	if err := validateTrigger(req); err != nil {
		return Detail{}, err
	}

	candidates, err := s.eligibleOrgs(ctx, req.Causes)
	if err != nil {
		return Detail{}, err
	}

	available, err := s.availableReserve(ctx, req.Currency)
	if err != nil {
		return Detail{}, err
	}
	if available <= 0 {
		return Detail{}, dErrors.New(dErrors.CodeConflict, "reserve has no funds available above the floor")
	}

	now := s.now()
	plan := allocation.Plan(candidates, available, req.Severity)

	d := Disaster{
		ID:        domain.DisasterID(fmt.Sprintf("disaster_%d", now.Unix())),
		Type:      req.Type,
		Location:  req.Location,
		Severity:  req.Severity,
		Status:    StatusActive,
		CreatedAt: now,
	}
	if req.Currency == domain.CurrencyRLUSD {
		d.TotalRLUSDAllocated = available
	} else {
		d.TotalAllocated = available
	}
	if err := s.cfg.Store.CreateDisaster(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Detail{}, dErrors.Wrap(err, dErrors.CodeConflict, "a disaster was triggered this second, retry")
		}
		return Detail{}, dErrors.Wrap(err, dErrors.CodeInternal, "store disaster")
	}

	escrows := s.escrowPlan(ctx, d, plan, req, now)
	span.SetAttributes(
		attribute.String("disaster.id", d.ID.String()),
		attribute.Int64("disaster.intended_drops", int64(available)),
		attribute.Int("disaster.escrows", len(escrows)),
	)

	rec := reconcile(d, req.Currency, escrows)
	if rec.Mismatch {
		s.cfg.Metrics.AllocationMismatch.Inc()
		s.cfg.Logger.ErrorContext(ctx, "allocation mismatch",
			"disaster_id", d.ID, "intended_drops", int64(rec.Intended),
			"escrowed_drops", int64(rec.Escrowed), "missing_drops", int64(rec.Missing))
	}

	s.cfg.Metrics.DisastersTriggered.Inc()
	if err := s.cfg.Publisher.Publish(ctx, events.Event{Type: events.TypeDisasterTriggered, ID: d.ID.String(), At: now}); err != nil {
		s.cfg.Logger.WarnContext(ctx, "publish disaster event failed", "disaster_id", d.ID, "error", err)
	}
	s.cfg.Logger.InfoContext(ctx, "disaster triggered",
		"disaster_id", d.ID, "type", d.Type, "location", d.Location, "severity", d.Severity,
		"currency", req.Currency, "intended_drops", int64(available), "organizations", len(plan))

	return Detail{Disaster: d, Escrows: escrows, Reconciliation: rec}, nil
}

// List returns all disasters, newest first.
func (s *Service) List(ctx context.Context) ([]Disaster, error) {
	ds, err := s.cfg.Store.ListDisasters(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list disasters")
	}
	return ds, nil
}

// Get returns one disaster with escrows and reconciliation.
func (s *Service) Get(ctx context.Context, id domain.DisasterID) (Detail, error) {
	d, err := s.cfg.Store.GetDisaster(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Detail{}, dErrors.Wrap(err, dErrors.CodeNotFound, "disaster not found")
	}
	if err != nil {
		return Detail{}, dErrors.Wrap(err, dErrors.CodeInternal, "load disaster")
	}

	escrows, err := s.cfg.Store.ListEscrowsByDisaster(ctx, id)
	if err != nil {
		return Detail{}, dErrors.Wrap(err, dErrors.CodeInternal, "load disaster escrows")
	}

	currency := domain.CurrencyXRP
	if d.TotalRLUSDAllocated > 0 {
		currency = domain.CurrencyRLUSD
	}
	return Detail{Disaster: d, Escrows: escrows, Reconciliation: reconcile(d, currency, escrows)}, nil
}

func validateTrigger(req TriggerRequest) error {
	if req.Type == "" {
		return dErrors.New(dErrors.CodeBadRequest, "disaster type is required")
	}
	if req.Location == "" {
		return dErrors.New(dErrors.CodeBadRequest, "location is required")
	}
	if req.Severity < 1 || req.Severity > 10 {
		return dErrors.New(dErrors.CodeBadRequest, "severity must be between 1 and 10")
	}
	if len(req.Causes) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "at least one affected cause is required")
	}
	return nil
}

func (s *Service) eligibleOrgs(ctx context.Context, causes []domain.CauseType) ([]allocation.Candidate, error) {
	orgs, err := s.cfg.Orgs.ListByCauses(ctx, causes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list eligible organizations")
	}
	if len(orgs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no registered organizations serve the affected causes")
	}

	candidates := make([]allocation.Candidate, 0, len(orgs))
	for _, org := range orgs {
		candidates = append(candidates, allocation.Candidate{
			OrgID:     org.ID,
			Address:   org.WalletAddress,
			Name:      org.Name,
			NeedScore: org.NeedScore,
		})
	}
	return candidates, nil
}

func (s *Service) availableReserve(ctx context.Context, currency domain.Currency) (domain.Drops, error) {
	if currency == domain.CurrencyRLUSD {
		bal, err := s.cfg.Gateway.TokenBalance(ctx, s.cfg.Reserve, currency)
		if err != nil {
			s.cfg.Metrics.GatewayReadFailures.Inc()
			return 0, xrpl.DomainError("reserve token balance", err)
		}
		return bal, nil
	}

	bal, err := s.cfg.Gateway.AccountBalance(ctx, s.cfg.Reserve)
	if err != nil {
		s.cfg.Metrics.GatewayReadFailures.Inc()
		return 0, xrpl.DomainError("reserve balance", err)
	}
	return bal - s.cfg.ReserveFloor, nil
}

// escrowPlan creates one escrow per planned org, recording failures instead
// of aborting so the remaining organizations still receive their slices.
func (s *Service) escrowPlan(ctx context.Context, d Disaster, plan []allocation.Planned, req TriggerRequest, now time.Time) []OrgEscrow {
	finishAfter := xrpl.ToRippleTime(now.Add(s.cfg.LockDuration))
	out := make([]OrgEscrow, 0, len(plan))

	for _, p := range plan {
		e := OrgEscrow{
			ID:          uuid.New(),
			DisasterID:  d.ID,
			OrgID:       p.OrgID,
			OrgAddress:  p.Address,
			Amount:      p.Amount,
			Currency:    req.Currency,
			FinishAfter: finishAfter,
			CreatedAt:   now,
		}

		memo, err := xrpl.NewMemo(escrowMemoType, escrowMemo{
			DisasterID: d.ID.String(),
			OrgID:      int64(p.OrgID),
			Cause:      req.Type,
		})
		if err == nil {
			var res xrpl.EscrowResult
			res, err = s.cfg.Gateway.CreateEscrow(ctx, xrpl.EscrowCreate{
				Source:      s.cfg.Reserve,
				Destination: p.Address,
				Amount:      p.Amount,
				Currency:    req.Currency,
				FinishAfter: finishAfter,
				Memo:        memo,
			})
			if err == nil {
				e.Status = EscrowStatusLocked
				e.EscrowTxHash = res.TxHash
				e.Sequence = res.Sequence
			}
		}
		if err != nil {
			e.Status = EscrowStatusFailed
			e.Error = err.Error()
			s.cfg.Metrics.EscrowsCreated.WithLabelValues("failed").Inc()
			s.cfg.Logger.ErrorContext(ctx, "org escrow creation failed",
				"disaster_id", d.ID, "org_id", int64(p.OrgID), "amount_drops", int64(p.Amount), "error", err)
		} else {
			s.cfg.Metrics.EscrowsCreated.WithLabelValues("created").Inc()
		}

		if storeErr := s.cfg.Store.CreateOrgEscrow(ctx, e); storeErr != nil {
			s.cfg.Logger.ErrorContext(ctx, "store org escrow failed",
				"disaster_id", d.ID, "org_id", int64(p.OrgID), "error", storeErr)
			continue
		}
		out = append(out, e)
	}
	return out
}

func reconcile(d Disaster, currency domain.Currency, escrows []OrgEscrow) allocation.Reconciliation {
	amounts := make([]domain.Drops, 0, len(escrows))
	for _, e := range escrows {
		if e.Status != EscrowStatusFailed {
			amounts = append(amounts, e.Amount)
		}
	}
	return allocation.Reconcile(d.Intended(currency), amounts, 0)
}
