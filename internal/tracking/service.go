// Package tracking builds the donor-facing lifecycle report: for each of a
// donor's donations, where it currently sits in the custody chain and how it
// was divided across disasters and organizations. The report is a pure
// projection over the stores; nothing here writes.
package tracking

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"reliefpool/internal/allocation"
	"reliefpool/internal/batch"
	"reliefpool/internal/disaster"
	"reliefpool/internal/donation"
	"reliefpool/internal/lifecycle"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
)

// OrgAllocation is one organization's slice of a donation's disaster share.
type OrgAllocation struct {
	OrgID   domain.OrgID
	Address domain.Address
	Amount  domain.Drops
}

// Allocation is a donation's attributed slice of one disaster.
type Allocation struct {
	DisasterID   domain.DisasterID
	DisasterType string
	Location     string
	Status       disaster.Status
	Share        allocation.Share
	Orgs         []OrgAllocation
	AllocatedAt  time.Time
	CompletedAt  *time.Time
}

// Entry is the lifecycle view of a single donation.
type Entry struct {
	Donation    donation.Donation
	Milestones  lifecycle.Milestones
	Stage       lifecycle.Stage
	Batch       *batch.Batch
	Allocations []Allocation
	// Incomplete is set when a supporting record failed to load; the entry
	// shows the milestones that could be derived rather than erroring the
	// whole report.
	Incomplete bool
}

// Report covers all of a donor's donations.
type Report struct {
	Donor       domain.Address
	Entries     []Entry
	TotalDrops  domain.Drops
	TotalRLUSD  domain.Drops
	GeneratedAt time.Time
}

// Service assembles tracking reports.
type Service struct {
	donations donation.Store
	batches   batch.Store
	disasters disaster.Store
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(donations donation.Store, batches batch.Store, disasters disaster.Store, logger *slog.Logger) *Service {
	return &Service{
		donations: donations,
		batches:   batches,
		disasters: disasters,
		logger:    logger,
		tracer:    otel.Tracer("reliefpool/tracking"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Track builds the lifecycle report for one donor. A donor with no
// donations gets an empty report, not an error.
func (s *Service) Track(ctx context.Context, donor domain.Address) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "tracking.track", trace.WithAttributes(
		attribute.String("donor.address", donor.String()),
	))
	defer span.End()

	ds, err := s.donations.ListByDonor(ctx, donor)
	if err != nil {
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "list donor donations")
	}

	disasters, err := s.disasters.ListDisasters(ctx)
	if err != nil {
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "list disasters")
	}

	proj := newProjector(s, disasters)
	report := Report{Donor: donor, GeneratedAt: s.now()}
	for _, d := range ds {
		entry := proj.entry(ctx, d)
		report.Entries = append(report.Entries, entry)
		if d.Currency == domain.CurrencyRLUSD {
			report.TotalRLUSD += d.Amount
		} else {
			report.TotalDrops += d.Amount
		}
	}

	span.SetAttributes(attribute.Int("donations", len(report.Entries)))
	return report, nil
}

// projector caches per-disaster denominators and escrows while building one
// report, so a donor with many donations does not refetch them per entry.
type projector struct {
	svc       *Service
	disasters []disaster.Disaster

	contributed map[contribKey]domain.Drops
	escrows     map[domain.DisasterID][]disaster.OrgEscrow
}

type contribKey struct {
	disaster domain.DisasterID
	currency domain.Currency
}

func newProjector(svc *Service, disasters []disaster.Disaster) *projector {
	return &projector{
		svc:         svc,
		disasters:   disasters,
		contributed: make(map[contribKey]domain.Drops),
		escrows:     make(map[domain.DisasterID][]disaster.OrgEscrow),
	}
}

func (p *projector) entry(ctx context.Context, d donation.Donation) Entry {
	entry := Entry{Donation: d}
	entry.Milestones.Received = true

	if !d.BatchID.IsNil() {
		b, err := p.svc.batches.Get(ctx, d.BatchID)
		if err != nil {
			p.svc.logger.WarnContext(ctx, "tracking: batch load failed",
				"donation_id", d.ID, "batch_id", d.BatchID, "error", err)
			entry.Incomplete = true
			entry.Stage = lifecycle.StageOf(entry.Milestones)
			return entry
		}
		entry.Batch = &b
		entry.Milestones.Batched = true

		if b.Status == batch.StatusFinished && b.FinishedAt != nil {
			entry.Milestones.ReleasedToReserve = true
			entry.Allocations = p.allocations(ctx, d, b, &entry)
		}
	}

	entry.Stage = lifecycle.StageOf(entry.Milestones)
	return entry
}

// allocations attributes the donation to every disaster whose funding set
// includes its batch: those created at or after the batch reached the
// reserve.
func (p *projector) allocations(ctx context.Context, d donation.Donation, b batch.Batch, entry *Entry) []Allocation {
	var out []Allocation
	for _, dis := range p.disasters {
		intended := dis.Intended(d.Currency)
		if intended <= 0 || b.FinishedAt.After(dis.CreatedAt) {
			continue
		}

		contributed, ok := p.contributedTotal(ctx, dis, d.Currency, entry)
		if !ok {
			continue
		}
		share := allocation.DonationShare(d.Amount, contributed, intended)

		escrows, ok := p.disasterEscrows(ctx, dis.ID, entry)
		if !ok {
			continue
		}

		alloc := Allocation{
			DisasterID:   dis.ID,
			DisasterType: dis.Type,
			Location:     dis.Location,
			Status:       dis.Status,
			Share:        share,
			AllocatedAt:  dis.CreatedAt,
			CompletedAt:  dis.CompletedAt,
		}
		for _, e := range escrows {
			if e.Status == disaster.EscrowStatusFailed {
				continue
			}
			alloc.Orgs = append(alloc.Orgs, OrgAllocation{
				OrgID:   e.OrgID,
				Address: e.OrgAddress,
				Amount:  allocation.OrgShare(share, e.Amount, intended),
			})
		}

		entry.Milestones.AllocatedToDisaster = true
		if len(alloc.Orgs) > 0 {
			entry.Milestones.SentToOrgs = true
		}
		// ReleasedToOrgs stays monotonic: it requires funds actually sent.
		if dis.Status == disaster.StatusCompleted && len(alloc.Orgs) > 0 {
			entry.Milestones.ReleasedToOrgs = true
		}
		out = append(out, alloc)
	}
	return out
}

func (p *projector) contributedTotal(ctx context.Context, dis disaster.Disaster, currency domain.Currency, entry *Entry) (domain.Drops, bool) {
	key := contribKey{disaster: dis.ID, currency: currency}
	if total, ok := p.contributed[key]; ok {
		return total, true
	}

	batches, err := p.svc.batches.ListFinishedBefore(ctx, dis.CreatedAt)
	if err != nil {
		p.svc.logger.WarnContext(ctx, "tracking: funding set load failed",
			"disaster_id", dis.ID, "error", err)
		entry.Incomplete = true
		return 0, false
	}

	var total domain.Drops
	for _, b := range batches {
		if b.Currency == currency {
			total += b.TotalAmount
		}
	}
	p.contributed[key] = total
	return total, true
}

func (p *projector) disasterEscrows(ctx context.Context, id domain.DisasterID, entry *Entry) ([]disaster.OrgEscrow, bool) {
	if escrows, ok := p.escrows[id]; ok {
		return escrows, true
	}

	escrows, err := p.svc.disasters.ListEscrowsByDisaster(ctx, id)
	if err != nil {
		p.svc.logger.WarnContext(ctx, "tracking: escrow load failed", "disaster_id", id, "error", err)
		entry.Incomplete = true
		return nil, false
	}
	p.escrows[id] = escrows
	return escrows, true
}
