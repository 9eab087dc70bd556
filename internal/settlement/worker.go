// Package settlement releases matured escrows: batch escrows into the
// reserve, org escrows into organization wallets. It is the only writer of
// the finished states, so handlers and trackers can trust them.
package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reliefpool/internal/batch"
	"reliefpool/internal/disaster"
	"reliefpool/internal/events"
	"reliefpool/internal/organization"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

// WorkerConfig wires the settlement worker.
type WorkerConfig struct {
	Batches   batch.Store
	Disasters disaster.Store
	Orgs      organization.Store
	Gateway   xrpl.Gateway
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Pool owns batch escrows, Reserve owns org escrows.
	Pool         domain.Address
	Reserve      domain.Address
	PollInterval time.Duration

	// Now overrides the clock; nil means wall time.
	Now func() time.Time
}

// Worker polls for matured escrows and finishes them. Individual failures
// are logged and retried on the next tick; an escrow the ledger reports as
// already released is marked finished locally so a crash between the ledger
// write and the store write heals itself.
type Worker struct {
	cfg WorkerConfig
	now func() time.Time
}

func NewWorker(cfg WorkerConfig) *Worker {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Worker{cfg: cfg, now: now}
}

// Run settles on every poll tick until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.cfg.Logger.InfoContext(ctx, "settlement worker started", "poll_interval", w.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Settle(ctx)
		}
	}
}

// Settle runs one settlement pass.
func (w *Worker) Settle(ctx context.Context) {
	w.settleBatches(ctx)
	w.settleOrgEscrows(ctx)
}

func (w *Worker) settleBatches(ctx context.Context) {
	locked, err := w.cfg.Batches.ListByStatus(ctx, batch.StatusLocked)
	if err != nil {
		w.cfg.Logger.ErrorContext(ctx, "list locked batches failed", "error", err)
		return
	}

	now := w.now()
	for _, b := range locked {
		if !b.Matured(now) {
			continue
		}

		hash, err := w.cfg.Gateway.FinishEscrow(ctx, xrpl.EscrowFinish{Owner: w.cfg.Pool, OfferSequence: b.Sequence})
		if err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
			w.cfg.Logger.ErrorContext(ctx, "finish batch escrow failed", "batch_id", b.ID, "error", err)
			continue
		}
		if err != nil {
			// Already released on ledger; heal the local state.
			w.cfg.Logger.WarnContext(ctx, "batch escrow already released", "batch_id", b.ID)
		}

		if err := w.cfg.Batches.MarkFinished(ctx, b.ID, hash, now); err != nil {
			w.cfg.Logger.ErrorContext(ctx, "mark batch finished failed", "batch_id", b.ID, "error", err)
			continue
		}

		w.cfg.Metrics.BatchesReleased.Inc()
		if err := w.cfg.Publisher.Publish(ctx, events.Event{Type: events.TypeBatchReleased, ID: b.ID.String(), At: now}); err != nil {
			w.cfg.Logger.WarnContext(ctx, "publish batch release failed", "batch_id", b.ID, "error", err)
		}
		w.cfg.Logger.InfoContext(ctx, "batch escrow released to reserve",
			"batch_id", b.ID, "total_drops", int64(b.TotalAmount), "finish_tx", hash)
	}
}

func (w *Worker) settleOrgEscrows(ctx context.Context) {
	locked, err := w.cfg.Disasters.ListLockedEscrows(ctx)
	if err != nil {
		w.cfg.Logger.ErrorContext(ctx, "list locked org escrows failed", "error", err)
		return
	}

	now := w.now()
	touched := make(map[domain.DisasterID]bool)
	for _, e := range locked {
		if !e.Matured(now) {
			continue
		}

		hash, err := w.cfg.Gateway.FinishEscrow(ctx, xrpl.EscrowFinish{Owner: w.cfg.Reserve, OfferSequence: e.Sequence})
		if err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
			w.cfg.Logger.ErrorContext(ctx, "finish org escrow failed",
				"disaster_id", e.DisasterID, "org_id", int64(e.OrgID), "error", err)
			continue
		}
		if err != nil {
			w.cfg.Logger.WarnContext(ctx, "org escrow already released",
				"disaster_id", e.DisasterID, "org_id", int64(e.OrgID))
		}

		if err := w.cfg.Disasters.FinishOrgEscrow(ctx, e.ID, hash, now); err != nil {
			w.cfg.Logger.ErrorContext(ctx, "mark org escrow finished failed",
				"disaster_id", e.DisasterID, "org_id", int64(e.OrgID), "error", err)
			continue
		}
		if err := w.cfg.Orgs.AddReceived(ctx, e.OrgID, e.Currency, e.Amount); err != nil {
			w.cfg.Logger.ErrorContext(ctx, "bump org received total failed",
				"org_id", int64(e.OrgID), "error", err)
		}

		touched[e.DisasterID] = true
		w.cfg.Metrics.EscrowsFinished.Inc()
		if err := w.cfg.Publisher.Publish(ctx, events.Event{Type: events.TypeOrgEscrowFinished, ID: e.ID.String(), At: now}); err != nil {
			w.cfg.Logger.WarnContext(ctx, "publish org escrow release failed", "escrow_id", e.ID, "error", err)
		}
		w.cfg.Logger.InfoContext(ctx, "org escrow released",
			"disaster_id", e.DisasterID, "org_id", int64(e.OrgID),
			"amount_drops", int64(e.Amount), "currency", e.Currency, "finish_tx", hash)
	}

	for id := range touched {
		w.completeIfSettled(ctx, id, now)
	}
}

// completeIfSettled marks a disaster completed once none of its escrows are
// still locked. Failed escrows never block completion.
func (w *Worker) completeIfSettled(ctx context.Context, id domain.DisasterID, now time.Time) {
	escrows, err := w.cfg.Disasters.ListEscrowsByDisaster(ctx, id)
	if err != nil {
		w.cfg.Logger.ErrorContext(ctx, "list disaster escrows failed", "disaster_id", id, "error", err)
		return
	}
	for _, e := range escrows {
		if e.Status == disaster.EscrowStatusLocked {
			return
		}
	}

	if err := w.cfg.Disasters.CompleteDisaster(ctx, id, now); err != nil {
		if !errors.Is(err, sentinel.ErrInvalidState) {
			w.cfg.Logger.ErrorContext(ctx, "complete disaster failed", "disaster_id", id, "error", err)
		}
		return
	}

	if err := w.cfg.Publisher.Publish(ctx, events.Event{Type: events.TypeDisasterCompleted, ID: id.String(), At: now}); err != nil {
		w.cfg.Logger.WarnContext(ctx, "publish disaster completion failed", "disaster_id", id, "error", err)
	}
	w.cfg.Logger.InfoContext(ctx, "disaster completed", "disaster_id", id)
}
