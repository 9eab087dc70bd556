package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reliefpool/internal/donation"
	"reliefpool/internal/events"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

const batchMemoType = "relief:batch"

type batchMemo struct {
	BatchID    string `json:"batch_id"`
	DonorCount int    `json:"donor_count"`
	TotalDrops int64  `json:"total_drops"`
}

// ManagerConfig wires the batch manager's dependencies and policy.
type ManagerConfig struct {
	Batches    Store
	Donations  donation.Store
	Gateway    xrpl.Gateway
	Thresholds ThresholdSource
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// Pool is swept from, Reserve is the escrow destination.
	Pool    domain.Address
	Reserve domain.Address

	// Window bounds how long a small donation can wait before a time-triggered
	// sweep picks it up.
	Window       time.Duration
	PollInterval time.Duration
	// LockDuration is the escrow time lock on each batch.
	LockDuration time.Duration

	// Now overrides the clock; nil means wall time. Tests pin it to exercise
	// window and maturity behavior.
	Now func() time.Time
}

// Manager periodically sweeps pending donations into time-locked batch
// escrows toward the reserve wallet. One manager runs per process; the
// pending-then-locked write order keeps a crash from losing an escrow that
// made it to the ledger.
type Manager struct {
	cfg ManagerConfig
	now func() time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{cfg: cfg, now: now}
}

// Run sweeps on every poll tick until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.cfg.Logger.InfoContext(ctx, "batch manager started",
		"poll_interval", m.cfg.PollInterval, "window", m.cfg.Window, "lock_duration", m.cfg.LockDuration)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.cfg.Logger.ErrorContext(ctx, "batch sweep failed", "error", err)
			}
		}
	}
}

// Sweep evaluates pending donations and forms at most one batch per currency.
func (m *Manager) Sweep(ctx context.Context) error {
	threshold, err := m.cfg.Thresholds.Threshold(ctx)
	if err != nil {
		return fmt.Errorf("read threshold: %w", err)
	}

	pending, err := m.cfg.Donations.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending donations: %w", err)
	}

	now := m.now()
	var errs []error
	for _, currency := range currencies(pending) {
		prog := ComputeProgress(pending, currency, threshold, m.cfg.Window, now)
		if !prog.Ready() {
			continue
		}
		if err := m.form(ctx, pending, prog, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) form(ctx context.Context, pending []donation.Donation, prog Progress, now time.Time) error {
	var ids []domain.DonationID
	for _, d := range pending {
		if d.Currency == prog.Currency {
			ids = append(ids, d.ID)
		}
	}

	b := Batch{
		ID:          domain.BatchID(fmt.Sprintf("batch_%d", now.Unix())),
		Currency:    prog.Currency,
		TotalAmount: prog.PendingTotal,
		DonorCount:  prog.DonorCount,
		Status:      StatusPending,
		Trigger:     prog.Trigger,
		FinishAfter: xrpl.ToRippleTime(now.Add(m.cfg.LockDuration)),
		CreatedAt:   now,
	}
	if err := m.cfg.Batches.Create(ctx, b); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("create batch row: %w", err)
		}
		// Same-second sweep of another currency; disambiguate.
		b.ID = domain.BatchID(fmt.Sprintf("batch_%d", now.UnixNano()))
		if err := m.cfg.Batches.Create(ctx, b); err != nil {
			return fmt.Errorf("create batch row: %w", err)
		}
	}

	memo, err := xrpl.NewMemo(batchMemoType, batchMemo{
		BatchID:    b.ID.String(),
		DonorCount: b.DonorCount,
		TotalDrops: int64(b.TotalAmount),
	})
	if err != nil {
		return fmt.Errorf("encode batch memo: %w", err)
	}

	res, err := m.cfg.Gateway.CreateEscrow(ctx, xrpl.EscrowCreate{
		Source:      m.cfg.Pool,
		Destination: m.cfg.Reserve,
		Amount:      b.TotalAmount,
		Currency:    b.Currency,
		FinishAfter: b.FinishAfter,
		Memo:        memo,
	})
	if err != nil {
		// Donations stay pending and the next sweep retries.
		if delErr := m.cfg.Batches.Delete(ctx, b.ID); delErr != nil {
			m.cfg.Logger.ErrorContext(ctx, "orphan pending batch left behind", "batch_id", b.ID, "error", delErr)
		}
		return fmt.Errorf("create batch escrow: %w", err)
	}

	if err := m.cfg.Batches.MarkLocked(ctx, b.ID, res.TxHash, res.Sequence); err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}
	if err := m.cfg.Donations.AssignBatch(ctx, ids, b.ID); err != nil {
		return fmt.Errorf("assign donations to batch: %w", err)
	}

	m.cfg.Metrics.BatchesCreated.WithLabelValues(string(b.Trigger)).Inc()
	if err := m.cfg.Publisher.Publish(ctx, events.Event{Type: events.TypeBatchCreated, ID: b.ID.String(), At: now}); err != nil {
		m.cfg.Logger.WarnContext(ctx, "publish batch event failed", "batch_id", b.ID, "error", err)
	}
	m.cfg.Logger.InfoContext(ctx, "batch escrow created",
		"batch_id", b.ID, "trigger", b.Trigger, "currency", b.Currency,
		"total_drops", int64(b.TotalAmount), "donations", len(ids), "escrow_tx", res.TxHash)
	return nil
}
