// Package status reports platform wallet balances and batch progress. Reads
// go through a short redis cache and a singleflight group so a burst of
// dashboard polls costs one gateway round trip; when the node is down the
// last known good snapshot is served, clearly marked stale.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reliefpool/internal/batch"
	"reliefpool/internal/donation"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/platform/redis"
	"reliefpool/internal/xrpl"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
)

const (
	snapshotKey  = "reliefpool:ledger_status"
	thresholdKey = "reliefpool:batch_threshold_drops"
)

// Snapshot is one consistent view of the platform wallets.
type Snapshot struct {
	Network        string       `json:"network"`
	PoolBalance    domain.Drops `json:"pool_balance_drops"`
	ReserveBalance domain.Drops `json:"reserve_balance_drops"`
	ReserveRLUSD   domain.Drops `json:"reserve_rlusd_drops"`
	LedgerIndex    uint32       `json:"ledger_index"`
	FetchedAt      time.Time    `json:"fetched_at"`
}

// Result is a snapshot plus its freshness. Known is false when the gateway
// was unreachable and the snapshot is the last good one.
type Result struct {
	Snapshot Snapshot
	Known    bool
}

// ServiceConfig wires the status service.
type ServiceConfig struct {
	Gateway   xrpl.Gateway
	Cache     *redis.Client // nil disables the shared cache
	Donations donation.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	Network string
	Pool    domain.Address
	Reserve domain.Address
	// DefaultThreshold backs the Threshold source when no redis override is
	// set.
	DefaultThreshold domain.Drops
	Window           time.Duration
	// CacheTTL bounds snapshot staleness across instances.
	CacheTTL time.Duration
}

type Service struct {
	cfg   ServiceConfig
	group singleflight.Group
	now   func() time.Time

	mu       sync.Mutex
	lastGood *Snapshot
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Second
	}
	return &Service{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Status returns the current wallet snapshot.
func (s *Service) Status(ctx context.Context) (Result, error) {
	if snap, ok := s.cached(ctx); ok {
		return Result{Snapshot: snap, Known: true}, nil
	}

	// The fetch is shared by every coalesced caller, so it must not die with
	// whichever request happened to start it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do("status", func() (any, error) {
		return s.fetch(fetchCtx)
	})
	if err == nil {
		return Result{Snapshot: v.(Snapshot), Known: true}, nil
	}

	s.cfg.Metrics.GatewayReadFailures.Inc()
	s.mu.Lock()
	last := s.lastGood
	s.mu.Unlock()
	if last != nil {
		s.cfg.Logger.WarnContext(ctx, "serving stale ledger status", "fetched_at", last.FetchedAt, "error", err)
		return Result{Snapshot: *last, Known: false}, nil
	}
	return Result{}, xrpl.DomainError("ledger status", err)
}

// Progress reports how close the pending pool is to the next batch, per the
// current threshold.
func (s *Service) Progress(ctx context.Context, currency domain.Currency) (batch.Progress, error) {
	threshold, err := s.Threshold(ctx)
	if err != nil {
		return batch.Progress{}, err
	}
	pending, err := s.cfg.Donations.ListPending(ctx)
	if err != nil {
		return batch.Progress{}, dErrors.Wrap(err, dErrors.CodeInternal, "list pending donations")
	}
	return batch.ComputeProgress(pending, currency, threshold, s.cfg.Window, s.now()), nil
}

// Threshold implements batch.ThresholdSource: a redis override wins so
// operators can tune batching live, otherwise the configured default.
func (s *Service) Threshold(ctx context.Context) (domain.Drops, error) {
	if s.cfg.Cache != nil {
		if raw, err := s.cfg.Cache.Get(ctx, thresholdKey).Result(); err == nil {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
				return domain.Drops(n), nil
			}
			s.cfg.Logger.WarnContext(ctx, "ignoring malformed threshold override", "value", raw)
		}
	}
	return s.cfg.DefaultThreshold, nil
}

func (s *Service) cached(ctx context.Context) (Snapshot, bool) {
	if s.cfg.Cache == nil {
		return Snapshot{}, false
	}
	raw, err := s.cfg.Cache.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

func (s *Service) fetch(ctx context.Context) (Snapshot, error) {
	pool, err := s.cfg.Gateway.AccountBalance(ctx, s.cfg.Pool)
	if err != nil {
		return Snapshot{}, err
	}
	reserve, err := s.cfg.Gateway.AccountBalance(ctx, s.cfg.Reserve)
	if err != nil {
		return Snapshot{}, err
	}
	rlusd, err := s.cfg.Gateway.TokenBalance(ctx, s.cfg.Reserve, domain.CurrencyRLUSD)
	if err != nil {
		return Snapshot{}, err
	}
	index, err := s.cfg.Gateway.LedgerIndex(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Network:        s.cfg.Network,
		PoolBalance:    pool,
		ReserveBalance: reserve,
		ReserveRLUSD:   rlusd,
		LedgerIndex:    index,
		FetchedAt:      s.now(),
	}

	s.mu.Lock()
	s.lastGood = &snap
	s.mu.Unlock()

	if s.cfg.Cache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := s.cfg.Cache.Set(ctx, snapshotKey, raw, s.cfg.CacheTTL).Err(); err != nil {
				s.cfg.Logger.WarnContext(ctx, "cache ledger status failed", "error", err)
			}
		}
	}
	return snap, nil
}
