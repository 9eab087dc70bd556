package status

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reliefpool/internal/batch"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/httputil"
)

// Handler exposes the public ledger status endpoint.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/ledger/status", h.HandleStatus)
}

type progressResponse struct {
	Currency       string     `json:"currency"`
	PendingDrops   int64      `json:"pending_drops"`
	PendingXRP     float64    `json:"pending_xrp"`
	Donations      int        `json:"donations"`
	DonorCount     int        `json:"donor_count"`
	ThresholdDrops int64      `json:"threshold_drops"`
	RemainingDrops int64      `json:"remaining_drops"`
	OldestPending  *time.Time `json:"oldest_pending,omitempty"`
	Ready          bool       `json:"ready"`
	Trigger        string     `json:"trigger,omitempty"`
}

type statusResponse struct {
	Network        string             `json:"network"`
	PoolAddress    string             `json:"pool_address"`
	ReserveAddress string             `json:"reserve_address"`
	PoolBalance    int64              `json:"pool_balance_drops"`
	PoolXRP        float64            `json:"pool_balance_xrp"`
	ReserveBalance int64              `json:"reserve_balance_drops"`
	ReserveXRP     float64            `json:"reserve_balance_xrp"`
	ReserveRLUSD   int64              `json:"reserve_rlusd_drops"`
	LedgerIndex    uint32             `json:"ledger_index"`
	Known          bool               `json:"known"`
	FetchedAt      time.Time          `json:"fetched_at"`
	Batches        []progressResponse `json:"batch_progress"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Status(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := statusResponse{
		Network:        result.Snapshot.Network,
		PoolAddress:    h.service.cfg.Pool.String(),
		ReserveAddress: h.service.cfg.Reserve.String(),
		PoolBalance:    int64(result.Snapshot.PoolBalance),
		PoolXRP:        result.Snapshot.PoolBalance.XRP(),
		ReserveBalance: int64(result.Snapshot.ReserveBalance),
		ReserveXRP:     result.Snapshot.ReserveBalance.XRP(),
		ReserveRLUSD:   int64(result.Snapshot.ReserveRLUSD),
		LedgerIndex:    result.Snapshot.LedgerIndex,
		Known:          result.Known,
		FetchedAt:      result.Snapshot.FetchedAt,
	}

	for _, currency := range []domain.Currency{domain.CurrencyXRP, domain.CurrencyRLUSD} {
		progress, err := h.service.Progress(r.Context(), currency)
		if err != nil {
			h.logger.WarnContext(r.Context(), "batch progress unavailable", "currency", currency, "error", err)
			continue
		}
		resp.Batches = append(resp.Batches, toProgressResponse(progress))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func toProgressResponse(p batch.Progress) progressResponse {
	return progressResponse{
		Currency:       string(p.Currency),
		PendingDrops:   int64(p.PendingTotal),
		PendingXRP:     p.PendingTotal.XRP(),
		Donations:      p.Donations,
		DonorCount:     p.DonorCount,
		ThresholdDrops: int64(p.Threshold),
		RemainingDrops: int64(p.Remaining),
		OldestPending:  p.Oldest,
		Ready:          p.Ready(),
		Trigger:        string(p.Trigger),
	}
}
