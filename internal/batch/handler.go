package batch

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/httputil"
)

// Handler exposes read-only batch endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts batch routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/batches", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	bs, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]batchResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBatchResponse(b))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"batches": out, "count": len(out)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := domain.BatchID(chi.URLParam(r, "id"))
	if id.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "batch id is required"))
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	donors := make([]donorShareResponse, 0, len(detail.Donors))
	for _, d := range detail.Donors {
		donors = append(donors, donorShareResponse{
			Address:     d.Address.String(),
			AmountDrops: int64(d.Amount),
			AmountXRP:   d.Amount.XRP(),
			Pct:         d.Pct,
		})
	}
	resp := detailResponse{
		batchResponse: toBatchResponse(detail.Batch),
		Donors:        donors,
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type batchResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Trigger      string     `json:"trigger,omitempty"`
	Currency     string     `json:"currency"`
	TotalDrops   int64      `json:"total_drops"`
	TotalXRP     float64    `json:"total_xrp"`
	DonorCount   int        `json:"donor_count"`
	EscrowTxHash string     `json:"escrow_tx_hash,omitempty"`
	FinishTxHash string     `json:"finish_tx_hash,omitempty"`
	FinishAfter  time.Time  `json:"finish_after"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type donorShareResponse struct {
	Address     string  `json:"address"`
	AmountDrops int64   `json:"amount_drops"`
	AmountXRP   float64 `json:"amount_xrp"`
	Pct         float64 `json:"pct"`
}

type detailResponse struct {
	batchResponse
	Donors []donorShareResponse `json:"donors"`
}

func toBatchResponse(b Batch) batchResponse {
	return batchResponse{
		ID:           b.ID.String(),
		Status:       string(b.Status),
		Trigger:      string(b.Trigger),
		Currency:     string(b.Currency),
		TotalDrops:   int64(b.TotalAmount),
		TotalXRP:     b.TotalAmount.XRP(),
		DonorCount:   b.DonorCount,
		EscrowTxHash: b.EscrowTxHash.String(),
		FinishTxHash: b.FinishTxHash.String(),
		FinishAfter:  b.FinishAfter.Time(),
		CreatedAt:    b.CreatedAt,
		FinishedAt:   b.FinishedAt,
	}
}
