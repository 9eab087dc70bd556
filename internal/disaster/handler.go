package disaster

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/httputil"
)

// Handler exposes emergency trigger and disaster read endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts disaster routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/emergencies", func(r chi.Router) {
		r.Post("/trigger", h.HandleTrigger)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
	})
}

type triggerRequest struct {
	Type     string   `json:"type"`
	Location string   `json:"location"`
	Severity int      `json:"severity"`
	Causes   []string `json:"causes"`
	Currency string   `json:"currency,omitempty"`
}

func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[triggerRequest](w, r, h.logger)
	if !ok {
		return
	}

	causes, err := domain.ParseCauseTypes(req.Causes)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid causes"))
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid currency"))
		return
	}

	detail, err := h.service.Trigger(r.Context(), TriggerRequest{
		Type:     req.Type,
		Location: req.Location,
		Severity: req.Severity,
		Causes:   causes,
		Currency: currency,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDetailResponse(detail))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]disasterResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDisasterResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"disasters": out, "count": len(out)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := domain.DisasterID(chi.URLParam(r, "id"))
	if id.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "disaster id is required"))
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

type disasterResponse struct {
	ID                  string     `json:"id"`
	Type                string     `json:"type"`
	Location            string     `json:"location"`
	Severity            int        `json:"severity"`
	Status              string     `json:"status"`
	TotalAllocatedDrops int64      `json:"total_allocated_drops"`
	TotalAllocatedXRP   float64    `json:"total_allocated_xrp"`
	TotalRLUSDDrops     int64      `json:"total_rlusd_allocated_drops"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

type escrowResponse struct {
	ID           string     `json:"id"`
	OrgID        int64      `json:"org_id"`
	OrgAddress   string     `json:"org_address"`
	AmountDrops  int64      `json:"amount_drops"`
	AmountXRP    float64    `json:"amount_xrp"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	EscrowTxHash string     `json:"escrow_tx_hash,omitempty"`
	FinishTxHash string     `json:"finish_tx_hash,omitempty"`
	FinishAfter  time.Time  `json:"finish_after"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type reconciliationResponse struct {
	IntendedDrops int64 `json:"intended_drops"`
	EscrowedDrops int64 `json:"escrowed_drops"`
	MissingDrops  int64 `json:"missing_drops"`
	Mismatch      bool  `json:"mismatch"`
}

type detailResponse struct {
	disasterResponse
	Escrows        []escrowResponse       `json:"escrows"`
	Reconciliation reconciliationResponse `json:"reconciliation"`
}

func toDisasterResponse(d Disaster) disasterResponse {
	return disasterResponse{
		ID:                  d.ID.String(),
		Type:                d.Type,
		Location:            d.Location,
		Severity:            d.Severity,
		Status:              string(d.Status),
		TotalAllocatedDrops: int64(d.TotalAllocated),
		TotalAllocatedXRP:   d.TotalAllocated.XRP(),
		TotalRLUSDDrops:     int64(d.TotalRLUSDAllocated),
		CreatedAt:           d.CreatedAt,
		CompletedAt:         d.CompletedAt,
	}
}

func toDetailResponse(detail Detail) detailResponse {
	escrows := make([]escrowResponse, 0, len(detail.Escrows))
	for _, e := range detail.Escrows {
		escrows = append(escrows, escrowResponse{
			ID:           e.ID.String(),
			OrgID:        int64(e.OrgID),
			OrgAddress:   e.OrgAddress.String(),
			AmountDrops:  int64(e.Amount),
			AmountXRP:    e.Amount.XRP(),
			Currency:     string(e.Currency),
			Status:       string(e.Status),
			Error:        e.Error,
			EscrowTxHash: e.EscrowTxHash.String(),
			FinishTxHash: e.FinishTxHash.String(),
			FinishAfter:  e.FinishAfter.Time(),
			CreatedAt:    e.CreatedAt,
			FinishedAt:   e.FinishedAt,
		})
	}
	return detailResponse{
		disasterResponse: toDisasterResponse(detail.Disaster),
		Escrows:          escrows,
		Reconciliation: reconciliationResponse{
			IntendedDrops: int64(detail.Reconciliation.Intended),
			EscrowedDrops: int64(detail.Reconciliation.Escrowed),
			MissingDrops:  int64(detail.Reconciliation.Missing),
			Mismatch:      detail.Reconciliation.Mismatch,
		},
	}
}
