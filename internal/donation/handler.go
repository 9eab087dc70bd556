package donation

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reliefpool/internal/xrpl"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/httputil"
)

// Handler exposes the donor-facing endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts donation routes. Paths are flat because the tracking
// module adds its own route under the same prefix.
func (h *Handler) Register(r chi.Router) {
	r.Post("/donations/prepare", h.HandlePrepare)
	r.Post("/donations/submit", h.HandleSubmit)
	r.Post("/donations/confirm", h.HandleConfirm)
	r.Get("/donations/donor/{address}", h.HandleListByDonor)
}

type prepareRequest struct {
	DonorAddress string  `json:"donor_address"`
	AmountXRP    float64 `json:"amount_xrp"`
	Currency     string  `json:"currency,omitempty"`
}

type prepareResponse struct {
	Payment     xrpl.UnsignedPayment `json:"payment"`
	PoolAddress string               `json:"pool_address"`
	Funded      bool                 `json:"funded,omitempty"`
}

func (h *Handler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[prepareRequest](w, r, h.logger)
	if !ok {
		return
	}

	donor, err := domain.ParseAddress(req.DonorAddress)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid donor address"))
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid currency"))
		return
	}

	prepared, err := h.service.Prepare(r.Context(), donor, domain.FromXRP(req.AmountXRP), currency)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prepareResponse{
		Payment:     prepared.Payment,
		PoolAddress: prepared.PoolAddress.String(),
		Funded:      prepared.Funded,
	})
}

type submitRequest struct {
	DonorAddress string `json:"donor_address"`
	SignedBlob   string `json:"signed_blob"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[submitRequest](w, r, h.logger)
	if !ok {
		return
	}

	donor, err := domain.ParseAddress(req.DonorAddress)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid donor address"))
		return
	}

	d, err := h.service.Submit(r.Context(), donor, req.SignedBlob)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(d))
}

type confirmRequest struct {
	DonorAddress string `json:"donor_address"`
	TxHash       string `json:"tx_hash"`
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[confirmRequest](w, r, h.logger)
	if !ok {
		return
	}

	donor, err := domain.ParseAddress(req.DonorAddress)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid donor address"))
		return
	}

	d, err := h.service.Confirm(r.Context(), donor, domain.TxHash(req.TxHash))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(d))
}

func (h *Handler) HandleListByDonor(w http.ResponseWriter, r *http.Request) {
	donor, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid donor address"))
		return
	}

	ds, err := h.service.Donations(r.Context(), donor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]donationResponse, 0, len(ds))
	var totalXRP, totalRLUSD domain.Drops
	for _, d := range ds {
		out = append(out, toResponse(d))
		if d.Currency == domain.CurrencyRLUSD {
			totalRLUSD += d.Amount
		} else {
			totalXRP += d.Amount
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"donor_address":     donor.String(),
		"donations":         out,
		"total_drops":       int64(totalXRP),
		"total_xrp":         totalXRP.XRP(),
		"total_rlusd_drops": int64(totalRLUSD),
	})
}

type donationResponse struct {
	ID            string    `json:"id"`
	DonorAddress  string    `json:"donor_address"`
	AmountDrops   int64     `json:"amount_drops"`
	AmountXRP     float64   `json:"amount_xrp"`
	Currency      string    `json:"currency"`
	PaymentTxHash string    `json:"payment_tx_hash"`
	BatchID       string    `json:"batch_id,omitempty"`
	BatchStatus   string    `json:"batch_status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResponse(d Donation) donationResponse {
	return donationResponse{
		ID:            d.ID.String(),
		DonorAddress:  d.DonorAddress.String(),
		AmountDrops:   int64(d.Amount),
		AmountXRP:     d.Amount.XRP(),
		Currency:      string(d.Currency),
		PaymentTxHash: d.PaymentTxHash.String(),
		BatchID:       d.BatchID.String(),
		BatchStatus:   string(d.BatchStatus),
		CreatedAt:     d.CreatedAt,
	}
}
