package tracking

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reliefpool/internal/lifecycle"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/httputil"
)

// Handler exposes the donor tracking report.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the tracking route alongside the donation routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/donations/track/{address}", h.HandleTrack)
}

func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	donor, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid donor address"))
		return
	}

	report, err := h.service.Track(r.Context(), donor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReportResponse(report))
}

type orgAllocationResponse struct {
	OrgID       int64   `json:"org_id"`
	Address     string  `json:"address"`
	AmountDrops int64   `json:"amount_drops"`
	AmountXRP   float64 `json:"amount_xrp"`
}

type allocationResponse struct {
	DisasterID     string                  `json:"disaster_id"`
	DisasterType   string                  `json:"disaster_type"`
	Location       string                  `json:"location"`
	Status         string                  `json:"status"`
	ShareDrops     int64                   `json:"share_drops"`
	SharePct       float64                 `json:"share_pct"`
	Unattributable bool                    `json:"unattributable,omitempty"`
	Organizations  []orgAllocationResponse `json:"organizations"`
	AllocatedAt    time.Time               `json:"allocated_at"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
}

type entryResponse struct {
	DonationID    string               `json:"donation_id"`
	AmountDrops   int64                `json:"amount_drops"`
	AmountXRP     float64              `json:"amount_xrp"`
	Currency      string               `json:"currency"`
	PaymentTxHash string               `json:"payment_tx_hash"`
	CreatedAt     time.Time            `json:"created_at"`
	Stage         string               `json:"stage"`
	Step          int                  `json:"step"`
	Milestones    lifecycle.Milestones `json:"milestones"`
	BatchID       string               `json:"batch_id,omitempty"`
	Allocations   []allocationResponse `json:"allocations"`
	Incomplete    bool                 `json:"incomplete,omitempty"`
}

type reportResponse struct {
	Donor       string          `json:"donor_address"`
	Entries     []entryResponse `json:"donations"`
	TotalDrops  int64           `json:"total_donated_drops"`
	TotalXRP    float64         `json:"total_donated_xrp"`
	TotalRLUSD  int64           `json:"total_donated_rlusd_drops"`
	GeneratedAt time.Time       `json:"generated_at"`
}

func toReportResponse(report Report) reportResponse {
	entries := make([]entryResponse, 0, len(report.Entries))
	for _, e := range report.Entries {
		entries = append(entries, toEntryResponse(e))
	}
	return reportResponse{
		Donor:       report.Donor.String(),
		Entries:     entries,
		TotalDrops:  int64(report.TotalDrops),
		TotalXRP:    report.TotalDrops.XRP(),
		TotalRLUSD:  int64(report.TotalRLUSD),
		GeneratedAt: report.GeneratedAt,
	}
}

func toEntryResponse(e Entry) entryResponse {
	allocations := make([]allocationResponse, 0, len(e.Allocations))
	for _, a := range e.Allocations {
		orgs := make([]orgAllocationResponse, 0, len(a.Orgs))
		for _, o := range a.Orgs {
			orgs = append(orgs, orgAllocationResponse{
				OrgID:       int64(o.OrgID),
				Address:     o.Address.String(),
				AmountDrops: int64(o.Amount),
				AmountXRP:   o.Amount.XRP(),
			})
		}
		allocations = append(allocations, allocationResponse{
			DisasterID:     a.DisasterID.String(),
			DisasterType:   a.DisasterType,
			Location:       a.Location,
			Status:         string(a.Status),
			ShareDrops:     int64(a.Share.Amount),
			SharePct:       a.Share.Pct,
			Unattributable: a.Share.Unattributable,
			Organizations:  orgs,
			AllocatedAt:    a.AllocatedAt,
			CompletedAt:    a.CompletedAt,
		})
	}

	resp := entryResponse{
		DonationID:    e.Donation.ID.String(),
		AmountDrops:   int64(e.Donation.Amount),
		AmountXRP:     e.Donation.Amount.XRP(),
		Currency:      string(e.Donation.Currency),
		PaymentTxHash: e.Donation.PaymentTxHash.String(),
		CreatedAt:     e.Donation.CreatedAt,
		Stage:         e.Stage.Label(),
		Step:          e.Stage.Step(),
		Milestones:    e.Milestones,
		Allocations:   allocations,
		Incomplete:    e.Incomplete,
	}
	if e.Batch != nil {
		resp.BatchID = e.Batch.ID.String()
	}
	return resp
}
