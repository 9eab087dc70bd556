package organization

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/platform/httputil"
	"reliefpool/pkg/requestcontext"
)

// Handler exposes the org registry and the org-dashboard session endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts organization routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/organizations", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/login", h.HandleLogin)
		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Get("/me", h.HandleMe)
		})
	})
}

// Authenticate requires a valid Bearer session token and stores the org ID in
// the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if raw == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
			return
		}
		id, err := h.service.Verify(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithOrgID(r.Context(), int64(id))))
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]orgResponse, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, toOrgResponse(org))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"organizations": out, "count": len(out)})
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string      `json:"token"`
	Organization orgResponse `json:"organization"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[loginRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Name == "" || req.Password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "name and password are required"))
		return
	}

	token, org, err := h.service.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, Organization: toOrgResponse(org)})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrgResponse(org))
}

type orgResponse struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	CauseType          string    `json:"cause_type"`
	WalletAddress      string    `json:"wallet_address"`
	NeedScore          int       `json:"need_score"`
	TotalReceivedDrops int64     `json:"total_received_drops"`
	TotalReceivedXRP   float64   `json:"total_received_xrp"`
	TotalRLUSDDrops    int64     `json:"total_rlusd_received_drops"`
	CreatedAt          time.Time `json:"created_at"`
}

func toOrgResponse(org Organization) orgResponse {
	return orgResponse{
		ID:                 int64(org.ID),
		Name:               org.Name,
		CauseType:          string(org.CauseType),
		WalletAddress:      org.WalletAddress.String(),
		NeedScore:          org.NeedScore,
		TotalReceivedDrops: int64(org.TotalReceived),
		TotalReceivedXRP:   org.TotalReceived.XRP(),
		TotalRLUSDDrops:    int64(org.TotalRLUSDReceived),
		CreatedAt:          org.CreatedAt,
	}
}
