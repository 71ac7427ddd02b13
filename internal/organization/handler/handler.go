// Package handler exposes organization management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tracker/internal/organization"
	id "tracker/pkg/domain"
	"tracker/pkg/platform/httputil"
	"tracker/pkg/requestcontext"
)

// Service defines the organization operations the handler fronts.
type Service interface {
	Create(ctx context.Context, details map[organization.Locale]organization.Details) (*organization.Organization, error)
	Update(ctx context.Context, orgKey id.OrgKey, patches map[organization.Locale]organization.DetailsPatch) (*organization.Organization, error)
	Get(ctx context.Context, orgKey id.OrgKey) (*organization.Organization, error)
}

// Handler wires organization endpoints to the organization service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an organization handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts organization endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orgs", h.HandleCreate)
	r.Get("/orgs/{orgKey}", h.HandleGet)
	r.Patch("/orgs/{orgKey}", h.HandleUpdate)
}

// HandleCreate handles POST /orgs.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CreateRequest](w, r)
	if !ok {
		return
	}
	details, err := req.ToDetails()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	org, err := h.service.Create(ctx, details)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "organization created",
		"request_id", requestcontext.RequestID(ctx),
		"org", org.Key.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromOrganization(org))
}

// HandleGet handles GET /orgs/{orgKey}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	org, err := h.service.Get(ctx, orgKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrganization(org))
}

// HandleUpdate handles PATCH /orgs/{orgKey}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[UpdateRequest](w, r)
	if !ok {
		return
	}
	patches, err := req.ToPatches()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	org, err := h.service.Update(ctx, orgKey, patches)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrganization(org))
}
