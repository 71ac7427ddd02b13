// Package handler exposes domain claims and updates over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tracker/internal/domains"
	id "tracker/pkg/domain"
	"tracker/pkg/platform/httputil"
	"tracker/pkg/requestcontext"
)

// Service defines the domain operations the handler fronts.
type Service interface {
	Claim(ctx context.Context, orgKey id.OrgKey, hostname string) (*domains.Domain, error)
	Update(ctx context.Context, orgKey id.OrgKey, domainKey id.DomainKey, patch domains.Patch) (*domains.Domain, error)
	ListClaimed(ctx context.Context, orgKey id.OrgKey) ([]*domains.Domain, error)
}

// Handler wires domain endpoints to the domain service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a domain handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts domain endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/orgs/{orgKey}/domains", h.HandleList)
	r.Post("/orgs/{orgKey}/domains", h.HandleClaim)
	r.Patch("/orgs/{orgKey}/domains/{domainKey}", h.HandleUpdate)
}

// HandleClaim handles POST /orgs/{orgKey}/domains.
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ClaimRequest](w, r)
	if !ok {
		return
	}

	claimed, err := h.service.Claim(ctx, orgKey, req.Hostname)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain claimed",
		"request_id", requestcontext.RequestID(ctx),
		"org", orgKey.String(),
		"hostname", claimed.Hostname,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromDomain(claimed))
}

// HandleUpdate handles PATCH /orgs/{orgKey}/domains/{domainKey}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	domainKey, err := id.ParseDomainKey(chi.URLParam(r, "domainKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[UpdateRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(ctx, orgKey, domainKey, req.ToPatch())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDomain(updated))
}

// HandleList handles GET /orgs/{orgKey}/domains.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claimed, err := h.service.ListClaimed(ctx, orgKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]DomainResponse, len(claimed))
	for i, d := range claimed {
		out[i] = FromDomain(d)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
