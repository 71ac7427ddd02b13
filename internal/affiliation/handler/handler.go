// Package handler exposes organization membership over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tracker/internal/affiliation"
	"tracker/internal/user"
	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/httputil"
	"tracker/pkg/requestcontext"
)

// Service defines the membership operations the handler fronts.
type Service interface {
	UpdateRole(ctx context.Context, orgKey id.OrgKey, targetKey id.UserKey, requested id.Permission) (*affiliation.Affiliation, error)
	Invite(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey, rank id.Permission) (*affiliation.Affiliation, error)
	Remove(ctx context.Context, orgKey id.OrgKey, targetKey id.UserKey) error
	ListMembers(ctx context.Context, orgKey id.OrgKey) ([]*affiliation.Affiliation, error)
}

// Handler wires membership endpoints to the affiliation service.
type Handler struct {
	service Service
	users   user.Store
	logger  *slog.Logger
}

// New constructs a membership handler with its dependencies.
func New(service Service, users user.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, users: users, logger: logger}
}

// Register mounts membership endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/orgs/{orgKey}/members", h.HandleListMembers)
	r.Post("/orgs/{orgKey}/members", h.HandleInvite)
	r.Put("/orgs/{orgKey}/members/{userKey}/role", h.HandleUpdateRole)
	r.Delete("/orgs/{orgKey}/members/{userKey}", h.HandleRemove)
}

// HandleUpdateRole handles PUT /orgs/{orgKey}/members/{userKey}/role.
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	targetKey, err := id.ParseUserKey(chi.URLParam(r, "userKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[UpdateRoleRequest](w, r)
	if !ok {
		return
	}
	requested, err := id.ParsePermission(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.service.UpdateRole(ctx, orgKey, targetKey, requested)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "role updated",
		"request_id", requestcontext.RequestID(ctx),
		"org", orgKey.String(),
		"target", targetKey.String(),
		"role", requested.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromAffiliation(updated))
}

// HandleInvite handles POST /orgs/{orgKey}/members.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[InviteRequest](w, r)
	if !ok {
		return
	}
	userKey, err := id.ParseUserKey(req.UserKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rank := id.PermissionPending
	if req.Role != "" {
		if rank, err = id.ParsePermission(req.Role); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	created, err := h.service.Invite(ctx, orgKey, userKey, rank)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromAffiliation(created))
}

// HandleRemove handles DELETE /orgs/{orgKey}/members/{userKey}.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	targetKey, err := id.ParseUserKey(chi.URLParam(r, "userKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Remove(ctx, orgKey, targetKey); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMembers handles GET /orgs/{orgKey}/members. Entries carry
// directory display fields when the user record is known.
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgKey, err := id.ParseOrgKey(chi.URLParam(r, "orgKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	members, err := h.service.ListMembers(ctx, orgKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	keys := make([]id.UserKey, len(members))
	for i, m := range members {
		keys[i] = m.UserKey
	}
	directory, err := h.users.FindMany(ctx, keys)
	if err != nil {
		h.logger.WarnContext(ctx, "member directory lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"org", orgKey.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMembers(members, directory))
}
