package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/go-chi/chi/v5"
)

// CreateGrant handles POST /events/{id}/staff
// The caller needs manage_staff on the event.
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	var req model.CreateGrantRequest
	if !h.bind(w, r, &req) {
		return
	}

	g, err := h.staff.CreateGrant(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.serviceError(w, r, err, "create staff grant")
		return
	}

	writeJSON(w, http.StatusCreated, g)
}

// ListGrants handles GET /events/{id}/staff
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	grants, err := h.staff.ListGrants(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.serviceError(w, r, err, "list staff grants")
		return
	}

	if grants == nil {
		grants = []model.StaffGrant{}
	}

	writeJSON(w, http.StatusOK, grants)
}

// AcceptGrant handles POST /grants/{id}/accept
// Only the invited user may accept.
func (h *Handler) AcceptGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	g, err := h.staff.AcceptGrant(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.serviceError(w, r, err, "accept staff grant")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// RevokeGrant handles DELETE /grants/{id}
func (h *Handler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.staff.RevokeGrant(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		h.serviceError(w, r, err, "revoke staff grant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
