// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// PrincipalHeader carries the authenticated user id set by the upstream
// gateway.
const PrincipalHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

// Handler holds the HTTP handlers for the ticketing and check-in API.
type Handler struct {
	events     *service.EventService
	issuance   *service.IssuanceService
	validation *service.ValidationService
	staff      *service.StaffService
	validate   *validator.Validate
	logger     *logrus.Logger
}

// New constructs a Handler.
func New(
	events *service.EventService,
	issuance *service.IssuanceService,
	validation *service.ValidationService,
	staff *service.StaffService,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		events:     events,
		issuance:   issuance,
		validation: validation,
		staff:      staff,
		validate:   newValidator(),
		logger:     logger,
	}
}

// newValidator registers the permission and staffrole tags so request
// validation shares the model's permission set and the role presets.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("permission", func(fl validator.FieldLevel) bool {
		return model.Permission(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("staffrole", func(fl validator.FieldLevel) bool {
		_, ok := service.PermissionsForRole(fl.Field().String())
		return ok
	})
	return v
}

// Routes mounts every API route on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Post("/{id}/tickets", h.IssueTicket)
		r.Get("/{id}/stats", h.EventStats)
		r.Get("/{id}/attendees", h.Attendees)
		r.Post("/{id}/staff", h.CreateGrant)
		r.Get("/{id}/staff", h.ListGrants)
	})
	r.Get("/tickets/{id}", h.GetTicket)
	r.Get("/users/{id}/tickets", h.ListHolderTickets)
	r.Post("/checkin", h.CheckIn)
	r.Post("/grants/{id}/accept", h.AcceptGrant)
	r.Delete("/grants/{id}", h.RevokeGrant)
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// bind decodes and validates a request body, writing a 400 on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = fmt.Sprintf("invalid '%s': failed %s", f.Field(), f.Tag())
	}
	return strings.Join(msgs, ", ")
}

// principal returns the caller's user id, writing a 401 when it is absent.
func principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(PrincipalHeader))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+PrincipalHeader+" header")
		return "", false
	}
	return id, true
}

// serviceError maps service and repository errors to HTTP statuses.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrTicketNotFound),
		errors.Is(err, service.ErrGrantNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNotInvitee):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrEventExists),
		errors.Is(err, repository.ErrGrantExists),
		errors.Is(err, repository.ErrTicketExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error(op + " failed")
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if !h.bind(w, r, &req) {
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		h.serviceError(w, r, err, "create event")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// EventStats handles GET /events/{id}/stats
// Requires view_attendees on the event.
func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	stats, err := h.validation.AttendanceStats(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.serviceError(w, r, err, "event stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":  stats.EventID,
		"issued":    stats.Issued,
		"used":      stats.Used,
		"remaining": stats.Remaining(),
	})
}

// Attendees handles GET /events/{id}/attendees
func (h *Handler) Attendees(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	tickets, err := h.validation.Attendees(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.serviceError(w, r, err, "list attendees")
		return
	}

	if tickets == nil {
		tickets = []model.Ticket{}
	}

	writeJSON(w, http.StatusOK, tickets)
}

// ─── Tickets ──────────────────────────────────────────────────────────────────

// IssueTicket handles POST /events/{id}/tickets
// Called by the purchase flow once payment has cleared.
func (h *Handler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var req model.IssueRequest
	if !h.bind(w, r, &req) {
		return
	}
	req.EventID = chi.URLParam(r, "id")

	t, err := h.issuance.Issue(r.Context(), req)
	if err != nil {
		h.serviceError(w, r, err, "issue ticket")
		return
	}

	writeJSON(w, http.StatusCreated, model.IssueResponse{
		TicketID:   t.ID,
		EventID:    t.EventID,
		HolderID:   t.HolderID,
		TicketType: t.TicketType,
		Price:      t.Price,
		Token:      t.Token,
		IssuedAt:   t.IssuedAt.Format("2006-01-02T15:04:05.000000Z07:00"),
	})
}

// GetTicket handles GET /tickets/{id}
// The holder sees the token; view_attendees holders see the ticket without it.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	t, err := h.issuance.GetTicket(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.serviceError(w, r, err, "get ticket")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// ListHolderTickets handles GET /users/{id}/tickets
// Only the holder may list their own tickets.
func (h *Handler) ListHolderTickets(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	tickets, err := h.issuance.ListHolderTickets(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.serviceError(w, r, err, "list tickets")
		return
	}

	if tickets == nil {
		tickets = []model.Ticket{}
	}

	writeJSON(w, http.StatusOK, tickets)
}

// ─── Check-in ─────────────────────────────────────────────────────────────────

// CheckIn handles POST /checkin
// Every domain outcome, accepted or rejected, is a 200. Only a store
// failure yields 503, and the ticket is then still unused.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	staffID, ok := principal(w, r)
	if !ok {
		return
	}
	var req model.CheckInRequest
	if !h.bind(w, r, &req) {
		return
	}

	out, err := h.validation.ValidateForEvent(r.Context(), req.Token, staffID, strings.TrimSpace(req.EventID))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "check-in unavailable, ticket was not consumed")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
