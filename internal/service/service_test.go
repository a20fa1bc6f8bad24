package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/logger"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type harness struct {
	events  *repository.MemoryEventStore
	tickets *repository.MemoryTicketStore
	grants  *repository.MemoryGrantStore
	codec   *token.Codec

	gate       *Gate
	eventSvc   *EventService
	issuance   *IssuanceService
	validation *ValidationService
	staff      *StaffService
}

func newHarness(t *testing.T, opts ...token.Option) *harness {
	t.Helper()
	key, err := token.NewKey(1, []byte(strings.Repeat("s", token.MinSecretSize)))
	require.NoError(t, err)

	h := &harness{
		events:  repository.NewMemoryEventStore(),
		tickets: repository.NewMemoryTicketStore(),
		grants:  repository.NewMemoryGrantStore(),
		codec:   token.NewCodec(key, opts...),
	}
	log := logger.Discard()
	rec := metrics.New(prometheus.NewRegistry())

	h.gate = NewGate(h.events, h.grants, rec, log)
	h.eventSvc = NewEventService(h.events)
	h.issuance = NewIssuanceService(h.events, h.tickets, h.gate, h.codec, rec, log)
	h.validation = NewValidationService(h.codec, h.gate, h.tickets, rec, log, time.Second)
	h.staff = NewStaffService(h.grants, h.gate, log)
	return h
}

// event registers an event organized by organizerID.
func (h *harness) event(t *testing.T, id, organizerID string) {
	t.Helper()
	_, err := h.eventSvc.CreateEvent(context.Background(), model.CreateEventRequest{ID: id, Name: id, OrganizerID: organizerID})
	require.NoError(t, err)
}

// scanner creates and accepts a grant for staffID on eventID.
func (h *harness) scanner(t *testing.T, eventID, organizerID, staffID string, perms ...model.Permission) *model.StaffGrant {
	t.Helper()
	if len(perms) == 0 {
		perms = []model.Permission{model.PermScanTickets}
	}
	ctx := context.Background()
	g, err := h.staff.CreateGrant(ctx, organizerID, eventID, model.CreateGrantRequest{StaffUserID: staffID, Permissions: perms})
	require.NoError(t, err)
	g, err = h.staff.AcceptGrant(ctx, g.ID, staffID)
	require.NoError(t, err)
	return g
}

func (h *harness) issue(t *testing.T, eventID, holderID string) *model.Ticket {
	t.Helper()
	tk, err := h.issuance.Issue(context.Background(), model.IssueRequest{EventID: eventID, HolderID: holderID})
	require.NoError(t, err)
	return tk
}
