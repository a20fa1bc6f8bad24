// Package service implements ticket issuance, check-in validation, the
// staff authorization gate and staff grant management on top of the
// repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
)

// EventStore resolves the events tickets and grants refer to.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// TicketStore is the durable record of issued tickets.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	Get(ctx context.Context, id string) (*model.Ticket, error)
	// TryConsume atomically moves an unused ticket of eventID to used.
	TryConsume(ctx context.Context, ticketID, eventID, staffID string, now time.Time) (model.ConsumeResult, error)
	ListByHolder(ctx context.Context, holderID string) ([]model.Ticket, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Ticket, error)
	Stats(ctx context.Context, eventID string) (model.EventStats, error)
}

// GrantStore holds staff grants keyed by id and unique per (event, staff user).
type GrantStore interface {
	Create(ctx context.Context, g *model.StaffGrant) error
	Get(ctx context.Context, id string) (*model.StaffGrant, error)
	Find(ctx context.Context, eventID, staffUserID string) (*model.StaffGrant, error)
	Accept(ctx context.Context, id string, at time.Time) (*model.StaffGrant, error)
	Delete(ctx context.Context, id string) (*model.StaffGrant, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.StaffGrant, error)
}

var (
	// ErrEventNotFound is returned when the referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrTicketNotFound is returned when a ticket lookup misses.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrGrantNotFound is returned when a staff grant lookup misses.
	ErrGrantNotFound = errors.New("staff grant not found")
	// ErrForbidden is returned when the acting user lacks the capability.
	ErrForbidden = errors.New("not permitted for this event")
	// ErrNotInvitee is returned when someone other than the invited staff member accepts a grant.
	ErrNotInvitee = errors.New("only the invited staff member can accept this grant")
)

// ValidationError reports caller input that cannot be processed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// EventService registers events with their organizer so tickets and
// grants can reference them.
type EventService struct {
	events EventStore
}

// NewEventService constructs an EventService.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events}
}

// CreateEvent validates the request and delegates to the store.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.OrganizerID = strings.TrimSpace(req.OrganizerID)
	req.ID = strings.TrimSpace(req.ID)
	if req.Name == "" {
		return nil, invalid("event name is required")
	}
	if req.OrganizerID == "" {
		return nil, invalid("organizer_id is required")
	}
	event, err := s.events.Create(ctx, req)
	if err != nil {
		if errors.Is(err, repository.ErrEventExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// GetEvent returns a single event by id.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, invalid("event id is required")
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}
