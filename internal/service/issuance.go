package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/token"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultTicketType labels tickets issued without an explicit type.
const DefaultTicketType = "General Admission"

// MaxPrice is the largest price the tickets.price NUMERIC(12,2) column holds.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// IssuanceService mints tickets and their tokens.
type IssuanceService struct {
	events  EventStore
	tickets TicketStore
	gate    *Gate
	codec   *token.Codec
	metrics *metrics.Recorder
	logger  *logrus.Logger

	now    func() time.Time
	random io.Reader
}

// NewIssuanceService constructs an IssuanceService.
func NewIssuanceService(events EventStore, tickets TicketStore, gate *Gate, codec *token.Codec, rec *metrics.Recorder, logger *logrus.Logger) *IssuanceService {
	return &IssuanceService{
		events:  events,
		tickets: tickets,
		gate:    gate,
		codec:   codec,
		metrics: rec,
		logger:  logger,
		now:     time.Now,
		random:  rand.Reader,
	}
}

// Issue creates an unused ticket for (event, holder) and returns it with
// its token. Pricing and capacity are not checked here.
func (s *IssuanceService) Issue(ctx context.Context, req model.IssueRequest) (*model.Ticket, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.HolderID = strings.TrimSpace(req.HolderID)
	req.TicketType = strings.TrimSpace(req.TicketType)
	if req.EventID == "" {
		return nil, invalid("event id is required")
	}
	if req.HolderID == "" {
		return nil, invalid("holder_id is required")
	}
	req.Price = req.Price.Round(2)
	if req.Price.IsNegative() {
		return nil, invalid("price cannot be negative")
	}
	if req.Price.GreaterThan(MaxPrice) {
		return nil, invalid("price cannot exceed %s", MaxPrice.StringFixed(2))
	}
	if req.TicketType == "" {
		req.TicketType = DefaultTicketType
	}

	if _, err := s.events.GetByID(ctx, req.EventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.TrackIssue("event_not_found")
			return nil, ErrEventNotFound
		}
		s.metrics.TrackIssue("error")
		return nil, fmt.Errorf("issue ticket: load event: %w", err)
	}

	secret := make([]byte, token.SecretSize)
	if _, err := io.ReadFull(s.random, secret); err != nil {
		s.metrics.TrackIssue("error")
		return nil, fmt.Errorf("issue ticket: generate secret: %w", err)
	}

	t := &model.Ticket{
		ID:         uuid.New().String(),
		EventID:    req.EventID,
		HolderID:   req.HolderID,
		TicketType: req.TicketType,
		Price:      req.Price,
		IssuedAt:   s.now().UTC().Truncate(time.Microsecond),
		Status:     model.StatusUnused,
		Secret:     secret,
	}
	tok, err := s.codec.Encode(token.Claims{
		TicketID: t.ID,
		EventID:  t.EventID,
		HolderID: t.HolderID,
		Secret:   t.Secret,
		IssuedAt: t.IssuedAt,
	})
	if err != nil {
		s.metrics.TrackIssue("error")
		return nil, fmt.Errorf("issue ticket: encode token: %w", err)
	}
	t.Token = tok

	if err := s.tickets.Create(ctx, t); err != nil {
		s.metrics.TrackIssue("error")
		return nil, fmt.Errorf("issue ticket: %w", err)
	}

	s.metrics.TrackIssue("ok")
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"ticket_id": t.ID,
		"event_id":  t.EventID,
		"holder_id": t.HolderID,
	}).Info("ticket issued")
	return t, nil
}

// GetTicket returns a ticket to its holder. Principals with view_attendees
// on the ticket's event see it without the token; anyone else gets
// ErrForbidden.
func (s *IssuanceService) GetTicket(ctx context.Context, id, principalID string) (*model.Ticket, error) {
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if principalID != "" && t.HolderID == principalID {
		return t, nil
	}

	d, err := s.gate.Authorize(ctx, principalID, t.EventID, model.PermViewAttendees)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, ErrForbidden
	}
	redacted := redact(*t)
	return &redacted, nil
}

// ListHolderTickets returns every ticket owned by holderID. Only the holder
// may list them.
func (s *IssuanceService) ListHolderTickets(ctx context.Context, holderID, principalID string) ([]model.Ticket, error) {
	if strings.TrimSpace(holderID) == "" {
		return nil, invalid("holder id is required")
	}
	if holderID != principalID {
		return nil, ErrForbidden
	}
	return s.tickets.ListByHolder(ctx, holderID)
}

// redact strips the entry credential from a ticket shown to anyone but
// its holder.
func redact(t model.Ticket) model.Ticket {
	t.Token = ""
	t.Secret = nil
	return t
}
