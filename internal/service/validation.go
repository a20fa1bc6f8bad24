package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/token"
	"github.com/sirupsen/logrus"
)

// ValidationService runs the door check: decode the scanned token,
// authorize the scanner, then consume the ticket exactly once.
type ValidationService struct {
	codec   *token.Codec
	gate    *Gate
	tickets TicketStore
	metrics *metrics.Recorder
	logger  *logrus.Logger
	timeout time.Duration

	now func() time.Time
}

// NewValidationService constructs a ValidationService. timeout bounds each
// call; zero leaves the caller's deadline alone.
func NewValidationService(codec *token.Codec, gate *Gate, tickets TicketStore, rec *metrics.Recorder, logger *logrus.Logger, timeout time.Duration) *ValidationService {
	return &ValidationService{
		codec:   codec,
		gate:    gate,
		tickets: tickets,
		metrics: rec,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// Validate checks a scanned token for the event it names.
//
// Every expected result, including rejections, is returned as an outcome.
// A non-nil error means a store failed; the ticket is then left unused.
func (s *ValidationService) Validate(ctx context.Context, scanned, staffID string) (model.ValidationOutcome, error) {
	return s.validate(ctx, scanned, staffID, "")
}

// ValidateForEvent is Validate for a scanner bound to eventID. The scanner
// must be authorized for eventID, and tokens for any other event are
// rejected with ReasonEventMismatch.
func (s *ValidationService) ValidateForEvent(ctx context.Context, scanned, staffID, eventID string) (model.ValidationOutcome, error) {
	if eventID == "" {
		return s.Validate(ctx, scanned, staffID)
	}
	return s.validate(ctx, scanned, staffID, eventID)
}

func (s *ValidationService) validate(ctx context.Context, scanned, staffID, scope string) (model.ValidationOutcome, error) {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.run(ctx, strings.TrimSpace(scanned), staffID, scope)
	if err != nil {
		s.metrics.TrackValidation("error", time.Since(start))
		s.logger.WithContext(ctx).WithError(err).WithField("staff_id", staffID).Error("ticket validation failed")
		return model.ValidationOutcome{}, err
	}
	s.metrics.TrackValidation(out.Label(), time.Since(start))
	s.logOutcome(ctx, out, staffID)
	return out, nil
}

func (s *ValidationService) run(ctx context.Context, scanned, staffID, scope string) (model.ValidationOutcome, error) {
	claims, err := s.codec.DecodeAt(scanned, s.now())
	if err != nil {
		out := model.RejectedOutcome(model.ReasonInvalidToken)
		if reason, ok := token.ReasonOf(err); ok {
			out.Detail = reason.String()
		}
		return out, nil
	}

	eventID := claims.EventID
	if scope != "" {
		eventID = scope
	}

	decision, err := s.gate.Authorize(ctx, staffID, eventID, model.PermScanTickets)
	if err != nil {
		return model.ValidationOutcome{}, fmt.Errorf("validate: %w", err)
	}
	if !decision.Allowed {
		out := reject(model.ReasonNotAuthorized, claims)
		out.Detail = decision.Reason.String()
		return out, nil
	}

	if claims.EventID != eventID {
		return reject(model.ReasonEventMismatch, claims), nil
	}

	res, err := s.tickets.TryConsume(ctx, claims.TicketID, eventID, staffID, s.now())
	if err != nil {
		return model.ValidationOutcome{}, fmt.Errorf("validate: consume ticket: %w", err)
	}
	switch res.Kind {
	case model.Consumed:
		return model.AcceptedOutcome(claims.TicketID, claims.EventID, res.UsedAt), nil
	case model.AlreadyUsed:
		out := reject(model.ReasonAlreadyUsed, claims)
		out.UsedAt = res.UsedAt
		return out, nil
	case model.WrongEvent:
		return reject(model.ReasonEventMismatch, claims), nil
	case model.TicketNotFound:
		return reject(model.ReasonUnknownTicket, claims), nil
	}
	return model.ValidationOutcome{}, fmt.Errorf("validate: unexpected consume result %v", res.Kind)
}

func reject(reason model.RejectReason, claims token.Claims) model.ValidationOutcome {
	out := model.RejectedOutcome(reason)
	out.TicketID = claims.TicketID
	out.EventID = claims.EventID
	return out
}

func (s *ValidationService) logOutcome(ctx context.Context, out model.ValidationOutcome, staffID string) {
	entry := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"ticket_id": out.TicketID,
		"event_id":  out.EventID,
		"staff_id":  staffID,
		"outcome":   out.Label(),
	})
	if out.Detail != "" {
		entry = entry.WithField("detail", out.Detail)
	}
	switch out.Reason {
	case model.ReasonInvalidToken, model.ReasonUnknownTicket:
		entry.Warn("suspicious ticket scan")
	case model.ReasonNotAuthorized, model.ReasonEventMismatch:
		entry.Info("ticket scan rejected")
	case model.ReasonAlreadyUsed:
		entry.WithField("used_at", out.UsedAt).Info("ticket already used")
	default:
		entry.Debug("ticket accepted")
	}
}

// AttendanceStats returns issued and scanned counts for an event to
// principals holding view_attendees.
func (s *ValidationService) AttendanceStats(ctx context.Context, eventID, principalID string) (model.EventStats, error) {
	if err := s.requireView(ctx, eventID, principalID); err != nil {
		return model.EventStats{}, err
	}
	return s.tickets.Stats(ctx, eventID)
}

// Attendees lists an event's tickets with their check-in state for
// principals holding view_attendees. Tokens are not included.
func (s *ValidationService) Attendees(ctx context.Context, eventID, principalID string) ([]model.Ticket, error) {
	if err := s.requireView(ctx, eventID, principalID); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	for i := range tickets {
		tickets[i] = redact(tickets[i])
	}
	return tickets, nil
}

func (s *ValidationService) requireView(ctx context.Context, eventID, principalID string) error {
	decision, err := s.gate.Authorize(ctx, principalID, eventID, model.PermViewAttendees)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		if decision.Reason == DenyUnknownEvent {
			return ErrEventNotFound
		}
		return ErrForbidden
	}
	return nil
}
