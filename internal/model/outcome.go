package model

import (
	"encoding/json"
	"time"
)

// ValidationStatus is the top-level result of a scan.
type ValidationStatus int

const (
	Accepted ValidationStatus = iota
	Rejected
)

func (s ValidationStatus) String() string {
	if s == Accepted {
		return "accepted"
	}
	return "rejected"
}

// RejectReason explains a rejected scan. ReasonNone accompanies Accepted.
type RejectReason int

const (
	ReasonNone RejectReason = iota
	ReasonInvalidToken
	ReasonNotAuthorized
	ReasonAlreadyUsed
	ReasonEventMismatch
	ReasonUnknownTicket
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonInvalidToken:
		return "invalid_token"
	case ReasonNotAuthorized:
		return "not_authorized"
	case ReasonAlreadyUsed:
		return "already_used"
	case ReasonEventMismatch:
		return "event_mismatch"
	case ReasonUnknownTicket:
		return "unknown_ticket"
	}
	return "unknown"
}

// ValidationOutcome is returned for every scan that did not hit an
// infrastructure failure.
type ValidationOutcome struct {
	Status   ValidationStatus
	Reason   RejectReason
	TicketID string
	EventID  string
	// UsedAt is the consume time for Accepted and the winning scan's time
	// for ReasonAlreadyUsed.
	UsedAt time.Time
	// Detail is a machine-readable sub-reason, e.g. the token decode failure.
	Detail string
}

// AcceptedOutcome builds the success outcome.
func AcceptedOutcome(ticketID, eventID string, usedAt time.Time) ValidationOutcome {
	return ValidationOutcome{Status: Accepted, TicketID: ticketID, EventID: eventID, UsedAt: usedAt}
}

// RejectedOutcome builds a rejection with the given reason.
func RejectedOutcome(reason RejectReason) ValidationOutcome {
	return ValidationOutcome{Status: Rejected, Reason: reason}
}

// IsAccepted reports whether the ticket was consumed by this scan.
func (o ValidationOutcome) IsAccepted() bool {
	return o.Status == Accepted
}

// Label names the outcome for logs and metrics: "accepted" or the reject reason.
func (o ValidationOutcome) Label() string {
	if o.Status == Accepted {
		return "accepted"
	}
	return o.Reason.String()
}

type outcomeJSON struct {
	Status   string     `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	Detail   string     `json:"detail,omitempty"`
	TicketID string     `json:"ticket_id,omitempty"`
	EventID  string     `json:"event_id,omitempty"`
	UsedAt   *time.Time `json:"used_at,omitempty"`
}

func (o ValidationOutcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Status:   o.Status.String(),
		Reason:   o.Reason.String(),
		Detail:   o.Detail,
		TicketID: o.TicketID,
		EventID:  o.EventID,
	}
	if !o.UsedAt.IsZero() {
		usedAt := o.UsedAt
		out.UsedAt = &usedAt
	}
	return json.Marshal(out)
}
