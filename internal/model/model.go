// Package model defines the core domain types for ticket issuance and check-in.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event is the slice of an event this service needs: who organizes it.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OrganizerID string    `json:"organizer_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TicketStatus is the consumption state of a ticket.
type TicketStatus int

const (
	StatusUnused TicketStatus = iota
	StatusUsed
)

func (s TicketStatus) String() string {
	switch s {
	case StatusUnused:
		return "unused"
	case StatusUsed:
		return "used"
	}
	return "unknown"
}

// ParseTicketStatus maps the persisted status string back to the enum.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch s {
	case "unused":
		return StatusUnused, true
	case "used":
		return StatusUsed, true
	}
	return 0, false
}

func (s TicketStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TicketStatus) UnmarshalText(text []byte) error {
	parsed, ok := ParseTicketStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown ticket status %q", text)
	}
	*s = parsed
	return nil
}

// Ticket is an issued entry credential for one event.
//
// Status is StatusUsed if and only if UsedAt is set.
type Ticket struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	HolderID   string          `json:"holder_id"`
	TicketType string          `json:"ticket_type"`
	Price      decimal.Decimal `json:"price"`
	IssuedAt   time.Time       `json:"issued_at"`
	Status     TicketStatus    `json:"status"`
	UsedAt     *time.Time      `json:"used_at,omitempty"`
	UsedBy     string          `json:"used_by,omitempty"`
	Token      string          `json:"token,omitempty"`

	// Secret is the per-ticket random component bound into Token.
	Secret []byte `json:"-"`
}

// IsUsed reports whether the ticket has been consumed at the door.
func (t *Ticket) IsUsed() bool {
	return t.Status == StatusUsed
}

// ConsumeKind enumerates the results of an atomic consume attempt.
type ConsumeKind int

const (
	Consumed ConsumeKind = iota
	AlreadyUsed
	WrongEvent
	TicketNotFound
)

func (k ConsumeKind) String() string {
	switch k {
	case Consumed:
		return "consumed"
	case AlreadyUsed:
		return "already_used"
	case WrongEvent:
		return "wrong_event"
	case TicketNotFound:
		return "not_found"
	}
	return "unknown"
}

// ConsumeResult is what the ticket store reports after TryConsume.
// UsedAt is set for Consumed (the new timestamp) and AlreadyUsed (the winning scan).
type ConsumeResult struct {
	Kind   ConsumeKind
	UsedAt time.Time
}

// EventStats summarises door activity for one event.
type EventStats struct {
	EventID string `json:"event_id"`
	Issued  int    `json:"issued"`
	Used    int    `json:"used"`
}

// Remaining returns the number of tickets not yet scanned in.
func (s EventStats) Remaining() int {
	return s.Issued - s.Used
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
