package model

import "github.com/shopspring/decimal"

// CreateEventRequest registers an event and its organizer with this service.
type CreateEventRequest struct {
	ID          string `json:"id" validate:"omitempty,max=64"`
	Name        string `json:"name" validate:"required,max=200"`
	OrganizerID string `json:"organizer_id" validate:"required,max=64"`
}

// IssueRequest is the payload for minting a ticket.
type IssueRequest struct {
	EventID    string          `json:"-"`
	HolderID   string          `json:"holder_id" validate:"required,max=64"`
	TicketType string          `json:"ticket_type" validate:"max=100"`
	Price      decimal.Decimal `json:"price"`
}

// IssueResponse is what the purchase flow receives; Token becomes the QR payload.
type IssueResponse struct {
	TicketID   string          `json:"ticket_id"`
	EventID    string          `json:"event_id"`
	HolderID   string          `json:"holder_id"`
	TicketType string          `json:"ticket_type"`
	Price      decimal.Decimal `json:"price"`
	Token      string          `json:"token"`
	IssuedAt   string          `json:"issued_at"`
}

// CheckInRequest is a single scan submitted by a staff device.
type CheckInRequest struct {
	Token string `json:"token" validate:"required,max=2048"`
	// EventID optionally binds the scanner to one event.
	EventID string `json:"event_id" validate:"omitempty,max=64"`
}

// CreateGrantRequest invites a user to staff an event, either with explicit
// permissions or a role preset.
type CreateGrantRequest struct {
	StaffUserID string       `json:"staff_user_id" validate:"required,max=64"`
	Permissions []Permission `json:"permissions" validate:"required_without=Role,dive,permission"`
	Role        string       `json:"role" validate:"omitempty,staffrole"`
}
