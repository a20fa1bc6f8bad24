package model

import "time"

// Permission is a capability tag carried by a staff grant.
type Permission string

const (
	PermScanTickets   Permission = "scan_tickets"
	PermManageStaff   Permission = "manage_staff"
	PermViewAttendees Permission = "view_attendees"
	PermEditEvent     Permission = "edit_event"
)

// AllPermissions is the closed set of capability tags.
var AllPermissions = []Permission{
	PermScanTickets,
	PermManageStaff,
	PermViewAttendees,
	PermEditEvent,
}

// Valid reports whether p is one of the known capability tags.
func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// StaffGrant authorizes one user to act on one event once accepted.
type StaffGrant struct {
	ID          string       `json:"id"`
	EventID     string       `json:"event_id"`
	StaffUserID string       `json:"staff_user_id"`
	Permissions []Permission `json:"permissions"`
	Accepted    bool         `json:"accepted"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	AcceptedAt  *time.Time   `json:"accepted_at,omitempty"`
}

// Has reports whether the grant carries permission p, regardless of acceptance.
func (g *StaffGrant) Has(p Permission) bool {
	for _, have := range g.Permissions {
		if have == p {
			return true
		}
	}
	return false
}
