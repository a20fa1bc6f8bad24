package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
	"github.com/sirupsen/logrus"
)

// DenyReason explains why the gate refused a principal.
type DenyReason int

const (
	DenyNone DenyReason = iota
	DenyNoGrant
	DenyNotAccepted
	DenyMissingPermission
	DenyUnknownEvent
)

func (r DenyReason) String() string {
	switch r {
	case DenyNone:
		return ""
	case DenyNoGrant:
		return "no_grant"
	case DenyNotAccepted:
		return "grant_not_accepted"
	case DenyMissingPermission:
		return "missing_permission"
	case DenyUnknownEvent:
		return "unknown_event"
	}
	return "unknown"
}

// Decision is the gate's answer for one (principal, event, permission).
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// rolePermissions is the single mapping from staff role presets to
// capabilities. Grants store the resolved permissions, not the role.
var rolePermissions = map[string][]model.Permission{
	"security":    {model.PermScanTickets},
	"usher":       {model.PermScanTickets, model.PermViewAttendees},
	"coordinator": {model.PermScanTickets, model.PermViewAttendees, model.PermEditEvent},
	"manager":     {model.PermScanTickets, model.PermViewAttendees, model.PermEditEvent, model.PermManageStaff},
}

// PermissionsForRole returns the capabilities of a role preset.
func PermissionsForRole(role string) ([]model.Permission, bool) {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil, false
	}
	return append([]model.Permission(nil), perms...), true
}

// Gate decides whether a principal may act on an event. The event's
// organizer holds every permission; anyone else needs an accepted grant
// carrying the permission. Nothing is memoised between calls.
type Gate struct {
	events  EventStore
	grants  GrantStore
	metrics *metrics.Recorder
	logger  *logrus.Logger
}

// NewGate constructs a Gate.
func NewGate(events EventStore, grants GrantStore, rec *metrics.Recorder, logger *logrus.Logger) *Gate {
	return &Gate{events: events, grants: grants, metrics: rec, logger: logger}
}

// Authorize looks up the event and the principal's grant and returns a
// Decision. Errors are infrastructure failures only.
func (g *Gate) Authorize(ctx context.Context, principalID, eventID string, perm model.Permission) (Decision, error) {
	d, err := g.decide(ctx, principalID, eventID, perm)
	if err != nil {
		return Decision{}, err
	}
	if !d.Allowed {
		g.metrics.TrackDenial(d.Reason.String())
		g.logger.WithContext(ctx).WithFields(logrus.Fields{
			"principal_id": principalID,
			"event_id":     eventID,
			"permission":   perm,
			"reason":       d.Reason.String(),
		}).Debug("authorization denied")
	}
	return d, nil
}

func (g *Gate) decide(ctx context.Context, principalID, eventID string, perm model.Permission) (Decision, error) {
	if principalID == "" {
		return deny(DenyNoGrant), nil
	}
	event, err := g.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return deny(DenyUnknownEvent), nil
		}
		return Decision{}, fmt.Errorf("authorize: load event: %w", err)
	}
	if event.OrganizerID == principalID {
		return allow(), nil
	}

	grant, err := g.grants.Find(ctx, eventID, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return deny(DenyNoGrant), nil
		}
		return Decision{}, fmt.Errorf("authorize: load grant: %w", err)
	}
	if !grant.Accepted {
		return deny(DenyNotAccepted), nil
	}
	if !grant.Has(perm) {
		return deny(DenyMissingPermission), nil
	}
	return allow(), nil
}
