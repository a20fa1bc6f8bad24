package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StaffService manages staff grants. Creating, listing and revoking
// require the organizer or an accepted manage_staff grant; accepting is
// reserved for the invitee.
type StaffService struct {
	grants GrantStore
	gate   *Gate
	logger *logrus.Logger

	now func() time.Time
}

// NewStaffService constructs a StaffService.
func NewStaffService(grants GrantStore, gate *Gate, logger *logrus.Logger) *StaffService {
	return &StaffService{grants: grants, gate: gate, logger: logger, now: time.Now}
}

// CreateGrant invites staffUserID to act on eventID. Permissions come from
// req.Permissions plus the role preset, if any.
func (s *StaffService) CreateGrant(ctx context.Context, actorID, eventID string, req model.CreateGrantRequest) (*model.StaffGrant, error) {
	staffUserID := strings.TrimSpace(req.StaffUserID)
	if staffUserID == "" {
		return nil, invalid("staff_user_id is required")
	}
	perms, err := resolvePermissions(req)
	if err != nil {
		return nil, err
	}
	if err := s.requireManageStaff(ctx, actorID, eventID); err != nil {
		return nil, err
	}

	g := &model.StaffGrant{
		ID:          uuid.New().String(),
		EventID:     eventID,
		StaffUserID: staffUserID,
		Permissions: perms,
		CreatedBy:   actorID,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.grants.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrGrantExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create grant: %w", err)
	}
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"grant_id": g.ID,
		"event_id": eventID,
		"staff_id": staffUserID,
		"actor_id": actorID,
	}).Info("staff grant created")
	return g, nil
}

// AcceptGrant marks the grant accepted on behalf of the invitee.
func (s *StaffService) AcceptGrant(ctx context.Context, grantID, actorID string) (*model.StaffGrant, error) {
	g, err := s.getGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if g.StaffUserID != actorID {
		return nil, ErrNotInvitee
	}
	accepted, err := s.grants.Accept(ctx, grantID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("accept grant: %w", err)
	}
	s.logger.WithContext(ctx).WithField("grant_id", grantID).Info("staff grant accepted")
	return accepted, nil
}

// RevokeGrant removes a grant. It takes effect on the next authorization
// check. Staff members may also drop their own grant.
func (s *StaffService) RevokeGrant(ctx context.Context, grantID, actorID string) error {
	g, err := s.getGrant(ctx, grantID)
	if err != nil {
		return err
	}
	if g.StaffUserID != actorID {
		if err := s.requireManageStaff(ctx, actorID, g.EventID); err != nil {
			return err
		}
	}
	if _, err := s.grants.Delete(ctx, grantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGrantNotFound
		}
		return fmt.Errorf("revoke grant: %w", err)
	}
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"grant_id": grantID,
		"event_id": g.EventID,
		"staff_id": g.StaffUserID,
		"actor_id": actorID,
	}).Info("staff grant revoked")
	return nil
}

// ListGrants returns every grant of an event.
func (s *StaffService) ListGrants(ctx context.Context, eventID, actorID string) ([]model.StaffGrant, error) {
	if err := s.requireManageStaff(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	return s.grants.ListByEvent(ctx, eventID)
}

func (s *StaffService) getGrant(ctx context.Context, id string) (*model.StaffGrant, error) {
	g, err := s.grants.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

func (s *StaffService) requireManageStaff(ctx context.Context, actorID, eventID string) error {
	d, err := s.gate.Authorize(ctx, actorID, eventID, model.PermManageStaff)
	if err != nil {
		return err
	}
	if d.Allowed {
		return nil
	}
	if d.Reason == DenyUnknownEvent {
		return ErrEventNotFound
	}
	return ErrForbidden
}

func resolvePermissions(req model.CreateGrantRequest) ([]model.Permission, error) {
	var perms []model.Permission
	if req.Role != "" {
		rolePerms, ok := PermissionsForRole(req.Role)
		if !ok {
			return nil, invalid("unknown role %q", req.Role)
		}
		perms = append(perms, rolePerms...)
	}
	perms = append(perms, req.Permissions...)

	seen := make(map[model.Permission]bool, len(perms))
	out := make([]model.Permission, 0, len(perms))
	for _, p := range perms {
		if !p.Valid() {
			return nil, invalid("unknown permission %q", p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, invalid("at least one permission or a role is required")
	}
	return out, nil
}
