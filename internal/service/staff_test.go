package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGrant_OrganizerAndDelegates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.event(t, "evt-1", "org-1")

	_, err := h.staff.CreateGrant(ctx, "stranger", "evt-1", model.CreateGrantRequest{
		StaffUserID: "s1", Permissions: []model.Permission{model.PermScanTickets},
	})
	assert.ErrorIs(t, err, ErrForbidden)

	h.scanner(t, "evt-1", "org-1", "lead", model.PermManageStaff)
	g, err := h.staff.CreateGrant(ctx, "lead", "evt-1", model.CreateGrantRequest{
		StaffUserID: "s1", Permissions: []model.Permission{model.PermScanTickets},
	})
	require.NoError(t, err)
	assert.Equal(t, "lead", g.CreatedBy)
	assert.False(t, g.Accepted)

	_, err = h.staff.CreateGrant(ctx, "org-1", "evt-1", model.CreateGrantRequest{
		StaffUserID: "s1", Permissions: []model.Permission{model.PermViewAttendees},
	})
	assert.ErrorIs(t, err, repository.ErrGrantExists)

	_, err = h.staff.CreateGrant(ctx, "org-1", "evt-404", model.CreateGrantRequest{
		StaffUserID: "s2", Permissions: []model.Permission{model.PermScanTickets},
	})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestCreateGrant_PendingManagerCannotDelegate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.event(t, "evt-1", "org-1")

	_, err := h.staff.CreateGrant(ctx, "org-1", "evt-1", model.CreateGrantRequest{StaffUserID: "lead", Role: "manager"})
	require.NoError(t, err)

	_, err = h.staff.CreateGrant(ctx, "lead", "evt-1", model.CreateGrantRequest{StaffUserID: "s1", Role: "security"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateGrant_Permissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.event(t, "evt-1", "org-1")

	g, err := h.staff.CreateGrant(ctx, "org-1", "evt-1", model.CreateGrantRequest{
		StaffUserID: "u1",
		Role:        "security",
		Permissions: []model.Permission{model.PermScanTickets, model.PermViewAttendees},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.PermScanTickets, model.PermViewAttendees}, g.Permissions)

	for name, req := range map[string]model.CreateGrantRequest{
		"unknown role":       {StaffUserID: "u2", Role: "janitor"},
		"unknown permission": {StaffUserID: "u2", Permissions: []model.Permission{"open_doors"}},
		"no permissions":     {StaffUserID: "u2"},
		"no staff user":      {Role: "security"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.staff.CreateGrant(ctx, "org-1", "evt-1", req)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestAcceptGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.event(t, "evt-1", "org-1")

	g, err := h.staff.CreateGrant(ctx, "org-1", "evt-1", model.CreateGrantRequest{StaffUserID: "s1", Role: "usher"})
	require.NoError(t, err)

	_, err = h.staff.AcceptGrant(ctx, g.ID, "s2")
	assert.ErrorIs(t, err, ErrNotInvitee)
	_, err = h.staff.AcceptGrant(ctx, "missing", "s1")
	assert.ErrorIs(t, err, ErrGrantNotFound)

	accepted, err := h.staff.AcceptGrant(ctx, g.ID, "s1")
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)
	assert.NotNil(t, accepted.AcceptedAt)
}

func TestRevokeGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.event(t, "evt-1", "org-1")
	g := h.scanner(t, "evt-1", "org-1", "s1")
	other := h.scanner(t, "evt-1", "org-1", "s2")

	assert.ErrorIs(t, h.staff.RevokeGrant(ctx, g.ID, "s2"), ErrForbidden)
	require.NoError(t, h.staff.RevokeGrant(ctx, g.ID, "org-1"))
	assert.ErrorIs(t, h.staff.RevokeGrant(ctx, g.ID, "org-1"), ErrGrantNotFound)

	// Staff may drop their own grant.
	require.NoError(t, h.staff.RevokeGrant(ctx, other.ID, "s2"))

	list, err := h.staff.ListGrants(ctx, "evt-1", "org-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListGrants_RequiresManageStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.event(t, "evt-1", "org-1")
	h.scanner(t, "evt-1", "org-1", "s1")

	_, err := h.staff.ListGrants(ctx, "evt-1", "s1")
	assert.ErrorIs(t, err, ErrForbidden)

	list, err := h.staff.ListGrants(ctx, "evt-1", "org-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGate_Decisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.event(t, "evt-1", "org-1")
	h.scanner(t, "evt-1", "org-1", "s1")

	cases := []struct {
		name      string
		principal string
		event     string
		perm      model.Permission
		want      Decision
	}{
		{"organizer", "org-1", "evt-1", model.PermManageStaff, Decision{Allowed: true}},
		{"scanner", "s1", "evt-1", model.PermScanTickets, Decision{Allowed: true}},
		{"scanner lacks permission", "s1", "evt-1", model.PermManageStaff, Decision{Reason: DenyMissingPermission}},
		{"stranger", "x", "evt-1", model.PermScanTickets, Decision{Reason: DenyNoGrant}},
		{"anonymous", "", "evt-1", model.PermScanTickets, Decision{Reason: DenyNoGrant}},
		{"unknown event", "s1", "evt-2", model.PermScanTickets, Decision{Reason: DenyUnknownEvent}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := h.gate.Authorize(ctx, tc.principal, tc.event, tc.perm)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms, ok := PermissionsForRole("manager")
	require.True(t, ok)
	assert.ElementsMatch(t, model.AllPermissions, perms)

	// Callers get a copy.
	perms[0] = "tampered"
	again, _ := PermissionsForRole("manager")
	assert.Equal(t, model.PermScanTickets, again[0])

	_, ok = PermissionsForRole("janitor")
	assert.False(t, ok)
}
