package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// GrantRepository persists staff grants, unique per (event, staff user).
type GrantRepository struct {
	db     *pgxpool.Pool
	logger *logrus.Logger
}

// NewGrantRepository constructs a GrantRepository.
func NewGrantRepository(db *pgxpool.Pool, logger *logrus.Logger) *GrantRepository {
	return &GrantRepository{db: db, logger: logger}
}

const grantColumns = `id, event_id, staff_user_id, permissions, accepted, created_by, created_at, accepted_at`

// Create inserts a pending grant.
func (r *GrantRepository) Create(ctx context.Context, g *model.StaffGrant) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO staff_grants (id, event_id, staff_user_id, permissions, accepted, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.EventID, g.StaffUserID, permissionStrings(g.Permissions), g.Accepted, g.CreatedBy, g.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrGrantExists
		}
		r.logger.WithContext(ctx).WithError(err).Error("insert staff grant")
		return fmt.Errorf("insert staff grant: %w", err)
	}
	return nil
}

// Get returns a grant by id or ErrNotFound.
func (r *GrantRepository) Get(ctx context.Context, id string) (*model.StaffGrant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+grantColumns+` FROM staff_grants WHERE id = $1`, id)
	return r.one(ctx, row, "get staff grant")
}

// Find returns the grant for (eventID, staffUserID) or ErrNotFound.
func (r *GrantRepository) Find(ctx context.Context, eventID, staffUserID string) (*model.StaffGrant, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM staff_grants WHERE event_id = $1 AND staff_user_id = $2`,
		eventID, staffUserID,
	)
	return r.one(ctx, row, "find staff grant")
}

// Accept marks a grant accepted. Accepting twice keeps the first timestamp.
func (r *GrantRepository) Accept(ctx context.Context, id string, at time.Time) (*model.StaffGrant, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE staff_grants
		 SET accepted = TRUE, accepted_at = COALESCE(accepted_at, $2)
		 WHERE id = $1
		 RETURNING `+grantColumns,
		id, at.UTC(),
	)
	return r.one(ctx, row, "accept staff grant")
}

// Delete removes a grant and returns what was removed.
func (r *GrantRepository) Delete(ctx context.Context, id string) (*model.StaffGrant, error) {
	row := r.db.QueryRow(ctx,
		`DELETE FROM staff_grants WHERE id = $1 RETURNING `+grantColumns,
		id,
	)
	return r.one(ctx, row, "delete staff grant")
}

// ListByEvent returns every grant for an event, oldest first.
func (r *GrantRepository) ListByEvent(ctx context.Context, eventID string) ([]model.StaffGrant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+grantColumns+`
		 FROM staff_grants
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("list staff grants")
		return nil, fmt.Errorf("list staff grants: %w", err)
	}
	defer rows.Close()

	var grants []model.StaffGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff grant: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

func (r *GrantRepository) one(ctx context.Context, row pgx.Row, op string) (*model.StaffGrant, error) {
	g, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithContext(ctx).WithError(err).Error(op)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

func scanGrant(row pgx.Row) (*model.StaffGrant, error) {
	var (
		g     model.StaffGrant
		perms []string
	)
	if err := row.Scan(&g.ID, &g.EventID, &g.StaffUserID, &perms, &g.Accepted, &g.CreatedBy, &g.CreatedAt, &g.AcceptedAt); err != nil {
		return nil, err
	}
	g.Permissions = make([]model.Permission, len(perms))
	for i, p := range perms {
		g.Permissions[i] = model.Permission(p)
	}
	return &g, nil
}

func permissionStrings(perms []model.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
