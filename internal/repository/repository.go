// Package repository implements persistence for events, tickets and staff
// grants. It uses pgx directly (no ORM); in-memory stores with the same
// semantics back tests and local runs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrTicketExists is returned when a ticket id or token is already stored.
var ErrTicketExists = errors.New("ticket already exists")

// ErrGrantExists is returned when the staff member already has a grant for the event.
var ErrGrantExists = errors.New("staff grant already exists for this event")

// ErrEventExists is returned when an event id is registered twice.
var ErrEventExists = errors.New("event already exists")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// EventRepository reads the events this service needs to know about.
type EventRepository struct {
	db     *pgxpool.Pool
	logger *logrus.Logger
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool, logger *logrus.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

// Create inserts a new event, generating an id when none is given.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		ID:          req.ID,
		Name:        req.Name,
		OrganizerID: req.OrganizerID,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, name, organizer_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		event.ID, event.Name, event.OrganizerID, event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEventExists
		}
		r.logger.WithContext(ctx).WithError(err).Error("insert event")
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, name, organizer_id, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &e.OrganizerID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithContext(ctx).WithError(err).Error("get event")
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}
