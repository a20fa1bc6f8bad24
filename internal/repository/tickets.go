package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TicketRepository persists tickets and performs the atomic consume.
type TicketRepository struct {
	db     *pgxpool.Pool
	logger *logrus.Logger
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(db *pgxpool.Pool, logger *logrus.Logger) *TicketRepository {
	return &TicketRepository{db: db, logger: logger}
}

const ticketColumns = `id, event_id, holder_id, ticket_type, price::text, secret, token, status, issued_at, used_at, used_by`

// Create inserts a ticket in its issued state.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tickets (id, event_id, holder_id, ticket_type, price, secret, token, status, issued_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
		t.ID, t.EventID, t.HolderID, t.TicketType, t.Price.String(), t.Secret, t.Token, t.Status.String(), t.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTicketExists
		}
		r.logger.WithContext(ctx).WithError(err).Error("insert ticket")
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// Get returns a single ticket or ErrNotFound.
func (r *TicketRepository) Get(ctx context.Context, id string) (*model.Ticket, error) {
	row := r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithContext(ctx).WithError(err).Error("get ticket")
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// TryConsume marks the ticket used if, and only if, it is unused and
// belongs to eventID.
//
// The ticket row is locked with SELECT … FOR UPDATE for the duration of a
// short transaction, so concurrent scanners of the same ticket are
// serialised on that row while other tickets are unaffected. The UPDATE
// repeats the status guard. If ctx is cancelled before COMMIT the
// transaction rolls back and the ticket stays unused.
func (r *TicketRepository) TryConsume(ctx context.Context, ticketID, eventID, staffID string, now time.Time) (model.ConsumeResult, error) {
	now = now.UTC().Truncate(time.Microsecond)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("begin consume transaction")
		return model.ConsumeResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once the transaction has been committed.
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		storedEvent string
		status      string
		usedAt      *time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT event_id, status, used_at
		 FROM tickets
		 WHERE id = $1
		 FOR UPDATE`,
		ticketID,
	).Scan(&storedEvent, &status, &usedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ConsumeResult{Kind: model.TicketNotFound}, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("lock ticket row")
		return model.ConsumeResult{}, fmt.Errorf("lock ticket row: %w", err)
	}

	if storedEvent != eventID {
		return model.ConsumeResult{Kind: model.WrongEvent}, nil
	}
	if status == model.StatusUsed.String() {
		res := model.ConsumeResult{Kind: model.AlreadyUsed}
		if usedAt != nil {
			res.UsedAt = usedAt.UTC()
		}
		return res, nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE tickets
		 SET status = 'used', used_at = $2, used_by = $3
		 WHERE id = $1 AND status = 'unused'`,
		ticketID, now, staffID,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("mark ticket used")
		return model.ConsumeResult{}, fmt.Errorf("mark ticket used: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return model.ConsumeResult{}, fmt.Errorf("mark ticket used: %d rows updated under row lock", tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("commit consume")
		return model.ConsumeResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return model.ConsumeResult{Kind: model.Consumed, UsedAt: now}, nil
}

// ListByHolder returns a holder's tickets, newest first.
func (r *TicketRepository) ListByHolder(ctx context.Context, holderID string) ([]model.Ticket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE holder_id = $1
		 ORDER BY issued_at DESC`,
		holderID,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("list holder tickets")
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// ListByEvent returns every ticket of an event, oldest first.
func (r *TicketRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Ticket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE event_id = $1
		 ORDER BY issued_at ASC`,
		eventID,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("list event tickets")
		return nil, fmt.Errorf("list event tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// Stats counts issued and used tickets for an event.
func (r *TicketRepository) Stats(ctx context.Context, eventID string) (model.EventStats, error) {
	stats := model.EventStats{EventID: eventID}
	err := r.db.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE status = 'used')
		 FROM tickets WHERE event_id = $1`,
		eventID,
	).Scan(&stats.Issued, &stats.Used)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("ticket stats")
		return stats, fmt.Errorf("ticket stats: %w", err)
	}
	return stats, nil
}

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var (
		t      model.Ticket
		price  string
		status string
		usedBy *string
	)
	if err := row.Scan(&t.ID, &t.EventID, &t.HolderID, &t.TicketType, &price, &t.Secret, &t.Token, &status, &t.IssuedAt, &t.UsedAt, &usedBy); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	t.Price = p
	s, ok := model.ParseTicketStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown ticket status %q", status)
	}
	t.Status = s
	if usedBy != nil {
		t.UsedBy = *usedBy
	}
	return &t, nil
}
