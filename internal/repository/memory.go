package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/google/uuid"
)

// MemoryEventStore keeps events in a map.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]model.Event
}

// NewMemoryEventStore constructs an empty MemoryEventStore.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string]model.Event)}
}

func (s *MemoryEventStore) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	e := model.Event{ID: req.ID, Name: req.Name, OrganizerID: req.OrganizerID, CreatedAt: time.Now().UTC()}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return nil, ErrEventExists
	}
	s.events[e.ID] = e
	return &e, nil
}

func (s *MemoryEventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

type ticketRecord struct {
	mu     sync.Mutex
	ticket model.Ticket
}

// MemoryTicketStore keeps tickets in a map. Each ticket carries its own
// mutex; the map lock is only held to find or insert a record, never
// across a consume.
type MemoryTicketStore struct {
	mu     sync.RWMutex
	byID   map[string]*ticketRecord
	tokens map[string]struct{}
}

// NewMemoryTicketStore constructs an empty MemoryTicketStore.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{
		byID:   make(map[string]*ticketRecord),
		tokens: make(map[string]struct{}),
	}
}

func (s *MemoryTicketStore) Create(ctx context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; ok {
		return ErrTicketExists
	}
	if _, ok := s.tokens[t.Token]; ok {
		return ErrTicketExists
	}
	s.byID[t.ID] = &ticketRecord{ticket: cloneTicket(*t)}
	s.tokens[t.Token] = struct{}{}
	return nil
}

func (s *MemoryTicketStore) Get(ctx context.Context, id string) (*model.Ticket, error) {
	rec := s.record(id)
	if rec == nil {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	t := cloneTicket(rec.ticket)
	return &t, nil
}

func (s *MemoryTicketStore) TryConsume(ctx context.Context, ticketID, eventID, staffID string, now time.Time) (model.ConsumeResult, error) {
	rec := s.record(ticketID)
	if rec == nil {
		return model.ConsumeResult{Kind: model.TicketNotFound}, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return model.ConsumeResult{}, err
	}

	t := &rec.ticket
	if t.EventID != eventID {
		return model.ConsumeResult{Kind: model.WrongEvent}, nil
	}
	if t.Status == model.StatusUsed {
		return model.ConsumeResult{Kind: model.AlreadyUsed, UsedAt: *t.UsedAt}, nil
	}
	usedAt := now.UTC().Truncate(time.Microsecond)
	t.Status = model.StatusUsed
	t.UsedAt = &usedAt
	t.UsedBy = staffID
	return model.ConsumeResult{Kind: model.Consumed, UsedAt: usedAt}, nil
}

func (s *MemoryTicketStore) ListByHolder(ctx context.Context, holderID string) ([]model.Ticket, error) {
	var out []model.Ticket
	for _, rec := range s.records() {
		rec.mu.Lock()
		if rec.ticket.HolderID == holderID {
			out = append(out, cloneTicket(rec.ticket))
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (s *MemoryTicketStore) ListByEvent(ctx context.Context, eventID string) ([]model.Ticket, error) {
	var out []model.Ticket
	for _, rec := range s.records() {
		rec.mu.Lock()
		if rec.ticket.EventID == eventID {
			out = append(out, cloneTicket(rec.ticket))
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (s *MemoryTicketStore) Stats(ctx context.Context, eventID string) (model.EventStats, error) {
	stats := model.EventStats{EventID: eventID}
	for _, rec := range s.records() {
		rec.mu.Lock()
		if rec.ticket.EventID == eventID {
			stats.Issued++
			if rec.ticket.Status == model.StatusUsed {
				stats.Used++
			}
		}
		rec.mu.Unlock()
	}
	return stats, nil
}

func (s *MemoryTicketStore) record(id string) *ticketRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

func (s *MemoryTicketStore) records() []*ticketRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ticketRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec)
	}
	return out
}

func cloneTicket(t model.Ticket) model.Ticket {
	t.Secret = append([]byte(nil), t.Secret...)
	if t.UsedAt != nil {
		usedAt := *t.UsedAt
		t.UsedAt = &usedAt
	}
	return t
}

// MemoryGrantStore keeps staff grants in a map keyed by id.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[string]model.StaffGrant
}

// NewMemoryGrantStore constructs an empty MemoryGrantStore.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string]model.StaffGrant)}
}

func (s *MemoryGrantStore) Create(ctx context.Context, g *model.StaffGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.grants {
		if existing.ID == g.ID || (existing.EventID == g.EventID && existing.StaffUserID == g.StaffUserID) {
			return ErrGrantExists
		}
	}
	s.grants[g.ID] = cloneGrant(*g)
	return nil
}

func (s *MemoryGrantStore) Get(ctx context.Context, id string) (*model.StaffGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	g = cloneGrant(g)
	return &g, nil
}

func (s *MemoryGrantStore) Find(ctx context.Context, eventID, staffUserID string) (*model.StaffGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.EventID == eventID && g.StaffUserID == staffUserID {
			g = cloneGrant(g)
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryGrantStore) Accept(ctx context.Context, id string, at time.Time) (*model.StaffGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	g.Accepted = true
	if g.AcceptedAt == nil {
		at = at.UTC()
		g.AcceptedAt = &at
	}
	s.grants[id] = g
	g = cloneGrant(g)
	return &g, nil
}

func (s *MemoryGrantStore) Delete(ctx context.Context, id string) (*model.StaffGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.grants, id)
	return &g, nil
}

func (s *MemoryGrantStore) ListByEvent(ctx context.Context, eventID string) ([]model.StaffGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.StaffGrant
	for _, g := range s.grants {
		if g.EventID == eventID {
			out = append(out, cloneGrant(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneGrant(g model.StaffGrant) model.StaffGrant {
	g.Permissions = append([]model.Permission(nil), g.Permissions...)
	if g.AcceptedAt != nil {
		at := *g.AcceptedAt
		g.AcceptedAt = &at
	}
	return g
}
