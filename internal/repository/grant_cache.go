package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// grantStore is the grant persistence contract the cache decorates.
type grantStore interface {
	Create(ctx context.Context, g *model.StaffGrant) error
	Get(ctx context.Context, id string) (*model.StaffGrant, error)
	Find(ctx context.Context, eventID, staffUserID string) (*model.StaffGrant, error)
	Accept(ctx context.Context, id string, at time.Time) (*model.StaffGrant, error)
	Delete(ctx context.Context, id string) (*model.StaffGrant, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.StaffGrant, error)
}

const missMarker = "-"

// GrantCache serves (event, staff) grant lookups from Redis for up to ttl.
//
// Every mutation deletes the cached entry before returning, so accepts
// and revocations are visible to the next lookup. If that delete fails
// the entry can be stale for at most ttl. Redis read failures fall
// through to the underlying store.
type GrantCache struct {
	next   grantStore
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewGrantCache wraps next with a Redis read-through cache.
func NewGrantCache(next grantStore, rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *GrantCache {
	return &GrantCache{next: next, redis: rdb, ttl: ttl, logger: logger}
}

func grantKey(eventID, staffUserID string) string {
	return fmt.Sprintf("authz:grant:%s:%s", eventID, staffUserID)
}

func (c *GrantCache) Find(ctx context.Context, eventID, staffUserID string) (*model.StaffGrant, error) {
	key := grantKey(eventID, staffUserID)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if val == missMarker {
			return nil, ErrNotFound
		}
		var g model.StaffGrant
		if jsonErr := json.Unmarshal([]byte(val), &g); jsonErr == nil {
			return &g, nil
		}
		c.logger.WithContext(ctx).WithField("key", key).Warn("discarding unreadable grant cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WithContext(ctx).WithError(err).Warn("grant cache read failed, using store")
	}

	g, err := c.next.Find(ctx, eventID, staffUserID)
	if errors.Is(err, ErrNotFound) {
		c.set(ctx, key, missMarker)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return g, nil
	}
	c.set(ctx, key, string(data))
	return g, nil
}

func (c *GrantCache) Create(ctx context.Context, g *model.StaffGrant) error {
	if err := c.next.Create(ctx, g); err != nil {
		return err
	}
	c.invalidate(ctx, g.EventID, g.StaffUserID)
	return nil
}

func (c *GrantCache) Accept(ctx context.Context, id string, at time.Time) (*model.StaffGrant, error) {
	g, err := c.next.Accept(ctx, id, at)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, g.EventID, g.StaffUserID)
	return g, nil
}

func (c *GrantCache) Delete(ctx context.Context, id string) (*model.StaffGrant, error) {
	g, err := c.next.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, g.EventID, g.StaffUserID)
	return g, nil
}

func (c *GrantCache) Get(ctx context.Context, id string) (*model.StaffGrant, error) {
	return c.next.Get(ctx, id)
}

func (c *GrantCache) ListByEvent(ctx context.Context, eventID string) ([]model.StaffGrant, error) {
	return c.next.ListByEvent(ctx, eventID)
}

func (c *GrantCache) set(ctx context.Context, key, value string) {
	if err := c.redis.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("grant cache write failed")
	}
}

func (c *GrantCache) invalidate(ctx context.Context, eventID, staffUserID string) {
	if err := c.redis.Del(ctx, grantKey(eventID, staffUserID)).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).
			WithFields(logrus.Fields{"event_id": eventID, "staff_id": staffUserID, "ttl": c.ttl}).
			Error("grant cache invalidation failed, entry may be stale until ttl")
	}
}
