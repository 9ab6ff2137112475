package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/redis/go-redis/v9"
)

const openEventKey = "arenadesk:events:open"

type OpenEventFinder interface {
	FindOpenEvent(ctx context.Context) (event.Event, error)
}

// OpenEventCache sits in front of the store for the one query every
// player interaction hits: "which event is currently open". Misses and
// redis failures fall through to the inner finder.
type OpenEventCache struct {
	inner OpenEventFinder
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewOpenEventCache(inner OpenEventFinder, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *OpenEventCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &OpenEventCache{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func (c *OpenEventCache) FindOpenEvent(ctx context.Context) (event.Event, error) {
	raw, err := c.rdb.Get(ctx, openEventKey).Bytes()

	if err == nil {
		var e event.Event
		if uerr := json.Unmarshal(raw, &e); uerr == nil {
			return e, nil
		}
		// poisoned entry, drop it
		_ = c.rdb.Del(ctx, openEventKey).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("open event cache read failed", "err", err)
	}

	e, err := c.inner.FindOpenEvent(ctx)
	if err != nil {
		return event.Event{}, err
	}

	if b, merr := json.Marshal(e); merr == nil {
		if serr := c.rdb.Set(ctx, openEventKey, b, c.ttl).Err(); serr != nil {
			c.log.Warn("open event cache write failed", "err", serr)
		}
	}

	return e, nil
}

// Invalidate drops the cached entry; lifecycle transitions call this so
// a just-closed event stops being offered to players.
func (c *OpenEventCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, openEventKey).Err(); err != nil {
		c.log.Warn("open event cache invalidate failed", "err", err)
	}
}
