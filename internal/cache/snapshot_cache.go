package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

const keyPrefix = "event-snapshot:"

// SnapshotCache keeps read-only event snapshots in Redis. A nil
// *SnapshotCache always misses.
type SnapshotCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSnapshotCache creates a cache whose entries expire after ttl.
func NewSnapshotCache(client redis.Cmdable, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// NewRedisClient opens a client and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to connect to redis")
	}
	return client, nil
}

func key(eventID string) string {
	return keyPrefix + eventID
}

// Get returns the cached snapshot and whether there was one.
func (c *SnapshotCache) Get(ctx context.Context, eventID string) (*repository.EventSnapshot, bool, error) {
	if c == nil {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, key(eventID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeInternal, "failed to read snapshot cache")
	}

	var snap repository.EventSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode cached snapshot")
	}
	return &snap, true, nil
}

// Set stores the snapshot under its event id.
func (c *SnapshotCache) Set(ctx context.Context, snap *repository.EventSnapshot) error {
	if c == nil || snap == nil || snap.Event == nil {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode snapshot")
	}
	if err := c.client.Set(ctx, key(snap.Event.ID), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write snapshot cache")
	}
	return nil
}

// Invalidate drops the event's snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, eventID string) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, key(eventID)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to invalidate snapshot cache")
	}
	return nil
}
