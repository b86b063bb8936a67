package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"timeline-editor/internal/logging"
	"timeline-editor/internal/session"
)

// Snapshot is a live session as cached between requests and replicas.
type Snapshot struct {
	Owner   uuid.UUID     `json:"owner"`
	Version int           `json:"version"`
	State   session.State `json:"state"`
}

type SnapshotCache interface {
	Load(ctx context.Context, projectID uuid.UUID) (Snapshot, bool)
	Store(ctx context.Context, projectID uuid.UUID, snap Snapshot)
	Forget(ctx context.Context, projectID uuid.UUID)
}

// RedisSnapshots keeps snapshots in Redis with a TTL. Every Redis failure
// degrades to a cache miss; editing never depends on Redis being up.
type RedisSnapshots struct {
	Client *redis.Client
	TTL    time.Duration
	log    *slog.Logger
}

func NewRedisSnapshots(client *redis.Client, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{Client: client, TTL: ttl, log: logging.Component("snapshots")}
}

func snapshotKey(projectID uuid.UUID) string {
	return fmt.Sprintf("editor:session:%s", projectID)
}

func (r *RedisSnapshots) Load(ctx context.Context, projectID uuid.UUID) (Snapshot, bool) {
	// If Redis is not available, bypass the cache
	if err := r.Client.Ping(ctx).Err(); err != nil {
		r.log.Warn("redis not available for session snapshots", "error", err)
		return Snapshot{}, false
	}

	raw, err := r.Client.Get(ctx, snapshotKey(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false
	}
	if err != nil {
		r.log.Warn("snapshot read failed", "project", projectID, "error", err)
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		r.log.Warn("discarding unreadable snapshot", "project", projectID, "error", err)
		r.Forget(ctx, projectID)
		return Snapshot{}, false
	}
	return snap, true
}

func (r *RedisSnapshots) Store(ctx context.Context, projectID uuid.UUID, snap Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		r.log.Error("snapshot encode failed", "project", projectID, "error", err)
		return
	}
	if err := r.Client.Set(ctx, snapshotKey(projectID), raw, r.TTL).Err(); err != nil {
		r.log.Warn("snapshot write failed", "project", projectID, "error", err)
	}
}

func (r *RedisSnapshots) Forget(ctx context.Context, projectID uuid.UUID) {
	if err := r.Client.Del(ctx, snapshotKey(projectID)).Err(); err != nil {
		r.log.Warn("snapshot delete failed", "project", projectID, "error", err)
	}
}
