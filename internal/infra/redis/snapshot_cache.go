package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quickfire-quiz-service/internal/domain"
)

// SnapshotCache keeps recently built leaderboard snapshots in Redis so
// read-heavy leaderboard queries skip the snapshot repository. Entries
// carry a short TTL; a stale read only costs one extra rebuild.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func (c *SnapshotCache) Get(ctx context.Context, key domain.LeaderboardKey) (domain.LeaderboardSnapshot, bool) {
	blob, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return domain.LeaderboardSnapshot{}, false
	}
	var snap domain.LeaderboardSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return domain.LeaderboardSnapshot{}, false
	}
	return snap, true
}

func (c *SnapshotCache) Put(ctx context.Context, snap domain.LeaderboardSnapshot) {
	blob, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(snap.Key), blob, c.ttl).Err()
}

// Invalidate drops a cached snapshot, used after rollover resets.
func (c *SnapshotCache) Invalidate(ctx context.Context, key domain.LeaderboardKey) {
	_ = c.client.Del(ctx, c.key(key)).Err()
}

func (c *SnapshotCache) key(key domain.LeaderboardKey) string {
	return fmt.Sprintf("leaderboard:%s:%s:%s:%s", key.Scope, key.Period, key.Country, key.ArtistID)
}
