package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quickfire-quiz-service/internal/domain"
)

// PoolLoader fetches question pools from a backing store (Postgres in
// production).
type PoolLoader interface {
	LoadPool(ctx context.Context, artistID string, n int) ([]domain.Question, error)
}

// QuestionCache caches question pools in Redis as JSON blobs and falls
// back to the loader on a miss. Concurrent misses on the same pool
// collapse into a single load; TTLs are jittered so popular pools do
// not all expire together.
type QuestionCache struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader PoolLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) QuestionPool(ctx context.Context, artistID string, n int) ([]domain.Question, error) {
	key := c.key(artistID, n)

	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(cached, &questions); err == nil && len(questions) > 0 {
			return questions, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// re-check in case another goroutine filled the cache
		if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var questions []domain.Question
			if err := json.Unmarshal(cached, &questions); err == nil && len(questions) > 0 {
				return questions, nil
			}
		}

		questions, err := c.loader.LoadPool(ctx, artistID, n)
		if err != nil {
			return nil, err
		}
		if blob, err := json.Marshal(questions); err == nil {
			// best effort: a failed write only costs the next caller a load
			_ = c.client.Set(ctx, key, blob, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) key(artistID string, n int) string {
	return fmt.Sprintf("questions:%s:%d", artistID, n)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
