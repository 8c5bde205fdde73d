package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quickfire-quiz-service/internal/domain"
)

// PoolLoader fetches question pools from a backing store (Postgres in
// production).
type PoolLoader interface {
	LoadPool(ctx context.Context, artistID string, n int) ([]domain.Question, error)
}

// CachedQuestionProvider caches question pools with TTL to avoid
// repeated loader hits. Concurrent misses on the same pool collapse
// into a single load; expiry is jittered so pools for popular artists
// do not all refresh at once.
type CachedQuestionProvider struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewCachedQuestionProvider(loader PoolLoader, ttl time.Duration) *CachedQuestionProvider {
	return &CachedQuestionProvider{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func (p *CachedQuestionProvider) QuestionPool(ctx context.Context, artistID string, n int) ([]domain.Question, error) {
	key := fmt.Sprintf("%s|%d", artistID, n)
	now := p.clock()

	p.mu.RLock()
	if entry, ok := p.cache[key]; ok && entry.expiresAt.After(now) {
		p.mu.RUnlock()
		return entry.questions, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do(key, func() (interface{}, error) {
		now := p.clock()
		p.mu.RLock()
		if entry, ok := p.cache[key]; ok && entry.expiresAt.After(now) {
			p.mu.RUnlock()
			return entry.questions, nil
		}
		p.mu.RUnlock()

		questions, err := p.loader.LoadPool(ctx, artistID, n)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.cache[key] = cachedPool{questions: questions, expiresAt: now.Add(p.jitteredTTL())}
		p.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// jitteredTTL spreads expiry within [0.9, 1.1] of the configured TTL.
func (p *CachedQuestionProvider) jitteredTTL() time.Duration {
	p.rndMu.Lock()
	f := 0.9 + 0.2*p.rnd.Float64()
	p.rndMu.Unlock()
	return time.Duration(float64(p.ttl) * f)
}

// StaticQuestionProvider serves pre-seeded pools, used when no external
// content store is configured.
type StaticQuestionProvider struct {
	mu       sync.RWMutex
	byArtist map[string][]domain.Question
}

func NewStaticQuestionProvider() *StaticQuestionProvider {
	return &StaticQuestionProvider{byArtist: make(map[string][]domain.Question)}
}

func (p *StaticQuestionProvider) Seed(artistID string, questions []domain.Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byArtist[artistID] = questions
}

func (p *StaticQuestionProvider) QuestionPool(ctx context.Context, artistID string, n int) ([]domain.Question, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pool, ok := p.byArtist[artistID]
	if !ok || len(pool) == 0 {
		return nil, domain.ErrQuestionNotFound
	}
	if n > 0 && n < len(pool) {
		pool = pool[:n]
	}
	out := make([]domain.Question, len(pool))
	copy(out, pool)
	return out, nil
}

// StaticListeningProvider is a map-backed listening-hours lookup.
// Unknown pairs report zero hours rather than an error; the scoring
// engine treats missing history as no bonus.
type StaticListeningProvider struct {
	mu    sync.RWMutex
	hours map[string]float64
}

func NewStaticListeningProvider() *StaticListeningProvider {
	return &StaticListeningProvider{hours: make(map[string]float64)}
}

func (p *StaticListeningProvider) Set(userID, artistID string, hours float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hours[userID+"|"+artistID] = hours
}

func (p *StaticListeningProvider) Hours(ctx context.Context, userID, artistID string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hours[userID+"|"+artistID], nil
}
