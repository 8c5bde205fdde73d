package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quickfire-quiz-service/internal/domain"
)

func TestCachedQuestionProviderCaches(t *testing.T) {
	loader := &countingLoader{pool: samplePool("artist-1")}
	provider := NewCachedQuestionProvider(loader, time.Minute)

	if _, err := provider.QuestionPool(context.Background(), "artist-1", 5); err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if loader.calls() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls())
	}

	if _, err := provider.QuestionPool(context.Background(), "artist-1", 5); err != nil {
		t.Fatalf("load pool 2: %v", err)
	}
	if loader.calls() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls())
	}
}

func TestCachedQuestionProviderExpires(t *testing.T) {
	loader := &countingLoader{pool: samplePool("artist-1")}
	provider := NewCachedQuestionProvider(loader, time.Minute)

	now := time.Now()
	provider.clock = func() time.Time { return now }

	if _, err := provider.QuestionPool(context.Background(), "artist-1", 5); err != nil {
		t.Fatalf("load pool: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := provider.QuestionPool(context.Background(), "artist-1", 5); err != nil {
		t.Fatalf("load pool after expiry: %v", err)
	}
	if loader.calls() != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls())
	}
}

func TestCachedQuestionProviderSingleflight(t *testing.T) {
	loader := &slowLoader{pool: samplePool("artist-1"), delay: 20 * time.Millisecond}
	provider := NewCachedQuestionProvider(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := provider.QuestionPool(context.Background(), "artist-1", 5); err != nil {
				t.Errorf("load pool: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := loader.calls(); got != 1 {
		t.Fatalf("expected concurrent misses to collapse into one load, got %d", got)
	}
}

func TestStaticQuestionProviderUnknownArtist(t *testing.T) {
	provider := NewStaticQuestionProvider()
	if _, err := provider.QuestionPool(context.Background(), "nobody", 5); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

type countingLoader struct {
	mu   sync.Mutex
	n    int
	pool []domain.Question
}

func (l *countingLoader) LoadPool(ctx context.Context, artistID string, n int) ([]domain.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.n++
	return l.pool, nil
}

func (l *countingLoader) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

type slowLoader struct {
	mu    sync.Mutex
	n     int
	delay time.Duration
	pool  []domain.Question
}

func (l *slowLoader) LoadPool(ctx context.Context, artistID string, n int) ([]domain.Question, error) {
	l.mu.Lock()
	l.n++
	l.mu.Unlock()
	time.Sleep(l.delay)
	return l.pool, nil
}

func (l *slowLoader) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

func samplePool(artistID string) []domain.Question {
	return []domain.Question{
		{
			ID:       "q1",
			ArtistID: artistID,
			Prompt:   "Which album came first?",
			Options: []domain.Option{
				{ID: "o1", Text: "Debut", Correct: true},
				{ID: "o2", Text: "Follow-up", Correct: false},
				{ID: "o3", Text: "Live", Correct: false},
				{ID: "o4", Text: "Remix", Correct: false},
			},
			Difficulty: domain.DifficultyEasy,
		},
	}
}
