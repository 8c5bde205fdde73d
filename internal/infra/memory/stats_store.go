package memory

import (
	"context"
	"sync"

	"quickfire-quiz-service/internal/domain"
)

// StatsStore holds the cumulative per-user aggregate. Apply runs its
// mutate callback under the store lock, matching the transactional
// semantics of the Postgres implementation.
type StatsStore struct {
	mu     sync.Mutex
	byUser map[string]domain.UserQuizStats
}

func NewStatsStore() *StatsStore {
	return &StatsStore{byUser: make(map[string]domain.UserQuizStats)}
}

func (s *StatsStore) Get(ctx context.Context, userID string) (domain.UserQuizStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.byUser[userID]
	if !ok {
		return domain.UserQuizStats{}, domain.ErrStatsNotFound
	}
	return stats, nil
}

func (s *StatsStore) Apply(ctx context.Context, userID string, mutate func(*domain.UserQuizStats) error) (domain.UserQuizStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.byUser[userID]
	if !ok {
		stats = domain.UserQuizStats{UserID: userID}
	}
	if err := mutate(&stats); err != nil {
		return domain.UserQuizStats{}, err
	}
	s.byUser[userID] = stats
	return stats, nil
}
