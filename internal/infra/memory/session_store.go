package memory

import (
	"context"
	"sync"
	"time"

	"quickfire-quiz-service/internal/domain"
)

// SessionStore keeps terminal sessions in memory, ordered by insertion.
type SessionStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.QuizSession
	ordered []string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[string]domain.QuizSession)}
}

func (s *SessionStore) Save(ctx context.Context, sess domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sess.ID]; !ok {
		s.ordered = append(s.ordered, sess.ID)
	}
	s.byID[sess.ID] = sess
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionStore) CompletedSince(ctx context.Context, since time.Time) ([]domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuizSession
	for _, id := range s.ordered {
		sess := s.byID[id]
		if !sess.Status.Terminal() {
			continue
		}
		if !since.IsZero() && sess.CompletedAt.Before(since) {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *SessionStore) SetReview(ctx context.Context, id string, review domain.ReviewStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.Review = review
	s.byID[id] = sess
	return nil
}

// AnswerStore is the append-only answer log.
type AnswerStore struct {
	mu        sync.RWMutex
	bySession map[string][]domain.QuizAnswer
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{bySession: make(map[string][]domain.QuizAnswer)}
}

func (s *AnswerStore) Append(ctx context.Context, a domain.QuizAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession[a.SessionID] = append(s.bySession[a.SessionID], a)
	return nil
}

func (s *AnswerStore) BySession(ctx context.Context, sessionID string) ([]domain.QuizAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.bySession[sessionID]
	out := make([]domain.QuizAnswer, len(stored))
	copy(out, stored)
	return out, nil
}
