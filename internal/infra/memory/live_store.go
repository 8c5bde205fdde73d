package memory

import (
	"sync"

	"quickfire-quiz-service/internal/app"
)

// LiveSessionStore is the in-memory implementation of app.LiveStore.
// It indexes in-flight sessions both by session ID and by owning user
// to support the one-active-session-per-user claim.
type LiveSessionStore struct {
	mu       sync.RWMutex
	byID     map[string]*app.LiveSession
	byUserID map[string]*app.LiveSession
}

func NewLiveSessionStore() *LiveSessionStore {
	return &LiveSessionStore{
		byID:     make(map[string]*app.LiveSession),
		byUserID: make(map[string]*app.LiveSession),
	}
}

func (s *LiveSessionStore) Put(ls *app.LiveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[ls.ID()] = ls
	s.byUserID[ls.UserID()] = ls
}

func (s *LiveSessionStore) Get(sessionID string) (*app.LiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.byID[sessionID]
	return ls, ok
}

func (s *LiveSessionStore) ByUser(userID string) (*app.LiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.byUserID[userID]
	return ls, ok
}

func (s *LiveSessionStore) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.byID[sessionID]
	if !ok {
		return
	}
	delete(s.byID, sessionID)
	if current, ok := s.byUserID[ls.UserID()]; ok && current == ls {
		delete(s.byUserID, ls.UserID())
	}
}

func (s *LiveSessionStore) All() []*app.LiveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.LiveSession, 0, len(s.byID))
	for _, ls := range s.byID {
		out = append(out, ls)
	}
	return out
}
