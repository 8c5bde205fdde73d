package memory

import (
	"context"
	"sync"
	"time"

	"quickfire-quiz-service/internal/domain"
)

// SnapshotStore holds one live snapshot per leaderboard key.
type SnapshotStore struct {
	mu    sync.RWMutex
	byKey map[domain.LeaderboardKey]domain.LeaderboardSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{byKey: make(map[domain.LeaderboardKey]domain.LeaderboardSnapshot)}
}

func (s *SnapshotStore) Get(ctx context.Context, key domain.LeaderboardKey) (domain.LeaderboardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byKey[key]
	if !ok {
		return domain.LeaderboardSnapshot{}, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *SnapshotStore) Replace(ctx context.Context, snap domain.LeaderboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[snap.Key] = snap
	return nil
}

func (s *SnapshotStore) List(ctx context.Context) ([]domain.LeaderboardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LeaderboardSnapshot, 0, len(s.byKey))
	for _, snap := range s.byKey {
		out = append(out, snap)
	}
	return out, nil
}

type archiveKey struct {
	key         domain.LeaderboardKey
	windowStart string
}

// ArchiveStore holds immutable period history. Save refuses to
// overwrite an already archived window so a re-run rollover is a no-op.
type ArchiveStore struct {
	mu    sync.Mutex
	byWin map[archiveKey]domain.ArchivedLeaderboard
}

func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{byWin: make(map[archiveKey]domain.ArchivedLeaderboard)}
}

func (s *ArchiveStore) Save(ctx context.Context, rec domain.ArchivedLeaderboard) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := archiveKey{key: rec.Key, windowStart: rec.WindowStart.UTC().String()}
	if _, ok := s.byWin[key]; ok {
		return false, nil
	}
	s.byWin[key] = rec
	return true, nil
}

func (s *ArchiveStore) List(ctx context.Context, key domain.LeaderboardKey) ([]domain.ArchivedLeaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ArchivedLeaderboard
	for k, rec := range s.byWin {
		if k.key == key {
			out = append(out, rec)
		}
	}
	return out, nil
}

type grantKey struct {
	userID    string
	periodKey string
	kind      string
}

// RewardLedgerStore issues rewards exactly once per (user, period, kind).
type RewardLedgerStore struct {
	mu     sync.Mutex
	grants map[grantKey]domain.RewardGrant
}

func NewRewardLedgerStore() *RewardLedgerStore {
	return &RewardLedgerStore{grants: make(map[grantKey]domain.RewardGrant)}
}

func (s *RewardLedgerStore) GrantOnce(ctx context.Context, g domain.RewardGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{userID: g.UserID, periodKey: g.PeriodKey, kind: g.Kind}
	if _, ok := s.grants[key]; ok {
		return false, nil
	}
	s.grants[key] = g
	return true, nil
}

func (s *RewardLedgerStore) GrantsFor(ctx context.Context, userID string, since time.Time) ([]domain.RewardGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RewardGrant
	for key, g := range s.grants {
		if key.userID != userID {
			continue
		}
		if !since.IsZero() && g.GrantedAt.Before(since) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}
