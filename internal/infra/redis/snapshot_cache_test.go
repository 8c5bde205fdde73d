package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quickfire-quiz-service/internal/domain"
)

func TestSnapshotCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewSnapshotCache(newClient(mr), time.Minute)
	key := domain.LeaderboardKey{Scope: domain.ScopeGlobal, Period: domain.PeriodDaily}

	if _, ok := cache.Get(context.Background(), key); ok {
		t.Fatal("expected miss on empty cache")
	}

	snap := domain.LeaderboardSnapshot{
		ID:          "snap-1",
		Key:         key,
		WindowStart: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Entries: []domain.LeaderboardEntry{
			{UserID: "alice", Rank: 1, TotalScore: 420},
		},
		BuiltAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	cache.Put(context.Background(), snap)

	got, ok := cache.Get(context.Background(), key)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got.ID != "snap-1" || len(got.Entries) != 1 || got.Entries[0].UserID != "alice" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if !got.WindowStart.Equal(snap.WindowStart) {
		t.Fatalf("window start mismatch: %v", got.WindowStart)
	}
}

func TestSnapshotCacheExpiresAndInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewSnapshotCache(newClient(mr), time.Minute)
	key := domain.LeaderboardKey{Scope: domain.ScopeCountry, Period: domain.PeriodWeekly, Country: "VN"}
	cache.Put(context.Background(), domain.LeaderboardSnapshot{ID: "snap-1", Key: key})

	mr.FastForward(2 * time.Minute)
	if _, ok := cache.Get(context.Background(), key); ok {
		t.Fatal("expected miss after TTL")
	}

	cache.Put(context.Background(), domain.LeaderboardSnapshot{ID: "snap-2", Key: key})
	cache.Invalidate(context.Background(), key)
	if _, ok := cache.Get(context.Background(), key); ok {
		t.Fatal("expected miss after invalidate")
	}
}
