package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quickfire-quiz-service/internal/domain"
)

func TestInventoryDecrementIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewInventoryStore()
	if err := store.Credit(ctx, "user-1", "freeze", 1); err != nil {
		t.Fatalf("credit: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var won, lost int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.DecrementIfAvailable(ctx, "user-1", "freeze")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, domain.ErrInsufficientInventory):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if won != 1 || lost != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d winners / %d losers", won, lost)
	}
	if qty, _ := store.Quantity(ctx, "user-1", "freeze"); qty != 0 {
		t.Fatalf("expected quantity 0, got %d", qty)
	}
}

func TestSessionStoreCompletedSince(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	sessions := []domain.QuizSession{
		{ID: "s1", UserID: "u1", Status: domain.StatusCompleted, CompletedAt: base.Add(-time.Hour)},
		{ID: "s2", UserID: "u1", Status: domain.StatusCompleted, CompletedAt: base.Add(time.Hour)},
		{ID: "s3", UserID: "u2", Status: domain.StatusActive},
	}
	for _, s := range sessions {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save %s: %v", s.ID, err)
		}
	}

	got, err := store.CompletedSince(ctx, base)
	if err != nil {
		t.Fatalf("completed since: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s2" {
		t.Fatalf("expected only s2, got %+v", got)
	}

	all, err := store.CompletedSince(ctx, time.Time{})
	if err != nil {
		t.Fatalf("completed since zero: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both terminal sessions for the zero time, got %d", len(all))
	}
}

func TestSessionStoreSetReview(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	if err := store.SetReview(ctx, "missing", domain.ReviewCleared); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if err := store.Save(ctx, domain.QuizSession{ID: "s1", Status: domain.StatusCompleted, Review: domain.ReviewPending}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SetReview(ctx, "s1", domain.ReviewCleared); err != nil {
		t.Fatalf("set review: %v", err)
	}
	sess, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Review != domain.ReviewCleared {
		t.Fatalf("expected cleared, got %s", sess.Review)
	}
}

func TestArchiveStoreSaveOnce(t *testing.T) {
	ctx := context.Background()
	store := NewArchiveStore()
	rec := domain.ArchivedLeaderboard{
		ID:          "a1",
		Key:         domain.LeaderboardKey{Scope: domain.ScopeGlobal, Period: domain.PeriodDaily},
		WindowStart: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		WinnerID:    "u1",
	}

	created, err := store.Save(ctx, rec)
	if err != nil || !created {
		t.Fatalf("first save: created=%v err=%v", created, err)
	}

	rec.WinnerID = "u2"
	created, err = store.Save(ctx, rec)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if created {
		t.Fatal("expected second save of the same window to be a no-op")
	}

	list, err := store.List(ctx, rec.Key)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].WinnerID != "u1" {
		t.Fatalf("expected original record preserved, got %+v", list)
	}
}

func TestRewardLedgerGrantOnce(t *testing.T) {
	ctx := context.Background()
	ledger := NewRewardLedgerStore()
	grant := domain.RewardGrant{
		UserID:    "u1",
		PeriodKey: "global|daily|||2026-03-10T00:00:00Z",
		Kind:      "tier_bonus",
		Points:    100,
		GrantedAt: time.Now(),
	}

	granted, err := ledger.GrantOnce(ctx, grant)
	if err != nil || !granted {
		t.Fatalf("first grant: granted=%v err=%v", granted, err)
	}
	granted, err = ledger.GrantOnce(ctx, grant)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if granted {
		t.Fatal("expected duplicate grant to be refused")
	}

	other := grant
	other.Kind = "top_rank"
	granted, err = ledger.GrantOnce(ctx, other)
	if err != nil || !granted {
		t.Fatalf("different kind should grant: granted=%v err=%v", granted, err)
	}

	grants, err := ledger.GrantsFor(ctx, "u1", time.Time{})
	if err != nil {
		t.Fatalf("grants for: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected two grants, got %d", len(grants))
	}
}

func TestStatsStoreApply(t *testing.T) {
	ctx := context.Background()
	store := NewStatsStore()

	if _, err := store.Get(ctx, "u1"); !errors.Is(err, domain.ErrStatsNotFound) {
		t.Fatalf("expected ErrStatsNotFound, got %v", err)
	}

	stats, err := store.Apply(ctx, "u1", func(s *domain.UserQuizStats) error {
		s.LifetimePoints += 50
		s.AvailablePoints += 50
		return nil
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.AvailablePoints != 50 {
		t.Fatalf("expected 50 available, got %d", stats.AvailablePoints)
	}

	wantErr := errors.New("abort")
	if _, err := store.Apply(ctx, "u1", func(s *domain.UserQuizStats) error {
		s.AvailablePoints = 0
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("expected mutate error, got %v", err)
	}

	stats, err = store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stats.AvailablePoints != 50 {
		t.Fatal("aborted apply must not write")
	}
}
