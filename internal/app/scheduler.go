package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
)

// Scheduler closes elapsed leaderboard windows: it snapshots the top
// standings into history, issues tier and top-rank rewards exactly once,
// and reopens each board on a fresh window. Safe to invoke repeatedly
// for the same boundary.
type Scheduler struct {
	boards    *LeaderboardService
	snapshots SnapshotRepository
	archive   ArchiveRepository
	ledger    RewardLedger
	stats     StatsRepository
	sessions  *SessionService
	ranking   config.Ranking
	rewards   config.Rewards
	grace     time.Duration
	now       func() time.Time
}

func NewScheduler(
	boards *LeaderboardService,
	snapshots SnapshotRepository,
	archive ArchiveRepository,
	ledger RewardLedger,
	stats StatsRepository,
	sessions *SessionService,
	ranking config.Ranking,
	rewards config.Rewards,
	grace time.Duration,
) *Scheduler {
	return &Scheduler{
		boards:    boards,
		snapshots: snapshots,
		archive:   archive,
		ledger:    ledger,
		stats:     stats,
		sessions:  sessions,
		ranking:   ranking,
		rewards:   rewards,
		grace:     grace,
		now:       time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Rollover archives and resets every live snapshot whose window has
// closed. A failure on one board is logged and does not stop the rest;
// the first error is returned so the caller can retry the whole pass.
func (s *Scheduler) Rollover(ctx context.Context) error {
	now := s.now()
	snaps, err := s.snapshots.List(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, snap := range snaps {
		if snap.Key.Period == domain.PeriodAllTime {
			continue
		}
		boundary := WindowStart(snap.Key.Period, now)
		if !snap.WindowStart.Before(boundary) {
			continue // window still open
		}
		if err := s.rolloverOne(ctx, snap, boundary, now); err != nil {
			log.Printf("rollover %s/%s: %v", snap.Key.Scope, snap.Key.Period, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Scheduler) rolloverOne(ctx context.Context, snap domain.LeaderboardSnapshot, boundary, now time.Time) error {
	// sessions that straddled the boundary get a grace period, then are
	// force-completed into the closing window
	if s.sessions != nil {
		if now.Before(boundary.Add(s.grace)) && s.sessions.HasLiveStartedBefore(boundary) {
			return fmt.Errorf("window %s still has in-flight sessions within grace", PeriodKey(snap.Key, snap.WindowStart))
		}
		s.sessions.ForceCompleteStartedBefore(ctx, boundary)
	}

	// settle the closing window with an explicit upper bound so
	// boundary stragglers are ranked without touching the live snapshot
	entries, err := s.boards.BuildWindow(ctx, snap.Key, snap.WindowStart, boundary)
	if err != nil {
		return err
	}

	topN := s.ranking.ArchiveTopN
	if topN > len(entries) {
		topN = len(entries)
	}
	rec := domain.ArchivedLeaderboard{
		ID:          uuid.NewString(),
		Key:         snap.Key,
		WindowStart: snap.WindowStart,
		WindowEnd:   boundary,
		TopEntries:  append([]domain.LeaderboardEntry(nil), entries[:topN]...),
		ArchivedAt:  now,
	}
	if len(entries) > 0 {
		rec.WinnerID = entries[0].UserID
	}
	// archive must land before the live entries are cleared
	if _, err := s.archive.Save(ctx, rec); err != nil {
		return err
	}

	periodKey := PeriodKey(snap.Key, snap.WindowStart)
	for _, entry := range entries {
		if err := s.grantTier(ctx, entry, periodKey); err != nil {
			return err
		}
	}
	if len(entries) > 0 {
		if err := s.grantTopRank(ctx, entries[0], periodKey); err != nil {
			return err
		}
	}

	// reopen on the fresh window
	return s.snapshots.Replace(ctx, domain.LeaderboardSnapshot{
		ID:          uuid.NewString(),
		Key:         snap.Key,
		WindowStart: boundary,
		BuiltAt:     now,
	})
}

func (s *Scheduler) grantTier(ctx context.Context, entry domain.LeaderboardEntry, periodKey string) error {
	points := s.rewards.TierPoints[string(entry.Tier)]
	issued, err := s.ledger.GrantOnce(ctx, domain.RewardGrant{
		UserID:    entry.UserID,
		PeriodKey: periodKey,
		Tier:      entry.Tier,
		Kind:      "tier_bonus",
		Points:    points,
		Badge:     string(entry.Tier),
		GrantedAt: s.now(),
	})
	if err != nil {
		return err
	}
	if !issued || points == 0 {
		return nil
	}
	_, err = s.stats.Apply(ctx, entry.UserID, func(st *domain.UserQuizStats) error {
		st.UserID = entry.UserID
		st.LifetimePoints += points
		st.AvailablePoints += points
		return nil
	})
	return err
}

func (s *Scheduler) grantTopRank(ctx context.Context, winner domain.LeaderboardEntry, periodKey string) error {
	points := s.rewards.TopRankPoints
	issued, err := s.ledger.GrantOnce(ctx, domain.RewardGrant{
		UserID:    winner.UserID,
		PeriodKey: periodKey,
		Tier:      winner.Tier,
		Kind:      "top_rank",
		Points:    points,
		Badge:     "period-champion",
		GrantedAt: s.now(),
	})
	if err != nil {
		return err
	}
	if !issued || points == 0 {
		return nil
	}
	_, err = s.stats.Apply(ctx, winner.UserID, func(st *domain.UserQuizStats) error {
		st.UserID = winner.UserID
		st.LifetimePoints += points
		st.AvailablePoints += points
		return nil
	})
	return err
}

// RunPeriodic invokes Rollover on the interval until ctx is canceled.
func (s *Scheduler) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Rollover(ctx); err != nil {
				log.Printf("scheduled rollover: %v", err)
			}
		}
	}
}
