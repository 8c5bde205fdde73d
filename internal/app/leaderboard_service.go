package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
)

// LeaderboardService batch-builds ranked standings per (scope, period)
// from completed, non-flagged sessions. Rankings are eventually
// consistent: completions enqueue a rebuild, reads serve the latest
// materialized snapshot.
type LeaderboardService struct {
	sessions  SessionRepository
	snapshots SnapshotRepository
	cache     SnapshotCache // optional
	ranking   config.Ranking
	now       func() time.Time
	queue     chan domain.QuizSession
}

func NewLeaderboardService(sessions SessionRepository, snapshots SnapshotRepository, cache SnapshotCache, ranking config.Ranking) *LeaderboardService {
	return &LeaderboardService{
		sessions:  sessions,
		snapshots: snapshots,
		cache:     cache,
		ranking:   ranking,
		now:       time.Now,
		queue:     make(chan domain.QuizSession, 256),
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *LeaderboardService) WithClock(now func() time.Time) *LeaderboardService {
	s.now = now
	return s
}

// NoteCompleted queues a rebuild of every leaderboard the session
// touches. Non-blocking: under load the scheduled rebuild catches up.
func (s *LeaderboardService) NoteCompleted(sess domain.QuizSession) {
	select {
	case s.queue <- sess:
	default:
		log.Printf("leaderboard rebuild queue full, deferring session %s to scheduled rebuild", sess.ID)
	}
}

// Run consumes the rebuild queue until ctx is canceled.
func (s *LeaderboardService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sess := <-s.queue:
			if err := s.RebuildAll(ctx, s.KeysForSession(sess)); err != nil {
				log.Printf("leaderboard rebuild after session %s: %v", sess.ID, err)
			}
		}
	}
}

// KeysForSession expands a session into the (scope, period) boards it
// scores on. Country scopes are skipped when the user has no country.
func (s *LeaderboardService) KeysForSession(sess domain.QuizSession) []domain.LeaderboardKey {
	periods := []domain.Period{domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly, domain.PeriodAllTime}
	keys := make([]domain.LeaderboardKey, 0, 4*len(periods))
	for _, p := range periods {
		keys = append(keys, domain.LeaderboardKey{Scope: domain.ScopeGlobal, Period: p})
		keys = append(keys, domain.LeaderboardKey{Scope: domain.ScopeArtistGlobal, Period: p, ArtistID: sess.ArtistID})
		if sess.Country != "" {
			keys = append(keys, domain.LeaderboardKey{Scope: domain.ScopeCountry, Period: p, Country: sess.Country})
			keys = append(keys, domain.LeaderboardKey{Scope: domain.ScopeArtistCountry, Period: p, Country: sess.Country, ArtistID: sess.ArtistID})
		}
	}
	return keys
}

// RebuildAll rebuilds each key; one scope failing does not abort the
// others, the first error is reported after all attempts.
func (s *LeaderboardService) RebuildAll(ctx context.Context, keys []domain.LeaderboardKey) error {
	var g errgroup.Group
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if _, err := s.Rebuild(ctx, key); err != nil {
				return fmt.Errorf("rebuild %s/%s: %w", key.Scope, key.Period, err)
			}
			return nil
		})
	}
	return g.Wait()
}

type userAgg struct {
	userID   string
	total    int
	played   int
	best     int
	correct  int
	answered int
	firstAt  time.Time
}

// Rebuild recomputes one live snapshot from scratch and stores it.
// Idempotent: the same input set always yields the same rank
// assignments.
func (s *LeaderboardService) Rebuild(ctx context.Context, key domain.LeaderboardKey) (domain.LeaderboardSnapshot, error) {
	now := s.now()
	windowStart := WindowStart(key.Period, now)
	entries, err := s.BuildWindow(ctx, key, windowStart, time.Time{})
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	snap := domain.LeaderboardSnapshot{
		ID:          uuid.NewString(),
		Key:         key,
		WindowStart: windowStart,
		Entries:     entries,
		BuiltAt:     now,
	}
	if err := s.snapshots.Replace(ctx, snap); err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, snap)
	}
	return snap, nil
}

// BuildWindow computes ranked standings for [windowStart, windowEnd)
// without touching the stored snapshot. A zero windowEnd means no upper
// bound; the scheduler passes the boundary to settle a closing window.
func (s *LeaderboardService) BuildWindow(ctx context.Context, key domain.LeaderboardKey, windowStart, windowEnd time.Time) ([]domain.LeaderboardEntry, error) {
	started := time.Now()
	defer func() { snapshotRebuildSeconds.Observe(time.Since(started).Seconds()) }()

	sessions, err := s.sessions.CompletedSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}

	aggs := make(map[string]*userAgg)
	for _, sess := range sessions {
		if !sess.Status.Terminal() || !sess.Review.Rankable() {
			continue
		}
		if !matchesScope(key, sess) {
			continue
		}
		if !windowEnd.IsZero() && !sess.CompletedAt.Before(windowEnd) {
			continue
		}
		a, ok := aggs[sess.UserID]
		if !ok {
			a = &userAgg{userID: sess.UserID, firstAt: sess.CompletedAt}
			aggs[sess.UserID] = a
		}
		a.total += sess.FinalScore
		a.played++
		if sess.FinalScore > a.best {
			a.best = sess.FinalScore
		}
		a.correct += sess.Correct
		a.answered += sess.Answered
		if sess.CompletedAt.Before(a.firstAt) {
			a.firstAt = sess.CompletedAt
		}
	}

	rows := make([]*userAgg, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool { return lessAgg(rows[i], rows[j]) })

	prevRanks := map[string]int{}
	if prev, err := s.snapshots.Get(ctx, key); err == nil {
		for _, e := range prev.Entries {
			prevRanks[e.UserID] = e.Rank
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, a := range rows {
		rank := i + 1
		// fully tied rows share a rank; the tie still consumes slots
		if i > 0 && fullyTied(rows[i-1], a) {
			rank = entries[i-1].Rank
		}
		accuracy := 0.0
		if a.answered > 0 {
			accuracy = float64(a.correct) / float64(a.answered)
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:        a.userID,
			Rank:          rank,
			PreviousRank:  prevRanks[a.userID],
			TotalScore:    a.total,
			QuizzesPlayed: a.played,
			BestQuiz:      a.best,
			TotalCorrect:  a.correct,
			Accuracy:      accuracy,
			FirstQuizAt:   a.firstAt,
			Tier:          s.tierFor(rank, len(rows)),
		})
	}
	return entries, nil
}

// lessAgg is the deterministic six-key comparator: total score desc,
// best single quiz desc, total correct desc, accuracy desc, quizzes
// played asc, first completion asc. User ID breaks the final tie only
// for a stable sort order; such rows still share a rank.
func lessAgg(a, b *userAgg) bool {
	if a.total != b.total {
		return a.total > b.total
	}
	if a.best != b.best {
		return a.best > b.best
	}
	if a.correct != b.correct {
		return a.correct > b.correct
	}
	accA, accB := accuracyOf(a), accuracyOf(b)
	if accA != accB {
		return accA > accB
	}
	if a.played != b.played {
		return a.played < b.played
	}
	if !a.firstAt.Equal(b.firstAt) {
		return a.firstAt.Before(b.firstAt)
	}
	return a.userID < b.userID
}

func fullyTied(a, b *userAgg) bool {
	return a.total == b.total && a.best == b.best && a.correct == b.correct &&
		accuracyOf(a) == accuracyOf(b) && a.played == b.played && a.firstAt.Equal(b.firstAt)
}

func accuracyOf(a *userAgg) float64 {
	if a.answered == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.answered)
}

func matchesScope(key domain.LeaderboardKey, sess domain.QuizSession) bool {
	switch key.Scope {
	case domain.ScopeGlobal:
		return true
	case domain.ScopeCountry:
		return sess.Country == key.Country
	case domain.ScopeArtistGlobal:
		return sess.ArtistID == key.ArtistID
	case domain.ScopeArtistCountry:
		return sess.ArtistID == key.ArtistID && sess.Country == key.Country
	default:
		return false
	}
}

func (s *LeaderboardService) tierFor(rank, total int) domain.Tier {
	if rank <= s.ranking.TopAbsolute {
		return domain.TierLegend
	}
	percentile := float64(rank) / float64(total)
	for _, band := range s.ranking.Bands {
		if percentile <= band.Percentile {
			return domain.Tier(band.Tier)
		}
	}
	return domain.TierBronze
}

// LeaderboardPage is one page of standings plus the requester's row.
type LeaderboardPage struct {
	Key         domain.LeaderboardKey     `json:"key"`
	WindowStart time.Time                 `json:"windowStart"`
	Total       int                       `json:"total"`
	Entries     []domain.LeaderboardEntry `json:"entries"`
	Requester   *domain.LeaderboardEntry  `json:"requester,omitempty"`
}

// Query serves standings from the cache, falling back to the stored
// snapshot, rebuilding lazily when neither exists yet.
func (s *LeaderboardService) Query(ctx context.Context, key domain.LeaderboardKey, limit, offset int, userID string) (LeaderboardPage, error) {
	var snap domain.LeaderboardSnapshot
	var ok bool
	if s.cache != nil {
		snap, ok = s.cache.Get(ctx, key)
	}
	if !ok {
		var err error
		snap, err = s.snapshots.Get(ctx, key)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			snap, err = s.Rebuild(ctx, key)
		}
		if err != nil {
			return LeaderboardPage{}, err
		}
	}

	page := LeaderboardPage{Key: key, WindowStart: snap.WindowStart, Total: len(snap.Entries)}
	if userID != "" {
		for i := range snap.Entries {
			if snap.Entries[i].UserID == userID {
				entry := snap.Entries[i]
				page.Requester = &entry
				break
			}
		}
	}
	if offset >= len(snap.Entries) {
		return page, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(snap.Entries) {
		end = len(snap.Entries)
	}
	page.Entries = snap.Entries[offset:end]
	return page, nil
}

// PositionsFor reports the user's current daily standings for every
// scope the session scored on, from the latest snapshots.
func (s *LeaderboardService) PositionsFor(ctx context.Context, sess domain.QuizSession) []PositionDelta {
	var deltas []PositionDelta
	for _, key := range s.KeysForSession(sess) {
		if key.Period != domain.PeriodDaily {
			continue
		}
		snap, err := s.snapshots.Get(ctx, key)
		if err != nil {
			continue
		}
		for _, e := range snap.Entries {
			if e.UserID == sess.UserID {
				deltas = append(deltas, PositionDelta{Key: key, Rank: e.Rank, PreviousRank: e.PreviousRank})
				break
			}
		}
	}
	return deltas
}

// WindowStart returns the UTC start of the period window containing now.
// Weekly windows start on Monday; the all-time window start is the zero
// time.
func WindowStart(p domain.Period, now time.Time) time.Time {
	now = now.UTC()
	switch p {
	case domain.PeriodDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case domain.PeriodWeekly:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		weekday := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -weekday)
	case domain.PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// PeriodKey is the idempotency key for rewards and archives of one
// closed window.
func PeriodKey(key domain.LeaderboardKey, windowStart time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", key.Scope, key.Period, key.Country, key.ArtistID, windowStart.UTC().Format(time.RFC3339))
}
