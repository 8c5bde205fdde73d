package app

import (
	"context"
	"time"

	"quickfire-quiz-service/internal/domain"
)

// SessionRepository persists terminal sessions for aggregation and replay.
type SessionRepository interface {
	Save(ctx context.Context, s domain.QuizSession) error
	Get(ctx context.Context, id string) (domain.QuizSession, error)
	// CompletedSince returns terminal sessions completed at or after the
	// given time. A zero time returns everything (all-time windows).
	CompletedSince(ctx context.Context, since time.Time) ([]domain.QuizSession, error)
	SetReview(ctx context.Context, id string, review domain.ReviewStatus) error
}

// AnswerRepository is append-only; answers are never updated.
type AnswerRepository interface {
	Append(ctx context.Context, a domain.QuizAnswer) error
	BySession(ctx context.Context, sessionID string) ([]domain.QuizAnswer, error)
}

// InventoryRepository owns the per-(user, powerup) quantities.
// DecrementIfAvailable must be atomic: two concurrent calls against a
// quantity of one yield exactly one success.
type InventoryRepository interface {
	Credit(ctx context.Context, userID, powerupID string, qty int) error
	DecrementIfAvailable(ctx context.Context, userID, powerupID string) error
	Quantity(ctx context.Context, userID, powerupID string) (int, error)
}

// ActivationRepository records powerup usage for cap and cooldown checks.
type ActivationRepository interface {
	Append(ctx context.Context, a domain.PowerupActivation) error
	// SessionUsage returns how many times the powerup was used in the
	// session and when it was last activated there.
	SessionUsage(ctx context.Context, sessionID, powerupID string) (int, time.Time, error)
}

// PurchaseRepository records the purchase history.
type PurchaseRepository interface {
	Append(ctx context.Context, p domain.PowerupPurchase) error
}

// StatsRepository owns the cumulative per-user aggregate. Apply runs
// mutate against the current row atomically; returning an error from
// mutate aborts without writing.
type StatsRepository interface {
	Get(ctx context.Context, userID string) (domain.UserQuizStats, error)
	Apply(ctx context.Context, userID string, mutate func(*domain.UserQuizStats) error) (domain.UserQuizStats, error)
}

// SnapshotRepository stores the live leaderboard snapshots.
type SnapshotRepository interface {
	Get(ctx context.Context, key domain.LeaderboardKey) (domain.LeaderboardSnapshot, error)
	Replace(ctx context.Context, snap domain.LeaderboardSnapshot) error
	List(ctx context.Context) ([]domain.LeaderboardSnapshot, error)
}

// SnapshotCache is an optional read-side cache in front of the
// snapshot repository (Redis in production).
type SnapshotCache interface {
	Get(ctx context.Context, key domain.LeaderboardKey) (domain.LeaderboardSnapshot, bool)
	Put(ctx context.Context, snap domain.LeaderboardSnapshot)
}

// ArchiveRepository stores immutable period history. Save reports false
// when the window was already archived.
type ArchiveRepository interface {
	Save(ctx context.Context, rec domain.ArchivedLeaderboard) (bool, error)
	List(ctx context.Context, key domain.LeaderboardKey) ([]domain.ArchivedLeaderboard, error)
}

// RewardLedger issues rewards exactly once per (user, period key, kind).
// GrantOnce reports false when the grant already exists.
type RewardLedger interface {
	GrantOnce(ctx context.Context, g domain.RewardGrant) (bool, error)
	GrantsFor(ctx context.Context, userID string, since time.Time) ([]domain.RewardGrant, error)
}

// QuestionProvider is the external content provider returning a pool of
// question records for an artist.
type QuestionProvider interface {
	QuestionPool(ctx context.Context, artistID string, n int) ([]domain.Question, error)
}

// ListeningProvider is the external read-only listening-hours lookup.
type ListeningProvider interface {
	Hours(ctx context.Context, userID, artistID string) (float64, error)
}

// LiveStore holds in-flight sessions. ByUser supports the one-active-
// session-per-user claim; all mutations of a LiveSession go through its
// own lock.
type LiveStore interface {
	Put(s *LiveSession)
	Get(sessionID string) (*LiveSession, bool)
	ByUser(userID string) (*LiveSession, bool)
	Remove(sessionID string)
	All() []*LiveSession
}
