package domain

import "time"

// Difficulty grades a question and drives base points and penalties.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// SessionStatus is the lifecycle state of a quickfire session.
type SessionStatus string

const (
	StatusCountdown SessionStatus = "countdown"
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether the session accepts no further mutation.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// ReviewStatus is the anti-cheat disposition of a session.
type ReviewStatus string

const (
	ReviewNone      ReviewStatus = "none"
	ReviewPending   ReviewStatus = "pending_review"
	ReviewCleared   ReviewStatus = "cleared"
	ReviewConfirmed ReviewStatus = "confirmed"
)

// Rankable reports whether the session may appear in ranked standings.
func (r ReviewStatus) Rankable() bool {
	return r == ReviewNone || r == ReviewCleared
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a single entry from the external question-pool provider.
type Question struct {
	ID         string     `json:"id"`
	ArtistID   string     `json:"artistId"`
	Prompt     string     `json:"prompt"`
	Options    []Option   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
}

// TrueFalse reports whether the question has exactly two options.
// Remove-options powerups are rejected on such questions.
func (q Question) TrueFalse() bool {
	return len(q.Options) == 2
}

// CorrectOption returns the ID of the correct option, or "" if none is marked.
func (q Question) CorrectOption() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}

// QuizSession is one timed quiz attempt bound to a user and artist.
// It is owned by the session manager and immutable once terminal.
type QuizSession struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	ArtistID       string        `json:"artistId"`
	Country        string        `json:"country"`
	BaseDuration   time.Duration `json:"baseDuration"`
	BonusTime      time.Duration `json:"bonusTime"` // accrued add-time minus time penalties
	ListeningHours float64       `json:"listeningHours"`

	BasePoints       int `json:"basePoints"`
	StreakPoints     int `json:"streakPoints"`
	ListeningPoints  int `json:"listeningPoints"`
	MultiplierPoints int `json:"multiplierPoints"`
	PenaltyPoints    int `json:"penaltyPoints"`
	FinalScore       int `json:"finalScore"`

	CurrentStreak int `json:"currentStreak"`
	LongestStreak int `json:"longestStreak"`
	Answered      int `json:"answered"`
	Correct       int `json:"correct"`
	Wrong         int `json:"wrong"`

	Status      SessionStatus `json:"status"`
	Review      ReviewStatus  `json:"review"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
}

// EarnedPoints is the sum of positive accumulators before the penalty floor.
func (s QuizSession) EarnedPoints() int {
	return s.BasePoints + s.ListeningPoints + s.StreakPoints + s.MultiplierPoints
}

// AnswerBreakdown is the per-answer point decomposition from the scoring engine.
type AnswerBreakdown struct {
	Base            int `json:"base"`
	ListeningBonus  int `json:"listeningBonus"`
	StreakBonus     int `json:"streakBonus"`
	MultiplierBonus int `json:"multiplierBonus"`
	Penalty         int `json:"penalty"`
	Net             int `json:"net"`
}

// QuizAnswer is the immutable append-only record of one question attempt.
type QuizAnswer struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"sessionId"`
	QuestionID     string          `json:"questionId"`
	SelectedOption string          `json:"selectedOption"`
	Correct        bool            `json:"correct"`
	Difficulty     Difficulty      `json:"difficulty"`
	Breakdown      AnswerBreakdown `json:"breakdown"`
	TimeTaken      time.Duration   `json:"timeTaken"`
	TimePenalty    time.Duration   `json:"timePenalty"`
	StreakAtAnswer int             `json:"streakAtAnswer"`
	Multiplier     float64         `json:"multiplier"`
	TimingAnomaly  bool            `json:"timingAnomaly"` // client clock outside the latency grace window
	SubmittedAt    time.Time       `json:"submittedAt"`
}

// UserQuizStats is the cumulative per-user aggregate, updated
// transactionally on session completion.
type UserQuizStats struct {
	UserID          string    `json:"userId"`
	Country         string    `json:"country"`
	LifetimePoints  int       `json:"lifetimePoints"`
	SpentPoints     int       `json:"spentPoints"`
	AvailablePoints int       `json:"availablePoints"`
	TotalAnswered   int       `json:"totalAnswered"`
	TotalCorrect    int       `json:"totalCorrect"`
	TotalWrong      int       `json:"totalWrong"`
	BestScore       int       `json:"bestScore"`
	LongestStreak   int       `json:"longestStreak"`
	DailyStreak     int       `json:"dailyStreak"`
	QuizzesPlayed   int       `json:"quizzesPlayed"`
	FirstQuizAt     time.Time `json:"firstQuizAt"`
	LastPlayedAt    time.Time `json:"lastPlayedAt"`
}

// Scope is the population a ranking is computed over.
type Scope string

const (
	ScopeGlobal        Scope = "global"
	ScopeCountry       Scope = "country"
	ScopeArtistGlobal  Scope = "artist_global"
	ScopeArtistCountry Scope = "artist_country"
)

// Period is the time window a ranking covers.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// Tier is a rank-derived classification used for rewards.
type Tier string

const (
	TierLegend   Tier = "legend"
	TierDiamond  Tier = "diamond"
	TierPlatinum Tier = "platinum"
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
	TierBronze   Tier = "bronze"
)

// LeaderboardKey identifies one live leaderboard: a scope with its
// country/artist qualifiers and a period.
type LeaderboardKey struct {
	Scope    Scope  `json:"scope"`
	Period   Period `json:"period"`
	Country  string `json:"country,omitempty"`
	ArtistID string `json:"artistId,omitempty"`
}

// LeaderboardEntry is one ranked row inside a snapshot.
type LeaderboardEntry struct {
	UserID        string    `json:"userId"`
	Rank          int       `json:"rank"`
	PreviousRank  int       `json:"previousRank"` // 0 when unranked in the prior build
	TotalScore    int       `json:"totalScore"`
	QuizzesPlayed int       `json:"quizzesPlayed"`
	BestQuiz      int       `json:"bestQuiz"`
	TotalCorrect  int       `json:"totalCorrect"`
	Accuracy      float64   `json:"accuracy"`
	FirstQuizAt   time.Time `json:"firstQuizAt"`
	Tier          Tier      `json:"tier"`
}

// LeaderboardSnapshot is the materialized standings for one
// (scope, period, window-start).
type LeaderboardSnapshot struct {
	ID          string             `json:"id"`
	Key         LeaderboardKey     `json:"key"`
	WindowStart time.Time          `json:"windowStart"`
	Entries     []LeaderboardEntry `json:"entries"`
	BuiltAt     time.Time          `json:"builtAt"`
}

// ArchivedLeaderboard is the immutable history record written at a
// period boundary before the live snapshot is cleared.
type ArchivedLeaderboard struct {
	ID          string             `json:"id"`
	Key         LeaderboardKey     `json:"key"`
	WindowStart time.Time          `json:"windowStart"`
	WindowEnd   time.Time          `json:"windowEnd"`
	TopEntries  []LeaderboardEntry `json:"topEntries"`
	WinnerID    string             `json:"winnerId"`
	ArchivedAt  time.Time          `json:"archivedAt"`
}

// RewardGrant records one issued reward. Grants are idempotent on
// (user, period key, kind).
type RewardGrant struct {
	UserID    string    `json:"userId"`
	PeriodKey string    `json:"periodKey"` // scope|period|window-start
	Tier      Tier      `json:"tier"`
	Kind      string    `json:"kind"` // "tier_bonus" or "top_rank"
	Points    int       `json:"points"`
	Badge     string    `json:"badge"`
	GrantedAt time.Time `json:"grantedAt"`
}
