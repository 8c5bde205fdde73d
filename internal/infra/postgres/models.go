package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quickfire-quiz-service/internal/domain"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions"`

	ID               string    `bun:"id,pk"`
	UserID           string    `bun:"user_id"`
	ArtistID         string    `bun:"artist_id"`
	Country          string    `bun:"country"`
	BaseDurationMS   int64     `bun:"base_duration_ms"`
	BonusTimeMS      int64     `bun:"bonus_time_ms"`
	ListeningHours   float64   `bun:"listening_hours"`
	BasePoints       int       `bun:"base_points"`
	StreakPoints     int       `bun:"streak_points"`
	ListeningPoints  int       `bun:"listening_points"`
	MultiplierPoints int       `bun:"multiplier_points"`
	PenaltyPoints    int       `bun:"penalty_points"`
	FinalScore       int       `bun:"final_score"`
	CurrentStreak    int       `bun:"current_streak"`
	LongestStreak    int       `bun:"longest_streak"`
	Answered         int       `bun:"answered"`
	Correct          int       `bun:"correct"`
	Wrong            int       `bun:"wrong"`
	Status           string    `bun:"status"`
	Review           string    `bun:"review"`
	StartedAt        time.Time `bun:"started_at"`
	CompletedAt      time.Time `bun:"completed_at,nullzero"`
}

func sessionToRow(s domain.QuizSession) *sessionRow {
	return &sessionRow{
		ID:               s.ID,
		UserID:           s.UserID,
		ArtistID:         s.ArtistID,
		Country:          s.Country,
		BaseDurationMS:   s.BaseDuration.Milliseconds(),
		BonusTimeMS:      s.BonusTime.Milliseconds(),
		ListeningHours:   s.ListeningHours,
		BasePoints:       s.BasePoints,
		StreakPoints:     s.StreakPoints,
		ListeningPoints:  s.ListeningPoints,
		MultiplierPoints: s.MultiplierPoints,
		PenaltyPoints:    s.PenaltyPoints,
		FinalScore:       s.FinalScore,
		CurrentStreak:    s.CurrentStreak,
		LongestStreak:    s.LongestStreak,
		Answered:         s.Answered,
		Correct:          s.Correct,
		Wrong:            s.Wrong,
		Status:           string(s.Status),
		Review:           string(s.Review),
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
	}
}

func (r *sessionRow) toDomain() domain.QuizSession {
	return domain.QuizSession{
		ID:               r.ID,
		UserID:           r.UserID,
		ArtistID:         r.ArtistID,
		Country:          r.Country,
		BaseDuration:     time.Duration(r.BaseDurationMS) * time.Millisecond,
		BonusTime:        time.Duration(r.BonusTimeMS) * time.Millisecond,
		ListeningHours:   r.ListeningHours,
		BasePoints:       r.BasePoints,
		StreakPoints:     r.StreakPoints,
		ListeningPoints:  r.ListeningPoints,
		MultiplierPoints: r.MultiplierPoints,
		PenaltyPoints:    r.PenaltyPoints,
		FinalScore:       r.FinalScore,
		CurrentStreak:    r.CurrentStreak,
		LongestStreak:    r.LongestStreak,
		Answered:         r.Answered,
		Correct:          r.Correct,
		Wrong:            r.Wrong,
		Status:           domain.SessionStatus(r.Status),
		Review:           domain.ReviewStatus(r.Review),
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers"`

	ID             string                 `bun:"id,pk"`
	SessionID      string                 `bun:"session_id"`
	QuestionID     string                 `bun:"question_id"`
	SelectedOption string                 `bun:"selected_option"`
	Correct        bool                   `bun:"correct"`
	Difficulty     string                 `bun:"difficulty"`
	Breakdown      domain.AnswerBreakdown `bun:"breakdown,type:jsonb"`
	TimeTakenMS    int64                  `bun:"time_taken_ms"`
	TimePenaltyMS  int64                  `bun:"time_penalty_ms"`
	StreakAtAnswer int                    `bun:"streak_at_answer"`
	Multiplier     float64                `bun:"multiplier"`
	TimingAnomaly  bool                   `bun:"timing_anomaly"`
	SubmittedAt    time.Time              `bun:"submitted_at"`
}

func answerToRow(a domain.QuizAnswer) *answerRow {
	return &answerRow{
		ID:             a.ID,
		SessionID:      a.SessionID,
		QuestionID:     a.QuestionID,
		SelectedOption: a.SelectedOption,
		Correct:        a.Correct,
		Difficulty:     string(a.Difficulty),
		Breakdown:      a.Breakdown,
		TimeTakenMS:    a.TimeTaken.Milliseconds(),
		TimePenaltyMS:  a.TimePenalty.Milliseconds(),
		StreakAtAnswer: a.StreakAtAnswer,
		Multiplier:     a.Multiplier,
		TimingAnomaly:  a.TimingAnomaly,
		SubmittedAt:    a.SubmittedAt,
	}
}

func (r *answerRow) toDomain() domain.QuizAnswer {
	return domain.QuizAnswer{
		ID:             r.ID,
		SessionID:      r.SessionID,
		QuestionID:     r.QuestionID,
		SelectedOption: r.SelectedOption,
		Correct:        r.Correct,
		Difficulty:     domain.Difficulty(r.Difficulty),
		Breakdown:      r.Breakdown,
		TimeTaken:      time.Duration(r.TimeTakenMS) * time.Millisecond,
		TimePenalty:    time.Duration(r.TimePenaltyMS) * time.Millisecond,
		StreakAtAnswer: r.StreakAtAnswer,
		Multiplier:     r.Multiplier,
		TimingAnomaly:  r.TimingAnomaly,
		SubmittedAt:    r.SubmittedAt,
	}
}

type inventoryRow struct {
	bun.BaseModel `bun:"table:powerup_inventory"`

	UserID    string    `bun:"user_id,pk"`
	PowerupID string    `bun:"powerup_id,pk"`
	Quantity  int       `bun:"quantity"`
	UpdatedAt time.Time `bun:"updated_at"`
}

type activationRow struct {
	bun.BaseModel `bun:"table:powerup_activations"`

	ID              string    `bun:"id,pk"`
	SessionID       string    `bun:"session_id"`
	PowerupID       string    `bun:"powerup_id"`
	RemainingTimeMS int64     `bun:"remaining_time_ms"`
	ActivatedAt     time.Time `bun:"activated_at"`
}

type purchaseRow struct {
	bun.BaseModel `bun:"table:powerup_purchases"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id"`
	PowerupID   string    `bun:"powerup_id"`
	Quantity    int       `bun:"quantity"`
	UnitCost    int       `bun:"unit_cost"`
	TotalCost   int       `bun:"total_cost"`
	PurchasedAt time.Time `bun:"purchased_at"`
}

type statsRow struct {
	bun.BaseModel `bun:"table:user_quiz_stats"`

	UserID          string    `bun:"user_id,pk"`
	Country         string    `bun:"country"`
	LifetimePoints  int       `bun:"lifetime_points"`
	SpentPoints     int       `bun:"spent_points"`
	AvailablePoints int       `bun:"available_points"`
	TotalAnswered   int       `bun:"total_answered"`
	TotalCorrect    int       `bun:"total_correct"`
	TotalWrong      int       `bun:"total_wrong"`
	BestScore       int       `bun:"best_score"`
	LongestStreak   int       `bun:"longest_streak"`
	DailyStreak     int       `bun:"daily_streak"`
	QuizzesPlayed   int       `bun:"quizzes_played"`
	FirstQuizAt     time.Time `bun:"first_quiz_at,nullzero"`
	LastPlayedAt    time.Time `bun:"last_played_at,nullzero"`
}

func statsToRow(s domain.UserQuizStats) *statsRow {
	return &statsRow{
		UserID:          s.UserID,
		Country:         s.Country,
		LifetimePoints:  s.LifetimePoints,
		SpentPoints:     s.SpentPoints,
		AvailablePoints: s.AvailablePoints,
		TotalAnswered:   s.TotalAnswered,
		TotalCorrect:    s.TotalCorrect,
		TotalWrong:      s.TotalWrong,
		BestScore:       s.BestScore,
		LongestStreak:   s.LongestStreak,
		DailyStreak:     s.DailyStreak,
		QuizzesPlayed:   s.QuizzesPlayed,
		FirstQuizAt:     s.FirstQuizAt,
		LastPlayedAt:    s.LastPlayedAt,
	}
}

func (r *statsRow) toDomain() domain.UserQuizStats {
	return domain.UserQuizStats{
		UserID:          r.UserID,
		Country:         r.Country,
		LifetimePoints:  r.LifetimePoints,
		SpentPoints:     r.SpentPoints,
		AvailablePoints: r.AvailablePoints,
		TotalAnswered:   r.TotalAnswered,
		TotalCorrect:    r.TotalCorrect,
		TotalWrong:      r.TotalWrong,
		BestScore:       r.BestScore,
		LongestStreak:   r.LongestStreak,
		DailyStreak:     r.DailyStreak,
		QuizzesPlayed:   r.QuizzesPlayed,
		FirstQuizAt:     r.FirstQuizAt,
		LastPlayedAt:    r.LastPlayedAt,
	}
}

type snapshotRow struct {
	bun.BaseModel `bun:"table:leaderboard_snapshots"`

	ID          string                    `bun:"id"`
	Scope       string                    `bun:"scope,pk"`
	Period      string                    `bun:"period,pk"`
	Country     string                    `bun:"country,pk"`
	ArtistID    string                    `bun:"artist_id,pk"`
	WindowStart time.Time                 `bun:"window_start"`
	Entries     []domain.LeaderboardEntry `bun:"entries,type:jsonb"`
	BuiltAt     time.Time                 `bun:"built_at"`
}

func snapshotToRow(s domain.LeaderboardSnapshot) *snapshotRow {
	return &snapshotRow{
		ID:          s.ID,
		Scope:       string(s.Key.Scope),
		Period:      string(s.Key.Period),
		Country:     s.Key.Country,
		ArtistID:    s.Key.ArtistID,
		WindowStart: s.WindowStart,
		Entries:     s.Entries,
		BuiltAt:     s.BuiltAt,
	}
}

func (r *snapshotRow) toDomain() domain.LeaderboardSnapshot {
	return domain.LeaderboardSnapshot{
		ID: r.ID,
		Key: domain.LeaderboardKey{
			Scope:    domain.Scope(r.Scope),
			Period:   domain.Period(r.Period),
			Country:  r.Country,
			ArtistID: r.ArtistID,
		},
		WindowStart: r.WindowStart,
		Entries:     r.Entries,
		BuiltAt:     r.BuiltAt,
	}
}

type archiveRow struct {
	bun.BaseModel `bun:"table:leaderboard_archives"`

	ID          string                    `bun:"id"`
	Scope       string                    `bun:"scope,pk"`
	Period      string                    `bun:"period,pk"`
	Country     string                    `bun:"country,pk"`
	ArtistID    string                    `bun:"artist_id,pk"`
	WindowStart time.Time                 `bun:"window_start,pk"`
	WindowEnd   time.Time                 `bun:"window_end"`
	TopEntries  []domain.LeaderboardEntry `bun:"top_entries,type:jsonb"`
	WinnerID    string                    `bun:"winner_id"`
	ArchivedAt  time.Time                 `bun:"archived_at"`
}

func archiveToRow(a domain.ArchivedLeaderboard) *archiveRow {
	return &archiveRow{
		ID:          a.ID,
		Scope:       string(a.Key.Scope),
		Period:      string(a.Key.Period),
		Country:     a.Key.Country,
		ArtistID:    a.Key.ArtistID,
		WindowStart: a.WindowStart,
		WindowEnd:   a.WindowEnd,
		TopEntries:  a.TopEntries,
		WinnerID:    a.WinnerID,
		ArchivedAt:  a.ArchivedAt,
	}
}

func (r *archiveRow) toDomain() domain.ArchivedLeaderboard {
	return domain.ArchivedLeaderboard{
		ID: r.ID,
		Key: domain.LeaderboardKey{
			Scope:    domain.Scope(r.Scope),
			Period:   domain.Period(r.Period),
			Country:  r.Country,
			ArtistID: r.ArtistID,
		},
		WindowStart: r.WindowStart,
		WindowEnd:   r.WindowEnd,
		TopEntries:  r.TopEntries,
		WinnerID:    r.WinnerID,
		ArchivedAt:  r.ArchivedAt,
	}
}

type grantRow struct {
	bun.BaseModel `bun:"table:reward_grants"`

	UserID    string    `bun:"user_id,pk"`
	PeriodKey string    `bun:"period_key,pk"`
	Kind      string    `bun:"kind,pk"`
	Tier      string    `bun:"tier"`
	Points    int       `bun:"points"`
	Badge     string    `bun:"badge"`
	GrantedAt time.Time `bun:"granted_at"`
}

func grantToRow(g domain.RewardGrant) *grantRow {
	return &grantRow{
		UserID:    g.UserID,
		PeriodKey: g.PeriodKey,
		Kind:      g.Kind,
		Tier:      string(g.Tier),
		Points:    g.Points,
		Badge:     g.Badge,
		GrantedAt: g.GrantedAt,
	}
}

func (r *grantRow) toDomain() domain.RewardGrant {
	return domain.RewardGrant{
		UserID:    r.UserID,
		PeriodKey: r.PeriodKey,
		Kind:      r.Kind,
		Tier:      domain.Tier(r.Tier),
		Points:    r.Points,
		Badge:     r.Badge,
		GrantedAt: r.GrantedAt,
	}
}
