package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
	"quickfire-quiz-service/internal/scoring"
)

// SessionTiming is the parsed timing policy of the session manager.
type SessionTiming struct {
	BaseDuration     time.Duration
	MaxDuration      time.Duration
	Countdown        time.Duration
	LatencyGrace     time.Duration
	MinAnswerGap     time.Duration
	Staleness        time.Duration
	WrongTimePenalty time.Duration
	BoundaryGrace    time.Duration
	QuestionsPerRun  int
}

// TimingFromConfig parses the session section's duration strings.
func TimingFromConfig(cfg config.Config) SessionTiming {
	s := cfg.Session
	return SessionTiming{
		BaseDuration:     config.TTLDuration(s.BaseDuration, 90*time.Second),
		MaxDuration:      config.TTLDuration(s.MaxDuration, 150*time.Second),
		Countdown:        config.TTLDuration(s.Countdown, 3*time.Second),
		LatencyGrace:     config.TTLDuration(s.LatencyGrace, 3*time.Second),
		MinAnswerGap:     config.TTLDuration(s.MinAnswerGap, 350*time.Millisecond),
		Staleness:        config.TTLDuration(s.StalenessWindow, 2*time.Minute),
		WrongTimePenalty: config.TTLDuration(s.WrongTimePenalty, 2*time.Second),
		BoundaryGrace:    config.TTLDuration(s.BoundaryGrace, 30*time.Second),
		QuestionsPerRun:  cfg.Questions.PerSession,
	}
}

// SessionEvent is one message on a session's live stream.
type SessionEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// LiveSession is the in-memory state of one in-flight quiz attempt.
// All fields are guarded by mu; the service serializes answer and
// powerup handling per session through it.
type LiveSession struct {
	mu sync.Mutex

	s     domain.QuizSession
	queue []domain.Question

	clockStart  time.Time // end of the countdown pre-roll
	freezeStart time.Time
	frozenUntil time.Time
	frozenTotal time.Duration

	lastAnswerAt   time.Time
	lastQuestionAt time.Time
	lastActivity   time.Time

	allMultiplier  float64 // 0 means none
	nextMultiplier float64
	shields        int

	subscribers map[chan SessionEvent]struct{}
}

// ID returns the session's identity.
func (ls *LiveSession) ID() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.s.ID
}

// UserID returns the owning user.
func (ls *LiveSession) UserID() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.s.UserID
}

// advanceLocked moves the state machine along the server clock:
// countdown ends when the pre-roll elapses, freezes auto-resume.
func (ls *LiveSession) advanceLocked(now time.Time) {
	if ls.s.Status == domain.StatusCountdown && !now.Before(ls.clockStart) {
		ls.s.Status = domain.StatusActive
	}
	if ls.s.Status == domain.StatusPaused && !now.Before(ls.frozenUntil) {
		ls.frozenTotal += ls.frozenUntil.Sub(ls.freezeStart)
		ls.freezeStart = time.Time{}
		ls.s.Status = domain.StatusActive
	}
}

// remainingLocked computes server-authoritative time left.
func (ls *LiveSession) remainingLocked(now time.Time) time.Duration {
	total := ls.s.BaseDuration + ls.s.BonusTime
	if ls.s.Status == domain.StatusCountdown || now.Before(ls.clockStart) {
		return total
	}
	frozen := ls.frozenTotal
	if ls.s.Status == domain.StatusPaused {
		frozen += now.Sub(ls.freezeStart)
	}
	remaining := total - (now.Sub(ls.clockStart) - frozen)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (ls *LiveSession) publishLocked(ev SessionEvent) {
	for ch := range ls.subscribers {
		select {
		case ch <- ev:
		default:
			// drop for slow consumers; the stream is advisory
		}
	}
}

// SessionService orchestrates quiz attempts: the server-owned countdown,
// question sequencing, scoring delegation and the session lifecycle.
type SessionService struct {
	timing    SessionTiming
	live      LiveStore
	sessions  SessionRepository
	answers   AnswerRepository
	stats     StatsRepository
	questions QuestionProvider
	listening ListeningProvider
	engine    *scoring.Engine
	monitor   *AntiCheatMonitor
	powerups  *PowerupService
	boards    *LeaderboardService
	ledger    RewardLedger
	now       func() time.Time

	// one Start per user at a time; the live-store lookup and the
	// insert after the pool fetch must not interleave
	userLocks sync.Map // userID -> *sync.Mutex
}

func NewSessionService(
	timing SessionTiming,
	live LiveStore,
	sessions SessionRepository,
	answers AnswerRepository,
	stats StatsRepository,
	questions QuestionProvider,
	listening ListeningProvider,
	engine *scoring.Engine,
	monitor *AntiCheatMonitor,
	powerups *PowerupService,
	boards *LeaderboardService,
	ledger RewardLedger,
) *SessionService {
	return &SessionService{
		timing:    timing,
		live:      live,
		sessions:  sessions,
		answers:   answers,
		stats:     stats,
		questions: questions,
		listening: listening,
		engine:    engine,
		monitor:   monitor,
		powerups:  powerups,
		boards:    boards,
		ledger:    ledger,
		now:       time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// StartResult is the payload returned when a session starts or resumes.
type StartResult struct {
	Session   domain.QuizSession
	Remaining time.Duration
	Question  domain.Question
	QueueIDs  []string
	Resumed   bool
}

// Start claims the user's single active-session slot: it resumes a
// recently active session, auto-abandons a stale one, or creates a
// fresh attempt seeded from the question pool and listening history.
func (s *SessionService) Start(ctx context.Context, userID, artistID, country string) (StartResult, error) {
	lock, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	userLock := lock.(*sync.Mutex)
	userLock.Lock()
	defer userLock.Unlock()

	now := s.now()

	if existing, ok := s.live.ByUser(userID); ok {
		existing.mu.Lock()
		existing.advanceLocked(now)
		switch {
		case existing.s.Status.Terminal():
			s.live.Remove(existing.s.ID)
			existing.mu.Unlock()
		case existing.remainingLocked(now) == 0:
			if _, err := s.completeLocked(ctx, existing, domain.StatusCompleted, now); err != nil {
				existing.mu.Unlock()
				return StartResult{}, err
			}
			existing.mu.Unlock()
		case now.Sub(existing.lastActivity) > s.timing.Staleness:
			if _, err := s.completeLocked(ctx, existing, domain.StatusAbandoned, now); err != nil {
				existing.mu.Unlock()
				return StartResult{}, err
			}
			existing.mu.Unlock()
		default:
			res := StartResult{
				Session:   existing.s,
				Remaining: existing.remainingLocked(now),
				QueueIDs:  queueIDs(existing.queue),
				Resumed:   true,
			}
			if len(existing.queue) > 0 {
				res.Question = existing.queue[0]
			}
			existing.lastActivity = now
			existing.mu.Unlock()
			return res, nil
		}
	}

	hours, err := s.listening.Hours(ctx, userID, artistID)
	if err != nil {
		// listening history is an external read-only input; a miss
		// just means no listening bonus
		log.Printf("listening lookup for %s/%s failed: %v", userID, artistID, err)
		hours = 0
	}
	pool, err := s.questions.QuestionPool(ctx, artistID, s.timing.QuestionsPerRun)
	if err != nil {
		return StartResult{}, err
	}
	if len(pool) == 0 {
		return StartResult{}, domain.ErrQuestionNotFound
	}

	ls := &LiveSession{
		s: domain.QuizSession{
			ID:             uuid.NewString(),
			UserID:         userID,
			ArtistID:       artistID,
			Country:        country,
			BaseDuration:   s.timing.BaseDuration,
			ListeningHours: hours,
			Status:         domain.StatusCountdown,
			Review:         domain.ReviewNone,
			StartedAt:      now,
		},
		queue:          pool,
		clockStart:     now.Add(s.timing.Countdown),
		lastQuestionAt: now.Add(s.timing.Countdown),
		lastActivity:   now,
		subscribers:    make(map[chan SessionEvent]struct{}),
	}
	s.live.Put(ls)

	return StartResult{
		Session:   ls.s,
		Remaining: s.timing.BaseDuration,
		Question:  pool[0],
		QueueIDs:  queueIDs(pool),
	}, nil
}

// SubmitInput carries one answer submission. Client time figures are
// advisory; the server clock decides.
type SubmitInput struct {
	SessionID       string
	QuestionID      string
	OptionID        string
	ClientTime      time.Time
	ClientRemaining time.Duration
}

// AnswerResult reports the scored outcome of one submission.
type AnswerResult struct {
	Correct         bool
	CanonicalOption string
	Breakdown       domain.AnswerBreakdown
	TimePenalty     time.Duration
	ShieldConsumed  bool
	Streak          int
	Remaining       time.Duration
	NextQuestion    *domain.Question
	Completion      *CompletionResult
}

// SubmitAnswer validates, scores and records one answer. Late or
// implausibly timed submissions are still scored, only flagged for the
// anti-cheat monitor.
func (s *SessionService) SubmitAnswer(ctx context.Context, in SubmitInput) (AnswerResult, error) {
	ls, ok := s.live.Get(in.SessionID)
	if !ok {
		return AnswerResult{}, domain.ErrSessionNotFound
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	now := s.now()
	ls.advanceLocked(now)
	if ls.s.Status.Terminal() {
		return AnswerResult{}, domain.ErrSessionTerminal
	}
	if ls.s.Status == domain.StatusCountdown {
		return AnswerResult{}, domain.ErrSessionNotActive
	}
	if ls.remainingLocked(now) == 0 {
		if _, err := s.completeLocked(ctx, ls, domain.StatusCompleted, now); err != nil {
			return AnswerResult{}, err
		}
		return AnswerResult{}, domain.ErrSessionTerminal
	}
	if !ls.lastAnswerAt.IsZero() && now.Sub(ls.lastAnswerAt) < s.timing.MinAnswerGap {
		return AnswerResult{}, domain.ErrSubmissionTooSoon
	}
	if len(ls.queue) == 0 || ls.queue[0].ID != in.QuestionID {
		return AnswerResult{}, domain.ErrQuestionNotFound
	}

	question := ls.queue[0]
	var selected *domain.Option
	for i := range question.Options {
		if question.Options[i].ID == in.OptionID {
			selected = &question.Options[i]
			break
		}
	}
	if selected == nil {
		return AnswerResult{}, domain.ErrOptionNotFound
	}

	serverRemaining := ls.remainingLocked(now)
	anomaly := false
	if in.ClientRemaining > 0 {
		diff := in.ClientRemaining - serverRemaining
		if diff < 0 {
			diff = -diff
		}
		anomaly = diff > s.timing.LatencyGrace
	}
	if !anomaly && !in.ClientTime.IsZero() {
		skew := now.Sub(in.ClientTime)
		if skew < 0 {
			skew = -skew
		}
		anomaly = skew > s.timing.LatencyGrace
	}

	multiplier := ls.allMultiplier
	if ls.nextMultiplier > 0 {
		multiplier = ls.nextMultiplier
	}
	streakBefore := ls.s.CurrentStreak
	breakdown := s.engine.Score(scoring.Input{
		Difficulty:       question.Difficulty,
		Correct:          selected.Correct,
		Streak:           streakBefore,
		ListeningHours:   ls.s.ListeningHours,
		ActiveMultiplier: multiplier,
	})

	timePenalty := time.Duration(0)
	shieldConsumed := false
	if selected.Correct {
		ls.s.CurrentStreak++
		if ls.s.CurrentStreak > ls.s.LongestStreak {
			ls.s.LongestStreak = ls.s.CurrentStreak
		}
		ls.s.Correct++
		ls.s.BasePoints += breakdown.Base
		ls.s.ListeningPoints += breakdown.ListeningBonus
		ls.s.StreakPoints += breakdown.StreakBonus
		ls.s.MultiplierPoints += breakdown.MultiplierBonus
	} else {
		// a shield nullifies the penalties but never preserves the streak
		if ls.shields > 0 {
			ls.shields--
			shieldConsumed = true
			breakdown.Penalty = 0
			breakdown.Net = 0
		} else {
			timePenalty = s.engine.TimePenalty()
			ls.s.BonusTime -= timePenalty
			ls.s.PenaltyPoints += breakdown.Penalty
		}
		ls.s.CurrentStreak = 0
		ls.s.Wrong++
	}
	// a next_question boost covers exactly one scored answer
	ls.nextMultiplier = 0
	ls.s.Answered++

	timeTaken := now.Sub(ls.lastQuestionAt)
	if timeTaken < 0 {
		timeTaken = 0
	}
	answer := domain.QuizAnswer{
		ID:             uuid.NewString(),
		SessionID:      ls.s.ID,
		QuestionID:     question.ID,
		SelectedOption: in.OptionID,
		Correct:        selected.Correct,
		Difficulty:     question.Difficulty,
		Breakdown:      breakdown,
		TimeTaken:      timeTaken,
		TimePenalty:    timePenalty,
		StreakAtAnswer: streakBefore,
		Multiplier:     multiplier,
		TimingAnomaly:  anomaly,
		SubmittedAt:    now,
	}
	if err := s.answers.Append(ctx, answer); err != nil {
		return AnswerResult{}, err
	}
	answersScored.Inc()

	if s.monitor != nil && ls.s.Review == domain.ReviewNone && s.monitor.Observe(answer) {
		ls.s.Review = domain.ReviewPending
	}

	ls.queue = ls.queue[1:]
	ls.lastAnswerAt = now
	ls.lastQuestionAt = now
	ls.lastActivity = now

	res := AnswerResult{
		Correct:         selected.Correct,
		CanonicalOption: question.CorrectOption(),
		Breakdown:       breakdown,
		TimePenalty:     timePenalty,
		ShieldConsumed:  shieldConsumed,
		Streak:          ls.s.CurrentStreak,
		Remaining:       ls.remainingLocked(now),
	}
	ls.publishLocked(SessionEvent{Type: "answer", Payload: res.Breakdown})

	if len(ls.queue) == 0 || res.Remaining == 0 {
		completion, err := s.completeLocked(ctx, ls, domain.StatusCompleted, now)
		if err != nil {
			return AnswerResult{}, err
		}
		res.Completion = &completion
		return res, nil
	}
	res.NextQuestion = &ls.queue[0]
	return res, nil
}

// ActivateInput carries one powerup activation request.
type ActivateInput struct {
	SessionID       string
	PowerupID       string
	ClientRemaining time.Duration
	QuestionID      string // optional, for question-scoped effects
}

// ActivateResult describes the applied effect for the caller to render.
type ActivateResult struct {
	Activation     domain.PowerupActivation
	Effect         domain.Effect
	RemovedOptions []string
	NextQuestion   *domain.Question
	Remaining      time.Duration
	Completion     *CompletionResult
}

// ActivatePowerup spends one inventory unit and applies its effect to
// the session, all while holding the session lock so activations within
// a session are serialized.
func (s *SessionService) ActivatePowerup(ctx context.Context, in ActivateInput) (ActivateResult, error) {
	ls, ok := s.live.Get(in.SessionID)
	if !ok {
		return ActivateResult{}, domain.ErrSessionNotFound
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	now := s.now()
	ls.advanceLocked(now)
	if ls.s.Status.Terminal() {
		return ActivateResult{}, domain.ErrSessionTerminal
	}
	if ls.s.Status == domain.StatusCountdown {
		return ActivateResult{}, domain.ErrSessionNotActive
	}
	if ls.remainingLocked(now) == 0 {
		if _, err := s.completeLocked(ctx, ls, domain.StatusCompleted, now); err != nil {
			return ActivateResult{}, err
		}
		return ActivateResult{}, domain.ErrSessionTerminal
	}

	def, err := s.powerups.Definition(in.PowerupID)
	if err != nil {
		return ActivateResult{}, err
	}

	// question-scoped effects are validated before any spend so a
	// rejection leaves inventory untouched
	switch effect := def.Effect.(type) {
	case domain.RemoveOptions:
		if len(ls.queue) == 0 {
			return ActivateResult{}, domain.ErrQuestionNotFound
		}
		if ls.queue[0].TrueFalse() {
			return ActivateResult{}, domain.ErrInvalidRemoveOptions
		}
		_ = effect
	case domain.SkipQuestion:
		if len(ls.queue) == 0 {
			return ActivateResult{}, domain.ErrQuestionNotFound
		}
	}
	if in.QuestionID != "" && len(ls.queue) > 0 && ls.queue[0].ID != in.QuestionID {
		return ActivateResult{}, domain.ErrQuestionNotFound
	}

	serverRemaining := ls.remainingLocked(now)
	act, err := s.powerups.Activate(ctx, ls.s.ID, ls.s.UserID, def, serverRemaining)
	if err != nil {
		return ActivateResult{}, err
	}

	res := ActivateResult{Activation: act, Effect: def.Effect}
	switch effect := def.Effect.(type) {
	case domain.FreezeTime:
		// a freeze may still be running; bank its elapsed span before re-arming
		if ls.s.Status == domain.StatusPaused && now.After(ls.freezeStart) {
			ls.frozenTotal += now.Sub(ls.freezeStart)
		}
		ls.freezeStart = now
		ls.frozenUntil = now.Add(effect.Duration)
		ls.s.Status = domain.StatusPaused
	case domain.AddTime:
		maxBonus := s.timing.MaxDuration - ls.s.BaseDuration
		bonus := ls.s.BonusTime + time.Duration(effect.Seconds)*time.Second
		if bonus > maxBonus {
			bonus = maxBonus
		}
		ls.s.BonusTime = bonus
	case domain.Multiplier:
		if effect.Scope == domain.MultiplierNextQuestion {
			ls.nextMultiplier = effect.Value
		} else {
			ls.allMultiplier = effect.Value
		}
	case domain.BlockPenalty:
		ls.shields += effect.Count
	case domain.RemoveOptions:
		question := ls.queue[0]
		for _, opt := range question.Options {
			if !opt.Correct && len(res.RemovedOptions) < effect.Count {
				res.RemovedOptions = append(res.RemovedOptions, opt.ID)
			}
		}
	case domain.SkipQuestion:
		ls.queue = ls.queue[1:]
		ls.lastQuestionAt = now
		if len(ls.queue) == 0 {
			completion, err := s.completeLocked(ctx, ls, domain.StatusCompleted, now)
			if err != nil {
				return ActivateResult{}, err
			}
			res.Completion = &completion
		} else {
			res.NextQuestion = &ls.queue[0]
		}
	}

	ls.lastActivity = now
	res.Remaining = ls.remainingLocked(now)
	ls.publishLocked(SessionEvent{Type: "powerup", Payload: map[string]any{
		"powerupId": def.ID,
		"effect":    def.Effect.Kind(),
	}})
	return res, nil
}

// CompletionResult is the final accounting of one session.
type CompletionResult struct {
	Session    domain.QuizSession
	FinalScore int
	Stats      domain.UserQuizStats
	Positions  []PositionDelta
	NewBadges  []domain.RewardGrant
}

// PositionDelta reports where the user now stands on one leaderboard.
type PositionDelta struct {
	Key          domain.LeaderboardKey `json:"key"`
	Rank         int                   `json:"rank"`
	PreviousRank int                   `json:"previousRank"`
}

// Complete ends a session at the client's request.
func (s *SessionService) Complete(ctx context.Context, sessionID, reason string) (CompletionResult, error) {
	ls, ok := s.live.Get(sessionID)
	if !ok {
		return CompletionResult{}, domain.ErrSessionNotFound
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	now := s.now()
	ls.advanceLocked(now)
	if ls.s.Status.Terminal() {
		return CompletionResult{}, domain.ErrSessionTerminal
	}
	status := domain.StatusCompleted
	if reason == "abandoned" {
		status = domain.StatusAbandoned
	}
	return s.completeLocked(ctx, ls, status, now)
}

// completeLocked drives the terminal transition: it stamps the final
// score, persists the session, updates the user's cumulative stats in
// one Apply, and hands the session to the aggregator. The caller holds
// the session lock, which is the mutual exclusion between the explicit
// completion call and the staleness path.
func (s *SessionService) completeLocked(ctx context.Context, ls *LiveSession, status domain.SessionStatus, at time.Time) (CompletionResult, error) {
	final := ls.s.EarnedPoints() - ls.s.PenaltyPoints
	if final < 0 {
		final = 0
	}
	ls.s.FinalScore = final
	ls.s.Status = status
	ls.s.CompletedAt = at

	if err := s.sessions.Save(ctx, ls.s); err != nil {
		return CompletionResult{}, err
	}

	sess := ls.s
	stats, err := s.stats.Apply(ctx, sess.UserID, func(st *domain.UserQuizStats) error {
		st.UserID = sess.UserID
		if sess.Country != "" {
			st.Country = sess.Country
		}
		st.LifetimePoints += final
		st.AvailablePoints += final
		st.TotalAnswered += sess.Answered
		st.TotalCorrect += sess.Correct
		st.TotalWrong += sess.Wrong
		if final > st.BestScore {
			st.BestScore = final
		}
		if sess.LongestStreak > st.LongestStreak {
			st.LongestStreak = sess.LongestStreak
		}
		st.QuizzesPlayed++
		if st.FirstQuizAt.IsZero() {
			st.FirstQuizAt = at
		}
		st.DailyStreak = nextDailyStreak(st.DailyStreak, st.LastPlayedAt, at)
		st.LastPlayedAt = at
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	s.live.Remove(sess.ID)
	if s.monitor != nil {
		s.monitor.Forget(sess.ID)
	}
	sessionsFinished.WithLabelValues(string(status)).Inc()
	ls.publishLocked(SessionEvent{Type: "completed", Payload: map[string]any{
		"finalScore": final,
		"status":     string(status),
	}})

	res := CompletionResult{Session: sess, FinalScore: final, Stats: stats}
	if s.boards != nil {
		s.boards.NoteCompleted(sess)
		res.Positions = s.boards.PositionsFor(ctx, sess)
	}
	if s.ledger != nil {
		if grants, err := s.ledger.GrantsFor(ctx, sess.UserID, sess.StartedAt); err == nil {
			res.NewBadges = grants
		}
	}
	return res, nil
}

// nextDailyStreak extends the streak on consecutive UTC days, keeps it
// within a day, and resets it otherwise.
func nextDailyStreak(current int, last, now time.Time) int {
	if last.IsZero() {
		return 1
	}
	lastDay := last.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	switch today.Sub(lastDay) {
	case 0:
		if current == 0 {
			return 1
		}
		return current
	case 24 * time.Hour:
		return current + 1
	default:
		return 1
	}
}

// SweepStale force-completes sessions with no activity inside the
// staleness window. Runs from a ticker in the server loop.
func (s *SessionService) SweepStale(ctx context.Context) {
	now := s.now()
	for _, ls := range s.live.All() {
		ls.mu.Lock()
		ls.advanceLocked(now)
		if !ls.s.Status.Terminal() && now.Sub(ls.lastActivity) > s.timing.Staleness {
			if _, err := s.completeLocked(ctx, ls, domain.StatusAbandoned, now); err != nil {
				log.Printf("abandon sweep for session %s: %v", ls.s.ID, err)
			}
		}
		ls.mu.Unlock()
	}
}

// HasLiveStartedBefore reports whether any in-flight session predates
// the boundary; the rollover scheduler uses it to honor the grace
// period before closing a window.
func (s *SessionService) HasLiveStartedBefore(boundary time.Time) bool {
	for _, ls := range s.live.All() {
		ls.mu.Lock()
		started := ls.s.StartedAt
		terminal := ls.s.Status.Terminal()
		ls.mu.Unlock()
		if !terminal && started.Before(boundary) {
			return true
		}
	}
	return false
}

// ForceCompleteStartedBefore completes in-flight sessions that began
// before the boundary, stamping completion just inside the closing
// window so they count toward it rather than the new one.
func (s *SessionService) ForceCompleteStartedBefore(ctx context.Context, boundary time.Time) {
	at := boundary.Add(-time.Millisecond)
	for _, ls := range s.live.All() {
		ls.mu.Lock()
		if !ls.s.Status.Terminal() && ls.s.StartedAt.Before(boundary) {
			if _, err := s.completeLocked(ctx, ls, domain.StatusCompleted, at); err != nil {
				log.Printf("boundary completion for session %s: %v", ls.s.ID, err)
			}
		}
		ls.mu.Unlock()
	}
}

// Review resolves an anti-cheat flag out of band.
func (s *SessionService) Review(ctx context.Context, sessionID string, clear bool) error {
	review := domain.ReviewConfirmed
	if clear {
		review = domain.ReviewCleared
	}
	return s.sessions.SetReview(ctx, sessionID, review)
}

// ReplayScore re-runs a completed session's immutable answer log
// through the scoring engine and returns the recomputed final score.
func (s *SessionService) ReplayScore(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	answers, err := s.answers.BySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	earned, penalties := 0, 0
	for _, a := range answers {
		b := s.engine.Score(scoring.Input{
			Difficulty:       a.Difficulty,
			Correct:          a.Correct,
			Streak:           a.StreakAtAnswer,
			ListeningHours:   sess.ListeningHours,
			ActiveMultiplier: a.Multiplier,
		})
		if a.Correct {
			earned += b.Net
		} else if a.Breakdown.Penalty > 0 { // unshielded wrong answer
			penalties += b.Penalty
		}
	}
	final := earned - penalties
	if final < 0 {
		final = 0
	}
	return final, nil
}

// Subscribe attaches a live stream to an in-flight session. The caller
// must invoke cancel to release the channel.
func (s *SessionService) Subscribe(sessionID string) (<-chan SessionEvent, func(), error) {
	ls, ok := s.live.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch := make(chan SessionEvent, 16)
	ls.mu.Lock()
	ls.subscribers[ch] = struct{}{}
	ls.mu.Unlock()

	cancel := func() {
		ls.mu.Lock()
		if _, ok := ls.subscribers[ch]; ok {
			delete(ls.subscribers, ch)
			close(ch)
		}
		ls.mu.Unlock()
	}
	return ch, cancel, nil
}

// Session returns a point-in-time copy of a live or persisted session.
func (s *SessionService) Session(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	if ls, ok := s.live.Get(sessionID); ok {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		ls.advanceLocked(s.now())
		return ls.s, nil
	}
	return s.sessions.Get(ctx, sessionID)
}

func queueIDs(queue []domain.Question) []string {
	ids := make([]string, 0, len(queue))
	for _, q := range queue {
		ids = append(ids, q.ID)
	}
	return ids
}
