package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quickfire-quiz-service/internal/app"
	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
	"quickfire-quiz-service/internal/scoring"
)

func TestCountdownBlocksAnswers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	res, err := e.service.Start(ctx, "u1", "artist-1", "DE")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Session.Status != domain.StatusCountdown {
		t.Fatalf("expected countdown, got %s", res.Session.Status)
	}

	_, err = e.service.SubmitAnswer(ctx, app.SubmitInput{
		SessionID:  res.Session.ID,
		QuestionID: "q1",
		OptionID:   "o1",
	})
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive during countdown, got %v", err)
	}
}

func TestAnswerScoringAndCompletion(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	e.listening.Set("u1", "artist-1", 60) // 1.20 multiplier tier

	res := e.startActive(t, "u1", "artist-1", "DE")

	first := e.answer(t, res.Session.ID, "q1", "o1")
	if !first.Correct || first.Breakdown.Net != 6 {
		t.Fatalf("expected 6 net for easy answer at 60h, got %+v", first.Breakdown)
	}
	if first.Breakdown.ListeningBonus != 1 {
		t.Fatalf("expected 1 point listening bonus, got %d", first.Breakdown.ListeningBonus)
	}

	e.answer(t, res.Session.ID, "q2", "o1")
	last := e.answer(t, res.Session.ID, "q3", "o1")
	if last.Completion == nil {
		t.Fatal("expected completion after the final question")
	}
	if last.Completion.FinalScore != 18 {
		t.Fatalf("expected final score 18, got %d", last.Completion.FinalScore)
	}

	stats := last.Completion.Stats
	if stats.LifetimePoints != 18 || stats.AvailablePoints != 18 {
		t.Fatalf("expected 18 lifetime/available points, got %+v", stats)
	}
	if stats.QuizzesPlayed != 1 || stats.TotalCorrect != 3 || stats.DailyStreak != 1 {
		t.Fatalf("unexpected aggregate: %+v", stats)
	}

	saved, err := e.sessions.Get(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("load saved session: %v", err)
	}
	if saved.Status != domain.StatusCompleted || saved.FinalScore != 18 {
		t.Fatalf("unexpected persisted session: %+v", saved)
	}
	if _, ok := e.live.Get(res.Session.ID); ok {
		t.Fatal("completed session must leave the live store")
	}
}

func TestStreakBonusApplies(t *testing.T) {
	e := newEnv(t)
	e.seedQuestions("artist-1", 5, domain.DifficultyMedium)

	res := e.startActive(t, "u1", "artist-1", "")
	var final app.AnswerResult
	for i, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		final = e.answer(t, res.Session.ID, q, "o1")
		// bonus kicks in once the streak before the answer reaches 3
		wantBonus := 0
		if i >= 3 {
			wantBonus = 2
		}
		if final.Breakdown.StreakBonus != wantBonus {
			t.Fatalf("answer %d: expected streak bonus %d, got %d", i+1, wantBonus, final.Breakdown.StreakBonus)
		}
	}
	if final.Completion == nil {
		t.Fatal("expected completion")
	}
	if got := final.Completion.Session.LongestStreak; got != 5 {
		t.Fatalf("expected longest streak 5, got %d", got)
	}
}

func TestWrongAnswerPenaltyAndShield(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 4, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "shield", 1); err != nil {
		t.Fatalf("credit shield: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	e.answer(t, res.Session.ID, "q1", "o1") // streak 1

	if _, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "shield",
	}); err != nil {
		t.Fatalf("activate shield: %v", err)
	}

	shielded := e.answer(t, res.Session.ID, "q2", "o2")
	if !shielded.ShieldConsumed {
		t.Fatal("expected the shield to absorb the wrong answer")
	}
	if shielded.Breakdown.Penalty != 0 || shielded.Breakdown.Net != 0 || shielded.TimePenalty != 0 {
		t.Fatalf("shielded answer must cost nothing, got %+v", shielded)
	}
	if shielded.Streak != 0 {
		t.Fatal("a shield never preserves the streak")
	}

	unshielded := e.answer(t, res.Session.ID, "q3", "o2")
	if unshielded.Breakdown.Penalty != 3 || unshielded.Breakdown.Net != -3 {
		t.Fatalf("expected easy penalty 3, got %+v", unshielded.Breakdown)
	}
	if unshielded.TimePenalty != 2*time.Second {
		t.Fatalf("expected 2s time penalty, got %s", unshielded.TimePenalty)
	}
}

func TestFinalScoreFloorsAtZero(t *testing.T) {
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	res := e.startActive(t, "u1", "artist-1", "")
	e.answer(t, res.Session.ID, "q1", "o2")
	e.answer(t, res.Session.ID, "q2", "o2")
	last := e.answer(t, res.Session.ID, "q3", "o2")
	if last.Completion == nil {
		t.Fatal("expected completion")
	}
	if last.Completion.FinalScore != 0 {
		t.Fatalf("final score must floor at zero, got %d", last.Completion.FinalScore)
	}
	if last.Completion.Session.PenaltyPoints != 9 {
		t.Fatalf("expected 9 penalty points recorded, got %d", last.Completion.Session.PenaltyPoints)
	}
}

func TestMinAnswerGapRejectsBursts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	res := e.startActive(t, "u1", "artist-1", "")
	e.answer(t, res.Session.ID, "q1", "o1")

	e.clock.Advance(100 * time.Millisecond)
	_, err := e.service.SubmitAnswer(ctx, app.SubmitInput{
		SessionID:  res.Session.ID,
		QuestionID: "q2",
		OptionID:   "o1",
	})
	if !errors.Is(err, domain.ErrSubmissionTooSoon) {
		t.Fatalf("expected ErrSubmissionTooSoon, got %v", err)
	}
}

func TestTimingAnomaliesFlagSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 5, domain.DifficultyEasy)

	res := e.startActive(t, "u1", "artist-1", "")
	for _, q := range []string{"q1", "q2", "q3"} {
		e.clock.Advance(time.Second)
		if _, err := e.service.SubmitAnswer(ctx, app.SubmitInput{
			SessionID:       res.Session.ID,
			QuestionID:      q,
			OptionID:        "o1",
			ClientRemaining: 10 * time.Hour, // far outside the latency grace
		}); err != nil {
			t.Fatalf("submit %s: %v", q, err)
		}
	}

	sess, err := e.service.Session(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Review != domain.ReviewPending {
		t.Fatalf("expected pending review after repeated anomalies, got %s", sess.Review)
	}
}

func TestFastAccurateWindowFlagsSession(t *testing.T) {
	ctx := context.Background()
	e := newEnvWith(t, func(cfg *config.Config) {
		cfg.Session.MinAnswerGap = "1ms"
	})
	e.seedQuestions("artist-1", 6, domain.DifficultyEasy)

	res := e.startActive(t, "u1", "artist-1", "")
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		e.clock.Advance(200 * time.Millisecond)
		if _, err := e.service.SubmitAnswer(ctx, app.SubmitInput{
			SessionID:  res.Session.ID,
			QuestionID: q,
			OptionID:   "o1",
		}); err != nil {
			t.Fatalf("submit %s: %v", q, err)
		}
	}

	sess, err := e.service.Session(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Review != domain.ReviewPending {
		t.Fatalf("expected pending review for a fast perfect window, got %s", sess.Review)
	}
}

func TestStartResumesActiveSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	first := e.startActive(t, "u1", "artist-1", "")
	e.answer(t, first.Session.ID, "q1", "o1")

	again, err := e.service.Start(ctx, "u1", "artist-1", "")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !again.Resumed || again.Session.ID != first.Session.ID {
		t.Fatalf("expected resume of %s, got %+v", first.Session.ID, again)
	}
	if again.Question.ID != "q2" {
		t.Fatalf("resume must surface the current question, got %s", again.Question.ID)
	}
}

func TestStaleSessionAbandonedOnRestart(t *testing.T) {
	ctx := context.Background()
	e := newEnvWith(t, func(cfg *config.Config) {
		cfg.Session.StalenessWindow = "30s"
	})
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	first := e.startActive(t, "u1", "artist-1", "")
	e.clock.Advance(40 * time.Second)

	again, err := e.service.Start(ctx, "u1", "artist-1", "")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if again.Resumed || again.Session.ID == first.Session.ID {
		t.Fatal("expected a fresh session after staleness")
	}

	old, err := e.sessions.Get(ctx, first.Session.ID)
	if err != nil {
		t.Fatalf("load abandoned session: %v", err)
	}
	if old.Status != domain.StatusAbandoned {
		t.Fatalf("expected abandoned, got %s", old.Status)
	}
}

func TestExpiredSessionCompletesOnRestart(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	first := e.startActive(t, "u1", "artist-1", "")
	e.answer(t, first.Session.ID, "q1", "o1")
	e.clock.Advance(2 * time.Minute) // clock has fully run out

	again, err := e.service.Start(ctx, "u1", "artist-1", "")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if again.Resumed {
		t.Fatal("expected a fresh session after expiry")
	}

	old, err := e.sessions.Get(ctx, first.Session.ID)
	if err != nil {
		t.Fatalf("load expired session: %v", err)
	}
	if old.Status != domain.StatusCompleted || old.FinalScore != 5 {
		t.Fatalf("expired session must complete with its earned points, got %+v", old)
	}
}

func TestFreezePausesTheClock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "freeze", 1); err != nil {
		t.Fatalf("credit freeze: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	act, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "freeze",
	})
	if err != nil {
		t.Fatalf("activate freeze: %v", err)
	}
	if act.Remaining != 90*time.Second {
		t.Fatalf("expected full clock at freeze start, got %s", act.Remaining)
	}

	// the entire 10s freeze elapses, then one second of play
	e.clock.Advance(10 * time.Second)
	answered := e.answer(t, res.Session.ID, "q1", "o1")
	if answered.Remaining != 89*time.Second {
		t.Fatalf("frozen time must not consume the clock, remaining %s", answered.Remaining)
	}
}

func TestFreezeReactivationKeepsElapsedFrozenSpan(t *testing.T) {
	ctx := context.Background()
	e := newEnvWith(t, func(cfg *config.Config) {
		for i := range cfg.Powerups.Catalog {
			if cfg.Powerups.Catalog[i].ID == "freeze" {
				cfg.Powerups.Catalog[i].Cooldown = "2s"
			}
		}
	})
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "freeze", 2); err != nil {
		t.Fatalf("credit freeze: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	if _, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "freeze",
	}); err != nil {
		t.Fatalf("first freeze: %v", err)
	}

	// re-arm 4s into the running 10s freeze
	e.clock.Advance(4 * time.Second)
	second, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "freeze",
	})
	if err != nil {
		t.Fatalf("second freeze: %v", err)
	}
	if second.Remaining != 90*time.Second {
		t.Fatalf("overlapping freezes must keep the clock whole, remaining %s", second.Remaining)
	}

	// second freeze runs out, then 1s of play via the answer helper
	e.clock.Advance(10 * time.Second)
	answered := e.answer(t, res.Session.ID, "q1", "o1")
	if answered.Remaining != 89*time.Second {
		t.Fatalf("only unfrozen time consumes the clock, remaining %s", answered.Remaining)
	}
}

func TestAddTimeCappedAtMaxDuration(t *testing.T) {
	ctx := context.Background()
	e := newEnvWith(t, func(cfg *config.Config) {
		cfg.Session.MaxDuration = "100s"
	})
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "extra-time", 1); err != nil {
		t.Fatalf("credit extra-time: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	act, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "extra-time",
	})
	if err != nil {
		t.Fatalf("activate extra-time: %v", err)
	}
	if act.Remaining != 100*time.Second {
		t.Fatalf("15s extension must cap at the 100s max, remaining %s", act.Remaining)
	}
}

func TestSkipQuestionAdvancesWithoutPoints(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "skip", 1); err != nil {
		t.Fatalf("credit skip: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	act, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "skip",
	})
	if err != nil {
		t.Fatalf("activate skip: %v", err)
	}
	if act.NextQuestion == nil || act.NextQuestion.ID != "q2" {
		t.Fatalf("expected q2 after skip, got %+v", act.NextQuestion)
	}

	sess, err := e.service.Session(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Answered != 0 || sess.EarnedPoints() != 0 {
		t.Fatalf("skip must not score, got %+v", sess)
	}
}

func TestRemoveOptionsRejectedOnTrueFalse(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.questions.Seed("artist-1", []domain.Question{
		{
			ID:       "q1",
			ArtistID: "artist-1",
			Prompt:   "True or false?",
			Options: []domain.Option{
				{ID: "o1", Text: "true", Correct: true},
				{ID: "o2", Text: "false"},
			},
			Difficulty: domain.DifficultyEasy,
		},
	})
	if err := e.inventory.Credit(ctx, "u1", "fifty-fifty", 1); err != nil {
		t.Fatalf("credit fifty-fifty: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	_, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "fifty-fifty",
	})
	if !errors.Is(err, domain.ErrInvalidRemoveOptions) {
		t.Fatalf("expected ErrInvalidRemoveOptions, got %v", err)
	}

	qty, err := e.inventory.Quantity(ctx, "u1", "fifty-fifty")
	if err != nil {
		t.Fatalf("quantity: %v", err)
	}
	if qty != 1 {
		t.Fatalf("a rejected activation must not spend inventory, got %d", qty)
	}
}

func TestRemoveOptionsReturnsWrongOptions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "fifty-fifty", 1); err != nil {
		t.Fatalf("credit fifty-fifty: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	act, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "fifty-fifty",
	})
	if err != nil {
		t.Fatalf("activate fifty-fifty: %v", err)
	}
	if len(act.RemovedOptions) != 2 {
		t.Fatalf("expected 2 removed options, got %v", act.RemovedOptions)
	}
	for _, id := range act.RemovedOptions {
		if id == "o1" {
			t.Fatal("the correct option must never be removed")
		}
	}
}

func TestMultiplierNextQuestionOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "double-up", 1); err != nil {
		t.Fatalf("credit double-up: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	if _, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "double-up",
	}); err != nil {
		t.Fatalf("activate double-up: %v", err)
	}

	doubled := e.answer(t, res.Session.ID, "q1", "o1")
	if doubled.Breakdown.Net != 10 {
		t.Fatalf("expected doubled easy answer to net 10, got %+v", doubled.Breakdown)
	}
	plain := e.answer(t, res.Session.ID, "q2", "o1")
	if plain.Breakdown.Net != 5 {
		t.Fatalf("next-question multiplier must expire after one use, got %+v", plain.Breakdown)
	}
}

func TestMultiplierConsumedByWrongAnswer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)
	if err := e.inventory.Credit(ctx, "u1", "double-up", 1); err != nil {
		t.Fatalf("credit double-up: %v", err)
	}

	res := e.startActive(t, "u1", "artist-1", "")
	if _, err := e.service.ActivatePowerup(ctx, app.ActivateInput{
		SessionID: res.Session.ID,
		PowerupID: "double-up",
	}); err != nil {
		t.Fatalf("activate double-up: %v", err)
	}

	// the boosted question is answered wrong, which still spends the boost
	wrong := e.answer(t, res.Session.ID, "q1", "o3")
	if wrong.Breakdown.Net >= 0 {
		t.Fatalf("expected a penalty on the wrong answer, got %+v", wrong.Breakdown)
	}
	next := e.answer(t, res.Session.ID, "q2", "o1")
	if next.Breakdown.Net != 5 {
		t.Fatalf("multiplier must not survive a wrong answer, got %+v", next.Breakdown)
	}
}

func TestReplayScoreMatchesFinalScore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	res := e.startActive(t, "u1", "artist-1", "")
	e.answer(t, res.Session.ID, "q1", "o1")
	e.answer(t, res.Session.ID, "q2", "o3")
	last := e.answer(t, res.Session.ID, "q3", "o1")
	if last.Completion == nil {
		t.Fatal("expected completion")
	}

	replayed, err := e.service.ReplayScore(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed != last.Completion.FinalScore {
		t.Fatalf("replay %d disagrees with final score %d", replayed, last.Completion.FinalScore)
	}
}

func TestDailyStreakAcrossDays(t *testing.T) {
	e := newEnv(t)
	e.seedQuestions("artist-1", 1, domain.DifficultyEasy)

	res := e.startActive(t, "u1", "artist-1", "")
	day1 := e.answer(t, res.Session.ID, "q1", "o1")
	if day1.Completion == nil || day1.Completion.Stats.DailyStreak != 1 {
		t.Fatalf("expected streak 1 on first day, got %+v", day1.Completion)
	}

	e.clock.Advance(24 * time.Hour)
	res = e.startActive(t, "u1", "artist-1", "")
	day2 := e.answer(t, res.Session.ID, "q1", "o1")
	if day2.Completion == nil || day2.Completion.Stats.DailyStreak != 2 {
		t.Fatalf("expected streak 2 on the next day, got %+v", day2.Completion)
	}

	e.clock.Advance(time.Hour)
	res = e.startActive(t, "u1", "artist-1", "")
	sameDay := e.answer(t, res.Session.ID, "q1", "o1")
	if sameDay.Completion == nil || sameDay.Completion.Stats.DailyStreak != 2 {
		t.Fatalf("a second run on the same day must not extend the streak, got %+v", sameDay.Completion)
	}

	e.clock.Advance(72 * time.Hour)
	res = e.startActive(t, "u1", "artist-1", "")
	lapsed := e.answer(t, res.Session.ID, "q1", "o1")
	if lapsed.Completion == nil || lapsed.Completion.Stats.DailyStreak != 1 {
		t.Fatalf("a missed day must reset the streak, got %+v", lapsed.Completion)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	e := newEnv(t)
	e.seedQuestions("artist-1", 2, domain.DifficultyEasy)

	res := e.startActive(t, "u1", "artist-1", "")
	ch, cancel, err := e.service.Subscribe(res.Session.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	e.answer(t, res.Session.ID, "q1", "o1")

	select {
	case ev := <-ch:
		if ev.Type != "answer" {
			t.Fatalf("expected answer event, got %s", ev.Type)
		}
	default:
		t.Fatal("expected a buffered answer event")
	}
}

// slowQuestionProvider models a pool fetch that goes to a remote store.
type slowQuestionProvider struct {
	inner app.QuestionProvider
	delay time.Duration
}

func (p *slowQuestionProvider) QuestionPool(ctx context.Context, artistID string, n int) ([]domain.Question, error) {
	time.Sleep(p.delay)
	return p.inner.QuestionPool(ctx, artistID, n)
}

func TestConcurrentStartsClaimOneSession(t *testing.T) {
	e := newEnv(t)
	e.seedQuestions("artist-1", 3, domain.DifficultyEasy)

	timing := app.TimingFromConfig(e.cfg)
	service := app.NewSessionService(
		timing, e.live, e.sessions, e.answers, e.stats,
		&slowQuestionProvider{inner: e.questions, delay: 5 * time.Millisecond},
		e.listening, scoring.NewEngine(e.cfg.Scoring, timing.WrongTimePenalty),
		app.NewAntiCheatMonitor(e.cfg.AntiCheat), e.powerups, e.boards, e.ledger,
	).WithClock(e.clock.Now)

	const workers = 8
	gate := make(chan struct{})
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			res, err := service.Start(context.Background(), "alice", "artist-1", "US")
			if err != nil {
				t.Errorf("start %d: %v", i, err)
				return
			}
			ids[i] = res.Session.ID
		}(i)
	}
	close(gate)
	wg.Wait()

	live := 0
	for _, ls := range e.live.All() {
		if ls.UserID() == "alice" {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("%d live sessions for one user, want exactly 1", live)
	}

	distinct := make(map[string]struct{}, workers)
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	if len(distinct) != 1 {
		t.Fatalf("concurrent starts returned %d distinct sessions, want 1", len(distinct))
	}
}
