package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"quickfire-quiz-service/internal/app"
	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
	"quickfire-quiz-service/internal/infra/memory"
	"quickfire-quiz-service/internal/scoring"
)

// fakeClock is a mutable time source shared by every service in a test
// environment.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type env struct {
	clock       *fakeClock
	cfg         config.Config
	live        *memory.LiveSessionStore
	sessions    *memory.SessionStore
	answers     *memory.AnswerStore
	inventory   *memory.InventoryStore
	activations *memory.ActivationStore
	purchases   *memory.PurchaseStore
	stats       *memory.StatsStore
	snapshots   *memory.SnapshotStore
	archive     *memory.ArchiveStore
	ledger      *memory.RewardLedgerStore
	questions   *memory.StaticQuestionProvider
	listening   *memory.StaticListeningProvider
	powerups    *app.PowerupService
	boards      *app.LeaderboardService
	service     *app.SessionService
	scheduler   *app.Scheduler
}

func newEnv(t *testing.T) *env {
	return newEnvWith(t, nil)
}

func newEnvWith(t *testing.T, tweak func(*config.Config)) *env {
	t.Helper()
	cfg := config.Default()
	if tweak != nil {
		tweak(&cfg)
	}

	e := &env{
		clock:       newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
		cfg:         cfg,
		live:        memory.NewLiveSessionStore(),
		sessions:    memory.NewSessionStore(),
		answers:     memory.NewAnswerStore(),
		inventory:   memory.NewInventoryStore(),
		activations: memory.NewActivationStore(),
		purchases:   memory.NewPurchaseStore(),
		stats:       memory.NewStatsStore(),
		snapshots:   memory.NewSnapshotStore(),
		archive:     memory.NewArchiveStore(),
		ledger:      memory.NewRewardLedgerStore(),
		questions:   memory.NewStaticQuestionProvider(),
		listening:   memory.NewStaticListeningProvider(),
	}

	powerups, err := app.NewPowerupService(cfg.Powerups, e.inventory, e.activations, e.purchases, e.stats)
	if err != nil {
		t.Fatalf("powerup service: %v", err)
	}
	e.powerups = powerups.WithClock(e.clock.Now)

	e.boards = app.NewLeaderboardService(e.sessions, e.snapshots, nil, cfg.Ranking).WithClock(e.clock.Now)

	timing := app.TimingFromConfig(cfg)
	engine := scoring.NewEngine(cfg.Scoring, timing.WrongTimePenalty)
	monitor := app.NewAntiCheatMonitor(cfg.AntiCheat)
	e.service = app.NewSessionService(
		timing, e.live, e.sessions, e.answers, e.stats,
		e.questions, e.listening, engine, monitor, e.powerups, e.boards, e.ledger,
	).WithClock(e.clock.Now)

	e.scheduler = app.NewScheduler(
		e.boards, e.snapshots, e.archive, e.ledger, e.stats, e.service,
		cfg.Ranking, cfg.Rewards, timing.BoundaryGrace,
	).WithClock(e.clock.Now)

	return e
}

// seedQuestions loads n four-option questions for the artist; option o1
// is always correct.
func (e *env) seedQuestions(artistID string, n int, diff domain.Difficulty) {
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.Question{
			ID:       fmt.Sprintf("q%d", i+1),
			ArtistID: artistID,
			Prompt:   fmt.Sprintf("Question %d", i+1),
			Options: []domain.Option{
				{ID: "o1", Text: "right", Correct: true},
				{ID: "o2", Text: "wrong"},
				{ID: "o3", Text: "wrong"},
				{ID: "o4", Text: "wrong"},
			},
			Difficulty: diff,
		})
	}
	e.questions.Seed(artistID, questions)
}

// fund gives the user spendable points outside the quiz loop.
func (e *env) fund(t *testing.T, userID string, points int) {
	t.Helper()
	_, err := e.stats.Apply(context.Background(), userID, func(st *domain.UserQuizStats) error {
		st.UserID = userID
		st.LifetimePoints += points
		st.AvailablePoints += points
		return nil
	})
	if err != nil {
		t.Fatalf("fund %s: %v", userID, err)
	}
}

// startActive starts a session and rolls the clock past the countdown.
func (e *env) startActive(t *testing.T, userID, artistID, country string) app.StartResult {
	t.Helper()
	res, err := e.service.Start(context.Background(), userID, artistID, country)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	e.clock.Advance(app.TimingFromConfig(e.cfg).Countdown)
	return res
}

// answer submits an option for the current head question after a
// plausible delay.
func (e *env) answer(t *testing.T, sessionID, questionID, optionID string) app.AnswerResult {
	t.Helper()
	e.clock.Advance(time.Second)
	res, err := e.service.SubmitAnswer(context.Background(), app.SubmitInput{
		SessionID:  sessionID,
		QuestionID: questionID,
		OptionID:   optionID,
	})
	if err != nil {
		t.Fatalf("submit %s/%s: %v", questionID, optionID, err)
	}
	return res
}
