package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quickfire-quiz-service/internal/app"
	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
	"quickfire-quiz-service/internal/infra/memory"
	"quickfire-quiz-service/internal/infra/postgres"
	redisinfra "quickfire-quiz-service/internal/infra/redis"
	"quickfire-quiz-service/internal/scoring"
	transport "quickfire-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// loadConfig reads the YAML config, falling back to built-in defaults
// when no file exists at the path.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("no config at %s, using defaults", path)
		return config.Default(), nil
	}
	return cfg, err
}

// stack is the fully wired application, backed by Postgres and Redis
// when configured and by in-memory stores otherwise.
type stack struct {
	sessions  *app.SessionService
	powerups  *app.PowerupService
	boards    *app.LeaderboardService
	scheduler *app.Scheduler
	archives  app.ArchiveRepository
	stats     app.StatsRepository
	ledger    app.RewardLedger

	close func()
}

func buildStack(ctx context.Context, cfg config.Config) (*stack, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	var db *bun.DB
	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db = bun.NewDB(sqldb, pgdialect.New())
		closers = append(closers, func() { _ = db.Close() })

		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		closers = append(closers, pool.Close)
	}

	var (
		sessionRepo app.SessionRepository
		answerRepo  app.AnswerRepository
		inventory   app.InventoryRepository
		activations app.ActivationRepository
		purchases   app.PurchaseRepository
		statsRepo   app.StatsRepository
		snapshots   app.SnapshotRepository
		archives    app.ArchiveRepository
		ledger      app.RewardLedger
	)
	if db != nil {
		sessionRepo = postgres.NewSessionRepository(db)
		answerRepo = postgres.NewAnswerRepository(db)
		inventory = postgres.NewInventoryRepository(db)
		activations = postgres.NewActivationRepository(db)
		purchases = postgres.NewPurchaseRepository(db)
		statsRepo = postgres.NewStatsRepository(db)
		snapshots = postgres.NewSnapshotRepository(db)
		archives = postgres.NewArchiveRepository(db)
		ledger = postgres.NewRewardLedger(db)
	} else {
		sessionRepo = memory.NewSessionStore()
		answerRepo = memory.NewAnswerStore()
		inventory = memory.NewInventoryStore()
		activations = memory.NewActivationStore()
		purchases = memory.NewPurchaseStore()
		statsRepo = memory.NewStatsStore()
		snapshots = memory.NewSnapshotStore()
		archives = memory.NewArchiveStore()
		ledger = memory.NewRewardLedgerStore()
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionProvider
	var listening app.ListeningProvider
	if pool != nil {
		loader := postgres.NewPoolLoader(pool)
		if redisClient != nil {
			questions = redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
		} else {
			questions = memory.NewCachedQuestionProvider(loader, questionTTL)
		}
		listening = postgres.NewListeningProvider(pool)
	} else {
		static := memory.NewStaticQuestionProvider()
		seedDemoContent(static)
		questions = static
		listening = memory.NewStaticListeningProvider()
	}

	var snapshotCache app.SnapshotCache
	if redisClient != nil {
		cacheTTL := config.TTLDuration(cfg.Redis.TTL, time.Minute)
		snapshotCache = redisinfra.NewSnapshotCache(redisClient, cacheTTL)
	}

	powerups, err := app.NewPowerupService(cfg.Powerups, inventory, activations, purchases, statsRepo)
	if err != nil {
		closeAll()
		return nil, err
	}
	boards := app.NewLeaderboardService(sessionRepo, snapshots, snapshotCache, cfg.Ranking)

	timing := app.TimingFromConfig(cfg)
	engine := scoring.NewEngine(cfg.Scoring, timing.WrongTimePenalty)
	monitor := app.NewAntiCheatMonitor(cfg.AntiCheat)
	sessions := app.NewSessionService(
		timing, memory.NewLiveSessionStore(), sessionRepo, answerRepo, statsRepo,
		questions, listening, engine, monitor, powerups, boards, ledger,
	)
	scheduler := app.NewScheduler(
		boards, snapshots, archives, ledger, statsRepo, sessions,
		cfg.Ranking, cfg.Rewards, timing.BoundaryGrace,
	)

	return &stack{
		sessions:  sessions,
		powerups:  powerups,
		boards:    boards,
		scheduler: scheduler,
		archives:  archives,
		stats:     statsRepo,
		ledger:    ledger,
		close:     closeAll,
	}, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	go st.boards.Run(workerCtx)
	go st.scheduler.RunPeriodic(workerCtx, time.Minute)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.sessions.SweepStale(workerCtx)
			case <-workerCtx.Done():
				return
			}
		}
	}()

	mux := http.NewServeMux()
	transport.NewHandler(
		st.sessions, st.powerups, st.boards, st.scheduler,
		st.archives, st.stats, st.ledger,
	).Register(mux)
	mux.HandleFunc("GET /ws", transport.NewWSHandler(st.sessions).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quickfire quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDemoContent fills the static providers with a small playable pool
// for running without Postgres; swap in the database loaders for real data.
func seedDemoContent(provider *memory.StaticQuestionProvider) {
	provider.Seed("demo-artist", []domain.Question{
		{
			ID:       "demo-q1",
			ArtistID: "demo-artist",
			Prompt:   "Which year did the debut album release?",
			Options: []domain.Option{
				{ID: "o1", Text: "2016", Correct: true},
				{ID: "o2", Text: "2017"},
				{ID: "o3", Text: "2018"},
				{ID: "o4", Text: "2019"},
			},
			Difficulty: domain.DifficultyEasy,
		},
		{
			ID:       "demo-q2",
			ArtistID: "demo-artist",
			Prompt:   "Which single was certified platinum first?",
			Options: []domain.Option{
				{ID: "o1", Text: "Midnight Run", Correct: true},
				{ID: "o2", Text: "Golden Hour"},
				{ID: "o3", Text: "Afterglow"},
				{ID: "o4", Text: "Stay Close"},
			},
			Difficulty: domain.DifficultyMedium,
		},
		{
			ID:       "demo-q3",
			ArtistID: "demo-artist",
			Prompt:   "Who produced the second studio album?",
			Options: []domain.Option{
				{ID: "o1", Text: "J. Reyes", Correct: true},
				{ID: "o2", Text: "M. Liu"},
				{ID: "o3", Text: "D. Okafor"},
				{ID: "o4", Text: "S. Varga"},
			},
			Difficulty: domain.DifficultyHard,
		},
	})
}
