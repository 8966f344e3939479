package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/config"
	"medquiz-engine/internal/domain"
	"medquiz-engine/internal/infra/memory"
	pgloader "medquiz-engine/internal/infra/postgres"
	redisinfra "medquiz-engine/internal/infra/redis"
	"medquiz-engine/internal/lib/logging"
	transport "medquiz-engine/internal/transport/http"
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

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, slog.LevelInfo)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
	} else {
		bank = memory.NewQuestionCache(loader, questionTTL)
	}

	var registry app.SessionRegistry
	var statsStore app.StatsStore
	if redisClient != nil {
		registry = redisinfra.NewSessionRegistry(redisClient, sessionTTL)
		statsStore = redisinfra.NewStatsStore(redisClient)
	} else {
		registry = memory.NewSessionRegistry()
		statsStore = memory.NewStatsStore()
	}

	aggregator := app.NewStatsAggregator(statsStore)
	service := app.NewQuizServiceWithOptions(bank, registry, aggregator, app.Options{
		PrepDelay:    config.Duration(cfg.Engine.PrepDelay, 0),
		TickInterval: config.Duration(cfg.Engine.TickInterval, 0),
		Logger:       logger,
	})
	wsHandler := transport.NewWSHandler(service, logger)
	queryHandler := transport.NewQueryHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/leaderboard", queryHandler.ServeLeaderboard)
	mux.HandleFunc("/stats", queryHandler.ServeStats)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz engine", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal pool for running without Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           "q-anat-001",
			Prompt:       "Which nerve innervates the diaphragm?",
			Options:      []string{"Vagus nerve", "Phrenic nerve", "Intercostal nerves", "Accessory nerve"},
			CorrectIndex: 1,
			Difficulty:   domain.DifficultyEasy,
			Category:     "anatomy",
		},
		{
			ID:           "q-pharm-001",
			Prompt:       "Which drug class is first-line for hypertension in diabetic patients with proteinuria?",
			Options:      []string{"Beta blockers", "Calcium channel blockers", "ACE inhibitors", "Thiazide diuretics"},
			CorrectIndex: 2,
			Difficulty:   domain.DifficultyMedium,
			Category:     "pharmacology",
		},
		{
			ID:           "q-bioc-001",
			Prompt:       "A deficiency of which enzyme causes maple syrup urine disease?",
			Options:      []string{"Branched-chain alpha-ketoacid dehydrogenase", "Phenylalanine hydroxylase", "Homogentisate oxidase", "Cystathionine synthase"},
			CorrectIndex: 0,
			Difficulty:   domain.DifficultyHard,
			Category:     "biochemistry",
		},
		{
			ID:           "q-phys-001",
			Prompt:       "Which change increases glomerular filtration rate?",
			Options:      []string{"Efferent arteriole constriction", "Afferent arteriole constriction", "Decreased renal plasma flow", "Increased plasma oncotic pressure"},
			CorrectIndex: 0,
			Difficulty:   domain.DifficultyMedium,
			Category:     "physiology",
		},
		{
			ID:           "q-micro-001",
			Prompt:       "Which organism is the most common cause of lobar pneumonia?",
			Options:      []string{"Haemophilus influenzae", "Streptococcus pneumoniae", "Klebsiella pneumoniae", "Mycoplasma pneumoniae"},
			CorrectIndex: 1,
			Difficulty:   domain.DifficultyEasy,
			Category:     "microbiology",
		},
	}
}
