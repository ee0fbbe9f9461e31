package cli

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/engine"
	filestore "livequiz-service/internal/infra/file"
	"livequiz-service/internal/infra/memory"
	pgbank "livequiz-service/internal/infra/postgres"
	redisstore "livequiz-service/internal/infra/redis"
	transport "livequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var importSet string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, importSet)
		},
	}
	cmd.Flags().StringVar(&importSet, "import-set", "", "question set to import from the bank while waiting")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag, importSet string) error {
	cfg, err := config.Load(configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var store engine.StateStore
	if redisClient != nil {
		store = redisstore.NewStateStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	} else {
		store = filestore.NewStateStore(cfg.State.File)
	}

	hub := transport.NewHub()
	eng := engine.New(store, hub)
	defer eng.Close()

	if err := eng.Recover(); err != nil {
		// A broken snapshot degrades to a fresh quiz rather than refusing
		// to start.
		log.Printf("state recovery failed: %v", err)
	}

	var pool *pgxpool.Pool
	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionSets())
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgbank.NewQuestionLoader(pool)
	}
	bank := memory.NewQuestionBank(loader, config.TTLDuration(cfg.Quiz.BankTTL, 10*time.Minute))

	setID := importSet
	if setID == "" {
		setID = cfg.Quiz.QuestionSet
	}
	if setID != "" && eng.Status() == domain.StatusWaiting && len(eng.Questions()) == 0 {
		set, err := bank.LoadQuestionSet(ctx, setID)
		if err != nil {
			log.Printf("question set %q not imported: %v", setID, err)
		} else if err := eng.ReplaceQuestions(set.Questions); err != nil {
			log.Printf("question set %q rejected: %v", setID, err)
		} else {
			log.Printf("imported %d questions from set %q", len(set.Questions), setID)
		}
	}

	admin := transport.Credentials{Username: cfg.Admin.Username, Password: cfg.Admin.Password}
	wsHandler := transport.NewWSHandler(eng, hub, admin)
	adminHandler := transport.NewAdminHandler(eng, admin)
	publicHandler := transport.NewPublicHandler(eng)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	adminHandler.Register(mux)
	publicHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting livequiz service on :%s", finalPort)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets provides demo content for running without a database.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"demo": {
			ID: "demo",
			Questions: []domain.Question{
				{
					Prompt:       "What is 2 + 2?",
					Kind:         domain.MultipleChoice,
					Options:      []string{"3", "4", "5"},
					CorrectIndex: 1,
					TimeLimitSec: 15,
					Points:       100,
				},
				{
					Prompt:        "Which planet is known as the red planet?",
					Kind:          domain.FreeText,
					CorrectAnswer: "Mars",
					TimeLimitSec:  20,
					Points:        100,
					Penalty:       20,
				},
			},
		},
	}
}
