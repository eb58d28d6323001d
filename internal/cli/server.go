package cli

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"quizbot-engine/internal/app"
	"quizbot-engine/internal/config"
	"quizbot-engine/internal/domain"
	"quizbot-engine/internal/infra/memory"
	"quizbot-engine/internal/infra/postgres"
	redisstore "quizbot-engine/internal/infra/redis"
	transport "quizbot-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz engine and its websocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// deps is everything built from config that commands share.
type deps struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	quizzes app.QuizRepository
}

func (d deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

func buildDeps(ctx context.Context, cfg config.Config) (deps, error) {
	var d deps

	switch {
	case cfg.Redis.URL != "":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return d, err
		}
		d.redis = redis.NewClient(opts)
	case cfg.Redis.Addr != "":
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var store memory.QuizStore = memory.NewStaticQuizStore(sampleQuizzes())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return deps{}, err
		}
		d.pool = pool
		store = postgres.NewQuizStore(pool)
	} else {
		glog.Warningf("no postgres url configured, serving built-in sample quizzes")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if d.redis != nil {
		d.quizzes = redisstore.NewQuizRepository(d.redis, store, quizTTL)
	} else {
		d.quizzes = memory.NewQuizRepository(store, quizTTL)
	}
	return d, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := listenPort(portFlag, cfg)

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var sessions app.SessionRepository
	if d.redis != nil {
		sessions = redisstore.NewSessionStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		sessions = memory.NewSessionStore()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := transport.NewHub()
	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := app.NewEngine(sessions, d.quizzes, hub, app.Options{
		Countdown:       config.TTLDuration(cfg.Engine.Countdown, app.DefaultCountdown),
		GroupQuorum:     cfg.Engine.GroupQuorum,
		GroupStartDelay: config.TTLDuration(cfg.Engine.GroupStartDelay, app.DefaultGroupStartDelay),
		Rand:            rand.New(rand.NewSource(seed)),
		Context:         context.WithoutCancel(ctx),
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(engine, hub),
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		glog.Infof("starting quiz engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		glog.Infof("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// listenPort picks the flag, then PORT or server.port from config, then 8080.
func listenPort(flagPort string, cfg config.Config) string {
	if flagPort != "" {
		return flagPort
	}
	if cfg.Server.Port != "" {
		return cfg.Server.Port
	}
	return "8080"
}

// sampleQuizzes is served when no Postgres store is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Warm-up",
			TimeLimit: 20,
			Mixing:    domain.MixAnswers,
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
				{Text: "Which planet is closest to the sun?", Options: []string{"Venus", "Mars", "Mercury"}, CorrectOption: 2},
				{
					Text:          "Which language is this engine written in?",
					Options:       []string{"Go", "Rust", "Java"},
					CorrectOption: 0,
					PreContent:    &domain.PreQuestionContent{Type: domain.ContentText, Content: "Last one!"},
				},
			},
		},
	}
}
