package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-player/internal/app"
	"quiz-player/internal/config"
	"quiz-player/internal/infra/memory"
	pgstore "quiz-player/internal/infra/postgres"
	redisstore "quiz-player/internal/infra/redis"
	transport "quiz-player/internal/transport/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development quiz backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServer(cmd.Context(), cfg, port, logger)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides config)")
	return cmd
}

// backend holds the wired stores so the caller can release connections.
type backend struct {
	service *app.LobbyService
	pool    *pgxpool.Pool
	redis   *redis.Client
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// newBackend picks Redis and Postgres implementations when configured and
// falls back to process memory with the sample quizzes.
func newBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(memory.SampleQuizzes())
	var participations app.ParticipationRepository = memory.NewParticipationStore()
	if b.pool != nil {
		loader = pgstore.NewQuizLoader(b.pool)
		participations = pgstore.NewParticipationStore(b.pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	lobbyTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var (
		quizzes app.QuizRepository
		lobbies app.LobbyRepository
		events  app.EventBus
	)
	if b.redis != nil {
		quizzes = redisstore.NewQuizRepository(b.redis, loader, quizTTL)
		lobbies = redisstore.NewLobbyStore(b.redis, lobbyTTL)
		events = redisstore.NewEventBus(b.redis, logger)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		lobbies = memory.NewLobbyStore()
		events = app.NewEventHub()
	}

	logger.Info("backend wired",
		zap.Bool("postgres", b.pool != nil),
		zap.Bool("redis", b.redis != nil))
	b.service = app.NewLobbyService(quizzes, lobbies, participations, events, logger)
	return b, nil
}

func runServer(ctx context.Context, cfg config.Config, portFlag string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	// No WriteTimeout: lobby WebSockets stay open for the whole run.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(b.service, logger),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz backend", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
