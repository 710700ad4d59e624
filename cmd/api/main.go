package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/aura/internal/api"
	"example.com/aura/internal/auth"
	"example.com/aura/internal/config"
	"example.com/aura/internal/domain"
	"example.com/aura/internal/ingest"
	"example.com/aura/internal/leaderboard"
	"example.com/aura/internal/ledger"
	"example.com/aura/internal/logging"
	"example.com/aura/internal/migrations"
	"example.com/aura/internal/missions"
	"example.com/aura/internal/outbox"
	"example.com/aura/internal/persistence/memory"
	persistence "example.com/aura/internal/persistence/postgres"
	"example.com/aura/internal/scoring"
	"example.com/aura/internal/strava"
	"example.com/aura/internal/token"
	httptransport "example.com/aura/internal/transport/http"
)

// backend is the full storage surface served by both store implementations.
type backend interface {
	domain.PlayerRepository
	ingest.Store
	ingest.FailureStore
	token.Store
	ledger.Store
	missions.Store
	leaderboard.Source
	api.AccountLinker
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		store      backend
		dispatcher *outbox.Dispatcher
	)
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; state is lost on restart")
		store = memory.NewStore()
	default:
		if cfg.AutoMigrate {
			if err := migrations.Up(cfg.PostgresURL, logger); err != nil {
				logger.Fatal("failed to apply migrations", zap.Error(err))
			}
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		store = persistence.NewRepository(pool)

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, 10*time.Millisecond)
			defer producer.Close()
			var registry interface {
				EnsureSchema(ctx context.Context, subject, schema string) (int, error)
			} = outbox.StaticRegistry{ID: 1}
			if cfg.SchemaRegistryURL != "" {
				registry = outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, 5*time.Second)
			} else {
				logger.Warn("no schema registry configured, framing events with a static schema id")
			}
			dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
			go dispatcher.Start(ctx)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer redisClient.Close()
	}

	oauth := strava.NewOAuth(strava.OAuthConfig{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  cfg.Strava.RedirectURL,
		BaseURL:      cfg.Strava.OAuthBaseURL,
		Timeout:      cfg.Strava.HTTPTimeout,
	})

	tokenOpts := []token.Option{
		token.WithLogger(logger),
		token.WithSafetyMargin(cfg.TokenSafetyMargin),
	}
	if redisClient != nil {
		tokenOpts = append(tokenOpts, token.WithLocker(token.NewRedisLocker(redisClient, logger)))
	}
	tokens := token.NewManager(store, oauth, tokenOpts...)

	led := ledger.New(store, cfg.Ledger, logger)
	pipeline := ingest.NewPipeline(
		store,
		tokens,
		strava.NewClient(cfg.Strava.APIBaseURL, cfg.Strava.HTTPTimeout),
		scoring.NewEngine(cfg.Scoring),
		led,
		ingest.WithFailureStore(store),
		ingest.WithLogger(logger),
	)
	generator := missions.NewGenerator(store, led,
		missions.WithPerDay(cfg.MissionsPerDay),
		missions.WithLocation(cfg.Location()),
		missions.WithLogger(logger),
	)

	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	handler := api.NewHandler(api.Dependencies{
		Players:            domain.NewService(store, cfg.Ledger),
		Webhooks:           pipeline,
		Accounts:           store,
		OAuth:              oauth,
		Missions:           generator,
		Ranking:            leaderboard.NewBoard(redisClient, store, logger),
		Auth:               authCfg,
		TokenTTL:           cfg.JWTTokenTTL,
		WebhookVerifyToken: cfg.Strava.VerifyToken,
		Logger:             logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}, httptransport.Chain(mux,
		httptransport.Recover(logger),
		httptransport.RequestLogger(logger),
		httptransport.CORS(cfg.CORSOrigin),
		auth.Middleware(authCfg),
	))

	logger.Info("aura api starting", zap.String("store", cfg.Store))
	if err := httptransport.Serve(ctx, server, logger); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	cancel()

	if dispatcher != nil {
		dispatcher.Wait()
	}
	logger.Info("shutdown complete")
}
