package main

import (
	"context"
	"log"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/aura/internal/config"
	"example.com/aura/internal/consumer"
	"example.com/aura/internal/leaderboard"
	"example.com/aura/internal/logging"
	persistence "example.com/aura/internal/persistence/postgres"
	httptransport "example.com/aura/internal/transport/http"
)

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

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer redisClient.Close()
	} else {
		logger.Warn("REDIS_ADDRESS not set; leaderboard updates are skipped")
	}

	board := leaderboard.NewBoard(redisClient, persistence.NewRepository(pool), logger)
	if n, err := board.Warm(ctx, leaderboard.MaxLimit*20); err != nil {
		logger.Warn("leaderboard warm-up failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("leaderboard warm-up done", zap.Int("accounts", n))
	}

	ranking := consumer.NewLeaderboardHandler(board)
	router := consumer.NewRouter().
		All(consumer.NewPersistenceHandler(pool))
	if redisClient != nil {
		router.On(ranking, ranking.EventTypes()...)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httptransport.Serve(ctx, httptransport.NewMetricsServer(cfg.MetricsAddress), logger); err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		proc := consumer.NewProcessor(reader, router, consumer.WithLogger(logger.With(zap.String("topic", topic))))

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			logger.Info("consumer started", zap.String("topic", topic), zap.String("group", cfg.ConsumerGroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped with error", zap.String("topic", topic), zap.Error(err))
			}
		}(topic, reader)
	}

	<-ctx.Done()
	logger.Info("consumer shutdown requested")

	wg.Wait()
}
