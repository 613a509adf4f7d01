package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ms-community/internal/auth"
	"ms-community/internal/config"
	"ms-community/internal/database"
	"ms-community/internal/database/migrations"
	"ms-community/internal/kafka"
	"ms-community/internal/logger"
	rediswrap "ms-community/internal/redis"
	"ms-community/internal/server"
	tasks "ms-community/internal/tasks/service"
)

const signupGroupPrefix = "community-capacity-"

// relaySignups feeds sign-ups accepted by other instances into the local
// capacity stream.
func relaySignups(ctx context.Context, consumer *kafka.Consumer, app *server.App, log *logger.Logger) {
	consumer.Start(ctx, func(ctx context.Context, env kafka.Envelope) error {
		var created tasks.SignupCreated
		if err := json.Unmarshal(env.Data, &created); err != nil {
			return fmt.Errorf("decode %s: %w", env.ID, err)
		}
		app.Capacity.Invalidate(ctx, created.TaskID)
		app.Emitter.Emit(created.Capacity)
		log.LogKafka("RELAY", env.Topic, fmt.Sprintf("signup %d on task %d", created.SignupID, created.TaskID))
		return nil
	})
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("CONFIG: .env file not found, using environment variables")
	}

	cfg := config.Load()
	logger := logger.NewLogger(logger.Options{Dir: cfg.Log.Dir, MinLevel: logger.ParseLevel(cfg.Log.Level)})
	defer logger.Close()

	logger.Info("APP", "Starting community engine initialization")
	if err := cfg.Validate(); err != nil {
		logger.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.OptionsFromConfig(cfg.Database), logger)
	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	var redisStore *rediswrap.Redis
	if cfg.Redis.Enabled {
		client, err := rediswrap.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
		}
		redisStore = rediswrap.NewRedis(client, logger, cfg.Redis)
		defer redisStore.Close()
		logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	} else {
		logger.Warn("REDIS", "Redis disabled: no capacity cache, recurrence runs are tracked in memory")
	}

	instanceID := uuid.NewString()
	var publisher kafka.Publisher = kafka.NopPublisher{}
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, kafka.AllTopics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, instanceID, logger)
		defer producer.Close()
		publisher = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("AUTH", err.Error())
	}

	app := server.NewApp(server.Deps{
		DB:        bunDB,
		Redis:     redisStore,
		Publisher: publisher,
		Verifier:  verifier,
		Config:    cfg,
		Logger:    logger,
	})
	logger.Info("APP", fmt.Sprintf("Policies: %s", app.Policies))

	if producer != nil {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, kafka.TopicSignupCreated, signupGroupPrefix+instanceID, instanceID, logger)
		defer consumer.Close()
		go relaySignups(ctx, consumer, app, logger)
	}

	srv := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     app.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Community engine running on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Community engine shutdown complete")
	}
}
