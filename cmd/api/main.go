package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-auth-nosql/internal/infrastructure/jwt"
	"github.com/go-auth-nosql/internal/infrastructure/memory"
	redisinfra "github.com/go-auth-nosql/internal/infrastructure/redis"
	"github.com/go-auth-nosql/internal/infrastructure/smtp"
	"github.com/go-auth-nosql/internal/infrastructure/sns"
	"github.com/go-auth-nosql/internal/pkg/logger"
	"github.com/go-auth-nosql/internal/pkg/password"
	transporthttp "github.com/go-auth-nosql/internal/transport/http"
	appmiddleware "github.com/go-auth-nosql/internal/transport/http/middleware"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(logger.New(os.Stdout, cfg.AppEnv))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	userRepo, err := newUserRepo(ctx, cfg)
	if err != nil {
		slog.Error("user store unavailable", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("JWT provider not available", "err", err)
		os.Exit(1)
	}

	// SNS event publisher (optional, dropped events when no topic is set).
	var events sns.EventPublisher = sns.Noop{}
	if cfg.SNSTopicARN != "" {
		snsClient, err := sns.NewClient(ctx, cfg)
		if err != nil {
			slog.Warn("SNS publisher not available", "err", err)
		} else {
			events = sns.NewPublisher(snsClient, cfg.SNSTopicARN)
		}
	}

	// Shared attempt counters when Redis is configured, in-process otherwise.
	var attempts, globalAttempts appmiddleware.AttemptCounter
	if cfg.RedisAddr != "" {
		redisClient := redisinfra.NewClient(cfg)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, attempts will be allowed while it is down", "addr", cfg.RedisAddr, "err", err)
		}
		attempts = redisinfra.NewAttemptLimiter(redisClient, "auth:attempts", cfg.AttemptLimit, cfg.AttemptWindow)
		globalAttempts = redisinfra.NewAttemptLimiter(redisClient, "auth:attempts:global", cfg.AttemptGlobalLimit, cfg.AttemptWindow)
	}

	deps := &transporthttp.Deps{
		UserRepo:       userRepo,
		Hasher:         password.NewHasher(cfg.BcryptCost),
		JWTProvider:    jwtProvider,
		Mailer:         smtp.NewMailer(cfg),
		Events:         events,
		Attempts:       attempts,
		GlobalAttempts: globalAttempts,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		return
	}
	slog.Info("server stopped")
}

func newUserRepo(ctx context.Context, cfg *config.Config) (transporthttp.UserRepository, error) {
	if cfg.StoreDriver == "memory" {
		slog.Warn("using in-memory user store, data is lost on restart")
		return memory.NewUserRepo(), nil
	}
	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Creates the tables if they don't exist.
	if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTables); err != nil {
		return nil, err
	}
	return dynamo.NewUserRepo(client, cfg.DynamoTables.Users, cfg.DynamoTables.UserEmails), nil
}
