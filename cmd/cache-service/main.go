package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/config"
	"github.com/NodeScriptLang/cache-service/internal/auth"
	"github.com/NodeScriptLang/cache-service/internal/domain"
	"github.com/NodeScriptLang/cache-service/internal/httpapi"
	"github.com/NodeScriptLang/cache-service/internal/models"
	"github.com/NodeScriptLang/cache-service/internal/ratelimit"
	"github.com/NodeScriptLang/cache-service/internal/reconciler"
	"github.com/NodeScriptLang/cache-service/internal/storage"
	"github.com/NodeScriptLang/cache-service/internal/tenant"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(redisOptions)
	defer client.Close()

	store := storage.NewRedisStorage(client, logger)
	stats := storage.NewRedisStatsStorage(client, logger)
	if err := store.Setup(ctx); err != nil {
		return err
	}
	if err := stats.Setup(ctx); err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter(
		ratelimit.NewRedisCounter(client),
		cfg.RateLimitPerSecond,
		cfg.RateLimitWindow,
		ratelimit.Policy(cfg.RateLimitPolicy),
		cfg.RateLimitSlowdown,
		logger,
	)

	var limitsClient tenant.Client = tenant.StaticClient{}
	if cfg.APIBaseURL != "" {
		cached, err := tenant.NewCachedClient(
			tenant.NewHTTPClient(cfg.APIBaseURL, cfg.APIAuthToken, logger),
			cfg.LimitsCacheMaxCount,
			cfg.LimitsCacheTTL,
		)
		if err != nil {
			return err
		}
		defer cached.Close()
		limitsClient = cached
	}

	cacheDomain := domain.New(store, stats, limiter, limitsClient, domain.Options{
		AccountingMode:      domain.AccountingMode(cfg.AccountingMode),
		DeleteAdjustsUsage:  cfg.DeleteAdjustsUsage,
		RetentionCapEnabled: cfg.RetentionCapEnabled,
		MaxRetention:        cfg.MaxRetention,
		DefaultLimits: models.Limits{
			MaxKeys:      cfg.MaxKeys,
			MaxSize:      cfg.MaxSize,
			MaxEntrySize: cfg.MaxEntrySize,
		},
	}, logger)

	if cfg.ReconcilerEnabled {
		rec := reconciler.New(store, stats, cfg.ReconcileInterval, logger)
		rec.Start()
		defer rec.Stop()
	}

	handler := httpapi.NewHandler(
		cacheDomain,
		auth.NewJWTAuthenticator([]byte(cfg.AuthSecret)),
		logger,
	)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.Mux(),
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
