package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/handlers"
	"github.com/cf-ai-screenwriter-go/internal/i18n"
	"github.com/cf-ai-screenwriter-go/internal/middleware"
	"github.com/cf-ai-screenwriter-go/internal/services/ai"
	"github.com/cf-ai-screenwriter-go/internal/services/cache"
	"github.com/cf-ai-screenwriter-go/internal/services/continuity"
	"github.com/cf-ai-screenwriter-go/internal/services/generation"
	"github.com/cf-ai-screenwriter-go/internal/services/identity"
	"github.com/cf-ai-screenwriter-go/internal/services/storage"
	"github.com/cf-ai-screenwriter-go/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log, err := logger.NewLogger(&cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	log.Info("Starting screenwriter API...")

	metrics := middleware.NewMetrics()

	storageManager, err := storage.NewManager(&cfg.Storage, metrics, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer storageManager.Close()

	var rdb *redis.Client
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis" {
		rdb = storageManager.GetRedisClient()
		if rdb == nil {
			if rdb, err = storage.NewRedisClient(cfg.Storage.Redis); err != nil {
				return fmt.Errorf("init rate limiter: %w", err)
			}
			defer rdb.Close()
		}
	}

	rateLimiter, err := middleware.NewRateLimiter(&cfg.RateLimit, rdb, log)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}

	responseCache := cache.NewCache(&cfg.Cache, log)

	primary, err := ai.NewProvider("primary", cfg.Providers.Primary, log)
	if err != nil {
		return err
	}
	secondary, err := ai.NewProvider("secondary", cfg.Providers.Secondary, log)
	if err != nil {
		return err
	}

	orchestrator, err := generation.NewOrchestrator(
		&cfg.Generation,
		rateLimiter,
		responseCache,
		primary,
		secondary,
		storageManager,
		metrics,
		log,
	)
	if err != nil {
		return err
	}

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	api := handlers.NewAPI(
		orchestrator,
		continuity.NewAnalyzer(metrics, log),
		storageManager,
		identity.NewJWTVerifier(cfg.Auth.JWTSecret),
		localizer,
		log,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		responseCache.StartJanitor(ctx, cfg.Cache.CleanupInterval)
		return nil
	})
	if limiter, ok := rateLimiter.(*middleware.SlidingWindowLimiter); ok {
		g.Go(func() error {
			limiter.StartCleanup(ctx, cfg.RateLimit.CleanupInterval)
			return nil
		})
	}

	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("API server listening")
		return listen(ctx, server, log)
	})

	if cfg.Monitoring.Metrics.Enabled {
		metricsServer := middleware.NewMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path)
		g.Go(func() error {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")
			return listen(ctx, metricsServer, log)
		})
	}

	err = g.Wait()
	log.Info("Screenwriter API stopped")
	return err
}

// listen serves until ctx is done, then shuts the server down gracefully
func listen(ctx context.Context, server *http.Server, log *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.WithField("addr", server.Addr).Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
