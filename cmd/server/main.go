package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/makersmarket/session-auth-service/internal/app"
	"github.com/makersmarket/session-auth-service/internal/config"
	"github.com/makersmarket/session-auth-service/internal/domain"
	"github.com/makersmarket/session-auth-service/internal/health"
	"github.com/makersmarket/session-auth-service/internal/http/handler"
	"github.com/makersmarket/session-auth-service/internal/http/router"
	"github.com/makersmarket/session-auth-service/internal/observability"
	"github.com/makersmarket/session-auth-service/internal/repository"
	"github.com/makersmarket/session-auth-service/internal/service"
	"github.com/makersmarket/session-auth-service/internal/store"
	"github.com/makersmarket/session-auth-service/internal/tools/common"
)

func main() {
	var envFile string
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Marketplace session auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnvFile(envFile); err != nil {
				return err
			}
			return runServer(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file loaded before config")

	if err := cmd.Execute(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	obsRuntime, logger, err := observability.InitRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	sessions, redisClient, err := openSessionStore(cfg)
	if err != nil {
		return err
	}

	readiness := health.NewProbeRunner(2*time.Second, 5*time.Second)
	readiness.Register("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	if redisClient != nil {
		readiness.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	users := repository.NewUserRepository(db)
	auth := service.NewAuthService(users, sessions)
	authHandler := handler.NewAuthHandler(auth, cfg.CookieSecure)
	userHandler := handler.NewUserHandler(auth)

	mux := router.NewRouter(router.Dependencies{
		AuthHandler:      authHandler,
		UserHandler:      userHandler,
		Sessions:         sessions,
		CORSOrigins:      cfg.CORSOrigins,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELHTTPEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	application := app.New(cfg, logger, server, obsRuntime, sessions, readiness, stopBackground)
	sweeper := store.NewSweeper(sessions, cfg.SweepInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "backend", cfg.SessionBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(bgCtx)
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
		}
		return shutdown(application)
	})

	err = g.Wait()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	return err
}

func shutdown(a *app.App) error {
	drainCtx, cancel := context.WithTimeout(context.Background(), a.ShutdownHTTPDrainTimeout)
	defer cancel()
	if err := a.Server.Shutdown(drainCtx); err != nil {
		a.Logger.Warn("http drain failed", "error", err)
	}

	a.StopBackgroundTasks()

	obsCtx, cancelObs := context.WithTimeout(context.Background(), a.ShutdownObservabilityTimeout)
	defer cancelObs()
	if err := a.Observability.Shutdown(obsCtx); err != nil {
		a.Logger.Warn("observability shutdown failed", "error", err)
	}
	a.Logger.Info("shutdown complete")
	return nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DBDSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
		return db, nil
	case config.DriverSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.DBDSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

func openSessionStore(cfg *config.Config) (store.Store, *redis.Client, error) {
	switch cfg.SessionBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return store.NewRedisStore(client, "session", cfg.SessionTTL), client, nil
	case config.BackendMemory:
		return store.NewMemoryStore(cfg.SessionTTL), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session backend %q", cfg.SessionBackend)
	}
}
