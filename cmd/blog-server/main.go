// Package main is the entry point for the Inkwell blog server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/cache/memory"
	"github.com/prn-tf/inkwell/internal/cache/redis"
	"github.com/prn-tf/inkwell/internal/config"
	"github.com/prn-tf/inkwell/internal/handler"
	"github.com/prn-tf/inkwell/internal/lock"
	"github.com/prn-tf/inkwell/internal/media"
	"github.com/prn-tf/inkwell/internal/metrics"
	"github.com/prn-tf/inkwell/internal/pkg/logger"
	"github.com/prn-tf/inkwell/internal/repository"
	"github.com/prn-tf/inkwell/internal/service"
	"github.com/prn-tf/inkwell/internal/store"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "inkwell: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("store", cfg.Store.Driver).
		Msg("starting inkwell server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	var wrap []repository.DriverWrapper
	if cfg.Metrics.Enabled {
		m = metrics.New()
		wrap = append(wrap, func(d store.Driver) store.Driver { return metrics.InstrumentDriver(d, m) })
	}

	// Store
	result, err := repository.NewFactory(cfg, log, wrap...).Create(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := result.Driver.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()
	repos := result.Repos

	checks := map[string]handler.Checker{"store": result.Driver}

	// Sessions, view windows and locks
	var (
		cache  repository.Cache
		locker lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		}, log)
		if err != nil {
			return err
		}
		defer client.Close()
		rc := redis.NewCache(client)
		cache = rc
		locker = redis.NewLock(client)
		checks["redis"] = rc
	} else {
		mc := memory.NewCache()
		defer mc.Stop()
		cache = mc
		locker = lock.NewMemoryLocker()
		log.Warn().Msg("redis disabled; sessions and locks are local to this process")
	}

	// Services
	users := service.NewUserService(repos.User, cache, locker, m, cfg.Auth, log)
	categories := service.NewCategoryService(repos.Category, log)
	posts := service.NewPostService(repos.Post, repos.Category, cache, log)
	comments := service.NewCommentService(repos.Comment, repos.Post, log)
	likes := service.NewLikeService(repos.Like, repos.Post, locker, cfg.Auth.LockTTL, m, log)

	var presigner handler.Presigner
	if cfg.Media.Enabled {
		uploader, err := media.New(ctx, cfg.Media.S3, log)
		if err != nil {
			return fmt.Errorf("failed to initialize media uploads: %w", err)
		}
		presigner = uploader
		checks["media"] = uploader
	}

	routerCfg := handler.RouterConfig{
		UserHandler:     handler.NewUserHandler(users, log),
		CategoryHandler: handler.NewCategoryHandler(categories, posts, log),
		PostHandler:     handler.NewPostHandler(posts, comments, likes, log),
		CommentHandler:  handler.NewCommentHandler(comments, log),
		MediaHandler:    handler.NewMediaHandler(presigner, log),
		HealthHandler:   handler.NewHealthHandler(checks, log),
		AuthMiddleware:  auth.Middleware(users, auth.DefaultConfig(), log),
		RequestTimeout:  cfg.Server.RequestTimeout,
		MaxBodySize:     cfg.Server.MaxBodySize,
		Logger:          log,
	}
	if m != nil {
		routerCfg.MetricsHandler = m.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
		routerCfg.Instrument = m.Middleware
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.NewRouter(routerCfg).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	return shutdown(srv, cfg.Server.ShutdownTimeout, log)
}

func shutdown(srv *http.Server, timeout time.Duration, log zerolog.Logger) error {
	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
