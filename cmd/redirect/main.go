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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/imagefork/redirect/internal/audit"
	"github.com/imagefork/redirect/internal/cache"
	"github.com/imagefork/redirect/internal/config"
	"github.com/imagefork/redirect/internal/portal"
	"github.com/imagefork/redirect/internal/posters"
	"github.com/imagefork/redirect/internal/redirect"
	"github.com/imagefork/redirect/internal/server"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("imagefork redirect %s\n", Version)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	store, err := posters.OpenSQLite(cfg.Posters.SQLitePath)
	if err != nil {
		return fmt.Errorf("open poster store: %w", err)
	}
	defer store.Close()

	tokenCache, err := newTokenCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open coherency token cache: %w", err)
	}
	defer tokenCache.Close()

	redirectHandler := redirect.NewHandler(
		store,
		tokenCache,
		cfg.Cache.TokenKeepalive(),
		cfg.Server.RequestTimeout(),
		log.With().Str("component", "redirect").Logger(),
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	var auditLog *audit.Logger
	if cfg.Portal.Enabled {
		auditLog, err = audit.NewLogger(&audit.Config{
			Enabled: cfg.Portal.Audit.Enabled,
			Output:  cfg.Portal.Audit.Output,
			Format:  cfg.Portal.Audit.Format,
		})
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditLog.Close()

		portalHandler := portal.NewHandler(
			store,
			auditLog,
			cfg.Portal.AdminKey,
			log.With().Str("component", "portal").Logger(),
		)
		r.Route("/portal", portalHandler.Routes)
	}

	// The redirect wildcard goes last; chi still matches /portal first.
	redirectHandler.Routes(r)

	public := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	mgmt := server.New(cfg.Management.Addr, Version)
	mgmt.RegisterHealthCheck("posters", store.Ping)
	mgmt.RegisterHealthCheck("cache", tokenCache.Ping)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Listen).Str("version", Version).Msg("redirect server starting")
		if err := public.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("redirect server: %w", err)
		}
		return nil
	})

	if cfg.Management.Enabled {
		g.Go(func() error {
			log.Info().Str("addr", cfg.Management.Addr).Msg("management server starting")
			if err := mgmt.Start(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("management server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := public.Shutdown(shutdownCtx)
		if mgmtErr := mgmt.Stop(shutdownCtx); err == nil {
			err = mgmtErr
		}
		return err
	})

	return g.Wait()
}

// newLogger builds the root logger from config
func newLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var log zerolog.Logger
	if cfg.Format == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger(), nil
}

// newTokenCache builds the coherency token cache backend from config
func newTokenCache(cfg config.CacheConfig) (cache.TokenCache, error) {
	switch cfg.Type {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		return cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
