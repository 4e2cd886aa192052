package app

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

	"task-manager-api/internal/config"
	"task-manager-api/internal/database"
	"task-manager-api/internal/handler"
	"task-manager-api/internal/identity"
	"task-manager-api/internal/middleware"
	"task-manager-api/internal/repository"
	"task-manager-api/internal/router"
	"task-manager-api/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	pool := db.Pool
	taskRepo := repository.NewTaskRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())

	var provider identity.Provider
	switch cfg.AuthStrategy {
	case config.StrategyLocal:
		tokenRepo := repository.NewTokenRepository(pool)
		local, err := identity.NewLocalProvider(repository.NewUserRepository(pool), tokenRepo, identity.LocalOptions{
			Secret:     cfg.JWTSecret,
			AccessTTL:  cfg.JWTAccessTTL,
			RefreshTTL: cfg.JWTRefreshTTL,
		})
		if err != nil {
			cleanupCancel()
			db.Close()
			return nil, fmt.Errorf("failed to initialize local identity provider: %w", err)
		}
		provider = local
		go startTokenCleanup(cleanupCtx, tokenRepo, cfg.TokenCleanupInterval)
	default:
		remote, err := identity.NewRemoteProvider(identity.RemoteOptions{
			BaseURL:     cfg.IdentityURL,
			APIKey:      cfg.IdentityAPIKey,
			RedirectURL: cfg.PublicBaseURL,
			Timeout:     cfg.IdentityTimeout,
			MaxRetries:  cfg.IdentityMaxRetries,
			Backoff:     cfg.IdentityRetryBackoff,
		})
		if err != nil {
			cleanupCancel()
			db.Close()
			return nil, fmt.Errorf("failed to initialize remote identity provider: %w", err)
		}
		provider = remote
	}
	slog.Info("identity provider ready", "strategy", cfg.AuthStrategy)

	errs := handler.ErrorWriter{ExposeDetails: !cfg.IsProduction()}
	secureCookies := cfg.IsProduction()

	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(provider)
	taskService := service.NewTaskService(taskRepo, auditService)

	authMiddleware := middleware.NewAuthMiddleware(provider, secureCookies)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Health: handler.NewHealthHandler(db),
		Auth:   handler.NewAuthHandler(authService, secureCookies, errs),
		Task:   handler.NewTaskHandler(taskService, errs),
		Audit:  handler.NewAuditHandler(auditService, errs),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				cleanupCancel()
			},
			func() {
				db.Close()
			},
		},
	}, nil
}

type expiredTokenCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// startTokenCleanup purges expired refresh tokens until ctx is cancelled.
func startTokenCleanup(ctx context.Context, tokens expiredTokenCleaner, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := tokens.CleanExpired(ctx)
			if err != nil {
				slog.Warn("refresh token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired refresh tokens removed", "count", removed)
			}
		}
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
