package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"family_tree/internal/api"
	"family_tree/internal/api/session"
	"family_tree/internal/app/service"
	"family_tree/internal/common/security"
	"family_tree/internal/platform/cache"
	"family_tree/internal/platform/config"
	"family_tree/internal/platform/logging"
	"family_tree/internal/platform/storage"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg)
	logger.Info("configuration loaded", "env", cfg.AppEnv, "storage", cfg.StorageDriver)
	if cfg.JWTKeyIsFallback {
		logger.Warn("JWT_SECRET is not set; signing tokens with the built-in development secret")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

// run owns every resource the server opens, so its defers have all fired by
// the time main decides on the exit code.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// 2. Initialize Storage
	repos, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer repos.Close()

	// 3. Initialize token revocation
	var revoker security.Revoker = security.NoopRevoker{}
	if cfg.TokenRevocation {
		rdb, err := cache.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		revoker = security.NewRedisRevoker(rdb)
		logger.Info("token revocation enabled", "redis", cfg.RedisAddr)
	}

	// 4. Initialize Services
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	tokens := security.NewTokenService(cfg.JWTKey, cfg.JWTExp)
	authService := service.NewAuthService(repos.Users, hasher, tokens, revoker, logger)
	memberService := service.NewMemberService(repos.Members, logger)

	// 5. Initialize Router & HTTP Server
	transport := session.NewTransport(cfg.JWTExp, cfg.IsProduction())
	router := api.NewRouter(authService, memberService, transport, cfg.ProtectedPrefixes, logger)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 6. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("could not listen on port %s: %w", cfg.APIPort, err)
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
