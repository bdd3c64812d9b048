// Command seed creates the initial admin account from ADMIN_USERNAME and
// ADMIN_PASSWORD. Running it again leaves an existing account untouched.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"family_tree/internal/app/service"
	"family_tree/internal/common/security"
	"family_tree/internal/platform/config"
	"family_tree/internal/platform/logging"
	"family_tree/internal/platform/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg)

	if cfg.AdminPassword == "" {
		logger.Error("ADMIN_PASSWORD must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repos, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer repos.Close()

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	tokens := security.NewTokenService(cfg.JWTKey, cfg.JWTExp)
	authService := service.NewAuthService(repos.Users, hasher, tokens, nil, logger)

	created, err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		logger.Error("failed to seed admin", "username", cfg.AdminUsername, "error", err)
		os.Exit(1)
	}
	if created {
		logger.Info("admin account created", "username", cfg.AdminUsername)
	} else {
		logger.Info("admin account already exists", "username", cfg.AdminUsername)
	}
}
