// Package storage picks the repository backend named by the configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"family_tree/internal/domain/repository"
	"family_tree/internal/platform/config"
	"family_tree/internal/platform/database"
	"family_tree/internal/platform/filestore"
)

type Repositories struct {
	Users   repository.UserRepository
	Members repository.MemberRepository

	close func() error
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Open returns repositories backed by JSON files in cfg.DataDir or by
// Postgres, creating the schema on first use.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Repositories, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("using postgres storage", "host", cfg.DBHost, "db", cfg.DBName)
		return &Repositories{
			Users:   repository.NewPgUserRepository(db),
			Members: repository.NewPgMemberRepository(db),
			close:   db.Close,
		}, nil

	case config.StorageFile:
		store, err := filestore.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		log.Info("using file storage", "dir", cfg.DataDir)
		return &Repositories{Users: store.Users(), Members: store.Members()}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
