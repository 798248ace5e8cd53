package repository

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tasknexus/pkg/db"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate 应用内置的 schema migrations
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return db.RunMigrations(ctx, pool, sub, logger)
}
