package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kmathys/skirmish/pkg/repositories/migrations"
	"github.com/pressly/goose/v3"
)

// runMigrations applies the embedded migrations to the database.
func runMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %v", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %v", err)
	}
	return nil
}
