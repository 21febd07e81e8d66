package database

import (
	"context"
	"embed"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the self-host schema up to date.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return errors.Wrap(err, "applying migrations")
	}
	return nil
}

// RunMigration executes an arbitrary goose command ("up", "down-to",
// "status", ...) against the embedded migrations.
func RunMigration(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, db.DB, "migrations", args...)
}

func prepareGoose() error {
	goose.SetBaseFS(migrations)
	return errors.Wrap(goose.SetDialect("postgres"), "setting goose dialect")
}
