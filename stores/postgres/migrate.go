package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	"github.com/panyam/quickauth/stores/postgres/migrations"
)

// gooseUp is swapped out in tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations to the database at dsn.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return oops.Code("MIGRATE_FAILED").With("operation", "open database").Wrap(err)
	}
	defer db.Close()
	return MigrateDB(ctx, db)
}

// MigrateDB applies the embedded schema migrations using an open handle.
func MigrateDB(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return oops.Code("MIGRATE_FAILED").With("operation", "set dialect").Wrap(err)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return oops.Code("MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}
