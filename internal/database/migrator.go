package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	tern "github.com/jackc/tern/v2/migrate"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Postgres migrations, embedded so the binary carries its own schema.
//
//go:embed migrations/*.sql
var migrations embed.FS

// SQLite has no migration history; the schema is idempotent DDL.
//
//go:embed schema_sqlite.sql
var sqliteSchema string

// versionTable records the applied tern migration version.
const versionTable = "schema_version"

// Migrate brings the database behind dsn to the latest schema.
//
// Postgres goes through jackc/tern on a single connection; SQLite gets
// the embedded schema applied directly.
func Migrate(ctx context.Context, logger *zerolog.Logger, dsn string) error {
	driver, driverDSN, err := ParseDSN(dsn)
	if err != nil {
		return err
	}

	if driver == DriverSQLite {
		db, err := sqlx.Open(string(DriverSQLite), driverDSN)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		defer db.Close()

		if err := applySQLiteSchema(ctx, db); err != nil {
			return err
		}
		logger.Info().Msg("applied sqlite schema")
		return nil
	}

	conn, err := pgx.Connect(ctx, driverDSN)
	if err != nil {
		return fmt.Errorf("connecting for migrations: %w", err)
	}
	defer conn.Close(ctx)

	m, err := tern.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return fmt.Errorf("constructing database migrator: %w", err)
	}

	subtree, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("retrieving database migrations subtree: %w", err)
	}

	if err := m.LoadMigrations(subtree); err != nil {
		return fmt.Errorf("loading database migrations: %w", err)
	}

	from, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("retrieving current database migration version: %w", err)
	}

	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("applying database migrations: %w", err)
	}

	if from == int32(len(m.Migrations)) {
		logger.Info().Msgf("database schema up to date, version %d", len(m.Migrations))
	} else {
		logger.Info().Msgf("migrated database schema, from %d to %d", from, len(m.Migrations))
	}
	return nil
}

func applySQLiteSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("applying sqlite schema: %w", err)
	}
	return nil
}
