// Package database contains the logic for establishing
// connections to the relational store.
//
// PostgreSQL is the production target and goes through a pgx
// connection pool with query tracing/logging. SQLite is supported
// through database/sql + sqlx for local runs and tests.
//
// It handles:
//   - detecting the driver from the connection string
//   - creating a pgx connection pool (pgxpool) or an sqlx handle
//   - wiring query tracing/logging (pgx tracelog)
//   - optional New Relic instrumentation (nrpgx5)
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deppfellow/users-api/internal/config"
	loggerConfig "github.com/deppfellow/users-api/internal/logger"
	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jmoiron/sqlx"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"

	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"
)

// Driver names the backend a Database talks to.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite3"
)

// ErrUnsupportedDSN is returned for connection strings with an unknown scheme.
var ErrUnsupportedDSN = errors.New("unsupported database connection string")

// DatabasePingTimeout is how long startup waits for the first ping.
const DatabasePingTimeout = 10 * time.Second

// Database wraps whichever handle the driver needs.
//
// Exactly one of Pool (postgres) and SQL (sqlite3) is set.
type Database struct {
	Driver Driver
	Pool   *pgxpool.Pool
	SQL    *sqlx.DB
	log    *zerolog.Logger
}

// multiTracer allows chaining multiple pgx tracers.
//
// pgx supports a single Tracer in ConnConfig; this adapter runs the
// New Relic tracer and the local tracelog side by side.
type multiTracer struct {
	tracers []any
}

// TraceQueryStart threads ctx through every tracer that supports it.
func (mt *multiTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryStart(context.Context, *pgx.Conn, pgx.TraceQueryStartData) context.Context
		}); ok {
			ctx = t.TraceQueryStart(ctx, conn, data)
		}
	}
	return ctx
}

// TraceQueryEnd calls TraceQueryEnd where supported.
func (mt *multiTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData)
		}); ok {
			t.TraceQueryEnd(ctx, conn, data)
		}
	}
}

// ParseDSN detects the driver for dsn and returns the string the driver expects.
//
//	postgres://…, postgresql://…   -> DriverPostgres, unchanged
//	sqlite://path, sqlite:///abs  -> DriverSQLite, path
//	file:…, :memory:              -> DriverSQLite, unchanged
func ParseDSN(dsn string) (Driver, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("%w: sqlite path is empty", ErrUnsupportedDSN)
		}
		return DriverSQLite, path, nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return DriverSQLite, dsn, nil
	default:
		return "", "", ErrUnsupportedDSN
	}
}

// New opens the database described by dsn and pings it.
//
// Inputs:
//   - cfg: application config (pool settings, environment)
//   - dsn: connection string from config.CredentialResolver
//   - logger: main app logger
//   - loggerService: optional New Relic service (nil if not configured)
func New(ctx context.Context, cfg *config.Config, dsn string, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	driver, driverDSN, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	var database *Database
	switch driver {
	case DriverPostgres:
		database, err = newPostgres(ctx, cfg, driverDSN, logger, loggerService)
	case DriverSQLite:
		database, err = newSQLite(ctx, driverDSN, logger)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, DatabasePingTimeout)
	defer cancel()
	if err = database.Ping(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Str("driver", string(driver)).Msg("connected to the database")

	return database, nil
}

func newPostgres(ctx context.Context, cfg *config.Config, dsn string, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	pgxPoolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	pgxPoolConfig.MaxConns = cfg.Database.MaxConns
	pgxPoolConfig.MinConns = cfg.Database.MinConns
	pgxPoolConfig.MaxConnLifetime = time.Duration(cfg.Database.ConnMaxLifetime) * time.Second
	pgxPoolConfig.MaxConnIdleTime = time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second

	if loggerService.GetApplication() != nil {
		pgxPoolConfig.ConnConfig.Tracer = nrpgx5.NewTracer()
	}

	// SQL query logging is noisy, so it only runs in local env.
	if cfg.Primary.Env == "local" {
		globalLevel := logger.GetLevel()
		pgxLogger := loggerConfig.NewPgxLogger(globalLevel)

		localTracer := &tracelog.TraceLog{
			Logger:   pgxzero.NewLogger(pgxLogger),
			LogLevel: tracelog.LogLevel(loggerConfig.GetPgxTraceLogLevel(globalLevel)),
		}

		if pgxPoolConfig.ConnConfig.Tracer != nil {
			pgxPoolConfig.ConnConfig.Tracer = &multiTracer{
				tracers: []any{pgxPoolConfig.ConnConfig.Tracer, localTracer},
			}
		} else {
			pgxPoolConfig.ConnConfig.Tracer = localTracer
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	return &Database{
		Driver: DriverPostgres,
		Pool:   pool,
		log:    logger,
	}, nil
}

func newSQLite(ctx context.Context, dsn string, logger *zerolog.Logger) (*Database, error) {
	db, err := sqlx.Open(string(DriverSQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Every new connection to an in-memory database is a fresh, empty
	// database, so the pool is pinned to one connection.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	if err := applySQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Database{
		Driver: DriverSQLite,
		SQL:    db,
		log:    logger,
	}, nil
}

// Ping checks connectivity for either backend.
func (db *Database) Ping(ctx context.Context) error {
	switch {
	case db.Pool != nil:
		return db.Pool.Ping(ctx)
	case db.SQL != nil:
		return db.SQL.PingContext(ctx)
	default:
		return errors.New("database not initialized")
	}
}

// Close releases the pool or the sqlx handle.
func (db *Database) Close() error {
	db.log.Info().Str("driver", string(db.Driver)).Msg("closing database connection pool")

	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.SQL != nil {
		return db.SQL.Close()
	}
	return nil
}
