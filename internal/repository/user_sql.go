package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/model/user"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/deppfellow/users-api/internal/repository"

var userColumns = []string{"id", "name"}

// queryMetrics holds the OpenTelemetry instruments recorded per statement.
type queryMetrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

func newQueryMetrics(meter metric.Meter) *queryMetrics {
	count, _ := meter.Int64Counter("users.query.count",
		metric.WithDescription("Total number of SQL queries executed"),
		metric.WithUnit("{query}"),
	)

	duration, _ := meter.Float64Histogram("users.query.duration",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500),
	)

	queryErrors, _ := meter.Int64Counter("users.query.errors",
		metric.WithDescription("Total number of query errors"),
		metric.WithUnit("{error}"),
	)

	return &queryMetrics{count: count, duration: duration, errors: queryErrors}
}

// SQLUserRepository stores users through database/sql (sqlx) with
// statements built by squirrel. It serves SQLite and, given a postgres
// handle, PostgreSQL.
type SQLUserRepository struct {
	db       *sqlx.DB
	driver   database.Driver
	builder  sq.StatementBuilderType
	logger   *zerolog.Logger
	tracer   trace.Tracer
	metrics  *queryMetrics
	slowTime time.Duration
}

func NewSQLUserRepository(db *sqlx.DB, driver database.Driver, logger *zerolog.Logger, slowQueryThreshold time.Duration) *SQLUserRepository {
	var placeholder sq.PlaceholderFormat = sq.Dollar
	if driver == database.DriverSQLite {
		placeholder = sq.Question
	}

	return &SQLUserRepository{
		db:       db,
		driver:   driver,
		builder:  sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		metrics:  newQueryMetrics(otel.Meter(instrumentationName)),
		slowTime: slowQueryThreshold,
	}
}

// observe wraps a single statement in a span, records metrics and logs
// statements slower than the configured threshold.
func (r *SQLUserRepository) observe(ctx context.Context, operation string, run func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "users."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", string(r.driver)),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", usersTable),
		),
	)
	defer span.End()

	start := time.Now()
	err := run(ctx)
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.String("db.system", string(r.driver)),
	)
	r.metrics.count.Add(ctx, 1, attrs)
	r.metrics.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	// A missing row is an answer, not a failure.
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.metrics.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if r.logger != nil && r.slowTime > 0 && elapsed > r.slowTime {
		r.logger.Warn().
			Str("operation", operation).
			Dur("duration", elapsed).
			Msg("slow query")
	}

	return err
}

func (r *SQLUserRepository) Create(ctx context.Context, name string) (*user.User, error) {
	query, args, err := r.builder.Insert(usersTable).
		Columns("name").
		Values(name).
		Suffix("RETURNING id, name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build create user query: %w", err)
	}

	var created user.User
	err = r.observe(ctx, "insert", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &created, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create user query for name=%s: %w", name, err)
	}

	return &created, nil
}

func (r *SQLUserRepository) List(ctx context.Context) ([]user.User, error) {
	query, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list users query: %w", err)
	}

	users := make([]user.User, 0)
	err = r.observe(ctx, "select", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &users, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute list users query: %w", err)
	}

	return users, nil
}

func (r *SQLUserRepository) get(ctx context.Context, where sq.Eq) (*user.User, error) {
	query, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	var found user.User
	err = r.observe(ctx, "select", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &found, query, args...)
	})
	if err != nil {
		return nil, err
	}

	return &found, nil
}

func (r *SQLUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	found, err := r.get(ctx, sq.Eq{"id": id})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(err)
		}
		return nil, fmt.Errorf("failed to execute get user query for id=%d: %w", id, err)
	}
	return found, nil
}

func (r *SQLUserRepository) FindByName(ctx context.Context, name string) (*user.User, error) {
	found, err := r.get(ctx, sq.Eq{"name": name})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to execute find user query for name=%s: %w", name, err)
	}
	return found, nil
}

func (r *SQLUserRepository) UpdateName(ctx context.Context, id int64, name string) (*user.User, error) {
	query, args, err := r.builder.Update(usersTable).
		Set("name", name).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update user query: %w", err)
	}

	var updated user.User
	err = r.observe(ctx, "update", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &updated, query, args...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(err)
		}
		return nil, fmt.Errorf("failed to execute update user query for id=%d: %w", id, err)
	}

	return &updated, nil
}

func (r *SQLUserRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.builder.Delete(usersTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete user query: %w", err)
	}

	var affected int64
	err = r.observe(ctx, "delete", func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to execute delete user query for id=%d: %w", id, err)
	}

	if affected == 0 {
		return notFound(sql.ErrNoRows)
	}

	return nil
}
