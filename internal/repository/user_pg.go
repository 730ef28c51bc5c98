package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/users-api/internal/model/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgUserRepository stores users in PostgreSQL through a pgx pool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, name string) (*user.User, error) {
	stmt := `
		INSERT INTO
			users (name)
		VALUES
			(@name)
		RETURNING
			id, name
	`

	rows, err := r.pool.Query(ctx, stmt, pgx.NamedArgs{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create user query for name=%s: %w", name, err)
	}

	created, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		return nil, fmt.Errorf("failed to collect row from users for name=%s: %w", name, err)
	}

	return &created, nil
}

func (r *PgUserRepository) List(ctx context.Context) ([]user.User, error) {
	stmt := `
		SELECT
			id, name
		FROM
			users
		ORDER BY
			id ASC
	`

	rows, err := r.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute list users query: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		return nil, fmt.Errorf("failed to collect rows from users: %w", err)
	}

	return users, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	stmt := `
		SELECT
			id, name
		FROM
			users
		WHERE
			id = @id
	`

	rows, err := r.pool.Query(ctx, stmt, pgx.NamedArgs{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get user query for id=%d: %w", id, err)
	}

	found, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(err)
		}
		return nil, fmt.Errorf("failed to collect row from users for id=%d: %w", id, err)
	}

	return &found, nil
}

func (r *PgUserRepository) FindByName(ctx context.Context, name string) (*user.User, error) {
	stmt := `
		SELECT
			id, name
		FROM
			users
		WHERE
			name = @name
	`

	rows, err := r.pool.Query(ctx, stmt, pgx.NamedArgs{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to execute find user query for name=%s: %w", name, err)
	}

	found, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to collect row from users for name=%s: %w", name, err)
	}

	return &found, nil
}

func (r *PgUserRepository) UpdateName(ctx context.Context, id int64, name string) (*user.User, error) {
	stmt := `
		UPDATE users
		SET
			name = @name
		WHERE
			id = @id
		RETURNING
			id, name
	`

	rows, err := r.pool.Query(ctx, stmt, pgx.NamedArgs{"id": id, "name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to execute update user query for id=%d: %w", id, err)
	}

	updated, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(err)
		}
		return nil, fmt.Errorf("failed to update users for id=%d: %w", id, err)
	}

	return &updated, nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id int64) error {
	stmt := `
		DELETE FROM users
		WHERE
			id = @id
	`

	tag, err := r.pool.Exec(ctx, stmt, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("failed to execute delete user query for id=%d: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows)
	}

	return nil
}
