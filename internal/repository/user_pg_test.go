package repository

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/deppfellow/users-api/internal/config"
	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/errs"
	"github.com/deppfellow/users-api/internal/sqlerr"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPgStore connects to the database named by TEST_DATABASE_URL and
// empties the users table. Tests are skipped without it.
func newPgStore(t *testing.T) *PgUserRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	logger := zerolog.Nop()

	require.NoError(t, database.Migrate(ctx, &logger, dsn))

	db, err := database.New(ctx, config.DefaultConfig(), dsn, &logger, nil)
	require.NoError(t, err)
	require.Equal(t, database.DriverPostgres, db.Driver)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Pool.Exec(ctx, "TRUNCATE users RESTART IDENTITY")
	require.NoError(t, err)

	return NewPgUserRepository(db.Pool)
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()

	var httpErr *errs.HTTPError
	require.True(t, errors.As(sqlerr.HandleError(err), &httpErr))
	assert.Equal(t, status, httpErr.Status)
}

func TestPgUserRepository_Lifecycle(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	alice, err := store.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)

	bob, err := store.Create(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), bob.ID)

	found, err := store.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, *alice, *found)

	byName, err := store.FindByName(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, bob.ID, byName.ID)

	updated, err := store.UpdateName(ctx, alice.ID, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Name)

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, alice.ID, users[0].ID)
	assert.Equal(t, "alicia", users[0].Name)

	require.NoError(t, store.Delete(ctx, alice.ID))

	_, err = store.GetByID(ctx, alice.ID)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestPgUserRepository_MissingRows(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	nobody, err := store.FindByName(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, nobody)

	_, err = store.GetByID(ctx, 42)
	requireStatus(t, err, http.StatusNotFound)

	_, err = store.UpdateName(ctx, 42, "x")
	requireStatus(t, err, http.StatusNotFound)

	err = store.Delete(ctx, 42)
	requireStatus(t, err, http.StatusNotFound)
}

func TestPgUserRepository_IDBeyondInt32IsMissing(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	const id = 3_000_000_000

	_, err := store.GetByID(ctx, id)
	requireStatus(t, err, http.StatusNotFound)

	_, err = store.UpdateName(ctx, id, "x")
	requireStatus(t, err, http.StatusNotFound)

	err = store.Delete(ctx, id)
	requireStatus(t, err, http.StatusNotFound)
}

func TestPgUserRepository_UniqueConstraint(t *testing.T) {
	store := newPgStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = store.Create(ctx, "alice")
	require.Error(t, err)
	requireStatus(t, err, http.StatusConflict)

	bob, err := store.Create(ctx, "bob")
	require.NoError(t, err)

	_, err = store.UpdateName(ctx, bob.ID, "alice")
	requireStatus(t, err, http.StatusConflict)
}
