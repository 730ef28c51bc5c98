package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/deppfellow/users-api/internal/config"
	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/errs"
	"github.com/deppfellow/users-api/internal/repository"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/deppfellow/users-api/internal/sqlerr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *UserService {
	t.Helper()

	logger := zerolog.Nop()
	cfg := config.DefaultConfig()

	db, err := database.New(context.Background(), cfg, ":memory:", &logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := &server.Server{Config: cfg, Logger: &logger, DB: db}
	return NewUserService(s, repository.NewRepositories(s).Users)
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var httpErr *errs.HTTPError
	require.True(t, errors.As(sqlerr.HandleError(err), &httpErr), "got %v", err)
	return httpErr.Status
}

func name(n string) func() (string, error) {
	return func() (string, error) { return n, nil }
}

func TestUserService_CreateConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Name)

	_, err = svc.Create(ctx, "alice")
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusConflict, httpErr.Status)
	assert.Equal(t, "USER_ALREADY_EXISTS", httpErr.Code)
	assert.Equal(t, "User with name 'alice' already exists.", httpErr.Message)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserService_ListEmpty(t *testing.T) {
	svc := newTestService(t)

	users, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserService_UpdateOrderOfChecks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob")
	require.NoError(t, err)

	// unknown id wins over an invalid name
	_, err = svc.Update(ctx, 999, name(""))
	assert.Equal(t, http.StatusNotFound, httpStatus(t, err))

	_, err = svc.Update(ctx, alice.ID, name(""))
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))

	_, err = svc.Update(ctx, alice.ID, name(strings.Repeat("a", 81)))
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))

	_, err = svc.Update(ctx, alice.ID, name("bob"))
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusConflict, httpErr.Status)
	assert.Equal(t, "Another user with name 'bob' already exists.", httpErr.Message)
}

func TestUserService_UpdateToOwnName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Create(ctx, "alice")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, alice.ID, name("alice"))
	require.NoError(t, err)
	assert.Equal(t, *alice, *updated)

	renamed, err := svc.Update(ctx, alice.ID, name("alicia"))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, renamed.ID)
	assert.Equal(t, "alicia", renamed.Name)
}

func TestUserService_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Create(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice.ID))

	_, err = svc.GetByID(ctx, alice.ID)
	assert.Equal(t, http.StatusNotFound, httpStatus(t, err))

	err = svc.Delete(ctx, alice.ID)
	assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
}

func TestUserService_UpdateUnknownIDSkipsBody(t *testing.T) {
	svc := newTestService(t)

	read := false
	_, err := svc.Update(context.Background(), 999, func() (string, error) {
		read = true
		return "", errs.NewBadRequestError("unreadable body", false, nil, nil, nil)
	})
	assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
	assert.False(t, read)
}

func TestUserService_UpdateBodyError(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice.ID, func() (string, error) {
		return "", errs.NewBadRequestError("unreadable body", false, nil, nil, nil)
	})
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))

	found, err := svc.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Name)
}
