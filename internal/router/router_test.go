package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/users-api/internal/config"
	"github.com/deppfellow/users-api/internal/errs"
	"github.com/deppfellow/users-api/internal/handler"
	"github.com/deppfellow/users-api/internal/model/user"
	"github.com/deppfellow/users-api/internal/repository"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/deppfellow/users-api/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, mutate func(cfg *config.Config)) *echo.Echo {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	logger := zerolog.Nop()
	srv, err := server.New(context.Background(), cfg, ":memory:", &logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.DB.Close() })

	services, err := service.NewServices(srv, repository.NewRepositories(srv))
	require.NoError(t, err)

	return NewRouter(srv, handler.NewHandlers(srv, services))
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUsersLifecycle(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, http.MethodPost, "/api/users", `{"name":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[user.MutationResponse](t, rec)
	assert.Equal(t, "User alice added!", created.Message)
	require.NotNil(t, created.User)
	assert.Equal(t, user.User{ID: 1, Name: "alice"}, *created.User)

	rec = do(t, r, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []user.User{{ID: 1, Name: "alice"}}, decode[[]user.User](t, rec))

	rec = do(t, r, http.MethodGet, "/api/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.User{ID: 1, Name: "alice"}, decode[user.User](t, rec))

	rec = do(t, r, http.MethodPut, "/api/users/1", `{"name":"alicia"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[user.MutationResponse](t, rec)
	assert.Equal(t, "User 1 updated!", updated.Message)
	assert.Equal(t, "alicia", updated.User.Name)

	rec = do(t, r, http.MethodDelete, "/api/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User 1 deleted!"}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodDelete, "/api/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEmpty(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateValidation(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, http.MethodPost, "/api/users", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errs.HTTPError](t, rec)
	assert.Equal(t, []errs.FieldError{{Field: "name", Error: "is required"}}, body.Errors)

	rec = do(t, r, http.MethodPost, "/api/users", `{"name":"`+strings.Repeat("x", 81)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[errs.HTTPError](t, rec)
	assert.Equal(t, []errs.FieldError{{Field: "name", Error: "must not exceed 80 characters"}}, body.Errors)

	rec = do(t, r, http.MethodPost, "/api/users", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/users", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateDuplicate(t *testing.T) {
	r := newTestRouter(t, nil)

	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/users", `{"name":"alice"}`).Code)

	rec := do(t, r, http.MethodPost, "/api/users", `{"name":"alice"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errs.HTTPError](t, rec)
	assert.Equal(t, "USER_ALREADY_EXISTS", body.Code)
	assert.Equal(t, "User with name 'alice' already exists.", body.Message)
	assert.True(t, body.Override)

	rec = do(t, r, http.MethodGet, "/api/users", "")
	assert.Len(t, decode[[]user.User](t, rec), 1)
}

func TestUpdateRules(t *testing.T) {
	r := newTestRouter(t, nil)

	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/users", `{"name":"alice"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/users", `{"name":"bob"}`).Code)

	// unknown id is reported before the body is judged
	rec := do(t, r, http.MethodPut, "/api/users/99", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decode[errs.HTTPError](t, rec).Message)

	rec = do(t, r, http.MethodPut, "/api/users/1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/users/1", `{"name":"bob"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Another user with name 'bob' already exists.", decode[errs.HTTPError](t, rec).Message)

	rec = do(t, r, http.MethodPut, "/api/users/1", `{"name":"alice"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNonIntegerIDMatchesNoRoute(t *testing.T) {
	r := newTestRouter(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(t, r, method, "/api/users/abc", `{"name":"x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
}

func TestUpdateUnknownIDIgnoresBody(t *testing.T) {
	r := newTestRouter(t, nil)

	for _, body := range []string{`{"name":5}`, `{"name":`, `{"name":"ok"}`, ""} {
		rec := do(t, r, http.MethodPut, "/api/users/99", body)
		assert.Equal(t, http.StatusNotFound, rec.Code, body)
	}

	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/users", `{"name":"alice"}`).Code)

	for _, body := range []string{`{"name":5}`, `{"name":`} {
		rec := do(t, r, http.MethodPut, "/api/users/1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := do(t, r, http.MethodGet, "/api/users/1", "")
	assert.Equal(t, user.User{ID: 1, Name: "alice"}, decode[user.User](t, rec))
}

func TestHealthAndStatus(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", status["status"])
	assert.Contains(t, status["checks"], "database")
}

func TestDocsAndStatic(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, http.MethodGet, "/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "/static/openapi.json")

	rec = do(t, r, http.MethodGet, "/static/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"openapi"`)
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decode[errs.HTTPError](t, rec).Message)
}

func TestRequestIDEchoed(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = do(t, r, http.MethodGet, "/api/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestPathPrefix(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) {
		cfg.Server.PathPrefix = "/v2"
	})

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/v2/users", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/users", "").Code)
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 1
	})

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/health", "").Code)

	rec := do(t, r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", decode[errs.HTTPError](t, rec).Code)
}
