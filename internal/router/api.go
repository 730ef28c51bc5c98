package router

import (
	"net/http"

	"github.com/deppfellow/users-api/internal/handler"
	"github.com/deppfellow/users-api/internal/model/user"
	"github.com/labstack/echo/v4"
)

// route is one entry of the API route table.
type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
}

func apiRoutes(h *handler.Handlers) []route {
	uh := h.User

	return []route{
		{http.MethodPost, "/users", handler.Handle(uh.Handler, uh.CreateUser, http.StatusCreated, &user.CreateUserRequest{})},
		{http.MethodGet, "/users", handler.Handle(uh.Handler, uh.ListUsers, http.StatusOK, &user.ListUsersRequest{})},
		{http.MethodGet, "/users/:id", handler.Handle(uh.Handler, uh.GetUser, http.StatusOK, &user.GetUserRequest{})},
		{http.MethodPut, "/users/:id", handler.Handle(uh.Handler, uh.UpdateUser, http.StatusOK, &user.UpdateUserRequest{})},
		{http.MethodDelete, "/users/:id", handler.Handle(uh.Handler, uh.DeleteUser, http.StatusOK, &user.DeleteUserRequest{})},
		{http.MethodGet, "/health", h.Health.Health},
	}
}

func registerAPIRoutes(g *echo.Group, h *handler.Handlers) {
	for _, rt := range apiRoutes(h) {
		g.Add(rt.method, rt.path, rt.handler)
	}
}
