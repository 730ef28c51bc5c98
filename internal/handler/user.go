package handler

import (
	"fmt"

	"github.com/deppfellow/users-api/internal/model/user"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/deppfellow/users-api/internal/service"
	"github.com/deppfellow/users-api/internal/validation"
	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	Handler
	userService *service.UserService
}

func NewUserHandler(s *server.Server, userService *service.UserService) *UserHandler {
	return &UserHandler{
		Handler:     NewHandler(s),
		userService: userService,
	}
}

func (h *UserHandler) CreateUser(c echo.Context, payload *user.CreateUserRequest) (*user.MutationResponse, error) {
	created, err := h.userService.Create(c.Request().Context(), payload.Name)
	if err != nil {
		return nil, err
	}

	return &user.MutationResponse{
		Message: fmt.Sprintf("User %s added!", created.Name),
		User:    created,
	}, nil
}

func (h *UserHandler) ListUsers(c echo.Context, _ *user.ListUsersRequest) ([]user.User, error) {
	return h.userService.List(c.Request().Context())
}

func (h *UserHandler) GetUser(c echo.Context, payload *user.GetUserRequest) (*user.User, error) {
	return h.userService.GetByID(c.Request().Context(), payload.ID)
}

func (h *UserHandler) UpdateUser(c echo.Context, payload *user.UpdateUserRequest) (*user.MutationResponse, error) {
	updated, err := h.userService.Update(c.Request().Context(), payload.ID, func() (string, error) {
		var body user.UpdateUserBody
		if err := validation.BindBody(c, &body); err != nil {
			return "", err
		}
		return body.Name, nil
	})
	if err != nil {
		return nil, err
	}

	return &user.MutationResponse{
		Message: fmt.Sprintf("User %d updated!", updated.ID),
		User:    updated,
	}, nil
}

func (h *UserHandler) DeleteUser(c echo.Context, payload *user.DeleteUserRequest) (*user.MutationResponse, error) {
	if err := h.userService.Delete(c.Request().Context(), payload.ID); err != nil {
		return nil, err
	}

	return &user.MutationResponse{
		Message: fmt.Sprintf("User %d deleted!", payload.ID),
	}, nil
}
