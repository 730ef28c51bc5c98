package service

import (
	"context"
	"fmt"

	"github.com/deppfellow/users-api/internal/errs"
	"github.com/deppfellow/users-api/internal/middleware"
	"github.com/deppfellow/users-api/internal/model/user"
	"github.com/deppfellow/users-api/internal/repository"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/deppfellow/users-api/internal/validation"
	"github.com/rs/zerolog"
)

// userConflictCode matches the code sqlerr derives for a unique violation
// on the users table, so the pre-check and the constraint answer alike.
var userConflictCode = "USER_ALREADY_EXISTS"

type UserService struct {
	server *server.Server
	users  repository.UserStore
}

func NewUserService(s *server.Server, users repository.UserStore) *UserService {
	return &UserService{
		server: s,
		users:  users,
	}
}

// logger prefers the request-scoped logger carried by ctx.
func (s *UserService) logger(ctx context.Context) *zerolog.Logger {
	if l := middleware.LoggerFromContext(ctx); l != nil {
		return l
	}
	if s.server == nil || s.server.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return s.server.Logger
}

// Create inserts a user after checking the name is free.
//
// The pre-check and the insert are not atomic; a concurrent insert of the
// same name is rejected by the unique constraint instead.
func (s *UserService) Create(ctx context.Context, name string) (*user.User, error) {
	existing, err := s.users.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.NewConflictError(fmt.Sprintf("User with name '%s' already exists.", name), true, &userConflictCode)
	}

	created, err := s.users.Create(ctx, name)
	if err != nil {
		return nil, err
	}

	s.logger(ctx).Info().
		Str("event", "user_created").
		Int64("user_id", created.ID).
		Msg("user created")

	return created, nil
}

func (s *UserService) List(ctx context.Context) ([]user.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return s.users.GetByID(ctx, id)
}

// Update renames user id. Order of checks: unknown id (404), unreadable
// or invalid name (400), name held by another user (409).
//
// readName is only called once the user is known to exist.
func (s *UserService) Update(ctx context.Context, id int64, readName func() (string, error)) (*user.User, error) {
	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, err := readName()
	if err != nil {
		return nil, err
	}

	if err := validation.ToHTTPError(user.ValidateName(name)); err != nil {
		return nil, err
	}

	if name != current.Name {
		holder, err := s.users.FindByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if holder != nil && holder.ID != id {
			return nil, errs.NewConflictError(fmt.Sprintf("Another user with name '%s' already exists.", name), true, &userConflictCode)
		}
	}

	updated, err := s.users.UpdateName(ctx, id, name)
	if err != nil {
		return nil, err
	}

	s.logger(ctx).Info().
		Str("event", "user_updated").
		Int64("user_id", updated.ID).
		Msg("user updated")

	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.logger(ctx).Info().
		Str("event", "user_deleted").
		Int64("user_id", id).
		Msg("user deleted")

	return nil
}
