// Package repository handles all interactions with the database.
//
// It contains the SQL statements that fetch, persist, update or
// delete users, abstracting SQL logic away from the service layer.
// Missing rows are reported as ErrNoRows wrapped with the
// sqlerr.NotFoundMarker so the error layer can name the entity.
package repository

import (
	"context"
	"fmt"

	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/model/user"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/deppfellow/users-api/internal/sqlerr"
)

const usersTable = "users"

// UserStore is the persistence contract for users.
type UserStore interface {
	Create(ctx context.Context, name string) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id int64) (*user.User, error)
	// FindByName returns (nil, nil) when no user holds name.
	FindByName(ctx context.Context, name string) (*user.User, error)
	UpdateName(ctx context.Context, id int64, name string) (*user.User, error)
	Delete(ctx context.Context, id int64) error
}

// Repositories is a container for all repository instances.
type Repositories struct {
	Users UserStore
}

// NewRepositories picks the store implementation matching the database
// driver the server was started with.
func NewRepositories(s *server.Server) *Repositories {
	var users UserStore
	switch s.DB.Driver {
	case database.DriverPostgres:
		users = NewPgUserRepository(s.DB.Pool)
	default:
		users = NewSQLUserRepository(s.DB.SQL, s.DB.Driver, s.Logger, s.Config.Observability.Logging.SlowQueryThreshold)
	}

	return &Repositories{Users: users}
}

func notFound(err error) error {
	return fmt.Errorf("%s%s: %w", sqlerr.NotFoundMarker, usersTable, err)
}
