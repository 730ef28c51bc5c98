package user

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ------------------------------------------------------------

type CreateUserRequest struct {
	Name string `json:"name" validate:"required,max=80"`
}

func (r *CreateUserRequest) Validate() error {
	return validate.Struct(r)
}

// ------------------------------------------------------------

type ListUsersRequest struct{}

func (r *ListUsersRequest) Validate() error {
	return nil
}

// ------------------------------------------------------------

type GetUserRequest struct {
	ID int64 `param:"id" json:"-"`
}

func (r *GetUserRequest) Validate() error {
	return nil
}

// ------------------------------------------------------------

// UpdateUserRequest binds only the id. The body is decoded into
// UpdateUserBody after the user is found, so an unknown id is reported
// as 404 whatever the body holds.
type UpdateUserRequest struct {
	ID int64 `param:"id" json:"-"`
}

func (r *UpdateUserRequest) Validate() error {
	return nil
}

func (r *UpdateUserRequest) BindsPathOnly() {}

type UpdateUserBody struct {
	Name string `json:"name"`
}

// ------------------------------------------------------------

type DeleteUserRequest struct {
	ID int64 `param:"id" json:"-"`
}

func (r *DeleteUserRequest) Validate() error {
	return nil
}

// ------------------------------------------------------------

// MutationResponse is returned by create, update and delete.
type MutationResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

// ------------------------------------------------------------

type nameInput struct {
	Name string `validate:"required,max=80"`
}

// ValidateName applies the CreateUserRequest name rules to a bare value.
func ValidateName(name string) error {
	return validate.Struct(&nameInput{Name: name})
}
