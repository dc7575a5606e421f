package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/db"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

// Service exposes account administration operations.
type Service interface {
	GetUser(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	ListUsers(ctx context.Context, page pagination.Params) (*UserListResult, error)
	ChangeTier(ctx context.Context, id uuid.UUID, tier enums.UserTier) (*UserDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Reactivate(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo *Repository
}

// NewService constructs an account administration service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	return NewUserDTO(user), nil
}

func (s *service) ListUsers(ctx context.Context, page pagination.Params) (*UserListResult, error) {
	users, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list users")
	}
	result := &UserListResult{Total: total, Users: make([]UserDTO, 0, len(users))}
	for i := range users {
		result.Users = append(result.Users, *NewUserDTO(&users[i]))
	}
	return result, nil
}

// ChangeTier sets the account tier to an explicit value. This is the admin
// path; the order engine promotes to VIP on its own.
func (s *service) ChangeTier(ctx context.Context, id uuid.UUID, tier enums.UserTier) (*UserDTO, error) {
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown tier")
	}
	if err := s.repo.SetTier(ctx, id, tier); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: set tier")
	}
	return s.GetUser(ctx, id)
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, false)
}

func (s *service) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, true)
}

func (s *service) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: set active")
	}
	return nil
}
