package port

import (
	"context"

	"github.com/valcriss/sovrane/internal/core/domain"
)

// UserRepository exposes persistence behavior for the user aggregate,
// including roles and direct permission grants.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, id string) error
}
