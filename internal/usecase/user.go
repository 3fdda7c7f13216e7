package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/repository"
)

// UserService covers account administration touching session security.
type UserService struct {
	users       port.UserRepository
	ledger      *RefreshTokenLedger
	permissions *PermissionEngine
	logger      *zap.Logger
}

// NewUserService constructs the user administration service.
func NewUserService(
	users port.UserRepository,
	ledger *RefreshTokenLedger,
	permissions *PermissionEngine,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UserService{
		users:       users,
		ledger:      ledger,
		permissions: permissions,
		logger:      logger,
	}
}

// Remove deletes an account. The permission check runs before anything
// else; every refresh token the account held is revoked so no session
// outlives it.
func (s *UserService) Remove(ctx context.Context, actor *domain.User, userID string) error {
	if err := s.permissions.Check(actor, PermissionRemoveUser, nil); err != nil {
		return err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserNotFound
	}

	if _, err := s.ledger.RevokeAll(ctx, userID, "user removed"); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("user removed", zap.String("user_id", userID))

	return nil
}
