package usecase

import (
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
)

// Permission keys gating the protected use cases.
const (
	PermissionManageMFA  = "users.mfa.manage"
	PermissionRemoveUser = "users.delete"
)

// PermissionEngine evaluates whether an actor may perform an action,
// optionally narrowed to a scope. Evaluation is synchronous and
// side-effect-free; use cases must call it before any mutating logic.
type PermissionEngine struct {
	logger *zap.Logger
}

// NewPermissionEngine constructs a permission engine.
func NewPermissionEngine(logger *zap.Logger) *PermissionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionEngine{logger: logger}
}

// Check authorizes the actor for the permission key and scope. Grants are
// collected from every role plus direct grants; the root key on any source
// short-circuits to allow. Returns ErrPermissionDenied when no grant
// matches.
func (e *PermissionEngine) Check(user *domain.User, permissionKey string, scopeID *string) error {
	if user == nil {
		return ErrPermissionDenied
	}

	for _, role := range user.Roles {
		for _, grant := range role.Grants {
			if grant.Allows(permissionKey, scopeID) {
				return nil
			}
		}
	}

	for _, grant := range user.Permissions {
		if grant.Allows(permissionKey, scopeID) {
			return nil
		}
	}

	e.logger.Debug("permission denied",
		zap.String("user_id", user.ID),
		zap.String("permission", permissionKey),
		zap.Stringp("scope_id", scopeID),
	)

	return ErrPermissionDenied
}
