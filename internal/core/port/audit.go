package port

import (
	"context"

	"github.com/valcriss/sovrane/internal/core/domain"
)

// AuditPublisher appends security events to the audit sink. The core only
// emits; it never reads events back.
type AuditPublisher interface {
	PublishLogin(ctx context.Context, event domain.LoginEvent) error
	PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error
	PublishTokenReuse(ctx context.Context, event domain.TokenReuseEvent) error
	PublishMFAStateChanged(ctx context.Context, event domain.MFAStateChangedEvent) error
	PublishLockout(ctx context.Context, event domain.LockoutEvent) error
	PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error
}
