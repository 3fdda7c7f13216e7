package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
)

// StubPublisher logs audit events instead of producing them. Used when no
// Kafka brokers are configured, typically in local development.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging-only audit publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) PublishLogin(_ context.Context, event domain.LoginEvent) error {
	p.logger.Info("audit event (stub)",
		zap.String("event_type", topicLogin),
		zap.String("user_id", event.UserID),
		zap.Bool("succeeded", event.Succeeded),
		zap.Bool("mfa_pending", event.MFAPending),
	)
	return nil
}

func (p *StubPublisher) PublishTokenRefreshed(_ context.Context, event domain.TokenRefreshedEvent) error {
	p.logger.Info("audit event (stub)",
		zap.String("event_type", topicTokenRefreshed),
		zap.String("user_id", event.UserID),
		zap.String("old_token_id", event.OldTokenID),
		zap.String("new_token_id", event.NewTokenID),
	)
	return nil
}

func (p *StubPublisher) PublishTokenReuse(_ context.Context, event domain.TokenReuseEvent) error {
	p.logger.Warn("audit event (stub)",
		zap.String("event_type", topicTokenReuse),
		zap.String("user_id", event.UserID),
		zap.String("token_id", event.TokenID),
	)
	return nil
}

func (p *StubPublisher) PublishMFAStateChanged(_ context.Context, event domain.MFAStateChangedEvent) error {
	p.logger.Info("audit event (stub)",
		zap.String("event_type", topicMFAStateChanged),
		zap.String("user_id", event.UserID),
		zap.String("type", event.Type),
		zap.Bool("enabled", event.Enabled),
	)
	return nil
}

func (p *StubPublisher) PublishLockout(_ context.Context, event domain.LockoutEvent) error {
	p.logger.Warn("audit event (stub)",
		zap.String("event_type", topicLockout),
		zap.String("user_id", event.UserID),
		zap.String("method", event.Method),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	p.logger.Info("audit event (stub)",
		zap.String("event_type", topicPasswordReset),
		zap.String("user_id", event.UserID),
		zap.Int("sessions_revoked", event.SessionsRevoked),
	)
	return nil
}

var _ port.AuditPublisher = (*StubPublisher)(nil)
