package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/infra/logger"
)

// LoggingMailer writes outgoing mail to the log instead of delivering it.
// It stands in for a real transport until one is wired; the addressed
// email is masked and codes are never logged in full.
type LoggingMailer struct {
	logger *zap.Logger
}

// NewLoggingMailer constructs a mailer that only logs.
func NewLoggingMailer(log *zap.Logger) *LoggingMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingMailer{logger: log}
}

// SendOTPCode logs the one-time code dispatch.
func (m *LoggingMailer) SendOTPCode(_ context.Context, email, code string) error {
	m.logger.Info("dispatch otp code email",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("code", logger.MaskString(code)),
	)
	return nil
}

// SendPasswordResetLink logs the reset link dispatch.
func (m *LoggingMailer) SendPasswordResetLink(_ context.Context, email, resetToken string) error {
	m.logger.Info("dispatch password reset email",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("token", logger.MaskString(resetToken)),
	)
	return nil
}

var _ port.Mailer = (*LoggingMailer)(nil)
