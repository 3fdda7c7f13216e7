package usecase

import (
	"context"
	"fmt"

	"github.com/valcriss/sovrane/internal/core/domain"
)

// MFAVerifier is the shared contract of the second-factor variants. The
// session service dispatches to the variant matching the user's stored
// mfa type.
type MFAVerifier interface {
	Verify(ctx context.Context, user *domain.User, code string) error
	Disable(ctx context.Context, user *domain.User) error
}

// MFAEnrollment carries the one-time enrollment material returned to the
// user. None of it is recoverable afterwards.
type MFAEnrollment struct {
	Secret          string
	ProvisioningURI string
	RecoveryCodes   []string
}

func totpAttemptKey(userID string) string {
	return fmt.Sprintf("mfa:totp:attempts:%s", userID)
}

func totpReplayKey(userID, code string) string {
	return fmt.Sprintf("mfa:totp:replay:%s:%s", userID, code)
}

func emailCodeKey(userID string) string {
	return fmt.Sprintf("mfa:email:code:%s", userID)
}

func emailAttemptKey(userID string) string {
	return fmt.Sprintf("mfa:email:attempts:%s", userID)
}
