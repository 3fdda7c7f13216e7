package port

import "context"

// Mailer dispatches transactional mail. Delivery is fire-and-forget from
// the caller's perspective: failures are logged by implementations, never
// surfaced as authentication failures.
type Mailer interface {
	SendOTPCode(ctx context.Context, email, code string) error
	SendPasswordResetLink(ctx context.Context, email, resetToken string) error
}
