package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/infra/security"
)

func newTOTPFixture(t *testing.T, now time.Time) (*TOTPService, *stubUserRepository, *stubCache, *stubAuditPublisher, *domain.User, *MFAEnrollment) {
	t.Helper()

	user := &domain.User{ID: "u1", Email: "alice@example.com", Status: domain.UserStatusActive}

	users := newStubUserRepository(user)
	cache := newStubCache()
	audit := &stubAuditPublisher{}

	cipher, err := security.NewAESCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewAESCipher() error = %v", err)
	}

	service := NewTOTPService(nil, users, cache, cipher, security.NewTOTPGenerator("sovrane-test"), audit, nil)
	service.WithClock(fixedClock(now))

	enrollment, err := service.GenerateSecret(context.Background(), user)
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}

	return service, users, cache, audit, user, enrollment
}

func TestTOTPServiceEnrollment(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, users, _, _, user, enrollment := newTOTPFixture(t, now)

	if enrollment.Secret == "" || enrollment.ProvisioningURI == "" {
		t.Fatal("enrollment missing secret or provisioning URI")
	}
	if len(enrollment.RecoveryCodes) != 8 {
		t.Fatalf("recovery codes = %d, want 8", len(enrollment.RecoveryCodes))
	}

	stored, err := users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !stored.MFAEnabled || stored.MFAType == nil || *stored.MFAType != domain.MFATypeTOTP {
		t.Fatal("user not enrolled in totp")
	}
	if stored.MFASecret == nil || *stored.MFASecret == enrollment.Secret {
		t.Fatal("secret stored unencrypted")
	}
	for i, code := range enrollment.RecoveryCodes {
		if stored.MFARecoveryCodes[i] == code {
			t.Fatal("recovery code stored unhashed")
		}
	}
}

func TestTOTPServiceVerify(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service, _, _, _, user, enrollment := newTOTPFixture(t, now)

	code, err := totp.GenerateCode(enrollment.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}

	if err := service.Verify(ctx, user, code); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestTOTPServiceRejectsReplay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service, _, _, _, user, enrollment := newTOTPFixture(t, now)

	code, err := totp.GenerateCode(enrollment.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}

	if err := service.Verify(ctx, user, code); err != nil {
		t.Fatalf("first Verify() error = %v", err)
	}
	if err := service.Verify(ctx, user, code); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("replayed Verify() = %v, want ErrInvalidMFACode", err)
	}
}

func TestTOTPServiceAttemptLimitFailsClosed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service, _, _, audit, user, enrollment := newTOTPFixture(t, now)

	for i := 0; i < 5; i++ {
		if err := service.Verify(ctx, user, "000000"); !errors.Is(err, ErrInvalidMFACode) {
			t.Fatalf("attempt %d = %v, want ErrInvalidMFACode", i+1, err)
		}
	}

	// A correct code must be rejected once the counter is exhausted.
	code, err := totp.GenerateCode(enrollment.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	if err := service.Verify(ctx, user, code); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("Verify(after limit) = %v, want ErrTooManyAttempts", err)
	}

	if len(audit.lockouts) != 1 {
		t.Fatalf("lockout events = %d, want 1", len(audit.lockouts))
	}
	if audit.lockouts[0].Method != string(domain.MFATypeTOTP) {
		t.Fatalf("lockout method = %q, want totp", audit.lockouts[0].Method)
	}
}

func TestTOTPServiceRecoveryCodeFallback(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service, users, _, _, user, enrollment := newTOTPFixture(t, now)

	recovery := enrollment.RecoveryCodes[0]

	if err := service.Verify(ctx, user, recovery); err != nil {
		t.Fatalf("Verify(recovery) error = %v", err)
	}

	stored, err := users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if len(stored.MFARecoveryCodes) != 7 {
		t.Fatalf("remaining recovery codes = %d, want 7", len(stored.MFARecoveryCodes))
	}

	// Single use: the same code must not work twice.
	if err := service.Verify(ctx, user, recovery); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("Verify(recovery again) = %v, want ErrInvalidMFACode", err)
	}
}

func TestTOTPServiceVerifyWithoutEnrollment(t *testing.T) {
	service := NewTOTPService(nil, newStubUserRepository(), newStubCache(), nil, security.NewTOTPGenerator(""), nil, nil)

	user := &domain.User{ID: "u1", Status: domain.UserStatusActive}
	if err := service.Verify(context.Background(), user, "123456"); !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("Verify() = %v, want ErrMFANotEnabled", err)
	}
}

func TestTOTPServiceDisable(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service, users, _, _, user, _ := newTOTPFixture(t, now)

	if err := service.Disable(ctx, user); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	stored, err := users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.MFAEnabled || stored.MFAType != nil || stored.MFASecret != nil || stored.MFARecoveryCodes != nil {
		t.Fatal("mfa state not fully cleared")
	}
}
