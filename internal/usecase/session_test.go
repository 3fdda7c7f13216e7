package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/infra/security"
)

const sessionTestPassword = "s3cret-Passw0rd!"

type sessionFixture struct {
	service *SessionService
	users   *stubUserRepository
	tokens  *stubRefreshTokenRepository
	cache   *stubCache
	mail    *stubMailer
	audit   *stubAuditPublisher
	ledger  *RefreshTokenLedger
}

func newSessionFixture(t *testing.T, now time.Time, user *domain.User) *sessionFixture {
	t.Helper()

	if user.PasswordHash == "" {
		hash, err := security.Argon2Hasher{}.Hash(sessionTestPassword)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		user.PasswordHash = hash
	}

	users := newStubUserRepository(user)
	tokens := newStubRefreshTokenRepository()
	cache := newStubCache()
	mail := &stubMailer{}
	audit := &stubAuditPublisher{}

	cipher, err := security.NewAESCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewAESCipher() error = %v", err)
	}

	ledger := NewRefreshTokenLedger(nil, tokens, audit, nil)
	ledger.WithClock(fixedClock(now))

	issuer := NewTokenIssuer(nil, newTestKeyProvider(t), ledger, nil)
	issuer.WithClock(fixedClock(now))

	resets := NewPasswordResetService(nil, users, newStubResetTokenRepository(), ledger,
		security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig()),
		security.Argon2Hasher{}, mail, audit, nil)

	local := NewLocalAuthProvider(users, security.Argon2Hasher{}, issuer, resets, nil)
	providers := NewCompositeAuthProvider(nil, local)

	totpService := NewTOTPService(nil, users, cache, cipher, security.NewTOTPGenerator("sovrane-test"), audit, nil)
	totpService.WithClock(fixedClock(now))

	emailService := NewEmailOTPService(nil, cache, mail, audit, nil)
	emailService.WithClock(fixedClock(now))

	service := NewSessionService(nil, users, providers, issuer, ledger,
		NewPermissionEngine(nil), totpService, emailService, audit, nil)
	service.WithClock(fixedClock(now))

	return &sessionFixture{
		service: service,
		users:   users,
		tokens:  tokens,
		cache:   cache,
		mail:    mail,
		audit:   audit,
		ledger:  ledger,
	}
}

func activeUser() *domain.User {
	return &domain.User{
		ID:     "u1",
		Email:  "alice@example.com",
		Status: domain.UserStatusActive,
	}
}

func TestSessionServiceLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx := newSessionFixture(t, now, activeUser())

	result, err := fx.service.Login(ctx, "alice@example.com", sessionTestPassword, stringPtr("10.0.0.1"), stringPtr("cli"))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.MFARequired {
		t.Fatal("unexpected MFA challenge")
	}
	if result.Tokens == nil || result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("login did not issue a token pair")
	}

	stored, err := fx.users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.LastLogin == nil || !stored.LastLogin.Equal(now) {
		t.Fatalf("LastLogin = %v, want %v", stored.LastLogin, now)
	}

	if len(fx.audit.logins) != 1 || !fx.audit.logins[0].Succeeded {
		t.Fatalf("login events = %+v, want one success", fx.audit.logins)
	}
}

func TestSessionServiceLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx := newSessionFixture(t, now, activeUser())

	if _, err := fx.service.Login(ctx, "alice@example.com", "wrong", nil, nil); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login() = %v, want ErrInvalidCredentials", err)
	}

	if len(fx.audit.logins) != 1 || fx.audit.logins[0].Succeeded {
		t.Fatalf("login events = %+v, want one failure", fx.audit.logins)
	}
}

func TestSessionServiceLoginWithEmailMFA(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	user := activeUser()
	kind := domain.MFATypeEmail
	user.MFAEnabled = true
	user.MFAType = &kind

	fx := newSessionFixture(t, now, user)

	result, err := fx.service.Login(ctx, "alice@example.com", sessionTestPassword, nil, nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !result.MFARequired {
		t.Fatal("expected MFA challenge")
	}
	if result.Tokens != nil {
		t.Fatal("tokens issued before MFA completion")
	}
	if len(fx.mail.otpCodes) != 1 {
		t.Fatalf("dispatched codes = %d, want 1", len(fx.mail.otpCodes))
	}
	if len(fx.audit.logins) != 1 || !fx.audit.logins[0].MFAPending {
		t.Fatalf("login events = %+v, want one pending", fx.audit.logins)
	}

	// Completing the challenge with the mailed code issues the pair.
	completed, err := fx.service.VerifyMFA(ctx, "alice@example.com", fx.mail.otpCodes[0], nil, nil)
	if err != nil {
		t.Fatalf("VerifyMFA() error = %v", err)
	}
	if completed.Tokens == nil || completed.Tokens.RefreshToken == "" {
		t.Fatal("MFA completion did not issue tokens")
	}
}

func TestSessionServiceVerifyMFAWrongCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	user := activeUser()
	kind := domain.MFATypeEmail
	user.MFAEnabled = true
	user.MFAType = &kind

	fx := newSessionFixture(t, now, user)

	if _, err := fx.service.Login(ctx, "alice@example.com", sessionTestPassword, nil, nil); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, err := fx.service.VerifyMFA(ctx, "alice@example.com", "000000", nil, nil); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("VerifyMFA(wrong) = %v, want ErrInvalidMFACode", err)
	}
}

func TestSessionServiceRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx := newSessionFixture(t, now, activeUser())

	result, err := fx.service.Login(ctx, "alice@example.com", sessionTestPassword, nil, nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	refreshed, err := fx.service.Refresh(ctx, result.Tokens.RefreshToken, nil, nil)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == result.Tokens.RefreshToken {
		t.Fatal("refresh returned the same secret")
	}

	if len(fx.audit.refreshed) != 1 {
		t.Fatalf("refresh events = %d, want 1", len(fx.audit.refreshed))
	}

	// The spent token is gone for good.
	if _, err := fx.service.Refresh(ctx, result.Tokens.RefreshToken, nil, nil); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("Refresh(spent) = %v, want ErrInvalidRefreshToken", err)
	}
	if len(fx.audit.reuses) != 1 {
		t.Fatalf("reuse events = %d, want 1", len(fx.audit.reuses))
	}
}

func TestSessionServiceRefreshSuspendedUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx := newSessionFixture(t, now, activeUser())

	result, err := fx.service.Login(ctx, "alice@example.com", sessionTestPassword, nil, nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	suspended, err := fx.users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	suspended.Status = domain.UserStatusSuspended
	if err := fx.users.Update(ctx, *suspended); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if _, err := fx.service.Refresh(ctx, result.Tokens.RefreshToken, nil, nil); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("Refresh(suspended) = %v, want ErrAccountSuspended", err)
	}

	// The rejection must not have consumed the token record.
	active, err := fx.tokens.FindActiveByUser(ctx, "u1", now)
	if err != nil {
		t.Fatalf("FindActiveByUser() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active tokens = %d, want 1", len(active))
	}
}

func TestSessionServiceLogout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx := newSessionFixture(t, now, activeUser())

	result, err := fx.service.Login(ctx, "alice@example.com", sessionTestPassword, nil, nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := fx.service.Logout(ctx, "u1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := fx.service.Refresh(ctx, result.Tokens.RefreshToken, nil, nil); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("Refresh(after logout) = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestSessionServiceEnableMFARequiresPermission(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx := newSessionFixture(t, now, activeUser())

	actor, err := fx.users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}

	if _, err := fx.service.EnableMFA(ctx, actor, domain.MFATypeTOTP); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("EnableMFA() = %v, want ErrPermissionDenied", err)
	}
	if actor.MFAEnabled {
		t.Fatal("denied enrollment still mutated the actor")
	}
}

func TestSessionServiceEnableMFARevokesSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	user := activeUser()
	user.Permissions = []domain.PermissionGrant{grantFor(PermissionManageMFA, nil)}

	fx := newSessionFixture(t, now, user)

	result, err := fx.service.Login(ctx, "alice@example.com", sessionTestPassword, nil, nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	actor, err := fx.users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}

	enrollment, err := fx.service.EnableMFA(ctx, actor, domain.MFATypeTOTP)
	if err != nil {
		t.Fatalf("EnableMFA() error = %v", err)
	}
	if enrollment.Secret == "" || len(enrollment.RecoveryCodes) == 0 {
		t.Fatal("totp enrollment incomplete")
	}

	// Pre-enrollment sessions cannot bypass the new factor.
	if _, err := fx.service.Refresh(ctx, result.Tokens.RefreshToken, nil, nil); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("Refresh(pre-enrollment) = %v, want ErrInvalidRefreshToken", err)
	}

	if len(fx.audit.mfaChanges) != 1 {
		t.Fatalf("mfa change events = %d, want 1", len(fx.audit.mfaChanges))
	}
	event := fx.audit.mfaChanges[0]
	if !event.Enabled || event.Type != string(domain.MFATypeTOTP) || event.SessionsRevoked != 1 {
		t.Fatalf("mfa change event = %+v", event)
	}

	if _, err := fx.service.EnableMFA(ctx, actor, domain.MFATypeEmail); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("EnableMFA(again) = %v, want ErrMFAAlreadyEnabled", err)
	}
}

func TestSessionServiceDisableMFA(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	user := activeUser()
	user.Permissions = []domain.PermissionGrant{grantFor(PermissionManageMFA, nil)}
	kind := domain.MFATypeEmail
	user.MFAEnabled = true
	user.MFAType = &kind

	fx := newSessionFixture(t, now, user)

	actor, err := fx.users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}

	plaintext, _, err := fx.ledger.Issue(ctx, actor, nil, nil)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := fx.service.DisableMFA(ctx, actor); err != nil {
		t.Fatalf("DisableMFA() error = %v", err)
	}

	// Removing a factor invalidates every open session.
	if _, err := fx.ledger.FindValid(ctx, plaintext); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("FindValid(after disable) = %v, want ErrInvalidRefreshToken", err)
	}

	stored, err := fx.users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.MFAEnabled || stored.MFAType != nil {
		t.Fatal("mfa state not cleared")
	}

	if len(fx.audit.mfaChanges) != 1 || fx.audit.mfaChanges[0].Enabled {
		t.Fatalf("mfa change events = %+v, want one disable", fx.audit.mfaChanges)
	}
	if fx.audit.mfaChanges[0].SessionsRevoked != 1 {
		t.Fatalf("SessionsRevoked = %d, want 1", fx.audit.mfaChanges[0].SessionsRevoked)
	}

	if err := fx.service.DisableMFA(ctx, stored); !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("DisableMFA(again) = %v, want ErrMFANotEnabled", err)
	}
}
