package usecase

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/infra/security"
	"github.com/valcriss/sovrane/internal/repository"
)

func TestMain(m *testing.M) {
	// Lighter hashing parameters keep the suite fast; production values
	// come from configuration.
	_ = security.ConfigureArgon2(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
	os.Exit(m.Run())
}

func stringPtr(s string) *string {
	return &s
}

type stubUserRepository struct {
	users map[string]*domain.User
}

func newStubUserRepository(users ...*domain.User) *stubUserRepository {
	repo := &stubUserRepository{users: make(map[string]*domain.User)}
	for _, user := range users {
		copied := *user
		repo.users[user.ID] = &copied
	}
	return repo
}

func (r *stubUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *stubUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepository) Update(_ context.Context, user domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := user
	r.users[user.ID] = &copied
	return nil
}

func (r *stubUserRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type stubRefreshTokenRepository struct {
	records map[string]*domain.RefreshToken
}

func newStubRefreshTokenRepository() *stubRefreshTokenRepository {
	return &stubRefreshTokenRepository{records: make(map[string]*domain.RefreshToken)}
}

func (r *stubRefreshTokenRepository) Save(_ context.Context, token domain.RefreshToken) error {
	copied := token
	r.records[token.ID] = &copied
	return nil
}

func (r *stubRefreshTokenRepository) FindActive(_ context.Context, at time.Time) ([]domain.RefreshToken, error) {
	var result []domain.RefreshToken
	for _, record := range r.records {
		if record.IsActive(at) {
			result = append(result, *record)
		}
	}
	return result, nil
}

func (r *stubRefreshTokenRepository) FindActiveByUser(_ context.Context, userID string, at time.Time) ([]domain.RefreshToken, error) {
	var result []domain.RefreshToken
	for _, record := range r.records {
		if record.UserID == userID && record.IsActive(at) {
			result = append(result, *record)
		}
	}
	return result, nil
}

func (r *stubRefreshTokenRepository) FindTerminated(_ context.Context, at time.Time) ([]domain.RefreshToken, error) {
	var result []domain.RefreshToken
	for _, record := range r.records {
		if (record.UsedAt != nil || record.RevokedAt != nil) && !record.IsExpired(at) {
			result = append(result, *record)
		}
	}
	return result, nil
}

func (r *stubRefreshTokenRepository) MarkUsed(_ context.Context, tokenID string, usedAt time.Time, replacedBy string) error {
	record, ok := r.records[tokenID]
	if !ok || record.UsedAt != nil || record.RevokedAt != nil {
		return repository.ErrConflict
	}
	record.MarkUsed(usedAt, replacedBy)
	return nil
}

func (r *stubRefreshTokenRepository) Revoke(_ context.Context, tokenID string, revokedAt time.Time, _ string) error {
	record, ok := r.records[tokenID]
	if !ok || record.RevokedAt != nil {
		return repository.ErrNotFound
	}
	record.Revoke(revokedAt)
	return nil
}

func (r *stubRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string, revokedAt time.Time, _ string) (int, error) {
	count := 0
	for _, record := range r.records {
		if record.UserID == userID && record.RevokedAt == nil {
			record.Revoke(revokedAt)
			count++
		}
	}
	return count, nil
}

type stubResetTokenRepository struct {
	records map[string]*domain.PasswordResetToken
}

func newStubResetTokenRepository() *stubResetTokenRepository {
	return &stubResetTokenRepository{records: make(map[string]*domain.PasswordResetToken)}
}

func (r *stubResetTokenRepository) Save(_ context.Context, token domain.PasswordResetToken) error {
	copied := token
	r.records[token.ID] = &copied
	return nil
}

func (r *stubResetTokenRepository) FindByHash(_ context.Context, hash string) (*domain.PasswordResetToken, error) {
	for _, record := range r.records {
		if record.TokenHash == hash {
			copied := *record
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubResetTokenRepository) Consume(_ context.Context, tokenID string, usedAt time.Time) error {
	record, ok := r.records[tokenID]
	if !ok || record.UsedAt != nil {
		return repository.ErrConflict
	}
	record.Consume(usedAt)
	return nil
}

type stubCache struct {
	values   map[string]string
	counters map[string]int64
}

func newStubCache() *stubCache {
	return &stubCache{
		values:   make(map[string]string),
		counters: make(map[string]int64),
	}
}

func (c *stubCache) Get(_ context.Context, key string) (string, error) {
	if value, ok := c.values[key]; ok {
		return value, nil
	}
	if count, ok := c.counters[key]; ok {
		return formatInt(count), nil
	}
	return "", repository.ErrNotFound
}

func (c *stubCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *stubCache) SetIfAbsent(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = value
	return true, nil
}

func (c *stubCache) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.counters[key]++
	return c.counters[key], nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	delete(c.values, key)
	delete(c.counters, key)
	return nil
}

func formatInt(value int64) string {
	const digits = "0123456789"
	if value == 0 {
		return "0"
	}
	var buf []byte
	for value > 0 {
		buf = append([]byte{digits[value%10]}, buf...)
		value /= 10
	}
	return string(buf)
}

type stubMailer struct {
	otpCodes   []string
	resetLinks []string
}

func (m *stubMailer) SendOTPCode(_ context.Context, _, code string) error {
	m.otpCodes = append(m.otpCodes, code)
	return nil
}

func (m *stubMailer) SendPasswordResetLink(_ context.Context, _, token string) error {
	m.resetLinks = append(m.resetLinks, token)
	return nil
}

type stubAuditPublisher struct {
	logins     []domain.LoginEvent
	refreshed  []domain.TokenRefreshedEvent
	reuses     []domain.TokenReuseEvent
	mfaChanges []domain.MFAStateChangedEvent
	lockouts   []domain.LockoutEvent
	resets     []domain.PasswordResetEvent
}

func (p *stubAuditPublisher) PublishLogin(_ context.Context, event domain.LoginEvent) error {
	p.logins = append(p.logins, event)
	return nil
}

func (p *stubAuditPublisher) PublishTokenRefreshed(_ context.Context, event domain.TokenRefreshedEvent) error {
	p.refreshed = append(p.refreshed, event)
	return nil
}

func (p *stubAuditPublisher) PublishTokenReuse(_ context.Context, event domain.TokenReuseEvent) error {
	p.reuses = append(p.reuses, event)
	return nil
}

func (p *stubAuditPublisher) PublishMFAStateChanged(_ context.Context, event domain.MFAStateChangedEvent) error {
	p.mfaChanges = append(p.mfaChanges, event)
	return nil
}

func (p *stubAuditPublisher) PublishLockout(_ context.Context, event domain.LockoutEvent) error {
	p.lockouts = append(p.lockouts, event)
	return nil
}

func (p *stubAuditPublisher) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	p.resets = append(p.resets, event)
	return nil
}
