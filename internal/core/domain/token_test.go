package domain

import (
	"testing"
	"time"
)

func TestRefreshTokenLifecycle(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	token := RefreshToken{
		ID:        "tok-1",
		UserID:    "u1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	if !token.IsActive(now) {
		t.Fatal("fresh token should be active")
	}
	if token.IsActive(now.Add(time.Hour)) {
		t.Fatal("token active at expiry instant")
	}

	if !token.MarkUsed(now.Add(time.Minute), "tok-2") {
		t.Fatal("first MarkUsed() = false")
	}
	if token.IsActive(now.Add(2 * time.Minute)) {
		t.Fatal("used token still active")
	}
	if token.ReplacedBy == nil || *token.ReplacedBy != "tok-2" {
		t.Fatalf("ReplacedBy = %v, want tok-2", token.ReplacedBy)
	}

	// The transition is one-way.
	if token.MarkUsed(now.Add(3*time.Minute), "tok-3") {
		t.Fatal("second MarkUsed() = true")
	}
	if *token.ReplacedBy != "tok-2" {
		t.Fatal("successor overwritten on repeated MarkUsed")
	}
}

func TestRefreshTokenRevoke(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	token := RefreshToken{ID: "tok-1", ExpiresAt: now.Add(time.Hour)}

	if !token.Revoke(now) {
		t.Fatal("first Revoke() = false")
	}
	if token.Revoke(now.Add(time.Minute)) {
		t.Fatal("second Revoke() = true")
	}
	if token.IsActive(now) {
		t.Fatal("revoked token still active")
	}
}

func TestPasswordResetTokenConsume(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	token := PasswordResetToken{ID: "reset-1", ExpiresAt: now.Add(time.Hour)}

	if token.IsExpired(now) {
		t.Fatal("fresh token reported expired")
	}
	if !token.IsExpired(now.Add(time.Hour)) {
		t.Fatal("token not expired at expiry instant")
	}

	if !token.Consume(now) {
		t.Fatal("first Consume() = false")
	}
	if token.Consume(now.Add(time.Minute)) {
		t.Fatal("second Consume() = true")
	}
}
