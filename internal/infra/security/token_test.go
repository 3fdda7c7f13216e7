package security

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode() error = %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit %q in code %q", r, code)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("zero length accepted")
	}
}

func TestGenerateSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken() error = %v", err)
	}
	second, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken() error = %v", err)
	}
	if first == second {
		t.Fatal("two tokens are identical")
	}

	if _, err := GenerateSecureToken(-1); err == nil {
		t.Fatal("negative length accepted")
	}
}

func TestHashLookupToken(t *testing.T) {
	digest := HashLookupToken("token-value")

	if len(digest) != 64 {
		t.Fatalf("digest length = %d, want 64 hex characters", len(digest))
	}
	if digest != HashLookupToken("token-value") {
		t.Fatal("digest is not deterministic")
	}
	if digest == HashLookupToken("other-value") {
		t.Fatal("distinct inputs collided")
	}
}
