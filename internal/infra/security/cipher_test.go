package security

import (
	"strings"
	"testing"
)

func testCipher(t *testing.T) *AESCipher {
	t.Helper()

	c, err := NewAESCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewAESCipher() error = %v", err)
	}
	return c
}

func TestAESCipherRoundTrip(t *testing.T) {
	c := testCipher(t)

	encrypted, err := c.Encrypt("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if strings.Contains(encrypted, "JBSWY3DPEHPK3PXP") {
		t.Fatal("ciphertext leaks plaintext")
	}

	decrypted, err := c.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("Decrypt() = %q, want original plaintext", decrypted)
	}
}

func TestAESCipherNonceUniqueness(t *testing.T) {
	c := testCipher(t)

	first, err := c.Encrypt("same-secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := c.Encrypt("same-secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if first == second {
		t.Fatal("identical plaintexts produced identical ciphertexts")
	}
}

func TestAESCipherRejectsWrongKey(t *testing.T) {
	c := testCipher(t)

	other, err := NewAESCipher([]byte("fedcba9876543210fedcba9876543210"))
	if err != nil {
		t.Fatalf("NewAESCipher() error = %v", err)
	}

	encrypted, err := c.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := other.Decrypt(encrypted); err == nil {
		t.Fatal("decryption with the wrong key succeeded")
	}
}

func TestAESCipherRejectsTamperedCiphertext(t *testing.T) {
	c := testCipher(t)

	if _, err := c.Decrypt("AAAA"); err == nil {
		t.Fatal("short ciphertext accepted")
	}
	if _, err := c.Decrypt("!!!not-base64!!!"); err == nil {
		t.Fatal("undecodable ciphertext accepted")
	}
}

func TestNewAESCipherKeyLength(t *testing.T) {
	if _, err := NewAESCipher([]byte("short")); err == nil {
		t.Fatal("short key accepted")
	}
}
