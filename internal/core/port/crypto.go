package port

import "github.com/valcriss/sovrane/internal/core/domain"

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// SecretCipher encrypts MFA secrets at rest. Implementations must use a
// fresh random IV per encryption so identical secrets never produce
// identical ciphertexts.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}
