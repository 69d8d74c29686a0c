package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyBcrypt(t *testing.T) {
	hash, err := HashPassword("a strong password")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword(hash, "a strong password", false))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong", false), ErrPasswordMismatch)
}

func TestHashRejectsShortPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestVerifyLegacySHA256(t *testing.T) {
	sum := sha256.Sum256([]byte("imported password"))
	stored := hex.EncodeToString(sum[:])

	assert.NoError(t, VerifyPassword(stored, "imported password", false))
	assert.ErrorIs(t, VerifyPassword(stored, "wrong", false), ErrPasswordMismatch)
}

func TestVerifyPlaintextOnlyWhenAllowed(t *testing.T) {
	assert.ErrorIs(t, VerifyPassword("devpassword", "devpassword", false), ErrPasswordMismatch)
	assert.NoError(t, VerifyPassword("devpassword", "devpassword", true))
}
