package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid password", "Password1", nil},
		{"empty", "", ErrPasswordRequired},
		{"too short", "short", ErrPasswordTooShort},
		{"minimum length", "12345678", nil},
		{"multibyte counted as characters", "пароль12", nil},
		{"maximum bytes", strings.Repeat("a", 72), nil},
		{"too long", strings.Repeat("a", 73), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidatePassword(tt.password), tt.wantErr)
		})
	}
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("Password1")
	require.NoError(t, err)
	assert.NotEqual(t, "Password1", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, h.Verify("Password1", hash))
	assert.False(t, h.Verify("password1", hash))
	assert.False(t, h.Verify("", hash))
	assert.False(t, h.Verify("Password1", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("Password1", ""))
}

func TestPasswordHasher_SaltsEveryHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("Password1")
	require.NoError(t, err)
	second, err := h.Hash("Password1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_RejectsInvalidPassword(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestNewPasswordHasher_CostFallback(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 12, NewPasswordHasher(12).cost)
}
