package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/herbalgarden/internal/entities"
)

const testSecret = "test-signing-secret"

// clock is a settable time source shared by a TokenManager under test.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	return c.t
}

func newTestTokenManager(t *testing.T, ttl time.Duration) (*TokenManager, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m, err := NewTokenManager(testSecret, ttl, WithClock(c.now))
	require.NoError(t, err)
	return m, c
}

func TestNewTokenManager(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	m, err := NewTokenManager("s", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, m.TTL())
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m, c := newTestTokenManager(t, time.Hour)

	token, err := m.Issue("user-1", entities.RoleSuperAdmin)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, entities.RoleSuperAdmin, claims.Role)
	assert.True(t, claims.IssuedAt.Time.Equal(c.t))
	assert.True(t, claims.ExpiresAt.Time.Equal(c.t.Add(time.Hour)))
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_Expiry(t *testing.T) {
	m, c := newTestTokenManager(t, time.Hour)
	token, err := m.Issue("user-1", entities.RoleUser)
	require.NoError(t, err)

	c.t = c.t.Add(59 * time.Minute)
	_, err = m.Verify(token)
	require.NoError(t, err)

	c.t = c.t.Add(time.Minute)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_ExpiredWinsOverBadSignature(t *testing.T) {
	m, c := newTestTokenManager(t, time.Hour)
	token, err := m.Issue("user-1", entities.RoleUser)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString([]byte("not-the-signature"))

	c.t = c.t.Add(2 * time.Hour)
	_, err = m.Verify(forged)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other, err := NewTokenManager("another-secret", time.Hour, WithClock(c.now))
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_TamperedPayload(t *testing.T) {
	m, _ := newTestTokenManager(t, time.Hour)
	token, err := m.Issue("user-1", entities.RoleUser)
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	t.Run("role escalation", func(t *testing.T) {
		raw, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		payload["role"] = string(entities.RoleSuperAdmin)
		forgedPayload, err := json.Marshal(payload)
		require.NoError(t, err)

		forged := parts[0] + "." + base64.RawURLEncoding.EncodeToString(forgedPayload) + "." + parts[2]
		_, err = m.Verify(forged)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("flipped byte", func(t *testing.T) {
		payload := []byte(parts[1])
		payload[0] ^= 0x01
		forged := parts[0] + "." + string(payload) + "." + parts[2]

		_, err := m.Verify(forged)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenManager_RejectsOtherSecretsAndAlgorithms(t *testing.T) {
	m, c := newTestTokenManager(t, time.Hour)

	other, err := NewTokenManager("another-secret", time.Hour, WithClock(c.now))
	require.NoError(t, err)
	token, err := other.Issue("user-1", entities.RoleUser)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Garbage(t *testing.T) {
	m, _ := newTestTokenManager(t, time.Hour)

	for _, token := range []string{"", "abc", "a.b.c", "Bearer x"} {
		_, err := m.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestTokenManager_MissingUserID(t *testing.T) {
	m, c := newTestTokenManager(t, time.Hour)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(c.t),
			ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
