package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   Kind
		wantMsg    string
	}{
		{
			name:       "invalid identifier",
			err:        InvalidID("userId"),
			wantStatus: http.StatusBadRequest,
			wantKind:   KindInvalidID,
			wantMsg:    "Invalid userId",
		},
		{
			name:       "duplicate field",
			err:        Duplicate("email", errors.New("UNIQUE constraint failed: users.email")),
			wantStatus: http.StatusBadRequest,
			wantKind:   KindDuplicate,
			wantMsg:    "Duplicate field value: email",
		},
		{
			name:       "wrapped duplicate keeps its message",
			err:        fmt.Errorf("create user: %w", Duplicate("username", nil)),
			wantStatus: http.StatusBadRequest,
			wantKind:   KindDuplicate,
			wantMsg:    "Duplicate field value: username",
		},
		{
			name:       "raw signature failure",
			err:        fmt.Errorf("verify: %w", jwt.ErrTokenSignatureInvalid),
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindInvalidCredential,
			wantMsg:    MessageInvalidToken,
		},
		{
			name:       "raw malformed token",
			err:        jwt.ErrTokenMalformed,
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindInvalidCredential,
			wantMsg:    MessageInvalidToken,
		},
		{
			name:       "raw expired token",
			err:        fmt.Errorf("verify: %w", jwt.ErrTokenExpired),
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindExpired,
			wantMsg:    MessageTokenExpired,
		},
		{
			name:       "classified expired token",
			err:        Wrap(KindExpired, MessageTokenExpired, jwt.ErrTokenExpired),
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindExpired,
			wantMsg:    MessageTokenExpired,
		},
		{
			name:       "forbidden",
			err:        Forbidden("Forbidden: Access denied"),
			wantStatus: http.StatusForbidden,
			wantKind:   KindForbidden,
			wantMsg:    "Forbidden: Access denied",
		},
		{
			name:       "not found",
			err:        NotFound("Plant not found"),
			wantStatus: http.StatusNotFound,
			wantKind:   KindNotFound,
			wantMsg:    "Plant not found",
		},
		{
			name:       "conflict is a bad request",
			err:        Conflict("Email already exists"),
			wantStatus: http.StatusBadRequest,
			wantKind:   KindConflict,
			wantMsg:    "Email already exists",
		},
		{
			name:       "rate limited",
			err:        RateLimited("Too many login attempts"),
			wantStatus: http.StatusTooManyRequests,
			wantKind:   KindRateLimited,
			wantMsg:    "Too many login attempts",
		},
		{
			name:       "unknown error hides its text",
			err:        errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   KindInternal,
			wantMsg:    MessageInternalError,
		},
		{
			name:       "internal app error hides its message",
			err:        Wrap(KindInternal, "hash password", errors.New("boom")),
			wantStatus: http.StatusInternalServerError,
			wantKind:   KindInternal,
			wantMsg:    MessageInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Normalize(tt.err)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestNormalize_InvalidIDWinsOverWrappedCauses(t *testing.T) {
	err := &Error{Kind: KindInvalidID, Message: "Invalid plantId", Field: "plantId", Err: jwt.ErrTokenExpired}

	resp := Normalize(err)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Invalid plantId", resp.Message)
}

func TestError_StackIsCaptured(t *testing.T) {
	err := Validation("Plant name is required")

	assert.Contains(t, err.Stack(), "TestError_StackIsCaptured")
	assert.Empty(t, (&Error{Kind: KindValidation, Message: "bare"}).Stack())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("outer: %w", Forbidden("no"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(KindInvalidCredential, "Invalid token", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Invalid token: cause", err.Error())
	assert.Equal(t, "invalid_credential", err.Kind.String())
}
