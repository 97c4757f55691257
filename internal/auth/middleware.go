package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/database/users"
	"github.com/mrlokans/herbalgarden/internal/entities"
	"github.com/mrlokans/herbalgarden/internal/metrics"
)

// Context keys for storing auth information in Gin context.
const (
	ContextKeyUser   = "auth_user"
	ContextKeyClaims = "auth_claims"
)

// Client-facing messages of the session middleware and the role gate.
const (
	MessageAuthRequired     = "Authentication failed. Please login."
	MessageUserNotFound     = "User not found. Please login again."
	MessageNotAuthenticated = "Not authenticated"
	MessageForbidden        = "Forbidden: Access denied"
)

// UserLoader loads the user a verified token refers to, without the
// password hash.
type UserLoader interface {
	FindIdentity(ctx context.Context, id string) (*entities.User, error)
}

// Middleware authenticates every request except those on registered public routes.
type Middleware struct {
	tokens    *TokenManager
	users     UserLoader
	transport *CookieTransport
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// keyed by method + " " + route template; written only while routes are registered
	publicRoutes map[string]struct{}
}

func NewMiddleware(tokens *TokenManager, loader UserLoader, transport *CookieTransport, m *metrics.Metrics, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		tokens:       tokens,
		users:        loader,
		transport:    transport,
		metrics:      m,
		logger:       logger.Named("auth"),
		publicRoutes: make(map[string]struct{}),
	}
}

// AllowPublic exempts a route from authentication. path is the route template
// as registered with gin, e.g. "/api/plants/:id".
func (m *Middleware) AllowPublic(method, path string) {
	m.publicRoutes[method+" "+path] = struct{}{}
}

// IsPublic reports whether the route was registered as public.
func (m *Middleware) IsPublic(method, path string) bool {
	_, ok := m.publicRoutes[method+" "+path]
	return ok
}

// Handler returns the Gin middleware. Failures are attached with c.Error and
// rendered by the error handler.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		// unmatched routes fall through to the 404 handler
		if route == "" || c.Request.Method == http.MethodOptions || m.IsPublic(c.Request.Method, route) {
			c.Next()
			return
		}

		user, claims, err := m.Authenticate(c.Request)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// Authenticate extracts, verifies and resolves the session token of r.
func (m *Middleware) Authenticate(r *http.Request) (*entities.User, *Claims, error) {
	raw := m.extractToken(r)
	if raw == "" {
		m.metrics.ObserveTokenVerification(metrics.ResultMissing)
		return nil, nil, apperr.Unauthenticated(MessageAuthRequired)
	}

	claims, err := m.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			m.metrics.ObserveTokenVerification(metrics.ResultExpired)
			return nil, nil, apperr.Wrap(apperr.KindExpired, apperr.MessageTokenExpired, err)
		}
		m.metrics.ObserveTokenVerification(metrics.ResultInvalid)
		m.logger.Debug("rejected session token", zap.Error(err))
		return nil, nil, apperr.Wrap(apperr.KindInvalidCredential, apperr.MessageInvalidToken, err)
	}

	user, err := m.users.FindIdentity(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			m.metrics.ObserveTokenVerification(metrics.ResultUnknownUser)
			return nil, nil, apperr.Unauthenticated(MessageUserNotFound)
		}
		return nil, nil, err
	}

	m.metrics.ObserveTokenVerification(metrics.ResultSuccess)
	return user, claims, nil
}

// extractToken prefers the session cookie and falls back to a Bearer header.
func (m *Middleware) extractToken(r *http.Request) string {
	if token := m.transport.Read(r); token != "" {
		return token
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireRoles restricts a route to users holding one of roles. It must run
// after Middleware.Handler.
func RequireRoles(roles ...entities.UserRole) gin.HandlerFunc {
	allowed := make(map[entities.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			_ = c.Error(apperr.Unauthenticated(MessageNotAuthenticated))
			c.Abort()
			return
		}

		if _, ok := allowed[user.Role]; !ok {
			_ = c.Error(apperr.Forbidden(MessageForbidden))
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUser returns the user attached by the session middleware.
func CurrentUser(c *gin.Context) (*entities.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*entities.User)
	return user, ok && user != nil
}

// CurrentUserID returns the authenticated user's ID, or "" when anonymous.
func CurrentUserID(c *gin.Context) string {
	if user, ok := CurrentUser(c); ok {
		return user.ID
	}
	return ""
}

// CurrentClaims returns the verified token claims of the request.
func CurrentClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
