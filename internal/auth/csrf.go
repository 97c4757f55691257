package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTokenHeader is the header name for CSRF token in AJAX requests.
const CSRFTokenHeader = "X-CSRF-Token"

const (
	csrfContextKey     = "csrf_token"
	csrfFailureMessage = "CSRF token invalid or missing"
)

// CSRFConfig configures CSRFMiddleware.
type CSRFConfig struct {
	Secret []byte
	// Cookie attributes of the CSRF cookie; they follow the session cookie.
	Cookie CookiePolicy
	// TrustedOrigins are frontend origins allowed to make cross-origin
	// unsafe requests, as URLs or bare hosts.
	TrustedOrigins []string
}

// CSRFMiddleware creates a Gin middleware for CSRF protection of cookie
// sessions. It skips requests that authenticate with a valid Bearer token,
// since browsers never attach those automatically.
func CSRFMiddleware(cfg CSRFConfig, tokens *TokenManager) gin.HandlerFunc {
	sameSite := csrf.SameSiteLaxMode
	if cfg.Cookie.SameSite == http.SameSiteNoneMode {
		sameSite = csrf.SameSiteNoneMode
	}

	opts := []csrf.Option{
		csrf.Secure(cfg.Cookie.Secure),
		csrf.HttpOnly(true),
		csrf.SameSite(sameSite),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	}
	if cfg.Cookie.Domain != "" {
		opts = append(opts, csrf.Domain(cfg.Cookie.Domain))
	}
	if hosts := trustedHosts(cfg.TrustedOrigins); len(hosts) > 0 {
		opts = append(opts, csrf.TrustedOrigins(hosts))
	}
	csrfProtect := csrf.Protect(cfg.Secret, opts...)

	return func(c *gin.Context) {
		if hasValidBearer(c, tokens) {
			c.Next()
			return
		}

		r := c.Request
		if !cfg.Cookie.Secure {
			// the origin check assumes https unless told otherwise
			r = csrf.PlaintextHTTPRequest(r)
		}

		passed := false
		handler := csrfProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Set(csrfContextKey, csrf.Token(r))
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, r)
		if !passed {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"success":false,"message":"` + csrfFailureMessage + `"}`))
}

func hasValidBearer(c *gin.Context, tokens *TokenManager) bool {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return false
	}
	if tokens == nil {
		return false
	}
	_, err := tokens.Verify(strings.TrimSpace(parts[1]))
	return err == nil
}

// GetCSRFToken retrieves the CSRF token from the Gin context.
func GetCSRFToken(c *gin.Context) string {
	if token, exists := c.Get(csrfContextKey); exists {
		if t, ok := token.(string); ok {
			return t
		}
	}
	return ""
}

// trustedHosts reduces origins such as "https://garden.example:3000" to the
// host[:port] form gorilla/csrf compares against.
func trustedHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if !strings.Contains(o, "://") {
			o = "https://" + o
		}
		parsed, err := url.Parse(o)
		if err != nil || parsed.Host == "" {
			continue
		}
		hosts = append(hosts, parsed.Host)
	}
	return hosts
}
