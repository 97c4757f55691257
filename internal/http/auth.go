package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/herbalgarden/internal/audit"
	"github.com/mrlokans/herbalgarden/internal/auth"
)

// AuthController handles registration, login and session endpoints.
type AuthController struct {
	service    *auth.Service
	middleware *auth.Middleware
	cookies    *auth.CookieTransport
	auditor    Auditor
}

func NewAuthController(service *auth.Service, middleware *auth.Middleware, cookies *auth.CookieTransport, auditor Auditor) *AuthController {
	return &AuthController{
		service:    service,
		middleware: middleware,
		cookies:    cookies,
		auditor:    auditor,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	AdminKey string `json:"adminKey"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := ac.service.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		AdminKey: req.AdminKey,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	info := requestInfo(c)
	info.UserID = session.User.ID
	ac.auditor.LogAuth(info, "register", true)

	ac.cookies.Set(c.Writer, session.Token)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"token":   session.Token,
		"user":    session.User,
	})
}

// Login handles POST /api/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := ac.service.Login(c.Request.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		var lockout *auth.LockoutError
		if errors.As(err, &lockout) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(lockout.RetryAfter.Seconds()))))
		}
		ac.auditor.LogAuth(requestInfo(c), "login", false)
		abortWithError(c, err)
		return
	}

	info := requestInfo(c)
	info.UserID = session.User.ID
	ac.auditor.LogAuth(info, "login", true)

	ac.cookies.Set(c.Writer, session.Token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User logged in successfully",
		"token":   session.Token,
		"user":    session.User,
	})
}

// Logout handles POST /api/auth/logout. It always succeeds and only clears
// the cookie; the token itself stays valid until it expires.
func (ac *AuthController) Logout(c *gin.Context) {
	if user, _, err := ac.middleware.Authenticate(c.Request); err == nil {
		ac.auditor.LogAuth(audit.RequestInfo{
			UserID:    user.ID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}, "logout", true)
	}

	ac.cookies.Clear(c.Writer)
	respondSuccess(c, "Logged out successfully")
}

// Me handles GET /api/auth/me
func (ac *AuthController) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// Protected handles GET /api/auth/protected, a super-admin only probe.
func (ac *AuthController) Protected(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Welcome, " + user.Username + ". You have super-admin access.",
	})
}

// CSRFToken handles GET /api/auth/csrf
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "csrfToken": auth.GetCSRFToken(c)})
}
