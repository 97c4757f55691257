package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/auth"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

// ProfileController handles the signed-in user's own account.
type ProfileController struct {
	authService *auth.Service
	cookies     *auth.CookieTransport
	bookmarks   BookmarkStore
	auditor     Auditor
	now         func() time.Time
}

// NewProfileController creates a new ProfileController.
func NewProfileController(authService *auth.Service, cookies *auth.CookieTransport, bookmarks BookmarkStore, auditor Auditor, now func() time.Time) *ProfileController {
	if now == nil {
		now = time.Now
	}
	return &ProfileController{
		authService: authService,
		cookies:     cookies,
		bookmarks:   bookmarks,
		auditor:     auditor,
		now:         now,
	}
}

type profileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

func (r profileRequest) role() *entities.UserRole {
	if r.Role == nil {
		return nil
	}
	role := entities.UserRole(*r.Role)
	return &role
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// UpdateProfile handles PUT /api/users/profile
func (pc *ProfileController) UpdateProfile(c *gin.Context) {
	self, ok := currentUser(c)
	if !ok {
		return
	}

	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := pc.authService.UpdateProfile(c.Request.Context(), self, auth.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.role(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	pc.auditor.LogAccount(requestInfo(c), "profile_update", "Profile updated")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// ChangePassword handles PUT /api/users/password
func (pc *ProfileController) ChangePassword(c *gin.Context) {
	self, ok := currentUser(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		abortWithError(c, apperr.Validation("Current and new password are required"))
		return
	}

	if err := pc.authService.ChangePassword(c.Request.Context(), self.ID, req.CurrentPassword, req.NewPassword); err != nil {
		abortWithError(c, err)
		return
	}

	pc.auditor.LogAccount(requestInfo(c), "password_change", "Password changed")
	respondSuccess(c, "Password changed successfully")
}

// DeleteAccount handles DELETE /api/users/account
func (pc *ProfileController) DeleteAccount(c *gin.Context) {
	self, ok := currentUser(c)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Password == "" {
		abortWithError(c, apperr.Validation("Password is required"))
		return
	}

	if err := pc.authService.DeleteAccount(c.Request.Context(), self.ID, req.Password); err != nil {
		abortWithError(c, err)
		return
	}

	pc.auditor.LogAccount(requestInfo(c), "account_delete", "Account deleted: "+self.Email)
	pc.cookies.Clear(c.Writer)
	respondSuccess(c, "Account deleted successfully")
}

// Stats handles GET /api/users/stats
func (pc *ProfileController) Stats(c *gin.Context) {
	self, ok := currentUser(c)
	if !ok {
		return
	}

	total, err := pc.bookmarks.Count(c.Request.Context(), self.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ageDays := int(pc.now().Sub(self.CreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"totalBookmarks": total,
			"accountAgeDays": ageDays,
			"memberSince":    self.CreatedAt,
		},
	})
}

// currentUser returns the authenticated user or aborts with 401.
func currentUser(c *gin.Context) (*entities.User, bool) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		abortWithError(c, apperr.Unauthenticated(auth.MessageNotAuthenticated))
		return nil, false
	}
	return user, true
}
