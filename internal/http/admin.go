package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/auth"
	"github.com/mrlokans/herbalgarden/internal/database/users"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

// AdminUsersController lets super-admins manage other accounts.
type AdminUsersController struct {
	authService *auth.Service
	users       UserLister
	auditor     Auditor
}

func NewAdminUsersController(authService *auth.Service, lister UserLister, auditor Auditor) *AdminUsersController {
	return &AdminUsersController{authService: authService, users: lister, auditor: auditor}
}

// List handles GET /api/admin/users
func (ac *AdminUsersController) List(c *gin.Context) {
	q := users.ListQuery{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", users.DefaultPageSize),
		Search: c.Query("search"),
		SortBy: c.Query("sortBy"),
	}
	if raw := c.Query("role"); raw != "" {
		role, err := entities.ParseRole(raw)
		if err != nil {
			abortWithError(c, apperr.Validation(auth.MessageInvalidRole))
			return
		}
		q.Role = role
	}
	q = q.Normalize()

	rows, total, err := ac.users.List(c.Request.Context(), q)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"users":      rows,
		"pagination": newPagination(total, q.Page, q.Limit),
	})
}

// Get handles GET /api/admin/users/:id
func (ac *AdminUsersController) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "userId")
	if !ok {
		return
	}

	user, err := ac.authService.GetUser(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// Update handles PUT /api/admin/users/:id
func (ac *AdminUsersController) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "userId")
	if !ok {
		return
	}

	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.authService.AdminUpdateUser(c.Request.Context(), auth.CurrentUserID(c), id, auth.AdminUpdate{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.role(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	ac.auditor.LogAdmin(requestInfo(c), "user_update", user.ID, "Updated user "+user.Email)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User updated successfully",
		"user":    user,
	})
}

// Delete handles DELETE /api/admin/users/:id
func (ac *AdminUsersController) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "userId")
	if !ok {
		return
	}

	deleted, err := ac.authService.AdminDeleteUser(c.Request.Context(), auth.CurrentUserID(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ac.auditor.LogAdmin(requestInfo(c), "user_delete", deleted.ID, "Deleted user "+deleted.Email)
	respondSuccess(c, "User deleted successfully")
}
