package http

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/audit"
	"github.com/mrlokans/herbalgarden/internal/auth"
)

// MessageInvalidBody is returned when a request body cannot be decoded.
const MessageInvalidBody = "Invalid request body"

// Pagination is the paging block of list responses.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Limit int   `json:"limit"`
}

func newPagination(total int64, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, Page: page, Pages: pages, Limit: limit}
}

// --- Error Response Helpers ---

// abortWithError hands err to the error handler and stops the chain.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// --- Request Parsing ---

// bindJSON decodes the body into dst. An empty body leaves dst untouched.
func bindJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, apperr.Wrap(apperr.KindValidation, MessageInvalidBody, err))
		return false
	}
	return true
}

// parseUUIDParam extracts a UUID path parameter. Malformed values are
// reported as an invalid field.
func parseUUIDParam(c *gin.Context, paramName, field string) (string, bool) {
	id := c.Param(paramName)
	if _, err := uuid.Parse(id); err != nil {
		abortWithError(c, apperr.InvalidID(field))
		return "", false
	}
	return id, true
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// requestInfo identifies the caller for the audit log.
func requestInfo(c *gin.Context) audit.RequestInfo {
	return audit.RequestInfo{
		UserID:    auth.CurrentUserID(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// joinPath mirrors how gin joins a group base path and a relative path.
func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	p := path.Join(base, rel)
	if strings.HasSuffix(rel, "/") && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
