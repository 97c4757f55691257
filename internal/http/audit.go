package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

const (
	defaultAuditPageSize = 25
	maxAuditPageSize     = 100
)

var auditEventTypes = map[entities.AuditEventType]bool{
	entities.AuditEventAuth:        true,
	entities.AuditEventAccount:     true,
	entities.AuditEventAdmin:       true,
	entities.AuditEventPlant:       true,
	entities.AuditEventMaintenance: true,
}

type AuditController struct {
	auditor Auditor
}

func NewAuditController(auditor Auditor) *AuditController {
	return &AuditController{auditor: auditor}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/admin/logs
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", defaultAuditPageSize)
	if limit > maxAuditPageSize {
		limit = defaultAuditPageSize
	}

	eventType := entities.AuditEventType(c.Query("type"))
	if eventType != "" && !auditEventTypes[eventType] {
		abortWithError(c, apperr.Validation("Invalid event type"))
		return
	}

	events, total, err := ac.auditor.GetEvents(c.Request.Context(), eventType, limit, (page-1)*limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"events":     events,
		"pagination": newPagination(total, page, limit),
	})
}
