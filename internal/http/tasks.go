package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/tasks"
)

// TasksController handles task queue management endpoints.
type TasksController struct {
	queue         TaskQueue
	retentionDays int
	auditor       Auditor
}

// NewTasksController creates a new TasksController.
func NewTasksController(queue TaskQueue, retentionDays int, auditor Auditor) *TasksController {
	if retentionDays <= 0 {
		retentionDays = tasks.DefaultAuditRetentionDays
	}
	return &TasksController{queue: queue, retentionDays: retentionDays, auditor: auditor}
}

type cleanupRequest struct {
	RetentionDays int `json:"retentionDays"`
}

// RunAuditCleanup handles POST /api/admin/tasks/cleanup-audit
// Enqueues a purge of audit events older than the retention period.
func (tc *TasksController) RunAuditCleanup(c *gin.Context) {
	var req cleanupRequest
	if !bindJSON(c, &req) {
		return
	}
	days := tc.retentionDays
	if req.RetentionDays < 0 {
		abortWithError(c, apperr.Validation("retentionDays must be positive"))
		return
	}
	if req.RetentionDays > 0 {
		days = req.RetentionDays
	}

	taskID, err := tc.queue.EnqueueAuditCleanup(days)
	if err != nil {
		abortWithError(c, err)
		return
	}

	tc.auditor.LogAdmin(requestInfo(c), "audit_cleanup", "", "Enqueued audit cleanup task "+taskID)
	c.JSON(http.StatusAccepted, gin.H{
		"success":       true,
		"message":       "Task enqueued",
		"taskId":        taskID,
		"retentionDays": days,
	})
}

// GetTaskStatus handles GET /api/admin/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("id"))
	if taskID == "" {
		abortWithError(c, apperr.Validation("Task ID is required"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      taskID,
		"status":  tasks.StatusString(status),
	})
}
