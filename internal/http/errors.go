package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/herbalgarden/internal/apperr"
)

// ErrorHandler renders the last error attached to the context as
// {success:false, message}. Stacks are added only when showStack is set.
// It must be registered before any middleware that reports errors.
func ErrorHandler(logger *zap.Logger, showStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		resp := apperr.Normalize(err)

		if resp.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Error(err),
			)
		} else {
			logger.Debug("request rejected",
				zap.Int("status", resp.Status),
				zap.String("kind", resp.Kind.String()),
				zap.Error(err),
			)
		}

		body := gin.H{"success": false, "message": resp.Message}
		if showStack && resp.Stack != "" {
			body["stack"] = resp.Stack
		}
		c.JSON(resp.Status, body)
	}
}

// Recovery turns panics into the same 500 body the error handler produces.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": apperr.MessageInternalError,
		})
	})
}

// notFound handles unmatched routes.
func notFound(c *gin.Context) {
	abortWithError(c, apperr.NotFound("Route not found"))
}
