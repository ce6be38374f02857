package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phillip/event-manager-go/utils"
)

// ErrorHandler is the single place where handler errors become responses:
// {"error": message, "details": [...]}, plus "stack" outside production.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := utils.AsAppError(c.Errors.Last().Err)
		logger := LoggerFrom(c)
		event := logger.Warn()
		if appErr.Status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Err(appErr).
			Int("status", appErr.Status).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")

		body := gin.H{"error": appErr.Message}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		if !production {
			body["stack"] = appErr.Stack()
		}
		c.JSON(appErr.Status, body)
	}
}

// Recovery turns a panic into a 500 handled by ErrorHandler.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				_ = c.Error(utils.Internal("internal server error", fmt.Errorf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// NotFound answers unknown routes through ErrorHandler.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(utils.NotFound("route not found"))
		c.Abort()
	}
}
