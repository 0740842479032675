package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
)

// LoggingMiddleware logs HTTP requests with structured logging
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := uuid.NewString()
		c.Set("request_id", requestID)

		reqLogger := logger.WithContext(map[string]interface{}{
			"request_id": requestID,
			"method":     method,
			"path":       path,
			"client_ip":  c.ClientIP(),
		})
		c.Set("logger", reqLogger)

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
		}

		if userID, exists := c.Get(UserIDKey); exists {
			fields["user_id"] = userID
		}

		switch {
		case statusCode >= 500:
			reqLogger.Error("Request completed with server error", nil, fields)
		case statusCode >= 400:
			reqLogger.Warn("Request completed with client error", fields)
		default:
			reqLogger.Info("Request completed", fields)
		}
	}
}

// GetLoggerFromContext retrieves the request-scoped logger from gin context
func GetLoggerFromContext(c *gin.Context) *logger.Logger {
	if l, exists := c.Get("logger"); exists {
		if contextLogger, ok := l.(*logger.Logger); ok {
			return contextLogger
		}
	}
	return logger.Get()
}
