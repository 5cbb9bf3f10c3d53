package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tripkit/image-search/internal/logger"
)

// ContextualLogger injects a request-scoped logger into the request context.
// The logger carries a generated request id and, when tracing is enabled,
// the trace/span ids of the active span.
func ContextualLogger(component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestLogger := logger.GetLoggerWithContext(c.Request.Context(), component).
			With().
			Str("request_id", uuid.New().String()).
			Logger()

		ctx := logger.ToContext(c.Request.Context(), requestLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CORS returns a middleware for handling CORS
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
