// internal/middleware/recovery_middleware.go
package middleware

import (
	"errors"
	"net/http"

	"authbridge/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			fields := []zap.Field{
				zap.Any("error", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Stack("stack"),
			}
			if device, ok := GetDeviceID(c); ok {
				fields = append(fields, zap.String("device", device))
			}
			logger.Error("panic recovered", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}()
		c.Next()
	}
}
