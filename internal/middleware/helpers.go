// internal/middleware/helpers.go
package middleware

import (
	"authbridge/internal/domain/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxDeviceID = "device_id"
	ctxView     = "session_view"
)

// GetDeviceID returns the id assigned by Device.
func GetDeviceID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxDeviceID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// MustGetDeviceID gets device ID from context or panics
func MustGetDeviceID(c *gin.Context) string {
	id, exists := GetDeviceID(c)
	if !exists {
		panic("device_id not found in context")
	}
	return id
}

// GetView returns the session view a guard let through.
func GetView(c *gin.Context) (auth.View, bool) {
	v, exists := c.Get(ctxView)
	if !exists {
		return auth.View{}, false
	}
	view, ok := v.(auth.View)
	return view, ok
}

// GetUser returns the signed-in user, if any.
func GetUser(c *gin.Context) (*auth.User, bool) {
	view, ok := GetView(c)
	if !ok || view.User == nil {
		return nil, false
	}
	return view.User, true
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	view, ok := GetView(c)
	return ok && view.SignedIn()
}
