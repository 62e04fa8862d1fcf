// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"authbridge/internal/domain/auth"
	"authbridge/internal/pkg/jwt"
	"authbridge/internal/pkg/tokenstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DeviceCookie = "authbridge_device"
	DeviceHeader = "X-Device-ID"

	deviceCookieMaxAge = 365 * 24 * 60 * 60
)

// Device assigns every caller a stable device id. Durable tokens are scoped
// to it the way browser storage is scoped to one profile.
func Device() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(DeviceHeader)
		if id == "" {
			id, _ = c.Cookie(DeviceCookie)
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(DeviceCookie, id, deviceCookieMaxAge, "/", "", c.Request.TLS != nil, true)
		}
		c.Set(ctxDeviceID, id)
		c.Next()
	}
}

// SessionSource builds the session view for a request.
type SessionSource interface {
	View(c *gin.Context) auth.View
}

// SessionSourceFunc adapts a function to SessionSource.
type SessionSourceFunc func(c *gin.Context) auth.View

func (f SessionSourceFunc) View(c *gin.Context) auth.View { return f(c) }

// TokenSessionSource resolves the session from a bearer header, falling back
// to the token stored for the caller's device.
type TokenSessionSource struct {
	store    tokenstore.Store
	decoder  *jwt.Decoder
	tokenKey string
	logger   *zap.Logger
}

func NewTokenSessionSource(store tokenstore.Store, decoder *jwt.Decoder, tokenKey string, logger *zap.Logger) *TokenSessionSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSessionSource{store: store, decoder: decoder, tokenKey: tokenKey, logger: logger}
}

func (s *TokenSessionSource) View(c *gin.Context) auth.View {
	token := extractToken(c)
	if token == "" && s.store != nil {
		if device, ok := GetDeviceID(c); ok {
			stored, found, err := tokenstore.NewScoped(s.store, device).Get(c.Request.Context(), s.tokenKey)
			if err != nil {
				s.logger.Warn("failed to read device token", zap.String("device_id", device), zap.Error(err))
			}
			if found {
				token = stored
			}
		}
	}
	if token == "" {
		return auth.View{}
	}

	user, err := s.decoder.Decode(token)
	if err != nil {
		s.logger.Debug("ignoring undecodable token", zap.Error(err))
		return auth.View{}
	}
	return auth.View{User: user, IsAuthenticated: true}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}
