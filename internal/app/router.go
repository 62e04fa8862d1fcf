// internal/app/router.go
package app

import (
	"net/http"
	"path"

	"authbridge/internal/guard"
	authHandler "authbridge/internal/handlers/auth"
	oauthHandler "authbridge/internal/handlers/oauth"
	wsHandler "authbridge/internal/handlers/websocket"
	"authbridge/internal/middleware"
	"authbridge/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler     *authHandler.AuthHandler
	CallbackHandler *oauthHandler.CallbackHandler
	WSHandler       *wsHandler.WebSocketHandler
	SessionSource   middleware.SessionSource
	Registry        *prometheus.Registry
	CallbackPath    string
	// DurableSessions mounts the per-request session API and guarded routes.
	// Memory sessions only live in a tab's websocket controller.
	DurableSessions bool
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Metrics ====================
	if h.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Registry, promhttp.HandlerOpts{})))
	}

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)
	api.GET("/ws/stats", h.WSHandler.GetStats)

	// ==================== OAuth Callback ====================
	callbackPath := h.CallbackPath
	if callbackPath == "" {
		callbackPath = "/api/auth"
	}
	r.GET(path.Join(callbackPath, ":provider"), h.CallbackHandler.HandleCallback)

	if !h.DurableSessions {
		logger.Warn("memory token storage: session API and guarded routes are not mounted")
		logger.Info("routes registered", zap.Int("count", len(r.Routes())))
		return
	}

	// ==================== Session ====================
	session := api.Group("/session")
	{
		session.GET("", h.AuthHandler.GetSession)
		session.POST("/login", h.AuthHandler.Login)
		session.POST("/logout", h.AuthHandler.Logout)
		session.POST("/redirect", h.AuthHandler.RememberRedirect)
	}

	// ==================== Guarded ====================
	account := api.Group("/account")
	account.Use(middleware.Guard(guard.Protect{}, h.SessionSource,
		middleware.WithRememberRedirect(h.AuthHandler.Remember),
	))
	{
		account.GET("", func(c *gin.Context) {
			user, _ := middleware.GetUser(c)
			response.Success(c, http.StatusOK, "account", user)
		})
	}

	guest := api.Group("/guest")
	guest.Use(middleware.Guard(guard.SignedOut{}, h.SessionSource))
	{
		guest.GET("", func(c *gin.Context) {
			response.Success(c, http.StatusOK, "signed out", nil)
		})
	}

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
