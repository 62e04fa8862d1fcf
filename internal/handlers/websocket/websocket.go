// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"authbridge/internal/middleware"
	"authbridge/internal/pkg/response"
	authsvc "authbridge/internal/service/auth"
	ws "authbridge/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SessionFactory builds the session controller for a freshly connected tab.
// The client is both the controller's navigator and its popup host.
type SessionFactory func(client *ws.Client) (*authsvc.Controller, error)

type WebSocketHandler struct {
	hub        *ws.Hub
	newSession SessionFactory
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewWebSocketHandler accepts upgrades from allowedOrigins, or from the
// serving host itself when the list is empty.
func NewWebSocketHandler(hub *ws.Hub, newSession SessionFactory, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &WebSocketHandler{
		hub:        hub,
		newSession: newSession,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 {
					u, err := url.Parse(origin)
					return err == nil && u.Host == r.Host
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// HandleConnection upgrades a tab and gives it its own session.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	device := c.Query("device")
	if device == "" {
		device, _ = middleware.GetDeviceID(c)
	}
	if _, err := uuid.Parse(device); err != nil {
		response.Error(c, http.StatusBadRequest, "missing or invalid device id", nil)
		return
	}

	origin := c.GetHeader("Origin")
	if origin == "" {
		response.Error(c, http.StatusBadRequest, "missing origin", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, device, origin, h.logger)
	session, err := h.newSession(client)
	if err != nil {
		h.logger.Error("failed to create tab session", zap.String("device_id", device), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	client.Attach(session)

	if err := h.hub.Register(client.Context(), client); err != nil {
		h.logger.Warn("hub refused client", zap.String("device_id", device), zap.Error(err))
		client.Close()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
	go session.Bootstrap(client.Context())
}

// GetStats returns WebSocket connection statistics
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now(),
	}

	response.Success(c, http.StatusOK, "WebSocket stats", stats)
}
