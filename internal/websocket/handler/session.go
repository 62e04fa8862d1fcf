// internal/websocket/handler/session.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"authbridge/internal/domain/auth"
	wstypes "authbridge/internal/domain/websocket"
	ws "authbridge/internal/websocket"

	"go.uber.org/zap"
)

// SessionHandler runs session commands against the tab's controller. Every
// command runs on its own goroutine: a social login blocks until the tab
// reports back on the same socket.
type SessionHandler struct {
	logger *zap.Logger
}

func NewSessionHandler(logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{logger: logger}
}

// SupportedEvents returns events this handler supports
func (h *SessionHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeLogin,
		wstypes.EventTypeSocialLogin,
		wstypes.EventTypeLogout,
		wstypes.EventTypeRememberRedirect,
	}
}

// HandleMessage processes session messages
func (h *SessionHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	session := client.Session()
	if session == nil {
		return ws.ErrNoSession
	}

	switch msg.Type {
	case wstypes.EventTypeLogin:
		data, err := json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("failed to encode login payload: %w", err)
		}
		payload, err := auth.DecodeLoginPayload(data)
		if err != nil {
			return err
		}
		go session.Login(ctx, payload)
		return nil

	case wstypes.EventTypeSocialLogin:
		var req wstypes.SocialLoginRequest
		if err := ws.DecodeData(msg.Data, &req); err != nil {
			return err
		}
		provider, err := auth.ParseSocialProvider(req.Provider)
		if err != nil {
			return err
		}
		go func() {
			if err := session.SocialLogin(ctx, provider); err != nil {
				h.logger.Info("social login did not complete",
					zap.String("device_id", client.Device()),
					zap.String("provider", string(provider)),
					zap.Error(err),
				)
			}
		}()
		return nil

	case wstypes.EventTypeLogout:
		go session.Logout(ctx)
		return nil

	case wstypes.EventTypeRememberRedirect:
		var req wstypes.RememberRedirectRequest
		if err := ws.DecodeData(msg.Data, &req); err != nil {
			return err
		}
		session.RememberRedirect(ctx, req.Path)
		return nil

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}
