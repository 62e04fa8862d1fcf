// internal/websocket/handler.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	wstypes "authbridge/internal/domain/websocket"
	xerrors "authbridge/internal/pkg/errors"
)

// MessageHandler serves one or more client event types.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry maps event types to their handler. An event type has at
// most one handler; built-in window events cannot be claimed.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[wstypes.EventType]MessageHandler),
	}
}

func (r *HandlerRegistry) Register(handler MessageHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventType := range handler.SupportedEvents() {
		if builtinEvent(eventType) {
			return fmt.Errorf("event %s is handled by the client", eventType)
		}
		if _, taken := r.handlers[eventType]; taken {
			return fmt.Errorf("event %s already has a handler", eventType)
		}
	}
	for _, eventType := range handler.SupportedEvents() {
		r.handlers[eventType] = handler
	}
	return nil
}

func (r *HandlerRegistry) Lookup(eventType wstypes.EventType) (MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[eventType]
	return handler, ok
}

func builtinEvent(t wstypes.EventType) bool {
	switch t {
	case wstypes.EventTypePing,
		wstypes.EventTypeWindowOpened,
		wstypes.EventTypeWindowBlocked,
		wstypes.EventTypeWindowClosed,
		wstypes.EventTypeWindowMessage:
		return true
	}
	return false
}

// DecodeData re-decodes a message's generic data into target.
func DecodeData(data interface{}, target interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return xerrors.Decode(err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return xerrors.Decode(err)
	}
	return nil
}
