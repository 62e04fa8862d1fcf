// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Session commands (client -> server)
	EventTypeLogin            EventType = "auth:login"
	EventTypeSocialLogin      EventType = "auth:social_login"
	EventTypeLogout           EventType = "auth:logout"
	EventTypeRememberRedirect EventType = "auth:remember_redirect"

	// Session events (server -> client)
	EventTypeState    EventType = "auth:state"
	EventTypeNavigate EventType = "navigate"

	// Popup commands (server -> client)
	EventTypeWindowOpen  EventType = "window:open"
	EventTypeWindowClose EventType = "window:close"

	// Popup events (client -> server)
	EventTypeWindowOpened  EventType = "window:opened"
	EventTypeWindowBlocked EventType = "window:blocked"
	EventTypeWindowClosed  EventType = "window:closed"
	EventTypeWindowMessage EventType = "window:message"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"` // For message tracking/acknowledgment
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ConnectedData is sent once after the tab is registered.
type ConnectedData struct {
	DeviceID string `json:"device_id"`
	Origin   string `json:"origin"`
}

// SocialLoginRequest starts a popup login.
type SocialLoginRequest struct {
	Provider string `json:"provider"`
}

// RememberRedirectRequest stashes the page to return to after login.
type RememberRedirectRequest struct {
	Path string `json:"path"`
}

// NavigateData asks the tab to change route.
type NavigateData struct {
	Path    string `json:"path"`
	Replace bool   `json:"replace"`
}

// WindowOpenData asks the tab to open a popup.
type WindowOpenData struct {
	PopupID  string `json:"popup_id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Features string `json:"features"`
}

// WindowEventData identifies the popup an event refers to.
type WindowEventData struct {
	PopupID string `json:"popup_id"`
}

// WindowMessageData is a message the tab received through postMessage.
type WindowMessageData struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        generateMessageID(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

func generateMessageID() string {
	return ulid.Make().String()
}
