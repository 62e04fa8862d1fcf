// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	"authbridge/internal/domain/auth"
	wstypes "authbridge/internal/domain/websocket"
	"authbridge/internal/oauth"
	authsvc "authbridge/internal/service/auth"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB
	sendBuffer     = 256
)

// Client is one browser tab. It owns the tab's session controller and acts
// as the window the OAuth handshake runs in: popups are opened and observed
// by the tab and reported back over the socket.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	device string
	origin string
	logger *zap.Logger

	sessionMu   sync.RWMutex
	session     *authsvc.Controller
	unsubscribe func()

	windows *windowBridge

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, device, origin string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		device: device,
		origin: origin,
		logger: logger.With(zap.String("device_id", device)),
		ctx:    ctx,
		cancel: cancel,
	}
	c.windows = newWindowBridge(c)
	return c
}

// Attach binds the tab's session controller and forwards its changes.
func (c *Client) Attach(session *authsvc.Controller) {
	unsubscribe := session.Subscribe(func(s auth.Session) {
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeState, s))
	})

	c.sessionMu.Lock()
	c.session = session
	c.unsubscribe = unsubscribe
	c.sessionMu.Unlock()
}

// Session returns the attached controller, or nil.
func (c *Client) Session() *authsvc.Controller {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session
}

func (c *Client) publishState() {
	if s := c.Session(); s != nil {
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeState, s.Snapshot()))
	}
}

// Device returns the device id the tab belongs to.
func (c *Client) Device() string { return c.device }

// Context is cancelled when the tab goes away.
func (c *Client) Context() context.Context { return c.ctx }

// Origin implements oauth.Host.
func (c *Client) Origin() string { return c.origin }

// Open implements oauth.Host.
func (c *Client) Open(ctx context.Context, url, name, features string) (oauth.Popup, error) {
	return c.windows.open(ctx, url, name, features)
}

// Subscribe implements oauth.Host.
func (c *Client) Subscribe() (<-chan oauth.Message, func()) {
	return c.windows.subscribe()
}

// Navigate implements auth.Navigator.
func (c *Client) Navigate(path string, replace bool) {
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeNavigate, wstypes.NavigateData{
		Path:    path,
		Replace: replace,
	}))
}

// ReadPump handles incoming messages from client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Warn("websocket read failed", zap.Error(err))
				}
				return
			}

			c.handleMessage(message)
		}
	}
}

// WritePump handles outgoing messages to client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from client
func (c *Client) handleMessage(data []byte) {
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	// Try to handle with registered handlers first
	handled, err := c.hub.HandleClientMessage(c.ctx, c, msg)
	if err != nil {
		c.SendError("handler_error", "Failed to process message", err.Error())
		return
	}
	if handled {
		return
	}

	// Built-in message handling
	switch msg.Type {
	case wstypes.EventTypePing:
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))

	case wstypes.EventTypeWindowOpened, wstypes.EventTypeWindowBlocked, wstypes.EventTypeWindowClosed:
		var ev wstypes.WindowEventData
		if err := DecodeData(msg.Data, &ev); err != nil {
			c.SendError("invalid_window_event", "Invalid window event", err.Error())
			return
		}
		c.windows.handleEvent(msg.Type, ev.PopupID)

	case wstypes.EventTypeWindowMessage:
		var m wstypes.WindowMessageData
		if err := DecodeData(msg.Data, &m); err != nil {
			c.SendError("invalid_window_message", "Invalid window message", err.Error())
			return
		}
		c.windows.deliver(oauth.Message{Origin: m.Origin, Data: m.Data})

	default:
		c.SendError("unknown_event", "Unsupported event type", string(msg.Type))
	}
}

// SendMessage sends a message to the client
func (c *Client) SendMessage(msg *wstypes.WSMessage) {
	data, err := msg.ToJSON()
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case <-c.ctx.Done():
		return
	default:
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, dropping tab")
		c.Close()
	}
}

// SendError sends an error message to the client
func (c *Client) SendError(code, message, details string) {
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close gracefully closes the client connection. Popup waits and message
// subscriptions observe the closure.
func (c *Client) Close() {
	c.cancel()
	c.windows.close()

	c.sessionMu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.sessionMu.Unlock()
}
