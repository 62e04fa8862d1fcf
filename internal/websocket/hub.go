// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "authbridge/internal/domain/websocket"
	"authbridge/internal/metrics"

	"go.uber.org/zap"
)

// Hub tracks connected tabs by device id.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	// closed when Run returns; senders select on it
	done     chan struct{}
	stopOnce sync.Once

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client, 16),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		logger:          logger,
		metrics:         m,
	}
}

// RegisterHandler claims the handler's event types. It fails when an event
// type is already taken.
func (h *Hub) RegisterHandler(handler MessageHandler) error {
	return h.handlerRegistry.Register(handler)
}

// HandleClientMessage dispatches to a registered handler. handled is false
// when no handler claims the event type.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (handled bool, err error) {
	handler, exists := h.handlerRegistry.Lookup(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Register hands a tab to the hub. It fails with ErrHubStopped once Run has
// returned, and gives up when ctx is done.
func (h *Hub) Register(ctx context.Context, client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes a tab. After the hub stopped the tab is only closed.
func (h *Hub) Unregister(client *Client) {
	select {
	case <-h.done:
		client.Close()
		return
	default:
	}
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

// Done is closed when the hub stops.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.device] == nil {
		h.clients[client.device] = make(map[*Client]bool)
	}
	h.clients[client.device][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.metrics.TabConnected()
	h.logger.Info("tab connected",
		zap.String("device_id", client.device),
		zap.String("origin", client.origin),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, wstypes.ConnectedData{
		DeviceID: client.device,
		Origin:   client.origin,
	}))
	client.publishState()
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.device]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()
			h.metrics.TabDisconnected()

			if len(clients) == 0 {
				delete(h.clients, client.device)
			}

			h.logger.Info("tab disconnected",
				zap.String("device_id", client.device),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

// DeviceClients returns the number of tabs open for a device.
func (h *Hub) DeviceClients(device string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[device])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// DisconnectDevice closes every tab of a device.
func (h *Hub) DisconnectDevice(device, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[device]
	if !ok {
		return
	}
	msg := wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
		"reason": reason,
	})
	for client := range clients {
		client.SendMessage(msg)
		client.Close()
		h.metrics.TabDisconnected()
	}
	delete(h.clients, device)
	h.logger.Info("device disconnected", zap.String("device_id", device), zap.String("reason", reason))
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
