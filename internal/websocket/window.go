package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	wstypes "authbridge/internal/domain/websocket"
	"authbridge/internal/oauth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const openAckTimeout = 10 * time.Second

// popup is a window the tab opened on the server's behalf.
type popup struct {
	id     string
	bridge *windowBridge
	closed atomic.Bool
}

func (p *popup) Closed() bool { return p.closed.Load() }

func (p *popup) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.bridge.forget(p.id)
	p.bridge.client.SendMessage(wstypes.NewMessage(wstypes.EventTypeWindowClose, wstypes.WindowEventData{PopupID: p.id}))
}

// windowBridge turns window events reported by the tab into the popup and
// message primitives the handshake expects.
type windowBridge struct {
	client *Client

	mu      sync.Mutex
	popups  map[string]*popup
	pending map[string]chan bool
	subs    map[int]chan oauth.Message
	nextSub int
	closed  bool

	ackTimeout time.Duration
}

func newWindowBridge(c *Client) *windowBridge {
	return &windowBridge{
		client:     c,
		popups:     make(map[string]*popup),
		pending:    make(map[string]chan bool),
		subs:       make(map[int]chan oauth.Message),
		ackTimeout: openAckTimeout,
	}
}

func (b *windowBridge) open(ctx context.Context, url, name, features string) (oauth.Popup, error) {
	p := &popup{id: uuid.NewString(), bridge: b}
	ack := make(chan bool, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClientClosed
	}
	b.pending[p.id] = ack
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, p.id)
		b.mu.Unlock()
	}()

	b.client.SendMessage(wstypes.NewMessage(wstypes.EventTypeWindowOpen, wstypes.WindowOpenData{
		PopupID:  p.id,
		URL:      url,
		Name:     name,
		Features: features,
	}))

	timer := time.NewTimer(b.ackTimeout)
	defer timer.Stop()

	select {
	case opened, ok := <-ack:
		if !ok {
			return nil, ErrClientClosed
		}
		if !opened {
			return nil, nil
		}
		b.mu.Lock()
		b.popups[p.id] = p
		b.mu.Unlock()
		return p, nil
	case <-timer.C:
		return nil, ErrOpenTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *windowBridge) handleEvent(event wstypes.EventType, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch event {
	case wstypes.EventTypeWindowOpened, wstypes.EventTypeWindowBlocked:
		if ack, ok := b.pending[id]; ok {
			ack <- event == wstypes.EventTypeWindowOpened
			delete(b.pending, id)
		}
	case wstypes.EventTypeWindowClosed:
		if p, ok := b.popups[id]; ok {
			p.closed.Store(true)
			delete(b.popups, id)
		}
	}
}

func (b *windowBridge) forget(id string) {
	b.mu.Lock()
	delete(b.popups, id)
	b.mu.Unlock()
}

func (b *windowBridge) subscribe() (<-chan oauth.Message, func()) {
	ch := make(chan oauth.Message, 8)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *windowBridge) deliver(msg oauth.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.client.logger.Warn("dropping window message for slow subscriber", zap.String("origin", msg.Origin))
		}
	}
}

// close releases every waiter: pending opens fail and subscriptions end.
func (b *windowBridge) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	for id, ack := range b.pending {
		close(ack)
		delete(b.pending, id)
	}
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	for id, p := range b.popups {
		p.closed.Store(true)
		delete(b.popups, id)
	}
}
