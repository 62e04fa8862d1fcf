package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	wstypes "authbridge/internal/domain/websocket"
	"authbridge/internal/oauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://app.example.com"

func newTestClient() *Client {
	return NewClient(NewHub(nil, nil), nil, "device-1", testOrigin, nil)
}

func next(t *testing.T, c *Client) *wstypes.WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		msg, err := wstypes.ParseMessage(data)
		require.NoError(t, err)
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message sent")
		return nil
	}
}

func inbound(t *testing.T, event wstypes.EventType, data interface{}) []byte {
	t.Helper()
	raw, err := wstypes.NewMessage(event, data).ToJSON()
	require.NoError(t, err)
	return raw
}

func popupID(t *testing.T, msg *wstypes.WSMessage) string {
	t.Helper()
	require.Equal(t, wstypes.EventTypeWindowOpen, msg.Type)
	var data wstypes.WindowOpenData
	require.NoError(t, DecodeData(msg.Data, &data))
	return data.PopupID
}

type openResult struct {
	popup oauth.Popup
	err   error
}

func openAsync(c *Client) chan openResult {
	out := make(chan openResult, 1)
	go func() {
		p, err := c.Open(context.Background(), "https://accounts.google.com/auth", "googleAuthPopup", "width=500")
		out <- openResult{p, err}
	}()
	return out
}

func TestClient_OpenAcknowledged(t *testing.T) {
	c := newTestClient()
	result := openAsync(c)

	msg := next(t, c)
	var data wstypes.WindowOpenData
	require.NoError(t, DecodeData(msg.Data, &data))
	assert.Equal(t, "https://accounts.google.com/auth", data.URL)
	assert.Equal(t, "googleAuthPopup", data.Name)

	c.handleMessage(inbound(t, wstypes.EventTypeWindowOpened, wstypes.WindowEventData{PopupID: data.PopupID}))

	res := <-result
	require.NoError(t, res.err)
	require.NotNil(t, res.popup)
	assert.False(t, res.popup.Closed())

	c.handleMessage(inbound(t, wstypes.EventTypeWindowClosed, wstypes.WindowEventData{PopupID: data.PopupID}))
	assert.True(t, res.popup.Closed())
}

func TestClient_OpenBlocked(t *testing.T) {
	c := newTestClient()
	result := openAsync(c)

	id := popupID(t, next(t, c))
	c.handleMessage(inbound(t, wstypes.EventTypeWindowBlocked, wstypes.WindowEventData{PopupID: id}))

	res := <-result
	assert.NoError(t, res.err)
	assert.Nil(t, res.popup)
}

func TestClient_OpenTimeout(t *testing.T) {
	c := newTestClient()
	c.windows.ackTimeout = 10 * time.Millisecond

	_, err := c.Open(context.Background(), "u", "n", "f")
	assert.True(t, errors.Is(err, ErrOpenTimeout))
}

func TestClient_CloseReleasesWaiters(t *testing.T) {
	c := newTestClient()
	messages, cancel := c.Subscribe()
	defer cancel()
	result := openAsync(c)
	next(t, c)

	c.Close()

	res := <-result
	assert.True(t, errors.Is(res.err, ErrClientClosed))
	_, ok := <-messages
	assert.False(t, ok)

	late, _ := c.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestClient_PopupCloseNotifiesTab(t *testing.T) {
	c := newTestClient()
	result := openAsync(c)
	id := popupID(t, next(t, c))
	c.handleMessage(inbound(t, wstypes.EventTypeWindowOpened, wstypes.WindowEventData{PopupID: id}))
	p := (<-result).popup

	p.Close()
	p.Close()

	msg := next(t, c)
	assert.Equal(t, wstypes.EventTypeWindowClose, msg.Type)
	assert.Empty(t, c.send)
}

func TestClient_WindowMessagesReachSubscribers(t *testing.T) {
	c := newTestClient()
	messages, cancel := c.Subscribe()

	c.handleMessage(inbound(t, wstypes.EventTypeWindowMessage, wstypes.WindowMessageData{
		Origin: testOrigin,
		Data:   json.RawMessage(`{"isAuthenticated":true}`),
	}))

	got := <-messages
	assert.Equal(t, testOrigin, got.Origin)
	assert.JSONEq(t, `{"isAuthenticated":true}`, string(got.Data))

	cancel()
	c.handleMessage(inbound(t, wstypes.EventTypeWindowMessage, wstypes.WindowMessageData{Origin: testOrigin}))
	assert.Empty(t, messages)
}

func TestClient_BuiltIns(t *testing.T) {
	c := newTestClient()

	c.handleMessage(inbound(t, wstypes.EventTypePing, nil))
	assert.Equal(t, wstypes.EventTypePong, next(t, c).Type)

	c.handleMessage([]byte("{not json"))
	assert.Equal(t, wstypes.EventTypeError, next(t, c).Type)

	c.handleMessage(inbound(t, wstypes.EventTypeLogin, nil))
	msg := next(t, c)
	assert.Equal(t, wstypes.EventTypeError, msg.Type)

	c.Navigate("/login", true)
	msg = next(t, c)
	assert.Equal(t, wstypes.EventTypeNavigate, msg.Type)
	var nav wstypes.NavigateData
	require.NoError(t, DecodeData(msg.Data, &nav))
	assert.Equal(t, wstypes.NavigateData{Path: "/login", Replace: true}, nav)
}

func TestClient_SendAfterCloseIsDropped(t *testing.T) {
	c := newTestClient()
	c.Close()
	c.Navigate("/", false)
	assert.Empty(t, c.send)
}

func TestHub_RegisterAndShutdown(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := NewClient(hub, nil, "device-1", testOrigin, nil)
	require.NoError(t, hub.Register(context.Background(), c))
	assert.Equal(t, wstypes.EventTypeConnected, next(t, c).Type)
	assert.Equal(t, 1, hub.DeviceClients("device-1"))
	assert.Equal(t, 1, hub.TotalClients())

	cancel()
	<-done
	assert.Equal(t, 0, hub.TotalClients())
	assert.Error(t, c.Context().Err())
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	select {
	case <-hub.Done():
	default:
		t.Fatal("hub not marked done after Run returned")
	}

	late := NewClient(hub, nil, "device-2", testOrigin, nil)
	assert.ErrorIs(t, hub.Register(context.Background(), late), ErrHubStopped)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 32; i++ {
			hub.Unregister(NewClient(hub, nil, "device-3", testOrigin, nil))
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked on a stopped hub")
	}

	orphan := NewClient(hub, nil, "device-4", testOrigin, nil)
	hub.Unregister(orphan)
	assert.Error(t, orphan.Context().Err())
}

func TestHub_DisconnectDevice(t *testing.T) {
	hub := NewHub(nil, nil)
	a := NewClient(hub, nil, "d1", testOrigin, nil)
	b := NewClient(hub, nil, "d2", testOrigin, nil)
	hub.registerClient(a)
	hub.registerClient(b)

	hub.DisconnectDevice("d1", "logged out elsewhere")

	assert.Equal(t, 0, hub.DeviceClients("d1"))
	assert.Equal(t, 1, hub.DeviceClients("d2"))
	assert.Error(t, a.Context().Err())
	assert.NoError(t, b.Context().Err())
}
