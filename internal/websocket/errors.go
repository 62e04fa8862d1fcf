// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrClientClosed = errors.New("client connection closed")
	ErrOpenTimeout  = errors.New("tab did not acknowledge popup")
	ErrNoSession    = errors.New("no session attached to client")
	ErrHubStopped   = errors.New("websocket hub stopped")
)
