// Package oauth runs the popup-based social login handshake.
//
// A handshake opens a popup at the provider's authorization endpoint and waits
// for the callback page to post an AuthResponse back to the opener. Two
// watchers run while waiting: a poller that notices the user closing the popup
// and a subscription to cross-window messages. Whichever fires first settles
// the attempt; both are always released before Start returns.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"authbridge/internal/domain/auth"
	xerrors "authbridge/internal/pkg/errors"

	"go.uber.org/zap"
)

const DefaultPollInterval = 500 * time.Millisecond

// State of one handshake attempt.
type State int

const (
	StateIdle State = iota
	StatePopupOpening
	StateAwaitingCallback
	StateResolved
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePopupOpening:
		return "popup_opening"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateRejected
}

// Popup is an opened window.
type Popup interface {
	Closed() bool
	Close()
}

// Message is a cross-window message as received by the opener.
type Message struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// Host is the window the handshake runs in.
type Host interface {
	// Origin is the scheme://host[:port] of the opener.
	Origin() string
	// Open opens a popup. A nil popup or an error means it was blocked.
	Open(ctx context.Context, url, name, features string) (Popup, error)
	// Subscribe delivers messages posted to the opener until cancel is called.
	// A closed channel means the opener itself went away.
	Subscribe() (messages <-chan Message, cancel func())
}

// Transition is reported to the observer on every state change.
type Transition struct {
	Provider auth.SocialProvider
	From     State
	To       State
}

type Config struct {
	Providers    []auth.SocialProviderConfig
	CallbackPath string
	PollInterval time.Duration
}

type Option func(*Handshake)

// WithObserver registers a callback for every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(h *Handshake) { h.observe = fn }
}

// WithStateGenerator replaces the opaque state token source.
func WithStateGenerator(fn func() string) Option {
	return func(h *Handshake) { h.newState = fn }
}

type Handshake struct {
	clientIDs    map[auth.SocialProvider]string
	host         Host
	callbackPath string
	pollInterval time.Duration
	logger       *zap.Logger
	observe      func(Transition)
	newState     func() string
}

func New(cfg Config, host Host, logger *zap.Logger, opts ...Option) *Handshake {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handshake{
		clientIDs:    make(map[auth.SocialProvider]string, len(cfg.Providers)),
		host:         host,
		callbackPath: cfg.CallbackPath,
		pollInterval: cfg.PollInterval,
		logger:       logger,
		newState:     NewState,
	}
	if h.callbackPath == "" {
		h.callbackPath = DefaultCallbackPath
	}
	if h.pollInterval <= 0 {
		h.pollInterval = DefaultPollInterval
	}
	for _, p := range cfg.Providers {
		h.clientIDs[p.Provider] = p.ClientID
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AuthURL returns the authorization URL for provider, or a config error when
// the provider has no client configuration.
func (h *Handshake) AuthURL(provider auth.SocialProvider) (string, error) {
	clientID, ok := h.clientIDs[provider]
	if !ok || clientID == "" || !provider.Valid() {
		err := xerrors.Config(fmt.Sprintf("Missing social provider config for %s", provider))
		err.Provider = string(provider)
		return "", err
	}
	redirect := RedirectURI(h.host.Origin(), h.callbackPath, provider)
	return AuthorizeURL(provider, clientID, redirect, h.newState), nil
}

// Start runs one handshake and blocks until it settles.
func (h *Handshake) Start(ctx context.Context, provider auth.SocialProvider) (*auth.AuthResponse, error) {
	a := &attempt{h: h, provider: provider, state: StateIdle}

	authURL, err := h.AuthURL(provider)
	if err != nil {
		return a.reject(err)
	}
	a.to(StatePopupOpening)

	messages, unsubscribe := h.host.Subscribe()
	ticker := time.NewTicker(h.pollInterval)
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			ticker.Stop()
			unsubscribe()
		})
	}
	defer teardown()

	popup, err := h.host.Open(ctx, authURL, popupName(provider), popupFeatures)
	if err != nil || popup == nil || popup.Closed() {
		if err != nil {
			h.logger.Warn("popup open failed", zap.String("provider", string(provider)), zap.Error(err))
		}
		return a.reject(xerrors.PopupBlocked(string(provider)))
	}
	a.to(StateAwaitingCallback)

	origin := h.host.Origin()
	for {
		select {
		case <-ctx.Done():
			teardown()
			popup.Close()
			return a.reject(xerrors.Cancelled(string(provider), ctx.Err()))

		case <-ticker.C:
			if popup.Closed() {
				// the callback page posts before it closes itself
				data, ok := a.pending(messages, origin)
				teardown()
				if ok {
					return a.settle(data)
				}
				return a.reject(xerrors.Cancelled(string(provider), nil))
			}

		case msg, ok := <-messages:
			if !ok {
				teardown()
				popup.Close()
				return a.reject(xerrors.Cancelled(string(provider), fmt.Errorf("opener went away")))
			}
			if msg.Origin != origin {
				h.logger.Debug("ignoring cross-origin message",
					zap.String("provider", string(provider)),
					zap.String("origin", msg.Origin),
				)
				continue
			}

			teardown()
			popup.Close()
			return a.settle(msg.Data)
		}
	}
}

type attempt struct {
	h        *Handshake
	provider auth.SocialProvider
	state    State
}

func (a *attempt) to(next State) {
	prev := a.state
	a.state = next
	a.h.logger.Debug("oauth handshake transition",
		zap.String("provider", string(a.provider)),
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
	if a.h.observe != nil {
		a.h.observe(Transition{Provider: a.provider, From: prev, To: next})
	}
}

// pending returns the first queued same-origin message without blocking.
func (a *attempt) pending(messages <-chan Message, origin string) (json.RawMessage, bool) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return nil, false
			}
			if msg.Origin == origin {
				return msg.Data, true
			}
		default:
			return nil, false
		}
	}
}

func (a *attempt) reject(err error) (*auth.AuthResponse, error) {
	a.to(StateRejected)
	return nil, err
}

func (a *attempt) settle(data json.RawMessage) (*auth.AuthResponse, error) {
	var payload auth.AuthResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return a.reject(xerrors.AuthFailed(string(a.provider), "Invalid callback payload"))
	}
	if !payload.IsAuthenticated || payload.AccessToken == "" {
		return a.reject(xerrors.AuthFailed(string(a.provider), payload.FailureMessage()))
	}
	a.to(StateResolved)
	return &payload, nil
}
