// internal/service/auth/controller.go
package auth

import (
	"context"
	"strings"
	"sync"

	"authbridge/internal/domain/auth"
	"authbridge/internal/metrics"
	"authbridge/internal/pkg/apiclient"
	xerrors "authbridge/internal/pkg/errors"
	"authbridge/internal/pkg/jwt"
	"authbridge/internal/pkg/tokenstore"

	"go.uber.org/zap"
)

// Storage selects where the bearer token lives.
type Storage string

const (
	// StorageDurable keeps the token in a keyed store that survives reloads.
	StorageDurable Storage = "durable"
	// StorageMemory keeps the token only for the controller's lifetime and
	// restores it from the refresh endpoint on bootstrap.
	StorageMemory Storage = "memory"
)

const (
	DefaultTokenKey        = "token"
	DefaultLoginEndpoint   = "/auth/login"
	DefaultLogoutEndpoint  = "/auth/logout"
	DefaultRefreshEndpoint = "/auth/refresh"

	redirectStashKey = "redirectTo"
)

type Endpoints struct {
	Login   string
	Logout  string
	Refresh string
}

// Config is the host-supplied controller configuration.
type Config struct {
	APIBaseURL          string
	Endpoints           Endpoints
	TokenKey            string
	Storage             Storage
	RedirectTo          string
	RedirectAfterLogout string

	OnLoginSuccess func(user *auth.User)
	OnLoginFail    func(message string)
	OnLogout       func()
}

func (c *Config) applyDefaults() {
	if c.Endpoints.Login == "" {
		c.Endpoints.Login = DefaultLoginEndpoint
	}
	if c.Endpoints.Logout == "" {
		c.Endpoints.Logout = DefaultLogoutEndpoint
	}
	if c.Endpoints.Refresh == "" {
		c.Endpoints.Refresh = DefaultRefreshEndpoint
	}
	if c.TokenKey == "" {
		c.TokenKey = DefaultTokenKey
	}
	if c.Storage == "" {
		c.Storage = StorageDurable
	}
}

// SocialHandshake runs one popup login for a provider.
type SocialHandshake interface {
	Start(ctx context.Context, provider auth.SocialProvider) (*auth.AuthResponse, error)
}

type ControllerOption func(*Controller)

// WithSocialHandshake enables SocialLogin.
func WithSocialHandshake(h SocialHandshake) ControllerOption {
	return func(c *Controller) { c.handshake = h }
}

// WithRedirectStash overrides where pending redirect targets are kept.
func WithRedirectStash(s tokenstore.Store) ControllerOption {
	return func(c *Controller) { c.stash = s }
}

func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// Controller owns one session: the token, the decoded user, the loading flag
// and the last error. All operations are safe for concurrent use; concurrent
// logins are not merged and the one that finishes last wins.
type Controller struct {
	cfg        Config
	store      tokenstore.Store
	stash      tokenstore.Store
	api        *apiclient.Client
	decoder    *jwt.Decoder
	strategies *Strategies
	handshake  SocialHandshake
	nav        auth.Navigator
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu        sync.RWMutex
	session   auth.Session
	// bumped by every login and logout; a refresh that started under an
	// older epoch must not overwrite their result
	epoch     uint64
	listeners map[int]func(auth.Session)
	nextID    int

	bootstrap sync.Once
}

// NewController builds a controller in the loading state. A missing API base
// URL is a configuration error.
func NewController(
	cfg Config,
	store tokenstore.Store,
	api *apiclient.Client,
	decoder *jwt.Decoder,
	nav auth.Navigator,
	logger *zap.Logger,
	opts ...ControllerOption,
) (*Controller, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, xerrors.Config("apiBaseUrl is required")
	}
	cfg.applyDefaults()
	if cfg.Storage != StorageDurable && cfg.Storage != StorageMemory {
		return nil, xerrors.Config("unknown token storage " + string(cfg.Storage))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if nav == nil {
		nav = auth.NoopNavigator
	}

	c := &Controller{
		cfg:        cfg,
		store:      store,
		api:        api,
		decoder:    decoder,
		strategies: NewStrategies(api, decoder),
		nav:        nav,
		logger:     logger,
		session:    auth.Session{Loading: true},
		listeners:  make(map[int]func(auth.Session)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = tokenstore.NewMemory()
	}
	if c.stash == nil {
		// A single-slot store cannot hold the redirect next to the token.
		if _, single := c.store.(*tokenstore.Memory); cfg.Storage == StorageDurable && !single {
			c.stash = c.store
		} else {
			c.stash = tokenstore.NewMap()
		}
	}
	return c, nil
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() auth.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// View returns the read-only projection of the session.
func (c *Controller) View() auth.View {
	return c.Snapshot().View()
}

// Subscribe registers fn for every session change. The returned func removes it.
func (c *Controller) Subscribe(fn func(auth.Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) update(fn func(s *auth.Session)) {
	c.mu.Lock()
	fn(&c.session)
	snapshot := c.session
	listeners := make([]func(auth.Session), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func (c *Controller) url(endpoint string) string {
	return strings.TrimRight(c.cfg.APIBaseURL, "/") + endpoint
}

// Token returns the held bearer token, or "" when there is none.
func (c *Controller) Token(ctx context.Context) string {
	token, ok, err := c.store.Get(ctx, c.cfg.TokenKey)
	if err != nil {
		c.logger.Warn("failed to read token", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// Bootstrap restores the session once. Later calls return immediately.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.bootstrap.Do(func() {
		switch c.cfg.Storage {
		case StorageMemory:
			c.restoreFromRefresh(ctx)
		default:
			c.restoreFromStore(ctx)
		}
	})
}

func (c *Controller) restoreFromStore(ctx context.Context) {
	token := c.Token(ctx)
	if token == "" {
		c.update(func(s *auth.Session) { s.Loading = false })
		return
	}

	user, err := c.decoder.Decode(token)
	if err != nil {
		c.logger.Warn("stored token is not decodable", zap.Error(err))
		c.update(func(s *auth.Session) { s.Loading = false })
		return
	}

	c.update(func(s *auth.Session) {
		s.User = user
		s.IsAuthenticated = true
		s.Loading = false
	})

	if target, ok := c.popRedirect(ctx); ok {
		c.nav.Navigate(target, false)
	}
}

func (c *Controller) restoreFromRefresh(ctx context.Context) {
	started := c.currentEpoch()

	var data auth.TokenResponse
	err := c.api.Post(ctx, c.url(c.cfg.Endpoints.Refresh), nil, &data, nil)
	if err == nil && data.AccessToken == "" {
		err = xerrors.MissingToken()
	}

	var user *auth.User
	if err == nil {
		user, err = c.decoder.Decode(data.AccessToken)
	}

	if c.currentEpoch() != started {
		c.logger.Debug("session changed during refresh, keeping it", zap.Error(err))
		c.update(func(s *auth.Session) { s.Loading = false })
		return
	}

	if err == nil {
		err = c.store.Set(ctx, c.cfg.TokenKey, data.AccessToken)
	}

	if err != nil {
		c.logger.Debug("session refresh failed", zap.Error(err))
		if rmErr := c.store.Remove(ctx, c.cfg.TokenKey); rmErr != nil {
			c.logger.Warn("failed to clear token", zap.Error(rmErr))
		}
		c.update(func(s *auth.Session) {
			s.Loading = false
			if c.epoch != started {
				return
			}
			s.User = nil
			s.IsAuthenticated = false
		})
		return
	}

	c.update(func(s *auth.Session) {
		s.Loading = false
		if c.epoch != started {
			return
		}
		s.User = user
		s.IsAuthenticated = true
	})
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Login runs a credentials or OTP login. The outcome is reported through the
// session state and the configured callbacks.
func (c *Controller) Login(ctx context.Context, payload auth.LoginPayload) {
	c.update(func(s *auth.Session) { s.LastError = nil })

	method := "unknown"
	if payload != nil {
		method = string(payload.Method())
	}

	resp, err := c.dispatch(ctx, payload)
	if err == nil {
		err = c.establish(ctx, resp)
	}
	if err != nil {
		c.metrics.LoginAttempt(method, "failure")
		c.fail(err, "")
		return
	}
	c.metrics.LoginAttempt(method, "success")
}

func (c *Controller) dispatch(ctx context.Context, payload auth.LoginPayload) (*auth.AuthResponse, error) {
	if payload == nil {
		return nil, xerrors.InvalidMethod("")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	url := c.url(c.cfg.Endpoints.Login)
	switch p := payload.(type) {
	case auth.CredentialsPayload:
		return c.strategies.LoginWithCredentials(ctx, url, p)
	case *auth.CredentialsPayload:
		return c.strategies.LoginWithCredentials(ctx, url, *p)
	case auth.OTPPayload:
		return c.strategies.LoginWithOTP(ctx, url, p)
	case *auth.OTPPayload:
		return c.strategies.LoginWithOTP(ctx, url, *p)
	default:
		return nil, xerrors.InvalidMethod(string(payload.Method()))
	}
}

// SocialLogin drives the popup handshake for provider.
func (c *Controller) SocialLogin(ctx context.Context, provider auth.SocialProvider) error {
	c.update(func(s *auth.Session) { s.LastError = nil })

	var (
		resp *auth.AuthResponse
		err  error
	)
	if c.handshake == nil {
		err = xerrors.Config("social login is not configured")
	} else {
		resp, err = c.handshake.Start(ctx, provider)
	}
	if err == nil {
		err = c.establish(ctx, resp)
	}

	if err != nil {
		structured := c.fail(err, string(provider))
		c.metrics.Handshake(string(provider), string(structured.Kind))
		return structured
	}
	c.metrics.Handshake(string(provider), "resolved")
	return nil
}

// establish stores the token of a successful response and navigates on.
func (c *Controller) establish(ctx context.Context, resp *auth.AuthResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return xerrors.MissingToken()
	}

	user, err := c.decoder.Decode(resp.AccessToken)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, c.cfg.TokenKey, resp.AccessToken); err != nil {
		c.logger.Warn("failed to persist token", zap.Error(err))
	}

	c.update(func(s *auth.Session) {
		c.epoch++
		s.User = user
		s.IsAuthenticated = true
		s.Loading = false
		s.LastError = nil
	})
	c.logger.Info("login succeeded", zap.String("user_id", user.ID))

	if c.cfg.OnLoginSuccess != nil {
		c.cfg.OnLoginSuccess(user)
	}
	c.nav.Navigate(c.resolveRedirect(ctx), false)
	return nil
}

func (c *Controller) fail(err error, provider string) *xerrors.Error {
	structured := *xerrors.From(err)
	if structured.Provider == "" {
		structured.Provider = provider
	}

	c.update(func(s *auth.Session) {
		s.IsAuthenticated = false
		s.LastError = &structured
	})
	c.logger.Info("login failed",
		zap.String("kind", string(structured.Kind)),
		zap.String("provider", structured.Provider),
		zap.Error(err),
	)

	if c.cfg.OnLoginFail != nil {
		c.cfg.OnLoginFail(structured.Message)
	}
	return &structured
}

// Logout notifies the API and clears the session whatever the API says.
func (c *Controller) Logout(ctx context.Context) {
	defer c.clear(ctx)

	var headers apiclient.Headers
	if token := c.Token(ctx); token != "" {
		headers = apiclient.Headers{"Authorization": "Bearer " + token}
	}
	if err := c.api.Post(ctx, c.url(c.cfg.Endpoints.Logout), nil, nil, headers); err != nil {
		c.logger.Warn("logout request failed", zap.Error(err))
		c.metrics.Logout("failure")
		return
	}
	c.metrics.Logout("success")
}

func (c *Controller) clear(ctx context.Context) {
	if err := c.store.Remove(ctx, c.cfg.TokenKey); err != nil {
		c.logger.Warn("failed to clear token", zap.Error(err))
	}
	c.update(func(s *auth.Session) {
		c.epoch++
		*s = auth.Session{}
	})

	if c.cfg.OnLogout != nil {
		c.cfg.OnLogout()
	}

	target := c.cfg.RedirectAfterLogout
	if target == "" {
		target = c.cfg.RedirectTo
	}
	if target != "" {
		c.nav.Navigate(target, false)
	}
}

// RememberRedirect stashes target as the destination after the next login.
func (c *Controller) RememberRedirect(ctx context.Context, target string) {
	if target == "" {
		return
	}
	if err := c.stash.Set(ctx, redirectStashKey, target); err != nil {
		c.logger.Warn("failed to stash redirect", zap.Error(err))
	}
}

func (c *Controller) popRedirect(ctx context.Context) (string, bool) {
	target, ok, err := c.stash.Get(ctx, redirectStashKey)
	if err != nil {
		c.logger.Warn("failed to read redirect stash", zap.Error(err))
		return "", false
	}
	if !ok || target == "" {
		return "", false
	}
	if err := c.stash.Remove(ctx, redirectStashKey); err != nil {
		c.logger.Warn("failed to clear redirect stash", zap.Error(err))
	}
	return target, true
}

func (c *Controller) resolveRedirect(ctx context.Context) string {
	if target, ok := c.popRedirect(ctx); ok {
		return target
	}
	if c.cfg.RedirectTo != "" {
		return c.cfg.RedirectTo
	}
	return "/"
}
