package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"authbridge/internal/domain/auth"
	"authbridge/internal/pkg/apiclient"
	xerrors "authbridge/internal/pkg/errors"
	"authbridge/internal/pkg/jwt"
	"authbridge/internal/pkg/tokenstore"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func token(t *testing.T, id, email string) string {
	t.Helper()
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"id":    id,
		"email": email,
		"name":  "Test User",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) Navigate(path string, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type fakeBackend struct {
	mu           sync.Mutex
	loginStatus  int
	loginBody    interface{}
	refreshBody  interface{}
	logoutStatus int
	lastLogin    map[string]string
	logoutAuth   string
	logouts      int
	cookie       bool
	// when set, refresh reports on refreshStarted and waits for refreshGate
	refreshStarted chan struct{}
	refreshGate    chan struct{}
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&b.lastLogin)
		http.SetCookie(w, &http.Cookie{Name: "refresh", Value: "r1", Path: "/"})
		status := b.loginStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(b.loginBody)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if b.refreshGate != nil {
			close(b.refreshStarted)
			<-b.refreshGate
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		_, err := r.Cookie("refresh")
		b.cookie = err == nil
		if b.refreshBody == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(b.refreshBody)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.logouts++
		b.logoutAuth = r.Header.Get("Authorization")
		if b.logoutStatus != 0 {
			w.WriteHeader(b.logoutStatus)
		}
	})
	return mux
}

func (b *fakeBackend) read(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

type fixture struct {
	ctrl     *Controller
	store    tokenstore.Store
	backend  *fakeBackend
	nav      *recorder
	success  []*auth.User
	failures []string
	logouts  int
}

func newFixture(t *testing.T, cfg Config, store tokenstore.Store, opts ...ControllerOption) *fixture {
	t.Helper()
	f := &fixture{backend: &fakeBackend{}, nav: &recorder{}, store: store}
	srv := httptest.NewServer(f.backend.handler())
	t.Cleanup(srv.Close)

	cfg.APIBaseURL = srv.URL
	cfg.OnLoginSuccess = func(u *auth.User) { f.success = append(f.success, u) }
	cfg.OnLoginFail = func(msg string) { f.failures = append(f.failures, msg) }
	cfg.OnLogout = func() { f.logouts++ }

	ctrl, err := NewController(cfg, store, apiclient.New(), jwt.NewDecoder(), f.nav, zap.NewNop(), opts...)
	require.NoError(t, err)
	f.ctrl = ctrl
	return f
}

func TestNewController_RequiresBaseURL(t *testing.T) {
	_, err := NewController(Config{}, tokenstore.NewMap(), apiclient.New(), jwt.NewDecoder(), nil, nil)
	assert.True(t, errors.Is(err, xerrors.ErrConfig))

	_, err = NewController(Config{APIBaseURL: "http://api", Storage: "cookie"}, nil, apiclient.New(), jwt.NewDecoder(), nil, nil)
	assert.True(t, errors.Is(err, xerrors.ErrConfig))
}

func TestController_StartsLoading(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap())
	v := f.ctrl.View()
	assert.True(t, v.Loading)
	assert.False(t, v.SignedIn())
	assert.False(t, v.SignedOut())
}

func TestBootstrap_DurableRestoresStoredToken(t *testing.T) {
	store := tokenstore.NewMap()
	require.NoError(t, store.Set(context.Background(), "token", token(t, "u1", "a@b.com")))
	f := newFixture(t, Config{}, store)

	f.ctrl.Bootstrap(context.Background())

	s := f.ctrl.Snapshot()
	assert.False(t, s.Loading)
	assert.True(t, s.IsAuthenticated)
	require.NotNil(t, s.User)
	assert.Equal(t, "u1", s.User.ID)
	assert.Empty(t, f.nav.all())
}

func TestBootstrap_DurableFollowsStashedRedirect(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMap()
	require.NoError(t, store.Set(ctx, "token", token(t, "u1", "a@b.com")))
	f := newFixture(t, Config{}, store)
	f.ctrl.RememberRedirect(ctx, "/billing")

	f.ctrl.Bootstrap(ctx)

	assert.Equal(t, []string{"/billing"}, f.nav.all())
	_, ok, _ := store.Get(ctx, "redirectTo")
	assert.False(t, ok)
}

func TestBootstrap_DurableMalformedToken(t *testing.T) {
	store := tokenstore.NewMap()
	require.NoError(t, store.Set(context.Background(), "token", "garbage"))
	f := newFixture(t, Config{}, store)

	f.ctrl.Bootstrap(context.Background())

	v := f.ctrl.View()
	assert.False(t, v.Loading)
	assert.Nil(t, v.User)
	assert.True(t, v.SignedOut())
}

func TestBootstrap_DurableEmpty(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap())
	f.ctrl.Bootstrap(context.Background())
	assert.True(t, f.ctrl.View().SignedOut())
}

func TestBootstrap_RunsOnce(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMap()
	f := newFixture(t, Config{}, store)

	f.ctrl.Bootstrap(ctx)
	require.NoError(t, store.Set(ctx, "token", token(t, "u1", "a@b.com")))
	f.ctrl.Bootstrap(ctx)

	assert.False(t, f.ctrl.View().IsAuthenticated)
}

func TestBootstrap_MemoryRefreshSuccess(t *testing.T) {
	store := tokenstore.NewMemory()
	f := newFixture(t, Config{Storage: StorageMemory}, store)
	f.backend.refreshBody = map[string]string{"accessToken": token(t, "u9", "m@b.com")}

	f.ctrl.Bootstrap(context.Background())

	s := f.ctrl.Snapshot()
	assert.False(t, s.Loading)
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, "u9", s.User.ID)
	assert.NotEmpty(t, f.ctrl.Token(context.Background()))
}

func TestBootstrap_MemoryRefreshFailureClears(t *testing.T) {
	store := tokenstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), "token", "stale"))
	f := newFixture(t, Config{Storage: StorageMemory}, store)

	f.ctrl.Bootstrap(context.Background())

	s := f.ctrl.Snapshot()
	assert.False(t, s.Loading)
	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
	assert.Empty(t, f.ctrl.Token(context.Background()))
}

func TestBootstrap_LateRefreshFailureKeepsLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{Storage: StorageMemory}, tokenstore.NewMemory())
	f.backend.refreshStarted = make(chan struct{})
	f.backend.refreshGate = make(chan struct{})
	tok := token(t, "u2", "fast@b.com")
	f.backend.loginBody = map[string]string{"accessToken": tok}

	done := make(chan struct{})
	go func() {
		f.ctrl.Bootstrap(ctx)
		close(done)
	}()
	<-f.backend.refreshStarted

	f.ctrl.Login(ctx, auth.CredentialsPayload{Email: "fast@b.com", Password: "pw"})
	require.True(t, f.ctrl.View().SignedIn())

	close(f.backend.refreshGate)
	<-done

	s := f.ctrl.Snapshot()
	assert.False(t, s.Loading)
	assert.True(t, s.IsAuthenticated)
	require.NotNil(t, s.User)
	assert.Equal(t, "u2", s.User.ID)
	assert.Equal(t, tok, f.ctrl.Token(ctx))
}

func TestBootstrap_MemoryRefreshWithoutToken(t *testing.T) {
	f := newFixture(t, Config{Storage: StorageMemory}, tokenstore.NewMemory())
	f.backend.refreshBody = map[string]string{"message": "no session"}

	f.ctrl.Bootstrap(context.Background())

	assert.True(t, f.ctrl.View().SignedOut())
}

func TestLogin_CredentialsSuccess(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMap()
	f := newFixture(t, Config{RedirectTo: "/dashboard"}, store)
	tok := token(t, "u1", "a@b.com")
	f.backend.loginBody = map[string]string{"accessToken": tok}

	f.ctrl.Login(ctx, auth.CredentialsPayload{Email: "a@b.com", Password: "pw"})

	s := f.ctrl.Snapshot()
	assert.True(t, s.IsAuthenticated)
	assert.Nil(t, s.LastError)
	assert.Equal(t, "a@b.com", s.User.Email)
	assert.Equal(t, tok, f.ctrl.Token(ctx))
	assert.Equal(t, []string{"/dashboard"}, f.nav.all())
	require.Len(t, f.success, 1)
	assert.Equal(t, "u1", f.success[0].ID)
	f.backend.read(func(b *fakeBackend) {
		assert.Equal(t, map[string]string{"email": "a@b.com", "password": "pw"}, b.lastLogin)
	})
}

func TestLogin_StashedRedirectWinsAndIsCleared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{RedirectTo: "/dashboard"}, tokenstore.NewMap())
	f.backend.loginBody = map[string]string{"accessToken": token(t, "u1", "a@b.com")}

	f.ctrl.RememberRedirect(ctx, "/settings")
	f.ctrl.Login(ctx, auth.OTPPayload{Email: "a@b.com", OTP: "123456"})
	f.ctrl.Login(ctx, auth.OTPPayload{Email: "a@b.com", OTP: "123456"})

	assert.Equal(t, []string{"/settings", "/dashboard"}, f.nav.all())
	f.backend.read(func(b *fakeBackend) {
		assert.Equal(t, map[string]string{"email": "a@b.com", "otp": "123456"}, b.lastLogin)
	})
}

func TestLogin_DefaultRedirectIsRoot(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap())
	f.backend.loginBody = map[string]string{"accessToken": token(t, "u1", "a@b.com")}

	f.ctrl.Login(context.Background(), auth.CredentialsPayload{Email: "a@b.com", Password: "pw"})

	assert.Equal(t, []string{"/"}, f.nav.all())
}

func TestLogin_MemoryStorageStashesOutsideTokenSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{Storage: StorageMemory}, tokenstore.NewMemory())
	tok := token(t, "u1", "a@b.com")
	f.backend.loginBody = map[string]string{"accessToken": tok}

	f.ctrl.RememberRedirect(ctx, "/after")
	f.ctrl.Login(ctx, auth.CredentialsPayload{Email: "a@b.com", Password: "pw"})

	assert.Equal(t, tok, f.ctrl.Token(ctx))
	assert.Equal(t, []string{"/after"}, f.nav.all())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload auth.LoginPayload
		status  int
		body    interface{}
		kind    xerrors.Kind
		message string
	}{
		{
			name:    "validation",
			payload: auth.CredentialsPayload{Email: "a@b.com"},
			kind:    xerrors.KindValidation,
			message: "Validation failed.",
		},
		{
			name:    "otp validation",
			payload: auth.OTPPayload{},
			kind:    xerrors.KindValidation,
			message: "Validation failed.",
		},
		{
			name:    "rejected",
			payload: auth.CredentialsPayload{Email: "a@b.com", Password: "bad"},
			status:  http.StatusUnauthorized,
			body:    map[string]string{"message": "bad credentials"},
			kind:    xerrors.KindRequest,
		},
		{
			name:    "missing token",
			payload: auth.CredentialsPayload{Email: "a@b.com", Password: "pw"},
			body:    map[string]string{"message": "ok"},
			kind:    xerrors.KindMissingToken,
			message: "Access token missing in response.",
		},
		{
			name:    "malformed token",
			payload: auth.CredentialsPayload{Email: "a@b.com", Password: "pw"},
			body:    map[string]string{"accessToken": "not-a-jwt"},
			kind:    xerrors.KindDecode,
			message: "Malformed access token.",
		},
		{
			name:    "nil payload",
			payload: nil,
			kind:    xerrors.KindInvalidMethod,
			message: "Invalid login method.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tokenstore.NewMap()
			f := newFixture(t, Config{}, store)
			f.backend.loginStatus = tt.status
			f.backend.loginBody = tt.body

			f.ctrl.Login(context.Background(), tt.payload)

			s := f.ctrl.Snapshot()
			assert.False(t, s.IsAuthenticated)
			require.NotNil(t, s.LastError)
			assert.Equal(t, tt.kind, s.LastError.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, s.LastError.Message)
			}
			require.Len(t, f.failures, 1)
			assert.Equal(t, s.LastError.Message, f.failures[0])
			assert.Empty(t, f.success)
			assert.Empty(t, f.nav.all())
			assert.Empty(t, f.ctrl.Token(context.Background()))
		})
	}
}

func TestLogin_ClearsPreviousError(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap())
	f.ctrl.Login(context.Background(), auth.CredentialsPayload{})
	require.NotNil(t, f.ctrl.Snapshot().LastError)

	f.backend.loginBody = map[string]string{"accessToken": token(t, "u1", "a@b.com")}
	f.ctrl.Login(context.Background(), auth.CredentialsPayload{Email: "a@b.com", Password: "pw"})

	assert.Nil(t, f.ctrl.Snapshot().LastError)
}

func TestLogout_SendsBearerAndClears(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMap()
	tok := token(t, "u1", "a@b.com")
	require.NoError(t, store.Set(ctx, "token", tok))
	f := newFixture(t, Config{RedirectTo: "/home", RedirectAfterLogout: "/bye"}, store)
	f.ctrl.Bootstrap(ctx)

	f.ctrl.Logout(ctx)

	f.backend.read(func(b *fakeBackend) {
		assert.Equal(t, "Bearer "+tok, b.logoutAuth)
	})
	s := f.ctrl.Snapshot()
	assert.Nil(t, s.User)
	assert.False(t, s.IsAuthenticated)
	assert.False(t, s.Loading)
	assert.Empty(t, f.ctrl.Token(ctx))
	assert.Equal(t, 1, f.logouts)
	assert.Equal(t, []string{"/bye"}, f.nav.all())
}

func TestLogout_ServerFailureStillClears(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMap()
	require.NoError(t, store.Set(ctx, "token", token(t, "u1", "a@b.com")))
	f := newFixture(t, Config{RedirectTo: "/home"}, store)
	f.backend.logoutStatus = http.StatusInternalServerError

	f.ctrl.Logout(ctx)

	assert.Empty(t, f.ctrl.Token(ctx))
	assert.Equal(t, 1, f.logouts)
	assert.Equal(t, []string{"/home"}, f.nav.all())
}

func TestLogout_WithoutTokenOmitsHeaderAndNavigation(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap())

	f.ctrl.Logout(context.Background())

	f.backend.read(func(b *fakeBackend) {
		assert.Equal(t, 1, b.logouts)
		assert.Empty(t, b.logoutAuth)
	})
	assert.Empty(t, f.nav.all())
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap())
	var seen []auth.Session
	cancel := f.ctrl.Subscribe(func(s auth.Session) { seen = append(seen, s) })

	f.ctrl.Bootstrap(context.Background())
	cancel()
	f.ctrl.Logout(context.Background())

	require.Len(t, seen, 1)
	assert.False(t, seen[0].Loading)
}

type stubHandshake struct {
	resp *auth.AuthResponse
	err  error
}

func (s stubHandshake) Start(context.Context, auth.SocialProvider) (*auth.AuthResponse, error) {
	return s.resp, s.err
}

func TestSocialLogin_Success(t *testing.T) {
	tok := token(t, "g1", "g@b.com")
	f := newFixture(t, Config{RedirectTo: "/app"}, tokenstore.NewMap(),
		WithSocialHandshake(stubHandshake{resp: &auth.AuthResponse{IsAuthenticated: true, AccessToken: tok}}))

	err := f.ctrl.SocialLogin(context.Background(), auth.ProviderGoogle)
	require.NoError(t, err)

	assert.True(t, f.ctrl.View().SignedIn())
	assert.Equal(t, tok, f.ctrl.Token(context.Background()))
	assert.Equal(t, []string{"/app"}, f.nav.all())
	assert.Len(t, f.success, 1)
}

func TestSocialLogin_FailureRecordsProvider(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap(),
		WithSocialHandshake(stubHandshake{err: xerrors.Cancelled("facebook", nil)}))

	err := f.ctrl.SocialLogin(context.Background(), auth.ProviderFacebook)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrCancelled))

	s := f.ctrl.Snapshot()
	require.NotNil(t, s.LastError)
	assert.Equal(t, "facebook", s.LastError.Provider)
	assert.Equal(t, []string{"Authentication was cancelled"}, f.failures)
}

func TestSocialLogin_NotConfigured(t *testing.T) {
	f := newFixture(t, Config{}, tokenstore.NewMap())

	err := f.ctrl.SocialLogin(context.Background(), auth.ProviderGoogle)
	assert.True(t, errors.Is(err, xerrors.ErrConfig))
	assert.Equal(t, "google", f.ctrl.Snapshot().LastError.Provider)
}

func TestLogin_CookieReplayedOnRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{Storage: StorageMemory}, tokenstore.NewMemory())
	f.backend.loginBody = map[string]string{"accessToken": token(t, "u1", "a@b.com")}
	f.ctrl.Login(ctx, auth.CredentialsPayload{Email: "a@b.com", Password: "pw"})

	f.backend.refreshBody = map[string]string{"accessToken": token(t, "u1", "a@b.com")}
	f.ctrl.Bootstrap(ctx)

	f.backend.read(func(b *fakeBackend) {
		assert.True(t, b.cookie)
	})
}
