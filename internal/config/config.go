package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"authbridge/internal/domain/auth"
	authsvc "authbridge/internal/service/auth"

	"github.com/caarlos0/env/v11"
)

// Store backends for durable tokens.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type AppConfig struct {
	// Server
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Identity backend
	APIBaseURL      string        `env:"API_BASE_URL"`
	LoginEndpoint   string        `env:"LOGIN_ENDPOINT" envDefault:"/auth/login"`
	LogoutEndpoint  string        `env:"LOGOUT_ENDPOINT" envDefault:"/auth/logout"`
	RefreshEndpoint string        `env:"REFRESH_ENDPOINT" envDefault:"/auth/refresh"`
	ExchangePath    string        `env:"EXCHANGE_PATH" envDefault:"/auth"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// Session
	TokenKey            string `env:"TOKEN_KEY" envDefault:"token"`
	TokenStorage        string `env:"TOKEN_STORAGE" envDefault:"durable"`
	RedirectTo          string `env:"REDIRECT_TO"`
	RedirectAfterLogout string `env:"REDIRECT_AFTER_LOGOUT"`

	// Social login
	SocialProviders string        `env:"SOCIAL_PROVIDERS"`
	CallbackPath    string        `env:"CALLBACK_PATH" envDefault:"/api/auth"`
	PollInterval    time.Duration `env:"POPUP_POLL_INTERVAL" envDefault:"500ms"`

	// Durable store
	StoreBackend      string        `env:"STORE_BACKEND" envDefault:"memory"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"0s"`
	RedisAddr         string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass         string        `env:"REDIS_PASS"`
	RedisClusterAddrs []string      `env:"REDIS_CLUSTER_ADDRS" envSeparator:","`
	SQLitePath        string        `env:"SQLITE_PATH" envDefault:"authbridge.db"`
	PostgresDSN       string        `env:"POSTGRES_DSN"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads AppConfig from the environment and validates it.
func Load() (AppConfig, error) {
	var cfg AppConfig
	if err := ParseEnv(&cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}

	switch authsvc.Storage(c.TokenStorage) {
	case authsvc.StorageDurable, authsvc.StorageMemory:
	default:
		return fmt.Errorf("TOKEN_STORAGE must be durable or memory, got %q", c.TokenStorage)
	}

	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendSQLite:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if _, err := c.Providers(); err != nil {
		return err
	}
	return nil
}

// Providers parses SOCIAL_PROVIDERS, a comma separated list of provider:client-id pairs.
func (c AppConfig) Providers() ([]auth.SocialProviderConfig, error) {
	if strings.TrimSpace(c.SocialProviders) == "" {
		return nil, nil
	}

	var out []auth.SocialProviderConfig
	seen := make(map[auth.SocialProvider]bool)
	for _, entry := range strings.Split(c.SocialProviders, ",") {
		name, clientID, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || strings.TrimSpace(clientID) == "" {
			return nil, fmt.Errorf("SOCIAL_PROVIDERS entry %q must be provider:client-id", entry)
		}
		provider, err := auth.ParseSocialProvider(name)
		if err != nil {
			return nil, fmt.Errorf("SOCIAL_PROVIDERS: %w", err)
		}
		if seen[provider] {
			return nil, fmt.Errorf("SOCIAL_PROVIDERS lists %s twice", provider)
		}
		seen[provider] = true
		out = append(out, auth.SocialProviderConfig{Provider: provider, ClientID: strings.TrimSpace(clientID)})
	}
	return out, nil
}

// Session returns the controller configuration.
func (c AppConfig) Session() authsvc.Config {
	return authsvc.Config{
		APIBaseURL: c.APIBaseURL,
		Endpoints: authsvc.Endpoints{
			Login:   c.LoginEndpoint,
			Logout:  c.LogoutEndpoint,
			Refresh: c.RefreshEndpoint,
		},
		TokenKey:            c.TokenKey,
		Storage:             authsvc.Storage(c.TokenStorage),
		RedirectTo:          c.RedirectTo,
		RedirectAfterLogout: c.RedirectAfterLogout,
	}
}
