package main

import (
	"context"
	"fmt"

	"authbridge/internal/config"
	"authbridge/internal/db"
	"authbridge/internal/domain/auth"
	authsvc "authbridge/internal/service/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalOptions struct {
	apiBaseURL string
	backend    string
	sqlitePath string
	device     string
	verbose    bool
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.apiBaseURL, "api", "", "identity backend base URL (overrides API_BASE_URL)")
	f.StringVar(&o.backend, "store", config.BackendSQLite, "token store backend: sqlite, redis, postgres")
	f.StringVar(&o.sqlitePath, "db", "", "sqlite file (overrides SQLITE_PATH)")
	f.StringVar(&o.device, "device", "cli", "device id the token is stored under")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log requests")
}

// printer reports controller navigations on stdout.
type printer struct{}

func (printer) Navigate(path string, replace bool) {
	if replace {
		info("→ %s (replace)", path)
		return
	}
	info("→ %s", path)
}

// openSession builds a durable controller for the configured device. The
// returned func releases the store.
func openSession(ctx context.Context, o *globalOptions) (*authsvc.Controller, func(), error) {
	var cfg config.AppConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, nil, err
	}
	if o.apiBaseURL != "" {
		cfg.APIBaseURL = o.apiBaseURL
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	cfg.StoreBackend = o.backend
	cfg.TokenStorage = string(authsvc.StorageDurable)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := zap.NewNop()
	if o.verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return nil, nil, fmt.Errorf("build logger: %w", err)
		}
		logger = dev
	}

	store, closeStore, err := db.OpenTokenStore(ctx, db.StoreConfig{
		Backend:     cfg.StoreBackend,
		Redis:       db.RedisConfig{Addresses: []string{cfg.RedisAddr}, Password: cfg.RedisPass},
		TokenTTL:    cfg.TokenTTL,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	factory, err := authsvc.NewFactory(cfg.Session(), store, logger, authsvc.WithRequestTimeout(cfg.RequestTimeout))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	ctrl, err := factory.New(o.device, printer{})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return ctrl, func() { _ = logger.Sync(); closeStore() }, nil
}

func describe(s auth.Session) {
	if !s.IsAuthenticated || s.User == nil {
		info("signed out")
		return
	}
	info("id:    %s", s.User.ID)
	if s.User.Name != "" {
		info("name:  %s", s.User.Name)
	}
	if s.User.Email != "" {
		info("email: %s", s.User.Email)
	}
	if s.User.Role != "" {
		info("role:  %s", s.User.Role)
	}
}
