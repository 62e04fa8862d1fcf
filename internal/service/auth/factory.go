// internal/service/auth/factory.go
package auth

import (
	"net/http"
	"strings"
	"time"

	"authbridge/internal/domain/auth"
	"authbridge/internal/metrics"
	"authbridge/internal/pkg/apiclient"
	xerrors "authbridge/internal/pkg/errors"
	"authbridge/internal/pkg/jwt"
	"authbridge/internal/pkg/tokenstore"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// Factory builds one controller per device session. Controllers share the
// durable backend (scoped by device) and the HTTP transport, but each gets
// its own cookie jar so ambient credentials never leak between devices.
type Factory struct {
	cfg       Config
	store     tokenstore.Store
	decoder   *jwt.Decoder
	transport http.RoundTripper
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

type FactoryOption func(*Factory)

func WithTransport(rt http.RoundTripper) FactoryOption {
	return func(f *Factory) { f.transport = rt }
}

func WithRequestTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) { f.timeout = d }
}

func WithFactoryMetrics(m *metrics.Metrics) FactoryOption {
	return func(f *Factory) { f.metrics = m }
}

func NewFactory(cfg Config, store tokenstore.Store, logger *zap.Logger, opts ...FactoryOption) (*Factory, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, xerrors.Config("apiBaseUrl is required")
	}
	cfg.applyDefaults()
	if cfg.Storage == StorageDurable && store == nil {
		return nil, xerrors.Config("durable token storage needs a store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Factory{
		cfg:       cfg,
		store:     store,
		decoder:   jwt.NewDecoder(),
		transport: http.DefaultTransport,
		timeout:   defaultRequestTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Config returns the effective controller configuration.
func (f *Factory) Config() Config { return f.cfg }

// Decoder returns the shared token decoder.
func (f *Factory) Decoder() *jwt.Decoder { return f.decoder }

// New builds a controller for device. Memory storage gets a fresh store.
func (f *Factory) New(device string, nav auth.Navigator, opts ...ControllerOption) (*Controller, error) {
	var store tokenstore.Store
	switch f.cfg.Storage {
	case StorageMemory:
		store = tokenstore.NewMemory()
	default:
		store = tokenstore.NewScoped(f.store, device)
	}

	logger := f.logger.With(zap.String("device_id", device))
	api := apiclient.New(
		apiclient.WithHTTPClient(&http.Client{Transport: f.transport, Timeout: f.timeout}),
		apiclient.WithLogger(logger),
	)

	opts = append([]ControllerOption{WithMetrics(f.metrics)}, opts...)
	return NewController(f.cfg, store, api, f.decoder, nav, logger, opts...)
}
