// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"authbridge/internal/config"
	"authbridge/internal/db"
	authHandler "authbridge/internal/handlers/auth"
	oauthHandler "authbridge/internal/handlers/oauth"
	wsHandler "authbridge/internal/handlers/websocket"
	"authbridge/internal/metrics"
	"authbridge/internal/middleware"
	"authbridge/internal/oauth"
	"authbridge/internal/pkg/apiclient"
	authUsecase "authbridge/internal/service/auth"
	"authbridge/internal/websocket"
	wsHandlers "authbridge/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	http   *http.Server
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Build wires every dependency and registers routes. It returns a cleanup func
// that releases backend connections.
func (s *Server) Build(ctx context.Context) (func(), error) {
	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// ----- Token store -----
	store, closeStore, err := db.OpenTokenStore(ctx, db.StoreConfig{
		Backend: s.cfg.StoreBackend,
		Redis: db.RedisConfig{
			ClusterMode: len(s.cfg.RedisClusterAddrs) > 0,
			Addresses:   s.redisAddrs(),
			Password:    s.cfg.RedisPass,
			PoolSize:    10,
		},
		TokenTTL:    s.cfg.TokenTTL,
		SQLitePath:  s.cfg.SQLitePath,
		PostgresDSN: s.cfg.PostgresDSN,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	providers, err := s.cfg.Providers()
	if err != nil {
		closeStore()
		return nil, err
	}

	// ----- Sessions -----
	factory, err := authUsecase.NewFactory(s.cfg.Session(), store, s.logger,
		authUsecase.WithRequestTimeout(s.cfg.RequestTimeout),
		authUsecase.WithFactoryMetrics(m),
	)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to build session factory: %w", err)
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(s.logger, m)
	if err := hub.RegisterHandler(wsHandlers.NewSessionHandler(s.logger)); err != nil {
		closeStore()
		return nil, err
	}
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	newSession := func(client *websocket.Client) (*authUsecase.Controller, error) {
		handshake := oauth.New(oauth.Config{
			Providers:    providers,
			CallbackPath: s.cfg.CallbackPath,
			PollInterval: s.cfg.PollInterval,
		}, client, s.logger.With(zap.String("device", client.Device())))
		return factory.New(client.Device(), client, authUsecase.WithSocialHandshake(handshake))
	}

	// ----- Handlers -----
	callbackAPI := apiclient.New(
		apiclient.WithHTTPClient(&http.Client{Timeout: s.cfg.RequestTimeout}),
		apiclient.WithLogger(s.logger),
	)
	handlers := &Handlers{
		AuthHandler:     authHandler.NewAuthHandler(factory, s.logger),
		CallbackHandler: oauthHandler.NewCallbackHandler(callbackAPI, s.cfg.APIBaseURL, s.cfg.ExchangePath, s.logger, m),
		WSHandler:       wsHandler.NewWebSocketHandler(hub, newSession, s.cfg.AllowedOrigins, s.logger),
		SessionSource:   middleware.NewTokenSessionSource(store, factory.Decoder(), s.cfg.TokenKey, s.logger),
		Registry:        registry,
		CallbackPath:    s.cfg.CallbackPath,
		DurableSessions: s.cfg.Session().Storage == authUsecase.StorageDurable,
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins),
		middleware.Device(),
	)

	SetupRouter(s.engine, s.logger, handlers)

	cleanup := func() {
		stopHub()
		closeStore()
	}
	return cleanup, nil
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cleanup, err := s.Build(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) redisAddrs() []string {
	if len(s.cfg.RedisClusterAddrs) > 0 {
		return s.cfg.RedisClusterAddrs
	}
	return []string{s.cfg.RedisAddr}
}
