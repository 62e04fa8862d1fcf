package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"authbridge/internal/app"
	"authbridge/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := app.NewServer(cfg, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}
