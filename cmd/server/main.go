package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/04shubham7/genai-cwc-shubham/internal/adapter/httpapi"
	"github.com/04shubham7/genai-cwc-shubham/internal/di"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/env"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envService := env.NewEnvService(".")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := di.ConfigFromEnv(envService)
	cfg.LogName = "server"
	cfg.Metrics = true

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}
	defer container.Close()

	addr := envService.GetWithDefault("HTTP_ADDR", ":8000")
	router := httpapi.NewRouter(container.Runner, container.Logger, httpapi.Options{
		ServiceName: "step-agent",
		Metrics:     container.MetricsHandler,
		RunTimeout:  envService.GetDuration("HTTP_RUN_TIMEOUT", 5*time.Minute),
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		container.Logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			container.Logger.Error("HTTP server failed", "error", err)
			container.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		container.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			container.Logger.Error("Graceful shutdown failed", "error", err)
		}
	}
}
