package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/04shubham7/genai-cwc-shubham/internal/di"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/env"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/userinteraction"
)

func main() {
	envService := env.NewEnvService(".")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := di.ConfigFromEnv(envService)
	cfg.LogName = "agent"
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}
	defer container.Close()

	if len(envService.Loaded) > 0 {
		container.Logger.Info("Env files loaded", "files", envService.Loaded)
	}

	console := userinteraction.NewConsoleUserInteraction()

	// A query on the command line runs once; otherwise read queries until EOF.
	if query := strings.TrimSpace(strings.Join(os.Args[1:], " ")); query != "" {
		run(ctx, container, console, query)
		return
	}

	fmt.Printf("Protocol %q ready. Ask a question (Ctrl+D to quit).\n", container.Runner.Protocol().Name)
	for ctx.Err() == nil {
		query, err := console.AskQuery(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return
		}
		if err != nil {
			container.Logger.Error("Reading query failed", "error", err)
			os.Exit(1)
		}
		run(ctx, container, console, query)
	}
}

func run(ctx context.Context, container *di.Container, console *userinteraction.ConsoleUserInteraction, query string) {
	container.Logger.Info("Query received", "query", query)

	stream := container.Runner.Stream(ctx, query)
	for step := range stream.Steps() {
		console.ShowStep(ctx, step)
	}
	console.ShowOutcome(ctx, stream.Outcome(), stream.Err())
}
