package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/quayside-labs/quayscrape/cmd"
)

func main() {
	// Signal-aware root context so Ctrl+C tears down browsers cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
