package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/config"
	"github.com/arnavshah/readiness-api-go/pkg/handlers"
)

// One sweep against the configured database, for cron-style scheduling.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	h, err := handlers.Setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	n, err := h.Assignments.Sweeper().Sweep(ctx)
	if err != nil {
		logger.Error("sweep failed", "transitioned", n, "error", err)
		os.Exit(1)
	}
	fmt.Printf("transitioned %d assignment(s) to overdue\n", n)
}
