package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arnavshah/readiness-api-go/pkg/config"
	"github.com/arnavshah/readiness-api-go/pkg/handlers"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := handlers.Setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if cfg.SweepInterval > 0 {
		go h.Assignments.Sweeper().Run(ctx, cfg.SweepInterval)
		logger.Info("overdue sweeper scheduled", "interval", cfg.SweepInterval)
	}

	r := h.NewRouter()

	logger.Info("server starting", "port", cfg.Port, "timezone", cfg.Location.String())
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("could not run server", "error", err)
		os.Exit(1)
	}
}
