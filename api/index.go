package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/arnavshah/readiness-api-go/pkg/config"
	"github.com/arnavshah/readiness-api-go/pkg/handlers"
	"github.com/gin-gonic/gin"
)

var r *gin.Engine

func init() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	h, err := handlers.Setup(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	r = h.NewRouter()
}

// Handler is the entry point for the serverless Go runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
