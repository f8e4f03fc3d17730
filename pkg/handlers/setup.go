package handlers

import (
	"context"
	"log/slog"

	"github.com/arnavshah/readiness-api-go/pkg/assignment"
	"github.com/arnavshah/readiness-api-go/pkg/auth"
	"github.com/arnavshah/readiness-api-go/pkg/config"
	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/kpi"
	"github.com/arnavshah/readiness-api-go/pkg/metrics"
	"github.com/arnavshah/readiness-api-go/pkg/notify"
	"github.com/arnavshah/readiness-api-go/pkg/store"
	"github.com/gin-gonic/gin"
)

// Setup opens the database, seeds the administrator and wires every service
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	db, err := database.Open(database.Options{DatabaseURL: cfg.DatabaseURL, DataPath: cfg.DataPath})
	if err != nil {
		return nil, err
	}
	st := store.New(db)

	authManager := auth.NewManager(cfg.JWTSecret, cfg.MasterSecret, 0)
	if err := authManager.EnsureAdminExists(ctx, st, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		return nil, err
	}

	var notifier notify.Dispatcher = &notify.LogDispatcher{Logger: logger}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookDispatcher(cfg.NotifyWebhookURL)
	}

	m := metrics.NewCollector(nil)
	svc := assignment.NewService(assignment.Options{
		Store:              st,
		Notifier:           notifier,
		Metrics:            m,
		Logger:             logger,
		Location:           cfg.Location,
		ShiftLookupTimeout: cfg.ShiftLookupTimeout,
	})

	return &Handler{
		Assignments: svc,
		KPI:         kpi.NewEngine(st, nil, cfg.KPI, logger, nil, cfg.Location),
		Auth:        authManager,
		Store:       st,
		Metrics:     m,
		Logger:      logger,
	}, nil
}

// NewRouter builds a gin engine with logging, recovery and every route mounted
func (h *Handler) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	h.Routes(r)
	return r
}
