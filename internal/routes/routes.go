package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/handlers"
	"github.com/stormon/stormon/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	systemHandler *handlers.SystemHandler,
	authHandler *handlers.AuthHandler,
	runHandler *handlers.RunHandler,
	metricHandler *handlers.MetricHandler,
	eventHandler *handlers.EventHandler,
	issueHandler *handlers.IssueHandler,
	wsHandler *handlers.WSHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)

	// ─── Auth ────────────────────────────────────────────────────────────
	app.Post("/api/auth/login", authHandler.Login)
	app.Post("/api/auth/refresh", authHandler.Refresh)

	// ─── Read API ────────────────────────────────────────────────────────
	api := app.Group("/api")
	if cfg.Dashboard.AuthEnabled {
		api = app.Group("/api", middleware.JWTProtected(cfg.Dashboard.JWTSecret))
	}

	api.Get("/status/current", systemHandler.CurrentStatus)
	api.Get("/runs", runHandler.ListRuns)
	api.Get("/runs/:id", runHandler.GetRun)
	api.Get("/metrics", metricHandler.QueryMetrics)
	api.Get("/events", eventHandler.ListEvents)
	api.Get("/issues/open", issueHandler.ListOpenIssues)

	// ─── Acknowledgments ─────────────────────────────────────────────────
	api.Get("/acks", issueHandler.ListAcks)
	api.Post("/acks", issueHandler.CreateAck)
	api.Delete("/acks/*", issueHandler.DeleteAck)

	// ─── Live updates (WebSocket) ────────────────────────────────────────
	api.Use("/ws/events", wsHandler.UpgradeCheck())
	api.Get("/ws/events", wsHandler.Handle())
}
