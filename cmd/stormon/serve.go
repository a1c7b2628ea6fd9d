package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"github.com/stormon/stormon/internal/alerts"
	"github.com/stormon/stormon/internal/handlers"
	"github.com/stormon/stormon/internal/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring loop and the dashboard API in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		slog.Info("Starting stormon", "version", handlers.Version, "hostname", a.cfg.Target.Hostname())

		// ─── Handlers ───────────────────────────────────────────────────────
		var slackNotifier *alerts.SlackNotifier
		if a.cfg.Alerts.Slack.Enabled && a.cfg.Alerts.Slack.WebhookURL != "" {
			slackNotifier = alerts.NewSlackNotifier(a.cfg.Alerts.Slack, a.cfg.Target.Hostname())
		}

		systemHandler := handlers.NewSystemHandler(a.store, a.cfg)
		authHandler := handlers.NewAuthHandler(a.cfg.Dashboard)
		runHandler := handlers.NewRunHandler(a.store)
		metricHandler := handlers.NewMetricHandler(a.store)
		eventHandler := handlers.NewEventHandler(a.store)
		issueHandler := handlers.NewIssueHandler(a.store, slackNotifier)
		wsHandler := handlers.NewWSHandler()

		a.runner.AddHook(wsHandler.BroadcastRun)

		// ─── Fiber App ──────────────────────────────────────────────────────
		app := fiber.New(fiber.Config{
			AppName:      "stormon v" + handlers.Version,
			ServerHeader: "stormon",
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				message := "Internal server error"
				if e, ok := err.(*fiber.Error); ok {
					code = e.Code
					message = e.Message
				}
				return c.Status(code).JSON(fiber.Map{
					"error":   true,
					"message": message,
				})
			},
		})

		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
		}))

		app.Use(recover.New(recover.Config{
			EnableStackTrace: false,
		}))

		// Security headers
		app.Use(func(c *fiber.Ctx) error {
			c.Set("X-Content-Type-Options", "nosniff")
			c.Set("X-Frame-Options", "DENY")
			c.Set("X-XSS-Protection", "1; mode=block")
			return c.Next()
		})

		// Request logger
		app.Use(func(c *fiber.Ctx) error {
			start := time.Now()
			err := c.Next()
			if c.Path() == "/api/health" {
				return err
			}
			slog.Info("request",
				"method", c.Method(),
				"path", c.Path(),
				"status", c.Response().StatusCode(),
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", c.IP(),
			)
			return err
		})

		routes.Setup(app, a.cfg, systemHandler, authHandler, runHandler,
			metricHandler, eventHandler, issueHandler, wsHandler)

		// ─── Monitoring loop ────────────────────────────────────────────────
		loopCtx, stopLoop := context.WithCancel(context.Background())
		loopDone := make(chan struct{})
		go func() {
			defer close(loopDone)
			a.runner.Loop(loopCtx)
		}()

		// ─── Graceful Shutdown ──────────────────────────────────────────────
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			<-quit
			slog.Info("Shutting down stormon...")

			stopLoop()
			<-loopDone

			if err := app.Shutdown(); err != nil {
				slog.Error("Fiber shutdown error", "error", err)
			}
		}()

		listenAddr := fmt.Sprintf("%s:%d", a.cfg.Dashboard.BindHost, a.cfg.Dashboard.BindPort)
		slog.Info("Dashboard listening", "addr", listenAddr)

		if err := app.Listen(listenAddr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}
