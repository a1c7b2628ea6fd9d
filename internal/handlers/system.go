package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stormon/stormon/internal/config"
	"github.com/stormon/stormon/internal/storage"
)

type SystemHandler struct {
	store     *storage.Store
	cfg       *config.Config
	startedAt time.Time
}

func NewSystemHandler(store *storage.Store, cfg *config.Config) *SystemHandler {
	return &SystemHandler{store: store, cfg: cfg, startedAt: time.Now()}
}

// Health is the unauthenticated liveness probe.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"version":        Version,
		"hostname":       h.cfg.Target.Hostname(),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// CurrentStatus returns the latest run with results plus open issues,
// the main payload the dashboard front page renders.
func (h *SystemHandler) CurrentStatus(c *fiber.Ctx) error {
	run, err := h.store.LatestRun()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to load latest run",
		})
	}

	issues, err := h.store.OpenIssues()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to load open issues",
		})
	}

	if run == nil {
		return c.JSON(fiber.Map{
			"run":         nil,
			"open_issues": issues,
			"message":     "No runs recorded yet",
		})
	}

	return c.JSON(fiber.Map{
		"run":         run,
		"open_issues": issues,
	})
}
