package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stormon/stormon/internal/storage"
)

type RunHandler struct {
	store *storage.Store
}

func NewRunHandler(store *storage.Store) *RunHandler {
	return &RunHandler{store: store}
}

// ListRuns returns recent runs without their results.
func (h *RunHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	runs, err := h.store.Runs(limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list runs",
		})
	}
	return c.JSON(fiber.Map{"runs": runs})
}

// GetRun returns one run with its full check results.
func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid run ID",
		})
	}

	run, err := h.store.RunByID(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to load run",
		})
	}
	if run == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Run not found",
		})
	}
	return c.JSON(run)
}
