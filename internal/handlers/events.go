package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stormon/stormon/internal/models"
	"github.com/stormon/stormon/internal/storage"
)

type EventHandler struct {
	store *storage.Store
}

func NewEventHandler(store *storage.Store) *EventHandler {
	return &EventHandler{store: store}
}

// ListEvents returns events newest first, optionally filtered by
// severity, type, and time window.
func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid 'from' timestamp, expected RFC3339",
		})
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid 'to' timestamp, expected RFC3339",
		})
	}

	events, err := h.store.Events(storage.EventFilter{
		From:     from,
		To:       to,
		Severity: models.Severity(c.Query("severity")),
		Type:     models.EventType(c.Query("type")),
		Limit:    limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list events",
		})
	}
	return c.JSON(fiber.Map{"events": events})
}
