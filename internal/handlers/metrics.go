package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stormon/stormon/internal/storage"
)

type MetricHandler struct {
	store *storage.Store
}

func NewMetricHandler(store *storage.Store) *MetricHandler {
	return &MetricHandler{store: store}
}

// QueryMetrics returns samples for one metric name, newest first.
// Query params: name (required), from, to (RFC3339), limit.
func (h *MetricHandler) QueryMetrics(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Query parameter 'name' is required",
		})
	}

	limit := c.QueryInt("limit", 500)
	if limit < 1 || limit > 5000 {
		limit = 500
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

	metrics, err := h.store.Metrics(name, from, to, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to query metrics",
		})
	}
	return c.JSON(fiber.Map{"name": name, "metrics": metrics})
}

func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
