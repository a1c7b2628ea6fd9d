package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/stormon/stormon/internal/alerts"
	"github.com/stormon/stormon/internal/storage"
)

type IssueHandler struct {
	store *storage.Store
	slack *alerts.SlackNotifier
}

// NewIssueHandler wires the optional slack notifier used to announce
// acknowledgments; pass nil when slack is disabled.
func NewIssueHandler(store *storage.Store, slack *alerts.SlackNotifier) *IssueHandler {
	return &IssueHandler{store: store, slack: slack}
}

// ListOpenIssues returns all dedup keys currently in a non-OK state.
func (h *IssueHandler) ListOpenIssues(c *fiber.Ctx) error {
	issues, err := h.store.OpenIssues()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list open issues",
		})
	}
	return c.JSON(fiber.Map{"issues": issues})
}

// ListAcks returns active acknowledgments.
func (h *IssueHandler) ListAcks(c *fiber.Ctx) error {
	acks, err := h.store.Acks()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list acknowledgments",
		})
	}
	return c.JSON(fiber.Map{"acks": acks})
}

// CreateAck mutes alerting for one dedup key until cleared.
func (h *IssueHandler) CreateAck(c *fiber.Ctx) error {
	var req struct {
		Key  string `json:"key"`
		Note string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Key is required",
		})
	}

	ackedBy, _ := c.Locals("username").(string)
	if ackedBy == "" {
		ackedBy = "operator"
	}

	if err := h.store.SaveAck(req.Key, ackedBy, req.Note); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to save acknowledgment",
		})
	}

	if h.slack != nil {
		if err := h.slack.SendAck(req.Key, ackedBy); err != nil {
			slog.Warn("Failed to announce acknowledgment", "key", req.Key, "error", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Issue acknowledged, alerts muted",
		"key":     req.Key,
	})
}

// DeleteAck clears the acknowledgment, re-enabling alerts for the key.
func (h *IssueHandler) DeleteAck(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Key is required",
		})
	}

	deleted, err := h.store.DeleteAck(key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete acknowledgment",
		})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Acknowledgment not found",
		})
	}
	return c.JSON(fiber.Map{"message": "Acknowledgment cleared", "key": key})
}
