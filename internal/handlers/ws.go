package handlers

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stormon/stormon/internal/models"
)

// WSHandler pushes run summaries to connected dashboard clients so the
// front page refreshes without polling.
type WSHandler struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewWSHandler() *WSHandler {
	return &WSHandler{clients: map[*websocket.Conn]bool{}}
}

// UpgradeCheck is middleware that checks if the request is a websocket upgrade
func (h *WSHandler) UpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handle keeps the connection registered until the client goes away.
func (h *WSHandler) Handle() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.mu.Lock()
		h.clients[c] = true
		count := len(h.clients)
		h.mu.Unlock()
		slog.Debug("Dashboard client connected", "clients", count)

		defer func() {
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			c.Close()
		}()

		// Reads are discarded; the socket is push-only. The read loop
		// exists to notice the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// BroadcastRun sends a compact run summary to all connected clients.
func (h *WSHandler) BroadcastRun(run *models.Run) {
	problems := 0
	for _, r := range run.Results {
		if r.Status.IsProblem() {
			problems++
		}
	}

	payload, err := json.Marshal(fiber.Map{
		"type":           "run_finished",
		"run_id":         run.ID,
		"hostname":       run.Hostname,
		"overall_status": run.OverallStatus,
		"results":        len(run.Results),
		"problems":       problems,
		"finished_at":    run.FinishedAt.Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
