package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebSocketHandler subscribes a viewer connection to a gallery's broadcast
// channel. Viewers only receive; the read loop exists to notice disconnects.
func WebSocketHandler(registry *Registry) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		targetID := c.Query("eventId")
		if targetID == "" {
			_ = c.WriteJSON(map[string]string{"type": "ERROR", "message": "eventId query parameter required"})
			c.Close()
			return
		}

		connID := uuid.New().String()
		registry.Subscribe(targetID, connID, c)

		defer func() {
			registry.Unsubscribe(targetID, connID)
			c.Close()
		}()

		_ = c.WriteJSON(map[string]string{
			"type":    "CONNECTED",
			"eventId": targetID,
		})

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
