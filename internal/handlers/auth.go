package handlers

import (
	"barqpix-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware verifies the JWT before the handler runs
func AuthMiddleware(c *fiber.Ctx) error {
	// Get token from query param `access_token` or Authorization header
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	uid, ok := claims["user_id"].(string)
	if !ok || uid == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	c.Locals("user_id", uid)

	if name, ok := claims["display_name"].(string); ok {
		c.Locals("display_name", name)
	}

	return c.Next()
}
