package handlers

import (
	"barqpix-backend/internal/models"
	"barqpix-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CreateQuickTokenHandler creates a quick-share token. On the authenticated
// route the creator is recorded; on the guest route it stays anonymous.
func CreateQuickTokenHandler(tokenService *services.TokenService, authenticated bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateQuickTokenRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		var createdBy *string
		if authenticated {
			uid := c.Locals("user_id").(string)
			createdBy = &uid
		}

		res, err := tokenService.CreateQuickShare(c.Context(), req, createdBy)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// CreateEventTokenHandler creates a long-lived token for an owned event.
func CreateEventTokenHandler(tokenService *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateEventTokenRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		res, err := tokenService.CreateEventToken(c.Context(), c.Locals("user_id").(string), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ResolveTokenHandler looks a token up by token id or quick id. Expired
// tokens resolve with 410 so the UI can explain the retention policy.
func ResolveTokenHandler(tokenService *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := tokenService.Resolve(c.Context(), c.Params("token"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(token)
	}
}

// ScanHandler records a scan: 404 for unknown tokens, 410 past expiry.
func ScanHandler(tokenService *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ScanRequest
		// Scan bodies are optional; an empty body is an anonymous scan.
		_ = c.BodyParser(&req)

		token, err := tokenService.TrackScan(c.Context(), c.Params("token"), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(token)
	}
}

// DeleteTokenHandler invalidates a token the caller owns. Quick-share tokens
// take their session and photos with them.
func DeleteTokenHandler(tokenService *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := tokenService.Delete(c.Context(), c.Locals("user_id").(string), c.Params("token")); err != nil {
			return errorResponse(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// CleanupHandler triggers a sweep pass on demand and reports what it removed.
func CleanupHandler(sweeper *services.Sweeper) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(sweeper.RunOnce(c.Context()))
	}
}
