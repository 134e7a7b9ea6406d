package handlers

import (
	"errors"

	"barqpix-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// errorResponse maps service errors onto the HTTP surface. 410 Gone is
// reserved for expired tokens so clients can distinguish "expired" from
// "never existed".
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrUserExists):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		status = fiber.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrExpired):
		status = fiber.StatusGone
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
