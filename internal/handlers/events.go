package handlers

import (
	"barqpix-backend/internal/models"
	"barqpix-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

func CreateEventHandler(eventService *services.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateEventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		event, err := eventService.Create(c.Context(), c.Locals("user_id").(string), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(event)
	}
}

func ListEventsHandler(eventService *services.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := eventService.ListMine(c.Context(), c.Locals("user_id").(string))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(events)
	}
}

// GetEventHandler is public: guests open event pages from scanned links.
func GetEventHandler(eventService *services.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		event, err := eventService.Get(c.Context(), c.Params("eventId"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(event)
	}
}

func UpdateEventHandler(eventService *services.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.UpdateEventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		event, err := eventService.Update(c.Context(), c.Locals("user_id").(string), c.Params("eventId"), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(event)
	}
}

func DeleteEventHandler(eventService *services.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := eventService.Delete(c.Context(), c.Locals("user_id").(string), c.Params("eventId")); err != nil {
			return errorResponse(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
