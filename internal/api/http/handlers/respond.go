package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reporting-service/internal/observability"
)

// respond wraps successful payloads in the standard envelope with the
// request's trace id.
func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"data":    data,
		"traceId": observability.TraceID(c.UserContext()),
	})
}
