// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/gofiber/fiber/v3"
)

// EngineAuthMiddleware validates the shared secret the invocation driver and
// the delivery provider callback authenticate with
type EngineAuthMiddleware struct {
	secret string
	header string
}

// NewEngineAuthMiddleware creates a new engine authentication middleware
func NewEngineAuthMiddleware(secret, header string) *EngineAuthMiddleware {
	if header == "" {
		header = "X-Engine-Secret"
	}
	return &EngineAuthMiddleware{
		secret: secret,
		header: header,
	}
}

// Authenticate is the middleware function that validates the shared secret header
func (m *EngineAuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		provided := c.Get(m.header)
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Engine secret header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_ENGINE_SECRET",
				},
			})
		}

		if m.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(m.secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Engine secret is invalid",
				Error: dto.ErrorDetail{
					Code: "INVALID_ENGINE_SECRET",
				},
			})
		}

		// Store RequestID for tracing
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}
