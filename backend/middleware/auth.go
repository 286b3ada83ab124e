package middleware

import (
	"learnhub/backend/config"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// AuthMiddleware verifies the bearer token and stores the resolved principal
// on the request context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := utils.ExtractPrincipal(c, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// OptionalAuthMiddleware resolves a principal when a valid token is present
// but lets anonymous requests through. Event ingestion uses it so that
// unauthenticated events are stored without a user rather than rejected.
func OptionalAuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if principal, err := utils.ExtractPrincipal(c, cfg); err == nil {
			c.Locals(principalKey, principal)
		}
		return c.Next()
	}
}

// AdminMiddleware rejects non-admin principals before any handler query runs.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := utils.ExtractPrincipal(c, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if !principal.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden - Admin access required",
			})
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// GetPrincipal returns the principal stored by the auth middleware.
func GetPrincipal(c *fiber.Ctx) (utils.Principal, bool) {
	principal, ok := c.Locals(principalKey).(utils.Principal)
	return principal, ok
}
