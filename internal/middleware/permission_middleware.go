package middleware

import (
	"context"

	"go-estimate/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// RoleService is the slice of the role feature the middleware needs
type RoleService interface {
	HasPermission(ctx context.Context, roleIDs []string, resource string, action string) (bool, error)
}

// RequirePermission checks that one of the caller's roles allows action on resource
func RequirePermission(roleService RoleService, resource string, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		allowed, err := roleService.HasPermission(c.UserContext(), claims.RoleIDs, resource, action)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal Server Error",
			})
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Insufficient permissions",
			})
		}

		return c.Next()
	}
}
