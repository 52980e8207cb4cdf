package middleware

import (
	"context"

	"go-estimate/internal/common/models"
	"go-estimate/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware validates JWT tokens and injects user claims and tenant id into context
func AuthMiddleware(skipAuth bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipAuth {
			// Inject dummy context for dev
			dummyClaims := &utils.UserClaims{
				UserID:  "dev-admin-id",
				RoleIDs: []string{},
			}
			c.Locals(utils.UserClaimsKey, dummyClaims)
			c.Locals("userID", dummyClaims.UserID)
			c.SetUserContext(context.WithValue(c.UserContext(), utils.UserClaimsKey, dummyClaims))
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		// Extract token from "Bearer <token>"
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		token := authHeader[7:]
		claims, err := utils.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(utils.UserClaimsKey, claims)
		c.Locals("userID", claims.UserID)

		// Repositories read the tenant id from the request context
		userCtx := context.WithValue(c.UserContext(), models.TenantIDKey, claims.TenantID)
		userCtx = context.WithValue(userCtx, utils.UserClaimsKey, claims)
		c.SetUserContext(userCtx)

		return c.Next()
	}
}
