package estimate

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type EstimateApi struct {
	controller  *EstimateController
	config      *config.Config
	roleService middleware.RoleService
}

func NewEstimateApi(controller *EstimateController, cfg *config.Config, roleService middleware.RoleService) *EstimateApi {
	return &EstimateApi{
		controller:  controller,
		config:      cfg,
		roleService: roleService,
	}
}

// Setup registers estimate routes
func (h *EstimateApi) Setup(app *fiber.App) {
	estimates := app.Group("/api/estimates", middleware.AuthMiddleware(h.config.SkipAuth))

	estimates.Get("/", middleware.RequirePermission(h.roleService, "estimates", "read"), h.controller.ListEstimates)
	estimates.Post("/", middleware.RequirePermission(h.roleService, "estimates", "create"), h.controller.CreateEstimate)
	estimates.Get("/:id", middleware.RequirePermission(h.roleService, "estimates", "read"), h.controller.GetEstimate)
	estimates.Put("/:id", middleware.RequirePermission(h.roleService, "estimates", "update"), h.controller.UpdateEstimate)
	estimates.Delete("/:id", middleware.RequirePermission(h.roleService, "estimates", "delete"), h.controller.DeleteEstimate)

	estimates.Post("/:id/submit", middleware.RequirePermission(h.roleService, "estimates", "update"), h.controller.SubmitEstimate)
	estimates.Post("/:id/withdraw", middleware.RequirePermission(h.roleService, "estimates", "update"), h.controller.WithdrawEstimate)
}
