package instance

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type InstanceApi struct {
	controller  *InstanceController
	config      *config.Config
	roleService middleware.RoleService
}

func NewInstanceApi(controller *InstanceController, cfg *config.Config, roleService middleware.RoleService) *InstanceApi {
	return &InstanceApi{
		controller:  controller,
		config:      cfg,
		roleService: roleService,
	}
}

// Setup registers instance routes
func (h *InstanceApi) Setup(app *fiber.App) {
	instances := app.Group("/api/instances", middleware.AuthMiddleware(h.config.SkipAuth))

	instances.Get("/", middleware.RequirePermission(h.roleService, "instances", "read"), h.controller.ListInstances)
	instances.Get("/:id", middleware.RequirePermission(h.roleService, "instances", "read"), h.controller.GetInstance)

	// Eligibility for the decision itself is enforced by the engine against
	// the step's resolved approver pool, not by a static permission.
	instances.Post("/:id/decision", h.controller.SubmitDecision)
	instances.Post("/:id/cancel", middleware.RequirePermission(h.roleService, "instances", "update"), h.controller.CancelInstance)
}
