package workflow

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WorkflowApi struct {
	controller  *WorkflowController
	config      *config.Config
	roleService middleware.RoleService
}

func NewWorkflowApi(controller *WorkflowController, cfg *config.Config, roleService middleware.RoleService) *WorkflowApi {
	return &WorkflowApi{
		controller:  controller,
		config:      cfg,
		roleService: roleService,
	}
}

// Setup registers workflow routes
func (h *WorkflowApi) Setup(app *fiber.App) {
	workflows := app.Group("/api/workflows", middleware.AuthMiddleware(h.config.SkipAuth))

	workflows.Get("/", middleware.RequirePermission(h.roleService, "workflows", "read"), h.controller.ListWorkflows)
	workflows.Post("/", middleware.RequirePermission(h.roleService, "workflows", "create"), h.controller.CreateWorkflow)
	workflows.Get("/:id", middleware.RequirePermission(h.roleService, "workflows", "read"), h.controller.GetWorkflow)
	workflows.Put("/:id", middleware.RequirePermission(h.roleService, "workflows", "update"), h.controller.UpdateWorkflow)
	workflows.Delete("/:id", middleware.RequirePermission(h.roleService, "workflows", "delete"), h.controller.DeleteWorkflow)

	workflows.Post("/:id/graph", middleware.RequirePermission(h.roleService, "workflows", "update"), h.controller.ApplyGraphOps)
	workflows.Get("/:id/validate", middleware.RequirePermission(h.roleService, "workflows", "read"), h.controller.ValidateWorkflow)
	workflows.Post("/:id/activate", middleware.RequirePermission(h.roleService, "workflows", "update"), h.controller.Activate)
	workflows.Post("/:id/deactivate", middleware.RequirePermission(h.roleService, "workflows", "update"), h.controller.Deactivate)
	workflows.Post("/:id/set-default", middleware.RequirePermission(h.roleService, "workflows", "update"), h.controller.SetDefault)
}
