package costentry

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CostEntryApi struct {
	controller  *CostEntryController
	config      *config.Config
	roleService middleware.RoleService
}

func NewCostEntryApi(controller *CostEntryController, cfg *config.Config, roleService middleware.RoleService) *CostEntryApi {
	return &CostEntryApi{
		controller:  controller,
		config:      cfg,
		roleService: roleService,
	}
}

// Setup registers cost entry routes
func (h *CostEntryApi) Setup(app *fiber.App) {
	entries := app.Group("/api/cost-entries", middleware.AuthMiddleware(h.config.SkipAuth))

	entries.Get("/", middleware.RequirePermission(h.roleService, "cost_entries", "read"), h.controller.ListEntries)
	entries.Post("/", middleware.RequirePermission(h.roleService, "cost_entries", "create"), h.controller.SubmitEntry)
	entries.Get("/:id", middleware.RequirePermission(h.roleService, "cost_entries", "read"), h.controller.GetEntry)
	entries.Delete("/:id", middleware.RequirePermission(h.roleService, "cost_entries", "delete"), h.controller.DeleteEntry)
}
