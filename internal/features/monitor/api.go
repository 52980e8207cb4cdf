package monitor

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type MonitorApi struct {
	controller  *MonitorController
	config      *config.Config
	roleService middleware.RoleService
}

func NewMonitorApi(controller *MonitorController, cfg *config.Config, roleService middleware.RoleService) *MonitorApi {
	return &MonitorApi{
		controller:  controller,
		config:      cfg,
		roleService: roleService,
	}
}

// Setup registers monitor routes
func (h *MonitorApi) Setup(app *fiber.App) {
	sweeps := app.Group("/api/sweeps", middleware.AuthMiddleware(h.config.SkipAuth))

	sweeps.Get("/", middleware.RequirePermission(h.roleService, "instances", "read"), h.controller.ListSweeps)
	sweeps.Post("/run", middleware.RequirePermission(h.roleService, "instances", "update"), h.controller.RunSweep)
}
