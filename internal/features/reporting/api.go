package reporting

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportingApi struct {
	controller  *ReportingController
	config      *config.Config
	roleService middleware.RoleService
}

func NewReportingApi(controller *ReportingController, cfg *config.Config, roleService middleware.RoleService) *ReportingApi {
	return &ReportingApi{
		controller:  controller,
		config:      cfg,
		roleService: roleService,
	}
}

// Setup registers reporting routes
func (h *ReportingApi) Setup(app *fiber.App) {
	reports := app.Group("/api/reports", middleware.AuthMiddleware(h.config.SkipAuth))

	reports.Get("/summary", middleware.RequirePermission(h.roleService, "instances", "read"), h.controller.StatusSummary)
	reports.Get("/concluded", middleware.RequirePermission(h.roleService, "instances", "read"), h.controller.RecentConcluded)
}
