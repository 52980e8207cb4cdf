package webhook

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WebhookApi struct {
	controller  *WebhookController
	config      *config.Config
	roleService middleware.RoleService
}

func NewWebhookApi(controller *WebhookController, config *config.Config, roleService middleware.RoleService) *WebhookApi {
	return &WebhookApi{
		controller:  controller,
		config:      config,
		roleService: roleService,
	}
}

func (h *WebhookApi) Setup(app *fiber.App) {
	webhooks := app.Group("/api/webhooks", middleware.AuthMiddleware(h.config.SkipAuth))

	webhooks.Post("/", middleware.RequirePermission(h.roleService, "webhooks", "create"), h.controller.CreateWebhook)
	webhooks.Get("/", middleware.RequirePermission(h.roleService, "webhooks", "read"), h.controller.ListWebhooks)
	webhooks.Get("/:id", middleware.RequirePermission(h.roleService, "webhooks", "read"), h.controller.GetWebhook)
	webhooks.Get("/:id/deliveries", middleware.RequirePermission(h.roleService, "webhooks", "read"), h.controller.ListDeliveries)
	webhooks.Put("/:id", middleware.RequirePermission(h.roleService, "webhooks", "update"), h.controller.UpdateWebhook)
	webhooks.Delete("/:id", middleware.RequirePermission(h.roleService, "webhooks", "delete"), h.controller.DeleteWebhook)
}
