package user

import (
	"go-estimate/internal/config"
	"go-estimate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type UserApi struct {
	controller  *UserController
	config      *config.Config
	roleService middleware.RoleService
}

func NewUserApi(controller *UserController, cfg *config.Config, roleService middleware.RoleService) *UserApi {
	return &UserApi{
		controller:  controller,
		config:      cfg,
		roleService: roleService,
	}
}

// Setup registers user routes
func (h *UserApi) Setup(app *fiber.App) {
	users := app.Group("/api/users", middleware.AuthMiddleware(h.config.SkipAuth))

	users.Get("/", middleware.RequirePermission(h.roleService, "users", "read"), h.controller.ListUsers)
	users.Post("/", middleware.RequirePermission(h.roleService, "users", "create"), h.controller.CreateUser)
	users.Get("/:id", middleware.RequirePermission(h.roleService, "users", "read"), h.controller.GetUser)
	users.Put("/:id", middleware.RequirePermission(h.roleService, "users", "update"), h.controller.UpdateUser)
	users.Put("/:id/roles", middleware.RequirePermission(h.roleService, "users", "update"), h.controller.AssignRoles)
	users.Put("/:id/status", middleware.RequirePermission(h.roleService, "users", "update"), h.controller.SetStatus)
}
