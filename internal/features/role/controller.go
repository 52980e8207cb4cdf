package role

import (
	"github.com/gofiber/fiber/v2"
)

type RoleController struct {
	Service RoleService
}

func NewRoleController(service RoleService) *RoleController {
	return &RoleController{Service: service}
}

func (ctrl *RoleController) CreateRole(c *fiber.Ctx) error {
	var input Role
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.CreateRole(c.UserContext(), &input); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(input)
}

func (ctrl *RoleController) GetRole(c *fiber.Ctx) error {
	role, err := ctrl.Service.GetRole(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if role == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Role not found"})
	}
	return c.JSON(role)
}

func (ctrl *RoleController) ListRoles(c *fiber.Ctx) error {
	roles, err := ctrl.Service.ListRoles(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(roles)
}

func (ctrl *RoleController) UpdateRole(c *fiber.Ctx) error {
	var input Role
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.UpdateRole(c.UserContext(), c.Params("id"), &input); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Role updated successfully"})
}

func (ctrl *RoleController) DeleteRole(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteRole(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
