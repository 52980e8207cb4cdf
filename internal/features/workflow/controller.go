package workflow

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type WorkflowController struct {
	Service WorkflowService
}

func NewWorkflowController(service WorkflowService) *WorkflowController {
	return &WorkflowController{Service: service}
}

func (ctrl *WorkflowController) CreateWorkflow(c *fiber.Ctx) error {
	var input Workflow
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	errs, err := ctrl.Service.CreateWorkflow(c.UserContext(), &input)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"workflow":          input,
		"validation_errors": errs,
	})
}

func (ctrl *WorkflowController) GetWorkflow(c *fiber.Ctx) error {
	w, err := ctrl.Service.GetWorkflow(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if w == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Workflow not found"})
	}
	return c.JSON(w)
}

func (ctrl *WorkflowController) ListWorkflows(c *fiber.Ctx) error {
	family := Family(c.Query("family"))
	workflows, err := ctrl.Service.ListWorkflows(c.UserContext(), family)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(workflows)
}

func (ctrl *WorkflowController) UpdateWorkflow(c *fiber.Ctx) error {
	var input Workflow
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	errs, err := ctrl.Service.UpdateWorkflow(c.UserContext(), c.Params("id"), &input)
	if err != nil {
		var blocked *ErrNotActivatable
		if errors.As(err, &blocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":             err.Error(),
				"validation_errors": blocked.Errors,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"message":           "Workflow updated successfully",
		"validation_errors": errs,
	})
}

func (ctrl *WorkflowController) ApplyGraphOps(c *fiber.Ctx) error {
	var input struct {
		Ops []GraphOp `json:"ops"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	edited, errs, err := ctrl.Service.ApplyGraphOps(c.UserContext(), c.Params("id"), input.Ops)
	if err != nil {
		var blocked *ErrNotActivatable
		if errors.As(err, &blocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":             err.Error(),
				"validation_errors": blocked.Errors,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"workflow":          edited,
		"validation_errors": errs,
	})
}

func (ctrl *WorkflowController) ValidateWorkflow(c *fiber.Ctx) error {
	errs, err := ctrl.Service.ValidateWorkflow(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"valid":             len(errs) == 0,
		"validation_errors": errs,
	})
}

func (ctrl *WorkflowController) Activate(c *fiber.Ctx) error {
	if err := ctrl.Service.Activate(c.UserContext(), c.Params("id")); err != nil {
		var blocked *ErrNotActivatable
		if errors.As(err, &blocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":             err.Error(),
				"validation_errors": blocked.Errors,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Workflow activated"})
}

func (ctrl *WorkflowController) Deactivate(c *fiber.Ctx) error {
	if err := ctrl.Service.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Workflow deactivated"})
}

func (ctrl *WorkflowController) SetDefault(c *fiber.Ctx) error {
	if err := ctrl.Service.SetDefault(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Default workflow updated"})
}

func (ctrl *WorkflowController) DeleteWorkflow(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteWorkflow(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
