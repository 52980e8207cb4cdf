package estimate

import (
	"errors"

	"go-estimate/internal/features/instance"
	"go-estimate/internal/features/workflow"

	"github.com/gofiber/fiber/v2"
)

type EstimateController struct {
	Service EstimateService
}

func NewEstimateController(service EstimateService) *EstimateController {
	return &EstimateController{Service: service}
}

func (ctrl *EstimateController) CreateEstimate(c *fiber.Ctx) error {
	var input Estimate
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.CreateEstimate(c.UserContext(), &input); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(input)
}

func (ctrl *EstimateController) GetEstimate(c *fiber.Ctx) error {
	est, err := ctrl.Service.GetEstimate(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if est == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Estimate not found"})
	}
	return c.JSON(est)
}

func (ctrl *EstimateController) ListEstimates(c *fiber.Ctx) error {
	estimates, total, err := ctrl.Service.ListEstimates(c.UserContext(),
		EstimateStatus(c.Query("status")),
		int64(c.QueryInt("page", 1)),
		int64(c.QueryInt("limit", 20)),
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": estimates, "total": total})
}

func (ctrl *EstimateController) UpdateEstimate(c *fiber.Ctx) error {
	var input Estimate
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.UpdateEstimate(c.UserContext(), c.Params("id"), &input); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Estimate updated successfully"})
}

func (ctrl *EstimateController) DeleteEstimate(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteEstimate(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (ctrl *EstimateController) SubmitEstimate(c *fiber.Ctx) error {
	est, err := ctrl.Service.Submit(c.UserContext(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrNoApplicableWorkflow):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, instance.ErrAlreadyRunning):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	return c.JSON(est)
}

func (ctrl *EstimateController) WithdrawEstimate(c *fiber.Ctx) error {
	if err := ctrl.Service.Withdraw(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Estimate withdrawn"})
}
