package costentry

import (
	"github.com/gofiber/fiber/v2"
)

type CostEntryController struct {
	Service CostEntryService
}

func NewCostEntryController(service CostEntryService) *CostEntryController {
	return &CostEntryController{Service: service}
}

func (ctrl *CostEntryController) SubmitEntry(c *fiber.Ctx) error {
	var input CostEntry
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.SubmitEntry(c.UserContext(), &input); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(input)
}

func (ctrl *CostEntryController) GetEntry(c *fiber.Ctx) error {
	ce, err := ctrl.Service.GetEntry(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if ce == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cost entry not found"})
	}
	return c.JSON(ce)
}

func (ctrl *CostEntryController) ListEntries(c *fiber.Ctx) error {
	entries, total, err := ctrl.Service.ListEntries(c.UserContext(),
		c.Query("estimate_id"),
		CostEntryStatus(c.Query("status")),
		int64(c.QueryInt("page", 1)),
		int64(c.QueryInt("limit", 20)),
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": entries, "total": total})
}

func (ctrl *CostEntryController) DeleteEntry(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteEntry(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
