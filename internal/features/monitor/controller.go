package monitor

import (
	"github.com/gofiber/fiber/v2"
)

type MonitorController struct {
	Service MonitorService
}

func NewMonitorController(service MonitorService) *MonitorController {
	return &MonitorController{Service: service}
}

func (ctrl *MonitorController) RunSweep(c *fiber.Ctx) error {
	entry, err := ctrl.Service.RunSweep(c.UserContext(), "manual")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"sweep": entry,
		})
	}
	return c.JSON(entry)
}

func (ctrl *MonitorController) ListSweeps(c *fiber.Ctx) error {
	sweeps, err := ctrl.Service.RecentSweeps(c.UserContext(), int64(c.QueryInt("limit", 50)))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": sweeps})
}
