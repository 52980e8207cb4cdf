package reporting

import (
	common_models "go-estimate/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type ReportingController struct {
	Store *ReportingStore
}

func NewReportingController(store *ReportingStore) *ReportingController {
	return &ReportingController{Store: store}
}

func (ctrl *ReportingController) StatusSummary(c *fiber.Ctx) error {
	if !ctrl.Store.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "reporting store not configured",
		})
	}

	tenantID, _ := c.UserContext().Value(common_models.TenantIDKey).(string)
	counts, err := ctrl.Store.CountByStatus(c.UserContext(), tenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": counts})
}

func (ctrl *ReportingController) RecentConcluded(c *fiber.Ctx) error {
	if !ctrl.Store.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "reporting store not configured",
		})
	}

	tenantID, _ := c.UserContext().Value(common_models.TenantIDKey).(string)
	reports, err := ctrl.Store.Recent(c.UserContext(), tenantID, c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": reports})
}
