package instance

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type InstanceController struct {
	Service InstanceService
}

func NewInstanceController(service InstanceService) *InstanceController {
	return &InstanceController{Service: service}
}

func (ctrl *InstanceController) ListInstances(c *fiber.Ctx) error {
	filter := ListFilter{
		Status:     InstanceStatus(c.Query("status")),
		RecordType: c.Query("record_type"),
		RecordID:   c.Query("record_id"),
		Page:       int64(c.QueryInt("page", 1)),
		Limit:      int64(c.QueryInt("limit", 20)),
	}
	if c.Query("stalled") != "" {
		stalled := c.QueryBool("stalled")
		filter.Stalled = &stalled
	}

	instances, total, err := ctrl.Service.ListInstances(c.UserContext(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"data":  instances,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func (ctrl *InstanceController) GetInstance(c *fiber.Ctx) error {
	inst, err := ctrl.Service.GetInstance(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if inst == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Instance not found"})
	}
	return c.JSON(inst)
}

func (ctrl *InstanceController) SubmitDecision(c *fiber.Ctx) error {
	var input struct {
		Decision Decision `json:"decision"`
		Comment  string   `json:"comment"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	inst, err := ctrl.Service.SubmitDecision(c.UserContext(), c.Params("id"), input.Decision, input.Comment)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotEligible):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrDuplicateDecision),
			errors.Is(err, ErrNotRunning),
			errors.Is(err, ErrNotAwaitingApproval),
			errors.Is(err, ErrStalled),
			errors.Is(err, ErrConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.JSON(inst)
}

func (ctrl *InstanceController) CancelInstance(c *fiber.Ctx) error {
	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&input)

	if err := ctrl.Service.Cancel(c.UserContext(), c.Params("id"), input.Reason); err != nil {
		if errors.Is(err, ErrNotRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Instance cancelled"})
}
