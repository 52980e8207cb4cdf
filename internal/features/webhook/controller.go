package webhook

import (
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WebhookController struct {
	Service WebhookService
}

func NewWebhookController(service WebhookService) *WebhookController {
	return &WebhookController{
		Service: service,
	}
}

func (ctrl *WebhookController) CreateWebhook(c *fiber.Ctx) error {
	var webhook Webhook
	if err := c.BodyParser(&webhook); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if userIDStr, ok := c.Locals("userID").(string); ok {
		if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
			webhook.CreatedBy = oid
		}
	}

	if err := ctrl.Service.CreateWebhook(c.UserContext(), &webhook); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Webhook created successfully",
		"data":    webhook,
	})
}

func (ctrl *WebhookController) ListWebhooks(c *fiber.Ctx) error {
	webhooks, err := ctrl.Service.ListWebhooks(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": webhooks})
}

func (ctrl *WebhookController) GetWebhook(c *fiber.Ctx) error {
	webhook, err := ctrl.Service.GetWebhook(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if webhook == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Webhook not found"})
	}
	return c.JSON(webhook)
}

func (ctrl *WebhookController) UpdateWebhook(c *fiber.Ctx) error {
	var updates map[string]interface{}
	if err := c.BodyParser(&updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.UpdateWebhook(c.UserContext(), c.Params("id"), updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Webhook updated successfully"})
}

func (ctrl *WebhookController) DeleteWebhook(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteWebhook(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Webhook deleted successfully"})
}

func (ctrl *WebhookController) ListDeliveries(c *fiber.Ctx) error {
	logs, err := ctrl.Service.ListDeliveries(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": logs})
}
