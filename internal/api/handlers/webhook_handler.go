package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sociantra/sociantra/internal/service"
	"github.com/sociantra/sociantra/internal/transfer"
)

type WebhookHandler struct {
	wa service.WhatsappService
}

func NewWebhookHandler(wa service.WhatsappService) *WebhookHandler {
	return &WebhookHandler{wa: wa}
}

// VerifyWhatsapp answers Meta's GET handshake when the webhook is
// registered.
func (h *WebhookHandler) VerifyWhatsapp(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	echo, err := h.wa.VerifyWebhook(mode, token, challenge)
	if err != nil {
		return c.SendStatus(fiber.StatusForbidden)
	}

	return c.Status(fiber.StatusOK).SendString(echo)
}

// ReceiveWhatsapp accepts delivery events. Meta retries on non-200, so
// parse failures are acknowledged and only logged.
func (h *WebhookHandler) ReceiveWhatsapp(c *fiber.Ctx) error {
	var event transfer.WhatsappWebhookEvent
	if err := c.BodyParser(&event); err != nil {
		slog.Info(err.Error())
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.wa.HandleWebhookEvent(c.Context(), &event); err != nil {
		slog.Info(err.Error())
	}

	return c.SendStatus(fiber.StatusOK)
}
