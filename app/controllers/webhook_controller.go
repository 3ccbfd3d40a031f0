package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/constants"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payments"
)

const webhookTimeout = 30 * time.Second

// HandleRazorpayWebhook verifies, records and applies a gateway delivery.
// Every validly received event is answered with 200 so the gateway stops
// redelivering; 5xx is reserved for failures where redelivery is wanted.
func (pc *PaymentController) HandleRazorpayWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(constants.HeaderRazorpaySignature))
	eventID := strings.TrimSpace(c.Get(constants.HeaderRazorpayEventID))

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	res, err := pc.Webhooks.HandleWebhook(ctx, payments.WebhookRequest{
		Body:          rawBody,
		Signature:     signature,
		EventIDHeader: eventID,
	})
	switch {
	case errors.Is(err, payments.ErrUnauthorized):
		log.Warnf("[Webhook] rejected delivery from %s: invalid signature", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, payments.ErrInvalidWebhook):
		log.Warnf("[Webhook] rejected delivery: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case err != nil:
		log.Errorw("[Webhook] processing failed", "event_id", eventID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	body := fiber.Map{
		"ok":       true,
		"event_id": res.EventID,
		"outcome":  string(res.Outcome),
	}
	if res.Outcome == payments.OutcomeDuplicate {
		body["duplicate"] = true
	}
	return c.Status(fiber.StatusOK).JSON(body)
}
