package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CourseFox/internal/pkg/scheduler"
)

// HandleReprocessWebhooks runs the reconciliation sweep and then the
// notification retry with the reconciliation ceiling.
func (pc *PaymentController) HandleReprocessWebhooks(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), pc.Config.CronMaxDuration)
	defer cancel()

	res, err := scheduler.RunReconciliation(ctx, pc.Reconciler, pc.Retrier, pc.Config.ReprocessBatch, pc.Config.ReconcileMaxAttempts)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":    false,
			"error": "reprocess_failed",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":                      true,
		"webhooksProcessed":       res.WebhooksProcessed,
		"notificationsRetried":    res.NotificationsRetried,
		"notificationsSuccessful": res.NotificationsSuccessful,
		"notificationsFailed":     res.NotificationsFailed,
	})
}

// HandleRetryNotifications re-sends failed or pending confirmation emails.
func (pc *PaymentController) HandleRetryNotifications(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), pc.Config.CronMaxDuration)
	defer cancel()

	summary, err := pc.Retrier.ProcessRetryNotifications(ctx, pc.Config.RetryMaxAttempts)
	if err != nil {
		log.Errorf("[Notify] retry cron failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":    false,
			"error": "retry_failed",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":         true,
		"processed":  summary.Processed,
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"results":    summary.Results,
	})
}

// HandleCronStats reports the webhook and notification outcome counters.
func HandleCronStats(c *fiber.Ctx) error {
	webhooks, notifications, err := counter.Snapshot(c.UserContext())
	if err != nil {
		log.Warnf("[Cron] reading counters failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false, "error": "counters_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":            true,
		"webhooks":      webhooks,
		"notifications": notifications,
	})
}
