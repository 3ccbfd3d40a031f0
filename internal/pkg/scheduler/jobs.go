package scheduler

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/notifications"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payments"
)

// EventReconciler sweeps stored but unprocessed webhook events.
type EventReconciler interface {
	ReprocessUnprocessedEvents(ctx context.Context, limit int) (payments.ReprocessSummary, error)
}

// NotificationRetrier re-sends PENDING/FAILED confirmations.
type NotificationRetrier interface {
	ProcessRetryNotifications(ctx context.Context, maxAttempts int) (notifications.RetrySummary, error)
}

// ReconcileResult is the combined outcome of one reconciliation run.
type ReconcileResult struct {
	WebhooksProcessed       int `json:"webhooksProcessed"`
	NotificationsRetried    int `json:"notificationsRetried"`
	NotificationsSuccessful int `json:"notificationsSuccessful"`
	NotificationsFailed     int `json:"notificationsFailed"`
}

// RunReconciliation sweeps unprocessed webhook events and then retries
// notifications with the given ceiling. A failed event sweep still lets the
// notification retry run; its error is returned afterwards.
func RunReconciliation(ctx context.Context, events EventReconciler, retrier NotificationRetrier, batchLimit, maxAttempts int) (ReconcileResult, error) {
	var out ReconcileResult

	summary, sweepErr := events.ReprocessUnprocessedEvents(ctx, batchLimit)
	if sweepErr != nil {
		log.Errorf("[Reconcile] webhook sweep failed: %v", sweepErr)
	}
	out.WebhooksProcessed = summary.Processed

	retry, err := retrier.ProcessRetryNotifications(ctx, maxAttempts)
	if err != nil {
		log.Errorf("[Reconcile] notification retry failed: %v", err)
	}
	out.NotificationsRetried = retry.Processed
	out.NotificationsSuccessful = retry.Successful
	out.NotificationsFailed = retry.Failed

	return out, sweepErr
}
