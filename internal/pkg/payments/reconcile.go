package payments

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/metrics/counter"
)

var reconcileEventTypes = []string{
	models.WebhookEventPaymentCaptured,
	models.WebhookEventPaymentFailed,
}

// ReprocessUnprocessedEvents sweeps the oldest unprocessed payment events and
// applies each in its own transaction. Rows locked by a concurrent worker are
// skipped, and one failing event never blocks the rest of the batch.
// Confirmation emails are triggered without waiting for delivery.
func (p *Processor) ReprocessUnprocessedEvents(ctx context.Context, limit int) (ReprocessSummary, error) {
	if limit <= 0 {
		limit = p.cfg.ReprocessBatch
	}
	var summary ReprocessSummary

	candidates, err := p.repo.ListUnprocessedWebhookEvents(ctx, reconcileEventTypes, limit)
	if err != nil {
		return summary, err
	}
	summary.Candidates = len(candidates)

	for _, ev := range candidates {
		if err := ctx.Err(); err != nil {
			log.Warnf("[Reconcile] stopping early: %v", err)
			break
		}

		res, err := p.applyEvent(ctx, ev.Gateway, ev.EventID, modeReconcile)
		if err != nil {
			if errors.Is(err, ErrEventNotClaimable) {
				summary.Skipped++
				continue
			}
			summary.Errors++
			log.Errorf("[Reconcile] event %s (%s) failed: %v", ev.EventID, ev.EventType, err)
			continue
		}
		if !res.processed {
			summary.Skipped++
			continue
		}

		summary.Processed++
		counter.AddWebhookOutcome(counter.WebhookReprocessed)
		if res.order != nil {
			p.notify(ctx, *res.order, false)
		}
	}

	if summary.Candidates > 0 {
		log.Infof("[Reconcile] candidates=%d processed=%d skipped=%d errors=%d",
			summary.Candidates, summary.Processed, summary.Skipped, summary.Errors)
	}
	return summary, nil
}
