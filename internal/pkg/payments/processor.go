package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CourseFox/internal/pkg/razorpay"
)

type applyMode int

const (
	modeWebhook applyMode = iota
	modeReconcile
)

// errKeepUnprocessed rolls back the apply transaction without surfacing an error.
var errKeepUnprocessed = errors.New("keep event unprocessed")

// Processor applies verified gateway events to the order ledger. The webhook
// handler and the reconciliation sweep share the same apply routine.
type Processor struct {
	repo     Repository
	events   *EventStore
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewProcessor creates a processor. notifier may be nil.
func NewProcessor(repo Repository, notifier Notifier, cfg Config) *Processor {
	if strings.TrimSpace(cfg.Gateway) == "" {
		cfg.Gateway = models.GatewayRazorpay
	}
	if cfg.ReprocessBatch <= 0 {
		cfg.ReprocessBatch = 10
	}
	return &Processor{
		repo:     repo,
		events:   NewEventStore(repo),
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewProcessorFromDB wires the GORM repository.
func NewProcessorFromDB(db *gorm.DB, notifier Notifier, cfg Config) *Processor {
	return NewProcessor(NewRepository(db), notifier, cfg)
}

// Events exposes the underlying event ledger.
func (p *Processor) Events() *EventStore { return p.events }

type applyResult struct {
	outcome   Outcome
	processed bool
	order     *OrderRef
}

// HandleWebhook runs the synchronous webhook path. ErrUnauthorized and
// ErrInvalidWebhook are client errors; any other error means the event may
// be stored but not applied, and reconciliation will pick it up.
func (p *Processor) HandleWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	counter.AddWebhookOutcome(counter.WebhookReceived)

	if strings.TrimSpace(p.cfg.WebhookSecret) == "" {
		log.Errorf("[Webhook] webhook secret is not configured")
		counter.AddWebhookOutcome(counter.WebhookRejected)
		return nil, ErrUnauthorized
	}
	if !razorpay.VerifyWebhookSignature(req.Body, req.Signature, p.cfg.WebhookSecret) {
		counter.AddWebhookOutcome(counter.WebhookRejected)
		return nil, ErrUnauthorized
	}

	ev, err := razorpay.ParseWebhookEvent(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	eventID, err := razorpay.ResolveEventID(req.EventIDHeader, ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	res := &WebhookResult{EventID: eventID, EventType: ev.Type}

	inserted, err := p.events.RecordEvent(ctx, p.cfg.Gateway, eventID, ev.Type, req.Body)
	if err != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", eventID, err)
	}
	if !inserted {
		log.Infof("[Webhook] duplicate event %s (%s)", eventID, ev.Type)
		counter.AddWebhookOutcome(counter.WebhookDuplicate)
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	if !models.IsPaymentEvent(ev.Type) {
		if err := p.events.MarkProcessed(ctx, p.cfg.Gateway, eventID); err != nil {
			return nil, fmt.Errorf("mark webhook event %s processed: %w", eventID, err)
		}
		counter.AddWebhookOutcome(counter.WebhookIgnored)
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	applied, err := p.applyEvent(ctx, p.cfg.Gateway, eventID, modeWebhook)
	if err != nil {
		if errors.Is(err, ErrEventNotClaimable) {
			// reconciliation holds the row right now
			res.Outcome = OutcomeBusy
			return res, nil
		}
		return nil, fmt.Errorf("apply webhook event %s: %w", eventID, err)
	}
	res.Outcome = applied.outcome
	if applied.order != nil {
		res.OrderID = applied.order.OrderID
		p.notify(ctx, *applied.order, true)
	}
	return res, nil
}

// applyEvent claims one unprocessed event row and applies it in a single
// transaction. ErrEventNotClaimable means another worker owns the row or it
// is already processed.
func (p *Processor) applyEvent(ctx context.Context, gateway, eventID string, mode applyMode) (applyResult, error) {
	var res applyResult
	err := p.repo.Transaction(ctx, func(tx Repository) error {
		res = applyResult{}
		row, err := tx.LockUnprocessedWebhookEvent(ctx, gateway, eventID)
		if err != nil {
			return err
		}

		ev, err := razorpay.ParseWebhookEvent(row.Payload)
		if err != nil {
			log.Warnf("[Webhook] stored payload for %s is unusable: %v", eventID, err)
			res.outcome = OutcomeInvalidStored
			res.processed = true
			return tx.MarkWebhookProcessed(ctx, gateway, eventID, err.Error(), p.now().UTC())
		}

		switch ev.Type {
		case models.WebhookEventPaymentCaptured:
			return p.applyCaptured(ctx, tx, row, ev.Payment, mode, &res)
		case models.WebhookEventPaymentFailed:
			log.Warnw("[Webhook] payment failed",
				"event_id", eventID,
				"payment_id", ev.Payment.ID,
				"order_id", ev.Payment.OrderID,
				"error", ev.Payment.FailureSummary())
			counter.AddWebhookOutcome(counter.WebhookFailedPayment)
			res.outcome = OutcomeFailedPayment
			res.processed = true
			return tx.MarkWebhookProcessed(ctx, gateway, eventID, "", p.now().UTC())
		default:
			counter.AddWebhookOutcome(counter.WebhookIgnored)
			res.outcome = OutcomeIgnored
			res.processed = true
			return tx.MarkWebhookProcessed(ctx, gateway, eventID, "", p.now().UTC())
		}
	})
	if errors.Is(err, errKeepUnprocessed) {
		return res, nil
	}
	if err != nil {
		return applyResult{}, err
	}
	return res, nil
}

func (p *Processor) applyCaptured(
	ctx context.Context,
	tx Repository,
	row *models.PaymentWebhookEvent,
	pay *razorpay.PaymentEntity,
	mode applyMode,
	res *applyResult,
) error {
	po, err := tx.FindPaymentOrder(ctx, row.Gateway, pay.OrderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		counter.AddWebhookOutcome(counter.WebhookUnknownOrder)
		res.outcome = OutcomeUnknownOrder
		if mode == modeReconcile && p.now().Sub(row.ReceivedAt) > p.cfg.UnknownOrderGrace {
			log.Warnf("[Reconcile] giving up on event %s: gateway order %s not found", row.EventID, pay.OrderID)
			res.processed = true
			return tx.MarkWebhookProcessed(ctx, row.Gateway, row.EventID, ErrGatewayOrderNotFound.Error(), p.now().UTC())
		}
		log.Warnf("[Webhook] event %s references unknown gateway order %s, leaving unprocessed", row.EventID, pay.OrderID)
		return errKeepUnprocessed
	}

	order, err := tx.GetOrder(ctx, po.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", po.OrderID, err)
	}
	// the recipient only matters after commit; a missing account must not block the capture
	recipient := ""
	user, err := tx.GetUser(ctx, order.UserID)
	switch {
	case err == nil:
		recipient = user.Email
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Warnw("[Webhook] order has no user record, capturing without recipient",
			"event_id", row.EventID,
			"order_id", order.ID,
			"user_id", order.UserID)
	default:
		return fmt.Errorf("load user %d: %w", order.UserID, err)
	}
	ref := &OrderRef{OrderID: order.ID, UserID: order.UserID, Recipient: recipient}

	if mode == modeReconcile && order.IsPaid() {
		res.outcome = OutcomeAlreadyPaid
		res.processed = true
		res.order = ref
		return tx.MarkWebhookProcessed(ctx, row.Gateway, row.EventID, "", p.now().UTC())
	}

	if pay.Amount != po.Amount || pay.Currency != po.Currency {
		log.Warnw("[Webhook] captured amount differs from gateway order",
			"event_id", row.EventID,
			"gateway_order_id", po.GatewayOrderID,
			"expected", po.Amount,
			"expected_currency", po.Currency,
			"captured", pay.Amount,
			"captured_currency", pay.Currency)
	}

	inserted, err := tx.CreatePaymentIfNotExists(ctx, &models.Payment{
		OrderID:          po.OrderID,
		PaymentOrderID:   po.ID,
		Gateway:          row.Gateway,
		GatewayPaymentID: pay.ID,
		Amount:           pay.Amount,
		Currency:         pay.Currency,
		Method:           pay.Method,
		Status:           models.PaymentStatusCaptured,
		Captured:         true,
	})
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", pay.ID, err)
	}
	if !inserted {
		log.Infof("[Webhook] payment %s already recorded", pay.ID)
	}
	if err := tx.MarkPaymentOrderPaid(ctx, po.ID); err != nil {
		return fmt.Errorf("mark payment order %d paid: %w", po.ID, err)
	}
	if _, err := tx.MarkOrderPaid(ctx, po.OrderID); err != nil {
		return fmt.Errorf("mark order %d paid: %w", po.OrderID, err)
	}
	if err := tx.MarkWebhookProcessed(ctx, row.Gateway, row.EventID, "", p.now().UTC()); err != nil {
		return err
	}

	counter.AddWebhookOutcome(counter.WebhookCaptured)
	log.Infow("[Webhook] payment captured",
		"event_id", row.EventID,
		"payment_id", pay.ID,
		"order_id", po.OrderID)
	res.outcome = OutcomeCaptured
	res.processed = true
	res.order = ref
	return nil
}

func (p *Processor) notify(ctx context.Context, ref OrderRef, awaitDelivery bool) {
	if p.notifier == nil {
		return
	}
	p.notifier.TriggerOrderConfirmation(ctx, ref, awaitDelivery)
}
