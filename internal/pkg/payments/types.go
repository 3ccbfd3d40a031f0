package payments

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

var (
	// ErrEventNotClaimable means the event row is locked by another
	// transaction or was already processed.
	ErrEventNotClaimable = errors.New("webhook event not claimable")
	// ErrGatewayOrderNotFound means a webhook named a gateway order we never created.
	ErrGatewayOrderNotFound = errors.New("gateway order not found")
	ErrUnauthorized         = errors.New("webhook signature rejected")
	ErrInvalidWebhook       = errors.New("invalid webhook request")
	ErrUnknownItem          = errors.New("unknown catalog item")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
)

// Outcome is what happened to one webhook delivery or reconciliation candidate.
type Outcome string

const (
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeFailedPayment Outcome = "failed_payment"
	OutcomeCaptured      Outcome = "captured"
	OutcomeAlreadyPaid   Outcome = "already_paid"
	OutcomeUnknownOrder  Outcome = "unknown_order"
	OutcomeInvalidStored Outcome = "invalid_payload"
	OutcomeBusy          Outcome = "busy"
)

// OrderRef is everything the notification trigger needs after commit.
type OrderRef struct {
	OrderID   uint
	UserID    uint
	Recipient string
}

// Notifier is implemented by the notification ledger. awaitDelivery=false
// returns before the email is sent.
type Notifier interface {
	TriggerOrderConfirmation(ctx context.Context, ref OrderRef, awaitDelivery bool)
}

// Config holds processor policy.
type Config struct {
	Gateway       string
	WebhookSecret string
	// UnknownOrderGrace is how long an event naming an unknown gateway order
	// stays eligible for reconciliation before it is given up on.
	UnknownOrderGrace time.Duration
	ReprocessBatch    int
}

func ConfigFromEnv() Config {
	return Config{
		Gateway:           "razorpay",
		WebhookSecret:     env.GetEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		UnknownOrderGrace: env.GetEnvSeconds("UNKNOWN_ORDER_GRACE_SECONDS", 10*time.Minute),
		ReprocessBatch:    env.GetEnvInt("WEBHOOK_REPROCESS_BATCH_LIMIT", 10),
	}
}

// WebhookRequest is the raw inbound delivery.
type WebhookRequest struct {
	Body          []byte
	Signature     string
	EventIDHeader string
}

// WebhookResult describes a handled delivery. Every result maps to HTTP 200.
type WebhookResult struct {
	EventID   string
	EventType string
	Outcome   Outcome
	OrderID   uint
}

// ReprocessSummary is returned by the reconciliation sweep.
type ReprocessSummary struct {
	Candidates int
	Processed  int
	Skipped    int
	Errors     int
}
