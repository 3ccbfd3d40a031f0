package razorpay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/CourseFox/app/models"
)

var (
	ErrInvalidPayload = errors.New("invalid webhook payload")
	ErrMissingEventID = errors.New("webhook event id could not be derived")
)

var validate = validator.New()

// PaymentEntity is payload.payment.entity of a payment.* webhook.
type PaymentEntity struct {
	ID               string `json:"id" validate:"required"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount" validate:"gte=0"`
	Currency         string `json:"currency" validate:"omitempty,len=3"`
	Method           string `json:"method"`
	Status           string `json:"status"`
	CreatedAt        int64  `json:"created_at"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	ErrorSource      string `json:"error_source"`
	ErrorStep        string `json:"error_step"`
	ErrorReason      string `json:"error_reason"`
}

// capturedPayment narrows a captured payment: it must reference a gateway order.
type capturedPayment struct {
	ID       string `validate:"required"`
	OrderID  string `validate:"required"`
	Amount   int64  `validate:"gt=0"`
	Currency string `validate:"required,len=3"`
}

// WebhookEvent is the narrowed form of an inbound delivery. Payment is set
// only for payment.captured and payment.failed.
type WebhookEvent struct {
	ID        string
	Type      string
	CreatedAt int64
	Payment   *PaymentEntity
}

type rawEnvelope struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity *PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhookEvent decodes and narrows a webhook body. Any shape mismatch for
// a payment event is reported as ErrInvalidPayload.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	eventType := strings.TrimSpace(env.Event)
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	}

	ev := &WebhookEvent{
		ID:        strings.TrimSpace(env.ID),
		Type:      eventType,
		CreatedAt: env.CreatedAt,
	}
	if !models.IsPaymentEvent(eventType) {
		return ev, nil
	}

	if env.Payload.Payment == nil || env.Payload.Payment.Entity == nil {
		return nil, fmt.Errorf("%w: %s without payment entity", ErrInvalidPayload, eventType)
	}
	entity := env.Payload.Payment.Entity
	entity.ID = strings.TrimSpace(entity.ID)
	entity.OrderID = strings.TrimSpace(entity.OrderID)
	entity.Currency = strings.ToUpper(strings.TrimSpace(entity.Currency))
	if err := validate.Struct(entity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if eventType == models.WebhookEventPaymentCaptured {
		if err := validate.Struct(capturedPayment{
			ID:       entity.ID,
			OrderID:  entity.OrderID,
			Amount:   entity.Amount,
			Currency: entity.Currency,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	ev.Payment = entity
	return ev, nil
}

// ResolveEventID picks the gateway's event id (header first, then body) and
// falls back to "<event type>:<payment id>".
func ResolveEventID(headerEventID string, ev *WebhookEvent) (string, error) {
	if id := strings.TrimSpace(headerEventID); id != "" {
		return id, nil
	}
	if ev == nil {
		return "", ErrMissingEventID
	}
	if ev.ID != "" {
		return ev.ID, nil
	}
	if ev.Payment != nil && ev.Payment.ID != "" {
		return ev.Type + ":" + ev.Payment.ID, nil
	}
	return "", ErrMissingEventID
}

// FailureSummary renders the error_* fields of a failed payment for logs.
func (p *PaymentEntity) FailureSummary() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, 5)
	for _, kv := range [][2]string{
		{"code", p.ErrorCode},
		{"description", p.ErrorDescription},
		{"source", p.ErrorSource},
		{"step", p.ErrorStep},
		{"reason", p.ErrorReason},
	} {
		if strings.TrimSpace(kv[1]) != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, " ")
}
