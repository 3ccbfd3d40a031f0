package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/ManuelReschke/CourseFox/app/models"
)

// EventStore is the durable ledger of inbound gateway deliveries.
type EventStore struct {
	repo Repository
	now  func() time.Time
}

func NewEventStore(repo Repository) *EventStore {
	return &EventStore{repo: repo, now: time.Now}
}

// RecordEvent stores a delivery unless (gateway, eventID) was seen before.
// It reports whether a new row was inserted.
func (s *EventStore) RecordEvent(ctx context.Context, gateway, eventID, eventType string, payload []byte) (bool, error) {
	g := strings.ToLower(strings.TrimSpace(gateway))
	id := strings.TrimSpace(eventID)
	if g == "" || id == "" {
		return false, errors.New("gateway and event_id are required")
	}
	row := &models.PaymentWebhookEvent{
		Gateway:    g,
		EventID:    id,
		EventType:  strings.TrimSpace(eventType),
		Payload:    datatypes.JSON(append([]byte(nil), payload...)),
		ReceivedAt: s.now().UTC(),
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, row)
}

// MarkProcessed flags an event as handled. Calling it twice is a no-op.
func (s *EventStore) MarkProcessed(ctx context.Context, gateway, eventID string) error {
	return s.repo.MarkWebhookProcessed(ctx, strings.ToLower(strings.TrimSpace(gateway)), strings.TrimSpace(eventID), "", s.now().UTC())
}
