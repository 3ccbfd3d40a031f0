package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CourseFox/internal/pkg/cache"
)

const (
	webhookOutcomesKey      = "coursefox:counters:webhooks"
	notificationOutcomesKey = "coursefox:counters:notifications"
)

// Webhook outcomes
const (
	WebhookReceived      = "received"
	WebhookRejected      = "rejected"
	WebhookDuplicate     = "duplicate"
	WebhookIgnored       = "ignored"
	WebhookFailedPayment = "failed_payment"
	WebhookCaptured      = "captured"
	WebhookUnknownOrder  = "unknown_order"
	WebhookReprocessed   = "reprocessed"
)

// Notification outcomes
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

const writeTimeout = 500 * time.Millisecond

// AddWebhookOutcome increments a webhook outcome counter. Failures are logged only.
func AddWebhookOutcome(outcome string) {
	incr(webhookOutcomesKey, outcome)
}

// AddNotificationOutcome increments a notification attempt counter.
func AddNotificationOutcome(outcome string) {
	incr(notificationOutcomesKey, outcome)
}

func incr(key, field string) {
	rdb := cache.GetClient()
	if rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := rdb.HIncrBy(ctx, key, field, 1).Err(); err != nil {
		log.Debugf("[Counter] HIncrBy %s/%s failed: %v", key, field, err)
	}
}

// Snapshot returns the current webhook and notification counters.
func Snapshot(ctx context.Context) (map[string]int64, map[string]int64, error) {
	rdb := cache.GetClient()
	if rdb == nil {
		return map[string]int64{}, map[string]int64{}, nil
	}
	webhooks, err := readHash(ctx, rdb, webhookOutcomesKey)
	if err != nil {
		return nil, nil, err
	}
	notifications, err := readHash(ctx, rdb, notificationOutcomesKey)
	if err != nil {
		return nil, nil, err
	}
	return webhooks, notifications, nil
}

func readHash(ctx context.Context, rdb *redis.Client, key string) (map[string]int64, error) {
	data, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
