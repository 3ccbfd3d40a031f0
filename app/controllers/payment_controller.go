package controllers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
	"github.com/ManuelReschke/CourseFox/internal/pkg/notifications"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payments"
	"github.com/ManuelReschke/CourseFox/internal/pkg/razorpay"
	"github.com/ManuelReschke/CourseFox/internal/pkg/scheduler"
)

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, req payments.WebhookRequest) (*payments.WebhookResult, error)
}

type CheckoutService interface {
	CreateOrder(ctx context.Context, userID uint, itemID string) (*payments.CheckoutResult, error)
	GetOrderForUser(ctx context.Context, orderID, userID uint) (*models.Order, error)
}

type NotificationStatusReader interface {
	OrderNotificationStatus(ctx context.Context, orderID uint) (string, error)
}

type PaymentControllerConfig struct {
	ReprocessBatch       int
	CronMaxDuration      time.Duration
	RetryMaxAttempts     int
	ReconcileMaxAttempts int
	RazorpayKeyID        string
}

func PaymentControllerConfigFromEnv() PaymentControllerConfig {
	retryMax := env.GetEnvInt("NOTIFICATION_MAX_ATTEMPTS", 5)
	return PaymentControllerConfig{
		ReprocessBatch:       env.GetEnvInt("WEBHOOK_REPROCESS_BATCH_LIMIT", 10),
		CronMaxDuration:      env.GetEnvSeconds("CRON_MAX_DURATION_SECONDS", 60*time.Second),
		RetryMaxAttempts:     retryMax,
		ReconcileMaxAttempts: env.GetEnvInt("RECONCILE_NOTIFICATION_MAX_ATTEMPTS", retryMax),
		RazorpayKeyID:        env.GetEnv("RAZORPAY_KEY_ID", ""),
	}
}

// PaymentController serves the webhook, cron and order endpoints.
type PaymentController struct {
	Webhooks      WebhookProcessor
	Reconciler    scheduler.EventReconciler
	Retrier       scheduler.NotificationRetrier
	Checkout      CheckoutService
	Notifications NotificationStatusReader
	Config        PaymentControllerConfig
}

// Services is the wired service graph shared by the HTTP layer and the
// in-process scheduler.
type Services struct {
	Processor     *payments.Processor
	Checkout      *payments.Checkout
	Notifications *notifications.Service
}

// NewServicesFromDB wires the GORM repositories, the default mail sender and
// the Razorpay client.
func NewServicesFromDB(db *gorm.DB) *Services {
	notifier := notifications.NewServiceFromDB(db, nil, notifications.ConfigFromEnv())
	return &Services{
		Processor:     payments.NewProcessorFromDB(db, notifier, payments.ConfigFromEnv()),
		Checkout:      payments.NewCheckout(payments.NewRepository(db), razorpay.NewClientFromEnv()),
		Notifications: notifier,
	}
}

func NewPaymentController(s *Services, cfg PaymentControllerConfig) *PaymentController {
	return &PaymentController{
		Webhooks:      s.Processor,
		Reconciler:    s.Processor,
		Retrier:       s.Notifications,
		Checkout:      s.Checkout,
		Notifications: s.Notifications,
		Config:        cfg,
	}
}
