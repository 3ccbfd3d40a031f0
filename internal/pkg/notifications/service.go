package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
	"github.com/ManuelReschke/CourseFox/internal/pkg/mail"
	"github.com/ManuelReschke/CourseFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payments"
)

// ErrNotClaimable means another sender owns the notification right now or it
// was already sent.
var ErrNotClaimable = errors.New("notification not claimable")

var errOrderNotPaid = errors.New("order is not paid")

// ErrAttemptsExhausted means the notification reached the retry ceiling and
// is left for manual follow-up.
var ErrAttemptsExhausted = errors.New("notification attempts exhausted")

type Config struct {
	RetryBatchSize       int
	MaxAttempts          int
	ReconcileMaxAttempts int
	ClaimLease           time.Duration
	// BackgroundTimeout bounds fire-and-forget sends.
	BackgroundTimeout time.Duration
}

func ConfigFromEnv() Config {
	maxAttempts := env.GetEnvInt("NOTIFICATION_MAX_ATTEMPTS", 5)
	return Config{
		RetryBatchSize:       env.GetEnvInt("NOTIFICATION_RETRY_BATCH_SIZE", 10),
		MaxAttempts:          maxAttempts,
		ReconcileMaxAttempts: env.GetEnvInt("RECONCILE_NOTIFICATION_MAX_ATTEMPTS", maxAttempts),
		ClaimLease:           env.GetEnvSeconds("NOTIFICATION_CLAIM_LEASE_SECONDS", 2*time.Minute),
		BackgroundTimeout:    30 * time.Second,
	}
}

// SendResult is the outcome of one delivery attempt.
type SendResult struct {
	OrderID        uint   `json:"orderId"`
	NotificationID uint   `json:"-"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// RetrySummary is returned by ProcessRetryNotifications.
type RetrySummary struct {
	Processed  int          `json:"processed"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []SendResult `json:"results"`
}

// Service is the notification ledger and retry engine.
type Service struct {
	repo   Repository
	sender mail.Sender
	from   string
	cfg    Config
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewService creates the service. A nil sender resolves to mail.Default()
// on each send.
func NewService(repo Repository, sender mail.Sender, cfg Config) *Service {
	if cfg.RetryBatchSize <= 0 {
		cfg.RetryBatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ReconcileMaxAttempts <= 0 {
		cfg.ReconcileMaxAttempts = cfg.MaxAttempts
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 2 * time.Minute
	}
	if cfg.BackgroundTimeout <= 0 {
		cfg.BackgroundTimeout = 30 * time.Second
	}
	return &Service{
		repo:   repo,
		sender: sender,
		from:   mail.DefaultFrom(),
		cfg:    cfg,
		now:    time.Now,
	}
}

func NewServiceFromDB(db *gorm.DB, sender mail.Sender, cfg Config) *Service {
	return NewService(NewRepository(db), sender, cfg)
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) mailer() mail.Sender {
	if s.sender != nil {
		return s.sender
	}
	return mail.Default()
}

// TriggerOrderConfirmation sends the confirmation for a freshly paid order.
// With awaitDelivery the send completes before returning; otherwise it runs
// in the background on a context detached from ctx's cancellation. Errors
// are logged and left to the retry engine.
func (s *Service) TriggerOrderConfirmation(ctx context.Context, ref payments.OrderRef, awaitDelivery bool) {
	run := func(ctx context.Context) {
		res, err := s.SendOrderConfirmationEmail(ctx, ref.OrderID)
		switch {
		case errors.Is(err, ErrNotClaimable):
			log.Infof("[Notify] order %d confirmation already sent or in flight", ref.OrderID)
		case errors.Is(err, ErrAttemptsExhausted):
			log.Warnf("[Notify] order %d confirmation reached the retry ceiling, not sending", ref.OrderID)
		case err != nil:
			log.Warnw("[Notify] confirmation not delivered",
				"order_id", ref.OrderID,
				"recipient", ref.Recipient,
				"error", err)
		case res != nil && !res.Success:
			log.Warnw("[Notify] confirmation failed, retry engine will pick it up",
				"order_id", ref.OrderID,
				"notification_id", res.NotificationID,
				"error", res.Error)
		}
	}

	if awaitDelivery {
		run(ctx)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.BackgroundTimeout)
		defer cancel()
		run(bg)
	}()
}

// attemptCeiling is the highest ceiling any retry run uses; rows at or past
// it are never sent again automatically.
func (s *Service) attemptCeiling() int {
	return max(s.cfg.MaxAttempts, s.cfg.ReconcileMaxAttempts)
}

// Wait blocks until background sends finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// SendOrderConfirmationEmail is the single send path: it loads the order
// fresh, upserts the ledger row, claims it and delivers.
func (s *Service) SendOrderConfirmationEmail(ctx context.Context, orderID uint) (*SendResult, error) {
	d, err := s.repo.LoadOrderDetails(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if !d.Order.IsPaid() {
		return nil, errOrderNotPaid
	}
	content := BuildOrderConfirmation(d)

	row, err := s.repo.UpsertNotification(ctx, &models.OrderNotification{
		OrderID:   orderID,
		UserID:    d.Order.UserID,
		Type:      models.NotificationTypeOrderConfirmation,
		Channel:   models.NotificationChannelEmail,
		Recipient: strings.TrimSpace(d.User.Email),
		Subject:   content.Subject,
		Status:    models.NotificationStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert notification for order %d: %w", orderID, err)
	}
	if row.Status == models.NotificationStatusSent {
		return nil, ErrNotClaimable
	}
	if row.AttemptCount >= s.attemptCeiling() {
		return nil, ErrAttemptsExhausted
	}

	claimed, err := s.repo.ClaimNotification(ctx, row.ID, s.now().UTC(), s.cfg.ClaimLease)
	if err != nil {
		return nil, fmt.Errorf("claim notification %d: %w", row.ID, err)
	}
	if !claimed {
		return nil, ErrNotClaimable
	}

	res := s.deliver(ctx, row.ID, d, content)
	return &res, nil
}

// ProcessRetryNotifications claims a batch of PENDING/FAILED rows below
// maxAttempts and re-runs the send path for each, one at a time.
func (s *Service) ProcessRetryNotifications(ctx context.Context, maxAttempts int) (RetrySummary, error) {
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.MaxAttempts
	}
	summary := RetrySummary{Results: []SendResult{}}

	rows, err := s.repo.ClaimRetryBatch(ctx, maxAttempts, s.cfg.RetryBatchSize, s.now().UTC(), s.cfg.ClaimLease)
	if err != nil {
		return summary, fmt.Errorf("claim retry batch: %w", err)
	}

	for i := range rows {
		if err := ctx.Err(); err != nil {
			log.Warnf("[Notify] retry run stopped early: %v", err)
			break
		}
		res := s.retry(ctx, &rows[i])
		summary.Processed++
		if res.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
	}

	if summary.Processed > 0 {
		log.Infof("[Notify] retried=%d successful=%d failed=%d",
			summary.Processed, summary.Successful, summary.Failed)
	}
	return summary, nil
}

func (s *Service) retry(ctx context.Context, row *models.OrderNotification) SendResult {
	d, err := s.repo.LoadOrderDetails(ctx, row.OrderID)
	if err == nil && !d.Order.IsPaid() {
		err = errOrderNotPaid
	}
	if err != nil {
		return s.recordFailure(ctx, row.ID, row.OrderID, fmt.Errorf("load order %d: %w", row.OrderID, err))
	}

	content := BuildOrderConfirmation(d)
	if _, err := s.repo.UpsertNotification(ctx, &models.OrderNotification{
		OrderID:   row.OrderID,
		UserID:    d.Order.UserID,
		Type:      row.Type,
		Channel:   row.Channel,
		Recipient: strings.TrimSpace(d.User.Email),
		Subject:   content.Subject,
		Status:    models.NotificationStatusPending,
	}); err != nil {
		log.Warnf("[Notify] refresh notification %d failed: %v", row.ID, err)
	}
	return s.deliver(ctx, row.ID, d, content)
}

func (s *Service) deliver(ctx context.Context, notificationID uint, d *OrderDetails, content Content) SendResult {
	msg := mail.Message{
		From:    s.from,
		To:      strings.TrimSpace(d.User.Email),
		Subject: content.Subject,
		HTML:    content.HTML,
		Text:    content.Text,
	}
	if msg.To == "" {
		return s.recordFailure(ctx, notificationID, d.Order.ID, mail.ErrNoRecipient)
	}
	messageID, err := s.mailer().Send(ctx, msg)
	if err != nil {
		return s.recordFailure(ctx, notificationID, d.Order.ID, err)
	}

	if err := s.repo.RecordAttempt(ctx, notificationID, true, "", s.now().UTC()); err != nil {
		log.Errorw("[Notify] email sent but ledger update failed",
			"notification_id", notificationID,
			"order_id", d.Order.ID,
			"error", err)
	}
	counter.AddNotificationOutcome(counter.NotificationSent)
	log.Infow("[Notify] confirmation sent",
		"notification_id", notificationID,
		"order_id", d.Order.ID,
		"message_id", messageID)
	return SendResult{OrderID: d.Order.ID, NotificationID: notificationID, Success: true}
}

func (s *Service) recordFailure(ctx context.Context, notificationID, orderID uint, cause error) SendResult {
	msg := cause.Error()
	if err := s.repo.RecordAttempt(ctx, notificationID, false, msg, s.now().UTC()); err != nil {
		log.Errorw("[Notify] could not record failed attempt",
			"notification_id", notificationID,
			"order_id", orderID,
			"error", err)
	}
	counter.AddNotificationOutcome(counter.NotificationFailed)
	log.Warnw("[Notify] confirmation attempt failed",
		"notification_id", notificationID,
		"order_id", orderID,
		"error", msg)
	return SendResult{OrderID: orderID, NotificationID: notificationID, Success: false, Error: msg}
}

// OrderNotificationStatus returns the confirmation status for an order, or
// "" when no notification exists yet.
func (s *Service) OrderNotificationStatus(ctx context.Context, orderID uint) (string, error) {
	n, err := s.repo.GetNotification(ctx, orderID, models.NotificationTypeOrderConfirmation, models.NotificationChannelEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return n.Status, nil
}
