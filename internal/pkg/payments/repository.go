package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CourseFox/app/models"
)

// Repository provides DB operations used by the payment services. Methods on
// the value passed to Transaction's callback run inside that transaction.
type Repository interface {
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error)
	ListUnprocessedWebhookEvents(ctx context.Context, eventTypes []string, limit int) ([]models.PaymentWebhookEvent, error)
	LockUnprocessedWebhookEvent(ctx context.Context, gateway, eventID string) (*models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, gateway, eventID, processingError string, at time.Time) error

	FindPaymentOrder(ctx context.Context, gateway, gatewayOrderID string) (*models.PaymentOrder, error)
	CreatePaymentIfNotExists(ctx context.Context, payment *models.Payment) (bool, error)
	MarkPaymentOrderPaid(ctx context.Context, paymentOrderID uint) error
	MarkOrderPaid(ctx context.Context, orderID uint) (bool, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	CreatePaymentOrder(ctx context.Context, po *models.PaymentOrder) error
	GetOrder(ctx context.Context, orderID uint) (*models.Order, error)
	GetOrderForUser(ctx context.Context, orderID, userID uint) (*models.Order, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "gateway"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListUnprocessedWebhookEvents(ctx context.Context, eventTypes []string, limit int) ([]models.PaymentWebhookEvent, error) {
	var events []models.PaymentWebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND event_type IN ?", false, eventTypes).
		Order("received_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormRepository) LockUnprocessedWebhookEvent(ctx context.Context, gateway, eventID string) (*models.PaymentWebhookEvent, error) {
	var ev models.PaymentWebhookEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("gateway = ? AND event_id = ? AND processed = ?", gateway, eventID, false).
		Take(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotClaimable
		}
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, gateway, eventID, processingError string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PaymentWebhookEvent{}).
		Where("gateway = ? AND event_id = ? AND processed = ?", gateway, eventID, false).
		Updates(map[string]interface{}{
			"processed":        true,
			"processed_at":     &at,
			"processing_error": processingError,
		}).Error
}

func (r *gormRepository) FindPaymentOrder(ctx context.Context, gateway, gatewayOrderID string) (*models.PaymentOrder, error) {
	var po models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND gateway_order_id = ?", gateway, gatewayOrderID).
		Take(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *gormRepository) CreatePaymentIfNotExists(ctx context.Context, payment *models.Payment) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "gateway"},
			{Name: "gateway_payment_id"},
		},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) MarkPaymentOrderPaid(ctx context.Context, paymentOrderID uint) error {
	return r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ?", paymentOrderID).
		Update("status", models.PaymentOrderStatusPaid).Error
}

func (r *gormRepository) MarkOrderPaid(ctx context.Context, orderID uint) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status <> ?", orderID, models.OrderStatusPaid).
		Update("status", models.OrderStatusPaid)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gormRepository) CreatePaymentOrder(ctx context.Context, po *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *gormRepository) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Take(&o, orderID).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) GetOrderForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", orderID, userID).Take(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Take(&u, userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
