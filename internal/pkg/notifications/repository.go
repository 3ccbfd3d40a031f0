package notifications

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CourseFox/app/models"
)

// OrderDetails is the data a confirmation email is built from.
type OrderDetails struct {
	Order   models.Order
	User    models.User
	Payment *models.Payment
}

// Repository owns all OrderNotification writes.
type Repository interface {
	// UpsertNotification inserts the ledger row or refreshes recipient and
	// subject on an existing one. Status and attempt_count are never reset.
	UpsertNotification(ctx context.Context, n *models.OrderNotification) (*models.OrderNotification, error)
	GetNotification(ctx context.Context, orderID uint, notificationType, channel string) (*models.OrderNotification, error)
	// ClaimNotification stamps last_attempt_at if the row is unsent and not
	// claimed within lease. It reports whether the caller now owns the send.
	ClaimNotification(ctx context.Context, id uint, now time.Time, lease time.Duration) (bool, error)
	// ClaimRetryBatch selects and stamps up to limit retryable rows in one
	// short FOR UPDATE SKIP LOCKED transaction.
	ClaimRetryBatch(ctx context.Context, maxAttempts, limit int, now time.Time, lease time.Duration) ([]models.OrderNotification, error)
	RecordAttempt(ctx context.Context, id uint, sent bool, errMsg string, at time.Time) error
	LoadOrderDetails(ctx context.Context, orderID uint) (*OrderDetails, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpsertNotification(ctx context.Context, n *models.OrderNotification) (*models.OrderNotification, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "order_id"},
			{Name: "type"},
			{Name: "channel"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"recipient", "subject", "updated_at"}),
	}).Create(n).Error
	if err != nil {
		return nil, err
	}
	return r.GetNotification(ctx, n.OrderID, n.Type, n.Channel)
}

func (r *gormRepository) GetNotification(ctx context.Context, orderID uint, notificationType, channel string) (*models.OrderNotification, error) {
	var n models.OrderNotification
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND channel = ?", orderID, notificationType, channel).
		Take(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *gormRepository) ClaimNotification(ctx context.Context, id uint, now time.Time, lease time.Duration) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.OrderNotification{}).
		Where("id = ? AND status <> ?", id, models.NotificationStatusSent).
		Where("(last_attempt_at IS NULL OR last_attempt_at < ?)", now.Add(-lease)).
		Update("last_attempt_at", now)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ClaimRetryBatch(ctx context.Context, maxAttempts, limit int, now time.Time, lease time.Duration) ([]models.OrderNotification, error) {
	var rows []models.OrderNotification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status IN ?", []string{models.NotificationStatusPending, models.NotificationStatusFailed}).
			Where("attempt_count < ?", maxAttempts).
			Where("(last_attempt_at IS NULL OR last_attempt_at < ?)", now.Add(-lease)).
			Order("CASE WHEN status = 'PENDING' THEN 0 ELSE 1 END, created_at ASC").
			Limit(limit).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}
		ids := make([]uint, 0, len(rows))
		for i := range rows {
			ids = append(ids, rows[i].ID)
			rows[i].LastAttemptAt = &now
		}
		return tx.Model(&models.OrderNotification{}).
			Where("id IN ?", ids).
			Update("last_attempt_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) RecordAttempt(ctx context.Context, id uint, sent bool, errMsg string, at time.Time) error {
	updates := map[string]interface{}{
		"attempt_count":   gorm.Expr("attempt_count + 1"),
		"last_attempt_at": at,
	}
	if sent {
		updates["status"] = models.NotificationStatusSent
		updates["sent_at"] = at
		updates["error_message"] = ""
	} else {
		updates["status"] = models.NotificationStatusFailed
		updates["error_message"] = errMsg
	}
	return r.db.WithContext(ctx).Model(&models.OrderNotification{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) LoadOrderDetails(ctx context.Context, orderID uint) (*OrderDetails, error) {
	db := r.db.WithContext(ctx)
	var d OrderDetails
	if err := db.Take(&d.Order, orderID).Error; err != nil {
		return nil, err
	}
	// accounts live in the auth service; a missing row leaves the recipient empty
	if err := db.Take(&d.User, d.Order.UserID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		d.User = models.User{ID: d.Order.UserID}
	}
	var p models.Payment
	err := db.Where("order_id = ? AND captured = ?", orderID, true).
		Order("created_at ASC").
		Take(&p).Error
	switch {
	case err == nil:
		d.Payment = &p
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return &d, nil
}
