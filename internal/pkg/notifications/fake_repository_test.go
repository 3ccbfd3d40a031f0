package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
)

type fakeRepo struct {
	mu      sync.Mutex
	nextID  uint
	rows    []*models.OrderNotification
	details map[uint]*OrderDetails
	// locked rows are skipped by ClaimRetryBatch, like SKIP LOCKED
	locked map[uint]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		details: make(map[uint]*OrderDetails),
		locked:  make(map[uint]bool),
	}
}

func (r *fakeRepo) addPaidOrder(orderID uint, itemID, name, email string, amount int64, paidAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details[orderID] = &OrderDetails{
		Order: models.Order{
			ID: orderID, UserID: orderID + 100, ItemID: itemID,
			TotalAmount: amount, PayableAmount: amount, Currency: "INR",
			Status: models.OrderStatusPaid, UpdatedAt: paidAt,
		},
		User: models.User{ID: orderID + 100, Name: name, Email: email},
		Payment: &models.Payment{
			OrderID: orderID, Gateway: models.GatewayRazorpay, GatewayPaymentID: "pay_" + itemID,
			Amount: amount, Currency: "INR", Status: models.PaymentStatusCaptured, Captured: true, CreatedAt: paidAt,
		},
	}
}

// seed inserts a ledger row directly.
func (r *fakeRepo) seed(n models.OrderNotification) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().Add(time.Duration(n.ID) * time.Millisecond)
	}
	r.rows = append(r.rows, &n)
	return n.ID
}

func (r *fakeRepo) row(id uint) models.OrderNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			return *n
		}
	}
	return models.OrderNotification{}
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeRepo) find(orderID uint, typ, channel string) *models.OrderNotification {
	for _, n := range r.rows {
		if n.OrderID == orderID && n.Type == typ && n.Channel == channel {
			return n
		}
	}
	return nil
}

func (r *fakeRepo) UpsertNotification(ctx context.Context, n *models.OrderNotification) (*models.OrderNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.find(n.OrderID, n.Type, n.Channel); existing != nil {
		existing.Recipient = n.Recipient
		existing.Subject = n.Subject
		existing.UpdatedAt = time.Now()
		cp := *existing
		return &cp, nil
	}
	r.nextID++
	cp := *n
	cp.ID = r.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.rows = append(r.rows, &cp)
	out := cp
	return &out, nil
}

func (r *fakeRepo) GetNotification(ctx context.Context, orderID uint, typ, channel string) (*models.OrderNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.find(orderID, typ, channel); n != nil {
		cp := *n
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func claimable(n *models.OrderNotification, now time.Time, lease time.Duration) bool {
	return n.LastAttemptAt == nil || n.LastAttemptAt.Before(now.Add(-lease))
}

func (r *fakeRepo) ClaimNotification(ctx context.Context, id uint, now time.Time, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id && n.Status != models.NotificationStatusSent && claimable(n, now, lease) {
			at := now
			n.LastAttemptAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ClaimRetryBatch(ctx context.Context, maxAttempts, limit int, now time.Time, lease time.Duration) ([]models.OrderNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var picked []*models.OrderNotification
	for _, n := range r.rows {
		if r.locked[n.ID] {
			continue
		}
		if n.Status != models.NotificationStatusPending && n.Status != models.NotificationStatusFailed {
			continue
		}
		if n.AttemptCount >= maxAttempts || !claimable(n, now, lease) {
			continue
		}
		picked = append(picked, n)
	}
	sort.SliceStable(picked, func(i, j int) bool {
		pi := picked[i].Status == models.NotificationStatusPending
		pj := picked[j].Status == models.NotificationStatusPending
		if pi != pj {
			return pi
		}
		return picked[i].CreatedAt.Before(picked[j].CreatedAt)
	})
	if len(picked) > limit {
		picked = picked[:limit]
	}
	out := make([]models.OrderNotification, 0, len(picked))
	for _, n := range picked {
		at := now
		n.LastAttemptAt = &at
		out = append(out, *n)
	}
	return out, nil
}

func (r *fakeRepo) RecordAttempt(ctx context.Context, id uint, sent bool, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID != id {
			continue
		}
		n.AttemptCount++
		ts := at
		n.LastAttemptAt = &ts
		if sent {
			n.Status = models.NotificationStatusSent
			n.SentAt = &ts
			n.ErrorMessage = ""
		} else {
			n.Status = models.NotificationStatusFailed
			n.ErrorMessage = errMsg
		}
	}
	return nil
}

func (r *fakeRepo) LoadOrderDetails(ctx context.Context, orderID uint) (*OrderDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.details[orderID]
	if d == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}
