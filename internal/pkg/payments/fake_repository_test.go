package payments

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
)

// fakeStore is an in-memory Repository. Writes inside a transaction are
// undone on rollback, and event row locks behave like FOR UPDATE SKIP LOCKED.
type fakeStore struct {
	mu            sync.Mutex
	nextID        uint
	events        []*models.PaymentWebhookEvent
	paymentOrders []*models.PaymentOrder
	payments      []*models.Payment
	orders        map[uint]*models.Order
	users         map[uint]*models.User
	locks         map[uint]*fakeTx
	fail          map[string]error
	afterLock     func()
}

type fakeTx struct {
	undo []func()
}

type fakeRepo struct {
	s  *fakeStore
	tx *fakeTx
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders: make(map[uint]*models.Order),
		users:  make(map[uint]*models.User),
		locks:  make(map[uint]*fakeTx),
		fail:   make(map[string]error),
	}
}

func (s *fakeStore) repo() *fakeRepo { return &fakeRepo{s: s} }

func (s *fakeStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) setFail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

func (s *fakeStore) addUser(name, email string) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.users[id] = &models.User{ID: id, Name: name, Email: email}
	return id
}

// addOrder seeds a CREATED order with its gateway order.
func (s *fakeStore) addOrder(userID uint, itemID, gatewayOrderID string, amount int64) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid := s.id()
	s.orders[oid] = &models.Order{
		ID: oid, UserID: userID, ItemID: itemID,
		TotalAmount: amount, PayableAmount: amount, Currency: "INR",
		Status: models.OrderStatusCreated, CreatedAt: time.Now(),
	}
	if gatewayOrderID != "" {
		s.paymentOrders = append(s.paymentOrders, &models.PaymentOrder{
			ID: s.id(), OrderID: oid, UserID: userID, Gateway: models.GatewayRazorpay,
			GatewayOrderID: gatewayOrderID, Amount: amount, Currency: "INR",
			Status: models.PaymentOrderStatusCreated,
		})
	}
	return oid
}

func (s *fakeStore) addPaymentOrder(orderID uint, gatewayOrderID string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[orderID]
	s.paymentOrders = append(s.paymentOrders, &models.PaymentOrder{
		ID: s.id(), OrderID: orderID, UserID: o.UserID, Gateway: models.GatewayRazorpay,
		GatewayOrderID: gatewayOrderID, Amount: amount, Currency: "INR",
		Status: models.PaymentOrderStatusCreated,
	})
}

func (s *fakeStore) order(id uint) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *fakeStore) event(gateway, eventID string) *models.PaymentWebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev := s.findEvent(gateway, eventID); ev != nil {
		cp := *ev
		return &cp
	}
	return nil
}

func (s *fakeStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *fakeStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *fakeStore) paymentOrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paymentOrders)
}

func (s *fakeStore) findEvent(gateway, eventID string) *models.PaymentWebhookEvent {
	for _, ev := range s.events {
		if ev.Gateway == gateway && ev.EventID == eventID {
			return ev
		}
	}
	return nil
}

func (r *fakeRepo) onRollback(fn func()) {
	if r.tx != nil {
		r.tx.undo = append(r.tx.undo, fn)
	}
}

func (r *fakeRepo) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx := &fakeTx{}
	err := fn(&fakeRepo{s: r.s, tx: tx})

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}
	for id, owner := range r.s.locks {
		if owner == tx {
			delete(r.s.locks, id)
		}
	}
	return err
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["CreateWebhookEventIfNotExists"]; err != nil {
		return false, err
	}
	if r.s.findEvent(event.Gateway, event.EventID) != nil {
		return false, nil
	}
	event.ID = r.s.id()
	cp := *event
	r.s.events = append(r.s.events, &cp)
	r.onRollback(func() { r.s.events = removeEvent(r.s.events, cp.ID) })
	return true, nil
}

func removeEvent(events []*models.PaymentWebhookEvent, id uint) []*models.PaymentWebhookEvent {
	out := events[:0]
	for _, ev := range events {
		if ev.ID != id {
			out = append(out, ev)
		}
	}
	return out
}

func (r *fakeRepo) ListUnprocessedWebhookEvents(ctx context.Context, eventTypes []string, limit int) ([]models.PaymentWebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["ListUnprocessedWebhookEvents"]; err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		wanted[t] = true
	}
	var out []models.PaymentWebhookEvent
	for _, ev := range r.s.events {
		if !ev.Processed && wanted[ev.EventType] {
			out = append(out, *ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) LockUnprocessedWebhookEvent(ctx context.Context, gateway, eventID string) (*models.PaymentWebhookEvent, error) {
	if r.tx == nil {
		return nil, errors.New("row lock outside transaction")
	}
	r.s.mu.Lock()
	ev := r.s.findEvent(gateway, eventID)
	if ev == nil || ev.Processed {
		r.s.mu.Unlock()
		return nil, ErrEventNotClaimable
	}
	if owner := r.s.locks[ev.ID]; owner != nil && owner != r.tx {
		r.s.mu.Unlock()
		return nil, ErrEventNotClaimable
	}
	r.s.locks[ev.ID] = r.tx
	cp := *ev
	hook := r.s.afterLock
	r.s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (r *fakeRepo) MarkWebhookProcessed(ctx context.Context, gateway, eventID, processingError string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["MarkWebhookProcessed"]; err != nil {
		return err
	}
	ev := r.s.findEvent(gateway, eventID)
	if ev == nil || ev.Processed {
		return nil
	}
	old := *ev
	ev.Processed = true
	ev.ProcessedAt = &at
	ev.ProcessingError = processingError
	r.onRollback(func() { *ev = old })
	return nil
}

func (r *fakeRepo) FindPaymentOrder(ctx context.Context, gateway, gatewayOrderID string) (*models.PaymentOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, po := range r.s.paymentOrders {
		if po.Gateway == gateway && po.GatewayOrderID == gatewayOrderID {
			cp := *po
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreatePaymentIfNotExists(ctx context.Context, payment *models.Payment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["CreatePaymentIfNotExists"]; err != nil {
		return false, err
	}
	for _, p := range r.s.payments {
		if p.Gateway == payment.Gateway && p.GatewayPaymentID == payment.GatewayPaymentID {
			return false, nil
		}
	}
	payment.ID = r.s.id()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	cp := *payment
	r.s.payments = append(r.s.payments, &cp)
	r.onRollback(func() {
		out := r.s.payments[:0]
		for _, p := range r.s.payments {
			if p.ID != cp.ID {
				out = append(out, p)
			}
		}
		r.s.payments = out
	})
	return true, nil
}

func (r *fakeRepo) MarkPaymentOrderPaid(ctx context.Context, paymentOrderID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, po := range r.s.paymentOrders {
		if po.ID == paymentOrderID {
			old := po.Status
			po.Status = models.PaymentOrderStatusPaid
			r.onRollback(func() { po.Status = old })
		}
	}
	return nil
}

func (r *fakeRepo) MarkOrderPaid(ctx context.Context, orderID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["MarkOrderPaid"]; err != nil {
		return false, err
	}
	o := r.s.orders[orderID]
	if o == nil || o.Status == models.OrderStatusPaid {
		return false, nil
	}
	old := o.Status
	o.Status = models.OrderStatusPaid
	r.onRollback(func() { o.Status = old })
	return true, nil
}

func (r *fakeRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail["CreateOrder"]; err != nil {
		return err
	}
	order.ID = r.s.id()
	cp := *order
	r.s.orders[order.ID] = &cp
	r.onRollback(func() { delete(r.s.orders, cp.ID) })
	return nil
}

func (r *fakeRepo) CreatePaymentOrder(ctx context.Context, po *models.PaymentOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.paymentOrders {
		if existing.OrderID == po.OrderID ||
			(existing.Gateway == po.Gateway && existing.GatewayOrderID == po.GatewayOrderID) {
			return gorm.ErrDuplicatedKey
		}
	}
	po.ID = r.s.id()
	cp := *po
	r.s.paymentOrders = append(r.s.paymentOrders, &cp)
	return nil
}

func (r *fakeRepo) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.orders[orderID]
	if o == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) GetOrderForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	o, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (r *fakeRepo) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.s.users[userID]
	if u == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

type notifyCall struct {
	ref   OrderRef
	await bool
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *fakeNotifier) TriggerOrderConfirmation(ctx context.Context, ref OrderRef, awaitDelivery bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{ref: ref, await: awaitDelivery})
}

func (n *fakeNotifier) snapshot() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}
