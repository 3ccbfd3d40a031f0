package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/catalog"
	"github.com/ManuelReschke/CourseFox/internal/pkg/razorpay"
)

// GatewayOrders creates orders on the payment gateway.
type GatewayOrders interface {
	CreateOrder(ctx context.Context, in razorpay.CreateOrderRequest) (*razorpay.Order, error)
}

// CheckoutResult is what the client needs to open the gateway checkout.
type CheckoutResult struct {
	Order          *models.Order
	PaymentOrder   *models.PaymentOrder
	Item           catalog.Item
	GatewayOrderID string
}

// Checkout is the write path of the order ledger.
type Checkout struct {
	repo    Repository
	gateway GatewayOrders
}

func NewCheckout(repo Repository, gateway GatewayOrders) *Checkout {
	return &Checkout{repo: repo, gateway: gateway}
}

// CreateOrder records a CREATED order for itemID and registers it with the
// gateway. When the gateway call fails the order stays CREATED without a
// PaymentOrder and ErrGatewayUnavailable is returned.
func (c *Checkout) CreateOrder(ctx context.Context, userID uint, itemID string) (*CheckoutResult, error) {
	item, ok := catalog.Lookup(itemID)
	if !ok {
		return nil, ErrUnknownItem
	}
	order := &models.Order{
		UserID:         userID,
		ItemID:         item.ID,
		TotalAmount:    item.Price,
		DiscountAmount: 0,
		PayableAmount:  item.Price,
		Currency:       item.Currency,
		Status:         models.OrderStatusCreated,
	}
	if err := c.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	gwOrder, err := c.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   order.PayableAmount,
		Currency: order.Currency,
		Receipt:  uuid.NewString(),
		Notes: map[string]string{
			"order_id": strconv.FormatUint(uint64(order.ID), 10),
			"item_id":  item.ID,
		},
	})
	if err != nil {
		log.Errorf("[Checkout] gateway order for order %d failed: %v", order.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	po := &models.PaymentOrder{
		OrderID:        order.ID,
		UserID:         userID,
		Gateway:        models.GatewayRazorpay,
		GatewayOrderID: strings.TrimSpace(gwOrder.ID),
		Amount:         order.PayableAmount,
		Currency:       order.Currency,
		Status:         models.PaymentOrderStatusCreated,
	}
	if err := c.repo.CreatePaymentOrder(ctx, po); err != nil {
		return nil, fmt.Errorf("store payment order: %w", err)
	}

	log.Infof("[Checkout] order %d created for user %d (gateway order %s)", order.ID, userID, po.GatewayOrderID)
	return &CheckoutResult{
		Order:          order,
		PaymentOrder:   po,
		Item:           item,
		GatewayOrderID: po.GatewayOrderID,
	}, nil
}

// GetOrderForUser returns the order only if userID owns it.
func (c *Checkout) GetOrderForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	return c.repo.GetOrderForUser(ctx, orderID, userID)
}
