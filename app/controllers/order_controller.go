package controllers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/internal/pkg/notifications"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payments"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

var validate = validator.New()

type createOrderRequest struct {
	ItemID string `json:"item_id" validate:"required,max=64"`
}

// HandleCreateOrder starts a purchase: a CREATED order plus a gateway order
// the client-side checkout pays against.
func (pc *PaymentController) HandleCreateOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	res, err := pc.Checkout.CreateOrder(c.UserContext(), userCtx.UserID, req.ItemID)
	switch {
	case errors.Is(err, payments.ErrUnknownItem):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_item"})
	case errors.Is(err, payments.ErrGatewayUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_unavailable"})
	case err != nil:
		log.Errorf("[Checkout] create order for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_create_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":         res.Order.ID,
		"gateway_order_id": res.GatewayOrderID,
		"amount":           res.Order.PayableAmount,
		"amount_display":   notifications.FormatAmount(res.Order.PayableAmount, res.Order.Currency),
		"currency":         res.Order.Currency,
		"key_id":           pc.Config.RazorpayKeyID,
		"item_name":        res.Item.Name,
	})
}

// HandleGetOrder returns the caller's order with its confirmation status.
func (pc *PaymentController) HandleGetOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	order, err := pc.Checkout.GetOrderForUser(c.UserContext(), uint(id), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		log.Errorf("[Checkout] load order %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}

	status, err := pc.Notifications.OrderNotificationStatus(c.UserContext(), order.ID)
	if err != nil {
		log.Warnf("[Checkout] notification status for order %d: %v", order.ID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"order_id":            order.ID,
		"status":              order.Status,
		"payable_amount":      order.PayableAmount,
		"amount_display":      notifications.FormatAmount(order.PayableAmount, order.Currency),
		"currency":            order.Currency,
		"item_id":             order.ItemID,
		"notification_status": status,
	})
}
