package handlers

import (
	"jlrp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// OrderHandler handles checkout, payment confirmation, admin order
// management and public tracking.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the order and payment routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, requireAuth, requireAdmin fiber.Handler) {
	paymentRoutes := router.Group("/payment")
	paymentRoutes.Post("/create-order", h.HandleCreateOrder)
	paymentRoutes.Post("/verify", h.HandleVerifyPayment)

	router.Get("/public/orders/track/:id", h.HandleTrackOrder)

	adminRoutes := router.Group("/admin/orders")
	adminRoutes.Get("/", requireAuth, requireAdmin, h.HandleGetOrders)
	adminRoutes.Get("/:id", requireAuth, requireAdmin, h.HandleGetOrderByID)
	adminRoutes.Patch("/:id/status", requireAuth, requireAdmin, h.HandleUpdateOrderStatus)
}

// HandleCreateOrder prices the cart, opens a gateway order and stores the
// order awaiting payment.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var in services.CreateOrderInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, h.log, err)
	}

	checkout, err := h.service.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"order_id":    checkout.GatewayOrder.ID,
		"amount":      checkout.Order.Amount,
		"currency":    checkout.GatewayOrder.Currency,
		"db_order_id": checkout.Order.ID,
		"key_id":      checkout.KeyID,
		"raw":         checkout.GatewayOrder,
	})
}

// HandleVerifyPayment checks the checkout signature posted by the client.
func (h *OrderHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	var in services.PaymentConfirmation
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, h.log, err)
	}

	if _, err := h.service.VerifyPayment(c.UserContext(), in); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Payment verified successfully!",
	})
}

// HandleGetOrders retrieves all orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its id or gateway order id.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus moves an order along the fulfillment axis.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var in services.StatusUpdate
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, h.log, err)
	}

	order, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(order)
}

// HandleTrackOrder is the public, customer-safe view of an order.
func (h *OrderHandler) HandleTrackOrder(c *fiber.Ctx) error {
	tracking, err := h.service.Track(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(tracking)
}
