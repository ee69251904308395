package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jlrp/internal/models"
	"jlrp/internal/notify"
	"jlrp/internal/payment"
	"jlrp/internal/repositories"
	"jlrp/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineInput is one requested line of a new order.
type OrderLineInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Size      string `json:"size"`
}

// CreateOrderInput is a checkout request. Amount is optional; when present
// it must equal the total computed from catalog prices.
type CreateOrderInput struct {
	Email           string                 `json:"email" validate:"required,email"`
	CustomerName    string                 `json:"customer_name"`
	Items           []OrderLineInput       `json:"items" validate:"required,min=1,dive"`
	Amount          *float64               `json:"amount"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" validate:"required"`
}

// Checkout is a stored order together with the gateway order to pay it.
type Checkout struct {
	Order        *models.Order
	GatewayOrder *payment.GatewayOrder
	KeyID        string
}

// PaymentConfirmation is the signed checkout result posted by the client.
type PaymentConfirmation struct {
	GatewayOrderID string         `json:"razorpay_order_id" validate:"required"`
	PaymentID      string         `json:"razorpay_payment_id" validate:"required"`
	Signature      string         `json:"razorpay_signature" validate:"required"`
	Meta           map[string]any `json:"order_meta"`
}

// StatusUpdate is an admin fulfillment change. Nil tracking fields are kept.
type StatusUpdate struct {
	Status      string  `json:"status" validate:"required"`
	TrackingURL *string `json:"tracking_url"`
	TrackingID  *string `json:"tracking_id"`
	CourierName *string `json:"courier_name"`
}

// OrderTracking is the public view of an order.
type OrderTracking struct {
	OrderID       string                   `json:"order_id"`
	Status        models.FulfillmentStatus `json:"status"`
	PaymentStatus models.PaymentStatus     `json:"payment_status"`
	CreatedAt     time.Time                `json:"created_at"`
	TotalAmount   float64                  `json:"total_amount"`
	TrackingURL   string                   `json:"tracking_url,omitempty"`
	TrackingID    string                   `json:"tracking_id,omitempty"`
	CourierName   string                   `json:"courier_name,omitempty"`
}

var fulfillmentTransitions = map[models.FulfillmentStatus][]models.FulfillmentStatus{
	models.FulfillmentPending:    {models.FulfillmentProcessing, models.FulfillmentCancelled},
	models.FulfillmentProcessing: {models.FulfillmentShipped, models.FulfillmentCancelled},
	models.FulfillmentShipped:    {models.FulfillmentDelivered, models.FulfillmentCancelled},
	models.FulfillmentDelivered:  nil,
	models.FulfillmentCancelled:  nil,
}

// requiresPayment lists the statuses an unpaid order cannot reach.
var requiresPayment = map[models.FulfillmentStatus]bool{
	models.FulfillmentProcessing: true,
	models.FulfillmentShipped:    true,
	models.FulfillmentDelivered:  true,
}

// PAID is terminal on the payment axis. A failed attempt can still be paid
// by a retry against the same gateway order.
var (
	payableStatuses  = []models.PaymentStatus{models.PaymentPending, models.PaymentFailed}
	failableStatuses = []models.PaymentStatus{models.PaymentPending}
)

var statusTemplates = map[models.FulfillmentStatus]string{
	models.FulfillmentShipped:   notify.TemplateOrderShipped,
	models.FulfillmentDelivered: notify.TemplateOrderDelivered,
	models.FulfillmentCancelled: notify.TemplateOrderCancelled,
}

// ParseFulfillmentStatus normalizes s and checks it is a known status.
func ParseFulfillmentStatus(s string) (models.FulfillmentStatus, error) {
	status := models.FulfillmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := fulfillmentTransitions[status]; !ok {
		return "", newError(ErrValidation, "unknown order status %q", s)
	}
	return status, nil
}

// CanTransition reports whether an order may move from one fulfillment
// status to another.
func CanTransition(from, to models.FulfillmentStatus) bool {
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	payments repositories.PaymentRepository
	gateway  payment.Gateway
	notifier notify.Dispatcher
	log      logger.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orders repositories.OrderRepository,
	products repositories.ProductRepository,
	payments repositories.PaymentRepository,
	gateway payment.Gateway,
	notifier notify.Dispatcher,
	log logger.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		payments: payments,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
	}
}

func gatewayError(err error, msg string) error {
	if errors.Is(err, payment.ErrInvalidAmount) {
		return wrapError(ErrValidation, err, "amount must be positive")
	}
	return wrapError(ErrUpstream, err, "%s", msg)
}

// Create prices the requested lines from the catalog, opens a gateway order
// for the total and stores the order awaiting payment.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*Checkout, error) {
	email := NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, newError(ErrValidation, "order must contain at least one item")
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		if line.Quantity < 1 {
			return nil, newError(ErrValidation, "quantity must be at least 1")
		}
		product, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, newError(ErrValidation, "product %s not found", line.ProductID)
			}
			return nil, fmt.Errorf("failed to load product %s: %w", line.ProductID, err)
		}
		if !product.Available {
			return nil, newError(ErrValidation, "product %s is not available", product.Title)
		}
		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0]
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Title,
			Price:     product.Price,
			Quantity:  line.Quantity,
			Size:      strings.TrimSpace(line.Size),
			Image:     image,
		})
		total = total.Add(decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	amount, _ := total.Round(2).Float64()

	if in.Amount != nil && payment.ToMinorUnits(*in.Amount) != payment.ToMinorUnits(amount) {
		return nil, newError(ErrValidation, "amount does not match order total %.2f", amount)
	}

	orderID := uuid.New().String()
	gwOrder, err := s.gateway.CreateOrder(ctx, payment.ToMinorUnits(amount), orderID)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", orderID).Msg("gateway order creation failed")
		return nil, gatewayError(err, "failed to create payment order")
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:              orderID,
		Email:           email,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		Items:           items,
		Amount:          amount,
		ShippingAddress: in.ShippingAddress,
		RazorpayOrderID: gwOrder.ID,
		PaymentStatus:   models.PaymentPending,
		Status:          models.FulfillmentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.CustomerName == "" {
		order.CustomerName = strings.TrimSpace(in.ShippingAddress.FullName)
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.log.Error().Err(err).Str("gateway_order_id", gwOrder.ID).Msg("failed to store order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.log.Info().Str("order_id", order.ID).Str("gateway_order_id", gwOrder.ID).Float64("amount", amount).Msg("order created")
	return &Checkout{Order: order, GatewayOrder: gwOrder, KeyID: s.gateway.KeyID()}, nil
}

// VerifyPayment checks the checkout signature and records the outcome on
// the payment axis of the order.
func (s *OrderService) VerifyPayment(ctx context.Context, in PaymentConfirmation) (*models.Order, error) {
	log := s.log.With().Str("gateway_order_id", in.GatewayOrderID).Logger()

	if err := s.gateway.VerifySignature(in.GatewayOrderID, in.PaymentID, in.Signature); err != nil {
		if !errors.Is(err, payment.ErrSignatureInvalid) {
			log.Error().Err(err).Msg("signature verification unavailable")
			return nil, wrapError(ErrUpstream, err, "failed to verify payment")
		}
		log.Warn().Msg("payment signature mismatch")
		// Only an order still awaiting its first payment can fail.
		_, err := s.orders.SetPaymentStatus(ctx, in.GatewayOrderID, failableStatuses, models.PaymentFailed, "")
		if err != nil && !errors.Is(err, repositories.ErrNotFound) && !errors.Is(err, repositories.ErrStale) {
			log.Error().Err(err).Msg("failed to mark order as failed")
		}
		return nil, newError(ErrInvalidSignature, "invalid payment signature")
	}

	order, err := s.orders.SetPaymentStatus(ctx, in.GatewayOrderID, payableStatuses, models.PaymentPaid, in.PaymentID)
	switch {
	case errors.Is(err, repositories.ErrStale):
		if order.RazorpayPaymentID == in.PaymentID {
			return order, nil
		}
		log.Warn().Str("payment_id", in.PaymentID).Str("paid_with", order.RazorpayPaymentID).
			Msg("second payment for an order that is already paid")
		s.recordPayment(ctx, in)
		return nil, newError(ErrConflict, "order is already paid")
	case errors.Is(err, repositories.ErrNotFound):
		log.Warn().Msg("verified payment for unknown order")
		order = nil
	case err != nil:
		return nil, fmt.Errorf("failed to mark order as paid: %w", err)
	}

	s.recordPayment(ctx, in)
	if order != nil {
		s.notifier.Dispatch(notify.Job{
			Template: notify.TemplateOrderConfirmed,
			To:       order.Email,
			Data:     orderEmailData(order),
		})
	}
	log.Info().Str("payment_id", in.PaymentID).Msg("payment verified")
	return order, nil
}

// recordPayment stores the audit row for a verified payment. Failures are
// logged only.
func (s *OrderService) recordPayment(ctx context.Context, in PaymentConfirmation) {
	record := &models.Payment{
		ID:        uuid.New().String(),
		OrderID:   in.GatewayOrderID,
		PaymentID: in.PaymentID,
		Signature: in.Signature,
		Meta:      in.Meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.payments.Create(ctx, record); err != nil {
		s.log.Error().Err(err).Str("gateway_order_id", in.GatewayOrderID).
			Str("payment_id", in.PaymentID).Msg("failed to store payment record")
	}
}

// List returns every order, newest first.
func (s *OrderService) List(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// Get finds an order by its id or gateway order id.
func (s *OrderService) Get(ctx context.Context, ref string) (*models.Order, error) {
	order, err := s.orders.GetByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// Track returns the customer-safe view of an order.
func (s *OrderService) Track(ctx context.Context, ref string) (*OrderTracking, error) {
	order, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &OrderTracking{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt,
		TotalAmount:   order.Amount,
		TrackingURL:   order.TrackingURL,
		TrackingID:    order.TrackingID,
		CourierName:   order.CourierName,
	}, nil
}

// UpdateStatus moves an order along the fulfillment axis. Repeating the
// current status only updates tracking details and sends nothing.
func (s *OrderService) UpdateStatus(ctx context.Context, ref string, in StatusUpdate) (*models.Order, error) {
	next, err := ParseFulfillmentStatus(in.Status)
	if err != nil {
		return nil, err
	}
	order, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	changed := order.Status != next
	if changed {
		if !CanTransition(order.Status, next) {
			return nil, newError(ErrInvalidTransition, "cannot move order from %s to %s", order.Status, next)
		}
		if requiresPayment[next] && order.PaymentStatus != models.PaymentPaid {
			return nil, newError(ErrInvalidTransition, "order must be paid before it is %s", strings.ToLower(string(next)))
		}
	}

	from := order.Status
	order, err = s.orders.UpdateFulfillment(ctx, order.ID, from, repositories.FulfillmentChange{
		Status:      next,
		TrackingURL: trimmed(in.TrackingURL),
		TrackingID:  trimmed(in.TrackingID),
		CourierName: trimmed(in.CourierName),
	})
	switch {
	case errors.Is(err, repositories.ErrStale):
		return nil, newError(ErrConflict, "order status changed while updating; reload and retry")
	case errors.Is(err, repositories.ErrNotFound):
		return nil, newError(ErrNotFound, "order not found")
	case err != nil:
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if changed {
		s.log.Info().Str("order_id", order.ID).Str("status", string(next)).Msg("order status updated")
		if tmpl, ok := statusTemplates[next]; ok {
			s.notifier.Dispatch(notify.Job{Template: tmpl, To: order.Email, Data: orderEmailData(order)})
		}
	}
	return order, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func orderEmailData(o *models.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"name":     it.Name,
			"quantity": it.Quantity,
			"price":    notify.FormatINR(it.Price),
			"size":     it.Size,
		})
	}
	return map[string]any{
		"order_id":      o.ID,
		"customer_name": o.CustomerName,
		"order_date":    o.CreatedAt.Format("02-01-2006"),
		"amount":        notify.FormatINR(o.Amount),
		"items":         items,
		"paid":          o.PaymentStatus == models.PaymentPaid,
		"tracking_url":  o.TrackingURL,
		"tracking_id":   o.TrackingID,
		"courier_name":  o.CourierName,
	}
}
