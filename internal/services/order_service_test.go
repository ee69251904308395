package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"jlrp/internal/models"
	"jlrp/internal/notify"
	"jlrp/internal/payment"
	"jlrp/internal/repositories"
	"jlrp/internal/services"
	"jlrp/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	svc      *services.OrderService
	repos    repositories.Set
	gateway  *MockGateway
	notifier *recordingDispatcher
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	repos := repositories.NewMemorySet()
	gw := new(MockGateway)
	notifier := &recordingDispatcher{}
	svc := services.NewOrderService(repos.Orders, repos.Products, repos.Payments, gw, notifier, logger.Nop())
	return &orderFixture{svc: svc, repos: repos, gateway: gw, notifier: notifier}
}

func (f *orderFixture) addProduct(t *testing.T, id string, price float64, available bool) {
	t.Helper()
	require.NoError(t, f.repos.Products.Create(context.Background(), &models.Product{
		ID: id, Title: "Product " + id, Gender: "women", Category: "clothing", Subcategory: "kurti",
		Price: price, Available: available, Images: []string{"http://img/" + id + ".png"}, CreatedAt: time.Now(),
	}))
}

var testAddress = models.ShippingAddress{
	FullName: "Asha Rao", Phone: "9999999999", Pincode: "560001", AddressLine1: "1 MG Road",
	City: "Bengaluru", State: "KA", Country: "IN",
}

func (f *orderFixture) checkout(t *testing.T, amount float64) *services.Checkout {
	t.Helper()
	f.gateway.On("CreateOrder", mock.Anything, payment.ToMinorUnits(amount), mock.AnythingOfType("string")).
		Return(&payment.GatewayOrder{ID: "order_gw1", Amount: payment.ToMinorUnits(amount), Currency: "INR"}, nil).Once()
	co, err := f.svc.Create(context.Background(), services.CreateOrderInput{
		Email:           "Asha@Example.com",
		Items:           []services.OrderLineInput{{ProductID: "p1", Quantity: 1, Size: "M"}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	return co
}

func TestOrderService_CreatePricesFromCatalog(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	f.addProduct(t, "p2", 150.25, true)

	f.gateway.On("CreateOrder", mock.Anything, int64(79950), mock.AnythingOfType("string")).
		Return(&payment.GatewayOrder{ID: "order_gw1", Amount: 79950, Currency: "INR"}, nil).Once()

	co, err := f.svc.Create(context.Background(), services.CreateOrderInput{
		Email: "asha@example.com",
		Items: []services.OrderLineInput{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 2},
		},
		Amount:          ptr(799.5),
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	assert.Equal(t, 799.5, co.Order.Amount)
	assert.Equal(t, "order_gw1", co.Order.RazorpayOrderID)
	assert.Equal(t, models.PaymentPending, co.Order.PaymentStatus)
	assert.Equal(t, models.FulfillmentPending, co.Order.Status)
	assert.Equal(t, "Asha Rao", co.Order.CustomerName)
	assert.Equal(t, "Product p1", co.Order.Items[0].Name)
	assert.Equal(t, "rzp_test_key", co.KeyID)

	stored, err := f.repos.Orders.GetByReference(context.Background(), "order_gw1")
	require.NoError(t, err)
	assert.Equal(t, co.Order.ID, stored.ID)
	f.gateway.AssertExpectations(t)
}

func TestOrderService_CreateMinorUnits(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	co := f.checkout(t, 499)
	assert.Equal(t, int64(49900), co.GatewayOrder.Amount)
	f.gateway.AssertExpectations(t)
}

func TestOrderService_CreateRejections(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	f.addProduct(t, "gone", 100, false)
	ctx := context.Background()

	base := services.CreateOrderInput{Email: "asha@example.com", ShippingAddress: testAddress}

	in := base
	_, err := f.svc.Create(ctx, in)
	assert.True(t, errors.Is(err, services.ErrValidation), "no items")

	in.Items = []services.OrderLineInput{{ProductID: "missing", Quantity: 1}}
	_, err = f.svc.Create(ctx, in)
	assert.True(t, errors.Is(err, services.ErrValidation), "unknown product")

	in.Items = []services.OrderLineInput{{ProductID: "gone", Quantity: 1}}
	_, err = f.svc.Create(ctx, in)
	assert.True(t, errors.Is(err, services.ErrValidation), "unavailable product")

	in.Items = []services.OrderLineInput{{ProductID: "p1", Quantity: 1}}
	in.Amount = ptr(1.0)
	_, err = f.svc.Create(ctx, in)
	assert.True(t, errors.Is(err, services.ErrValidation), "amount mismatch")

	f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_CreateGatewayFailure(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	f.gateway.On("CreateOrder", mock.Anything, int64(49900), mock.AnythingOfType("string")).
		Return(nil, payment.ErrNotConfigured).Once()

	_, err := f.svc.Create(context.Background(), services.CreateOrderInput{
		Email: "asha@example.com", Items: []services.OrderLineInput{{ProductID: "p1", Quantity: 1}}, ShippingAddress: testAddress,
	})
	assert.True(t, errors.Is(err, services.ErrUpstream))
	orders, _ := f.repos.Orders.List(context.Background())
	assert.Empty(t, orders)
}

func TestOrderService_VerifyPayment(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	f.checkout(t, 499)
	ctx := context.Background()

	f.gateway.On("VerifySignature", "order_gw1", "pay_1", "good").Return(nil)
	order, err := f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_1", Signature: "good"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pay_1", order.RazorpayPaymentID)

	rows, err := f.repos.Payments.ListByOrder(ctx, "order_gw1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{notify.TemplateOrderConfirmed}, f.notifier.templates())
	assert.Equal(t, "asha@example.com", f.notifier.last().To)

	// a repeated confirmation is a no-op
	_, err = f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_1", Signature: "good"})
	require.NoError(t, err)
	rows, _ = f.repos.Payments.ListByOrder(ctx, "order_gw1")
	assert.Len(t, rows, 1)
	assert.Len(t, f.notifier.templates(), 1)
}

func TestOrderService_VerifyPaymentBadSignature(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	f.checkout(t, 499)
	ctx := context.Background()

	f.gateway.On("VerifySignature", "order_gw1", "pay_1", "forged").Return(payment.ErrSignatureInvalid)
	_, err := f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_1", Signature: "forged"})
	assert.True(t, errors.Is(err, services.ErrInvalidSignature))

	order, _ := f.repos.Orders.GetByReference(ctx, "order_gw1")
	assert.Equal(t, models.PaymentFailed, order.PaymentStatus)
	rows, _ := f.repos.Payments.ListByOrder(ctx, "order_gw1")
	assert.Empty(t, rows)
	assert.Empty(t, f.notifier.templates())
}

func TestOrderService_ForgedVerifyKeepsPaidOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	co := f.checkout(t, 499)
	ctx := context.Background()

	f.gateway.On("VerifySignature", "order_gw1", "pay_1", "good").Return(nil)
	f.gateway.On("VerifySignature", "order_gw1", "pay_x", "forged").Return(payment.ErrSignatureInvalid)

	_, err := f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_1", Signature: "good"})
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_x", Signature: "forged"})
	assert.True(t, errors.Is(err, services.ErrInvalidSignature))

	order, err := f.repos.Orders.GetByID(ctx, co.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pay_1", order.RazorpayPaymentID)

	_, err = f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "PROCESSING"})
	assert.NoError(t, err)
}

func TestOrderService_VerifyAfterFailedAttempt(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	f.checkout(t, 499)
	ctx := context.Background()

	f.gateway.On("VerifySignature", "order_gw1", "pay_1", "forged").Return(payment.ErrSignatureInvalid)
	f.gateway.On("VerifySignature", "order_gw1", "pay_2", "good").Return(nil)
	f.gateway.On("VerifySignature", "order_gw1", "pay_3", "good").Return(nil)

	_, err := f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_1", Signature: "forged"})
	require.Error(t, err)

	order, err := f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_2", Signature: "good"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)

	// a second genuine payment is recorded for follow-up but not applied
	_, err = f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_3", Signature: "good"})
	assert.True(t, errors.Is(err, services.ErrConflict))

	stored, _ := f.repos.Orders.GetByReference(ctx, "order_gw1")
	assert.Equal(t, "pay_2", stored.RazorpayPaymentID)
	rows, _ := f.repos.Payments.ListByOrder(ctx, "order_gw1")
	assert.Len(t, rows, 2)
	assert.Equal(t, []string{notify.TemplateOrderConfirmed}, f.notifier.templates())
}

// interleavedOrders runs `between` once, right after the next order read,
// to land a concurrent write between a service's read and its write.
type interleavedOrders struct {
	repositories.OrderRepository
	between func()
}

func (r *interleavedOrders) GetByReference(ctx context.Context, ref string) (*models.Order, error) {
	order, err := r.OrderRepository.GetByReference(ctx, ref)
	if fn := r.between; fn != nil {
		r.between = nil
		fn()
	}
	return order, err
}

func TestOrderService_UpdateStatusKeepsConcurrentPayment(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	co := f.checkout(t, 499)
	ctx := context.Background()

	orders := &interleavedOrders{OrderRepository: f.repos.Orders}
	svc := services.NewOrderService(orders, f.repos.Products, f.repos.Payments, f.gateway, f.notifier, logger.Nop())
	orders.between = func() {
		_, err := f.repos.Orders.SetPaymentStatus(ctx, "order_gw1",
			[]models.PaymentStatus{models.PaymentPending}, models.PaymentPaid, "pay_1")
		require.NoError(t, err)
	}

	order, err := svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "CANCELLED"})
	require.NoError(t, err)
	assert.Equal(t, models.FulfillmentCancelled, order.Status)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pay_1", order.RazorpayPaymentID)
	assert.Equal(t, true, f.notifier.last().Data["paid"])

	stored, err := f.repos.Orders.GetByID(ctx, co.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, "pay_1", stored.RazorpayPaymentID)
}

func TestOrderService_UpdateStatusLosesRaceToOtherAdmin(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	co := f.checkout(t, 499)
	ctx := context.Background()

	orders := &interleavedOrders{OrderRepository: f.repos.Orders}
	svc := services.NewOrderService(orders, f.repos.Products, f.repos.Payments, f.gateway, f.notifier, logger.Nop())
	orders.between = func() {
		_, err := f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "CANCELLED"})
		require.NoError(t, err)
	}

	_, err := svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "CANCELLED", CourierName: ptr("Delhivery")})
	assert.True(t, errors.Is(err, services.ErrConflict))

	stored, err := f.repos.Orders.GetByID(ctx, co.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FulfillmentCancelled, stored.Status)
	assert.Empty(t, stored.CourierName)
	assert.Equal(t, []string{notify.TemplateOrderCancelled}, f.notifier.templates())
}

func TestOrderService_UpdateStatusTransitions(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	co := f.checkout(t, 499)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "processing"})
	assert.True(t, errors.Is(err, services.ErrInvalidTransition), "unpaid orders cannot be processed")

	_, err = f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "lost"})
	assert.True(t, errors.Is(err, services.ErrValidation))

	f.gateway.On("VerifySignature", "order_gw1", "pay_1", "good").Return(nil)
	_, err = f.svc.VerifyPayment(ctx, services.PaymentConfirmation{GatewayOrderID: "order_gw1", PaymentID: "pay_1", Signature: "good"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, "order_gw1", services.StatusUpdate{Status: "shipped"})
	assert.True(t, errors.Is(err, services.ErrInvalidTransition), "cannot skip processing")

	_, err = f.svc.UpdateStatus(ctx, "order_gw1", services.StatusUpdate{Status: " Processing "})
	require.NoError(t, err)

	order, err := f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{
		Status: "SHIPPED", CourierName: ptr("Delhivery"), TrackingID: ptr("TRK1"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.FulfillmentShipped, order.Status)
	assert.Equal(t, "Delhivery", order.CourierName)

	// idempotent repeat only changes tracking details
	order, err = f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "SHIPPED", TrackingURL: ptr("https://track/TRK1")})
	require.NoError(t, err)
	assert.Equal(t, "https://track/TRK1", order.TrackingURL)
	assert.Equal(t, "TRK1", order.TrackingID)

	_, err = f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "DELIVERED"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, co.Order.ID, services.StatusUpdate{Status: "CANCELLED"})
	assert.True(t, errors.Is(err, services.ErrInvalidTransition), "delivered is terminal")

	assert.Equal(t, []string{
		notify.TemplateOrderConfirmed,
		notify.TemplateOrderShipped,
		notify.TemplateOrderDelivered,
	}, f.notifier.templates())

	_, err = f.svc.UpdateStatus(ctx, "nope", services.StatusUpdate{Status: "SHIPPED"})
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestOrderService_CancelUnpaid(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	co := f.checkout(t, 499)

	_, err := f.svc.UpdateStatus(context.Background(), co.Order.ID, services.StatusUpdate{Status: "CANCELLED"})
	require.NoError(t, err)
	job := f.notifier.last()
	assert.Equal(t, notify.TemplateOrderCancelled, job.Template)
	assert.Equal(t, false, job.Data["paid"])
}

func TestOrderService_Track(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "p1", 499, true)
	co := f.checkout(t, 499)

	tr, err := f.svc.Track(context.Background(), "order_gw1")
	require.NoError(t, err)
	assert.Equal(t, co.Order.ID, tr.OrderID)
	assert.Equal(t, models.FulfillmentPending, tr.Status)
	assert.Equal(t, 499.0, tr.TotalAmount)

	_, err = f.svc.Track(context.Background(), "unknown")
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, services.CanTransition(models.FulfillmentPending, models.FulfillmentCancelled))
	assert.True(t, services.CanTransition(models.FulfillmentShipped, models.FulfillmentCancelled))
	assert.False(t, services.CanTransition(models.FulfillmentCancelled, models.FulfillmentPending))
	assert.False(t, services.CanTransition(models.FulfillmentDelivered, models.FulfillmentShipped))
	assert.False(t, services.CanTransition(models.FulfillmentPending, models.FulfillmentDelivered))
}
