package repositories

import (
	"context"
	"time"

	"jlrp/internal/models"
)

// FulfillmentChange is a fulfillment status write. Nil tracking fields are
// left as stored.
type FulfillmentChange struct {
	Status      models.FulfillmentStatus
	TrackingURL *string
	TrackingID  *string
	CourierName *string
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetByReference matches either the order id or the gateway order id.
	GetByReference(ctx context.Context, ref string) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	// UpdateFulfillment writes only the fulfillment axis and tracking fields,
	// and only while the order is still in status `from`. It fails with
	// ErrStale when the status has moved on.
	UpdateFulfillment(ctx context.Context, id string, from models.FulfillmentStatus, change FulfillmentChange) (*models.Order, error)
	// SetPaymentStatus moves the payment axis of the order created for
	// gatewayOrderID to `to` if it is currently one of `from`, and returns the
	// updated order. When the order is in another payment status it returns
	// the order as stored together with ErrStale.
	SetPaymentStatus(ctx context.Context, gatewayOrderID string, from []models.PaymentStatus, to models.PaymentStatus, paymentID string) (*models.Order, error)
	Stats(ctx context.Context, since time.Time) (models.OrderStats, error)
}

// fields maps the change onto column and document keys, which are the same
// in both SQL and Mongo.
func (c FulfillmentChange) fields(now time.Time) map[string]any {
	fields := map[string]any{
		"status":     c.Status,
		"updated_at": now,
	}
	if c.TrackingURL != nil {
		fields["tracking_url"] = *c.TrackingURL
	}
	if c.TrackingID != nil {
		fields["tracking_id"] = *c.TrackingID
	}
	if c.CourierName != nil {
		fields["courier_name"] = *c.CourierName
	}
	return fields
}
