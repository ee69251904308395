package repositories

import (
	"context"
	"fmt"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts a new order.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", translateGORMError(err))
	}
	return nil
}

// GetByID returns an order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("order with ID %s: %w", id, translateGORMError(err))
	}
	return &order, nil
}

// GetByReference returns the order whose id or gateway order id equals ref.
func (r *GORMOrderRepository) GetByReference(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? OR razorpay_order_id = ?", ref, ref).
		First(&order).Error
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", ref, translateGORMError(err))
	}
	return &order, nil
}

// List returns all orders, newest first.
func (r *GORMOrderRepository) List(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateFulfillment updates status and tracking columns in one conditional
// statement, leaving the payment columns untouched.
func (r *GORMOrderRepository) UpdateFulfillment(ctx context.Context, id string, from models.FulfillmentStatus, change FulfillmentChange) (*models.Order, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(change.fields(time.Now().UTC()))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("order %s is no longer %s: %w", id, from, ErrStale)
	}
	return r.GetByID(ctx, id)
}

// SetPaymentStatus moves the payment status of the order for gatewayOrderID
// when it is currently one of from.
func (r *GORMOrderRepository) SetPaymentStatus(ctx context.Context, gatewayOrderID string, from []models.PaymentStatus, to models.PaymentStatus, paymentID string) (*models.Order, error) {
	fields := map[string]any{
		"payment_status": to,
		"updated_at":     time.Now().UTC(),
	}
	if paymentID != "" {
		fields["razorpay_payment_id"] = paymentID
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("razorpay_order_id = ? AND payment_status IN ?", gatewayOrderID, from).
		Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to set payment status: %w", res.Error)
	}
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "razorpay_order_id = ?", gatewayOrderID).Error; err != nil {
		return nil, fmt.Errorf("order for gateway order %s: %w", gatewayOrderID, translateGORMError(err))
	}
	if res.RowsAffected == 0 {
		return &order, fmt.Errorf("order for gateway order %s is %s: %w", gatewayOrderID, order.PaymentStatus, ErrStale)
	}
	return &order, nil
}

// Stats aggregates order counts and paid revenue overall and since `since`.
func (r *GORMOrderRepository) Stats(ctx context.Context, since time.Time) (models.OrderStats, error) {
	var stats models.OrderStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Order{}).Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("failed to count orders: %w", err)
	}
	if err := db.Model(&models.Order{}).Where("created_at >= ?", since).Count(&stats.Today).Error; err != nil {
		return stats, fmt.Errorf("failed to count today's orders: %w", err)
	}
	if err := db.Model(&models.Order{}).
		Where("payment_status = ?", models.PaymentPaid).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&stats.Revenue); err != nil {
		return stats, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if err := db.Model(&models.Order{}).
		Where("payment_status = ? AND created_at >= ?", models.PaymentPaid, since).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&stats.TodayRevenue); err != nil {
		return stats, fmt.Errorf("failed to sum today's revenue: %w", err)
	}
	return stats, nil
}
