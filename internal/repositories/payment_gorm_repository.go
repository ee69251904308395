package repositories

import (
	"context"
	"fmt"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentRepository creates a new instance of GORMPaymentRepository.
func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{db: db}
}

// Create appends a payment audit row.
func (r *GORMPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// ListByOrder returns the payment rows for a gateway order.
func (r *GORMPaymentRepository) ListByOrder(ctx context.Context, gatewayOrderID string) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := r.db.WithContext(ctx).
		Where("order_id = ?", gatewayOrderID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
