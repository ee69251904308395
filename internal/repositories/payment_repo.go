package repositories

import (
	"context"

	"jlrp/internal/models"
)

// PaymentRepository stores the payment audit trail.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListByOrder(ctx context.Context, gatewayOrderID string) ([]models.Payment, error)
}
