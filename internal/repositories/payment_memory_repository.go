package repositories

import (
	"context"
	"sync"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
)

// MemoryPaymentRepository is an in-memory implementation of PaymentRepository.
type MemoryPaymentRepository struct {
	mu       sync.RWMutex
	payments []models.Payment
}

// NewMemoryPaymentRepository creates an empty in-memory payment repository.
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{}
}

func (r *MemoryPaymentRepository) Create(_ context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	r.payments = append(r.payments, *payment)
	return nil
}

func (r *MemoryPaymentRepository) ListByOrder(_ context.Context, gatewayOrderID string) ([]models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Payment{}
	for _, p := range r.payments {
		if p.OrderID == gatewayOrderID {
			out = append(out, p)
		}
	}
	return out, nil
}
