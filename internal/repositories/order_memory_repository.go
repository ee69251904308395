package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

// NewMemoryOrderRepository creates an empty in-memory order repository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.Order),
	}
}

func cloneOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return &o
}

func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.ID] = *cloneOrder(*order)
	return nil
}

func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) GetByReference(_ context.Context, ref string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if o, ok := r.orders[ref]; ok {
		return cloneOrder(o), nil
	}
	for _, o := range r.orders {
		if ref != "" && o.RazorpayOrderID == ref {
			return cloneOrder(o), nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", ref, ErrNotFound)
}

func (r *MemoryOrderRepository) List(_ context.Context) ([]models.Order, error) {
	r.mu.RLock()
	orders := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		orders = append(orders, *cloneOrder(o))
	}
	r.mu.RUnlock()

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *MemoryOrderRepository) UpdateFulfillment(_ context.Context, id string, from models.FulfillmentStatus, change FulfillmentChange) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if o.Status != from {
		return nil, fmt.Errorf("order %s is no longer %s: %w", id, from, ErrStale)
	}
	o.Status = change.Status
	if change.TrackingURL != nil {
		o.TrackingURL = *change.TrackingURL
	}
	if change.TrackingID != nil {
		o.TrackingID = *change.TrackingID
	}
	if change.CourierName != nil {
		o.CourierName = *change.CourierName
	}
	o.UpdatedAt = time.Now().UTC()
	r.orders[id] = o
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) SetPaymentStatus(_ context.Context, gatewayOrderID string, from []models.PaymentStatus, to models.PaymentStatus, paymentID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, o := range r.orders {
		if gatewayOrderID == "" || o.RazorpayOrderID != gatewayOrderID {
			continue
		}
		if !slices.Contains(from, o.PaymentStatus) {
			return cloneOrder(o), fmt.Errorf("order for gateway order %s is %s: %w", gatewayOrderID, o.PaymentStatus, ErrStale)
		}
		o.PaymentStatus = to
		if paymentID != "" {
			o.RazorpayPaymentID = paymentID
		}
		o.UpdatedAt = time.Now().UTC()
		r.orders[id] = o
		return cloneOrder(o), nil
	}
	return nil, fmt.Errorf("order for gateway order %s: %w", gatewayOrderID, ErrNotFound)
}

func (r *MemoryOrderRepository) Stats(_ context.Context, since time.Time) (models.OrderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats models.OrderStats
	for _, o := range r.orders {
		stats.Total++
		today := !o.CreatedAt.Before(since)
		if today {
			stats.Today++
		}
		if o.PaymentStatus == models.PaymentPaid {
			stats.Revenue += o.Amount
			if today {
				stats.TodayRevenue += o.Amount
			}
		}
	}
	return stats, nil
}
