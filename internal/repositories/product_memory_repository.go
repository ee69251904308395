package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

// NewMemoryProductRepository creates an empty in-memory product repository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[string]models.Product),
	}
}

func cloneProduct(p models.Product) models.Product {
	p.Images = append([]string(nil), p.Images...)
	return p
}

func (r *MemoryProductRepository) List(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	r.mu.RLock()
	matched := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.Gender != "" && p.Gender != filter.Gender {
			continue
		}
		if filter.Subcategory != "" && p.Subcategory != filter.Subcategory {
			continue
		}
		if filter.MinPrice != nil && p.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}
	r.mu.RUnlock()

	less := func(a, b models.Product) bool {
		switch filter.SortBy {
		case "price":
			return a.Price < b.Price
		case "title":
			return strings.Compare(a.Title, b.Title) < 0
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if filter.SortDir == 1 {
			return less(matched[i], matched[j])
		}
		return less(matched[j], matched[i])
	})

	if filter.Skip >= len(matched) {
		return []models.Product{}, nil
	}
	matched = matched[filter.Skip:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *MemoryProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	p = cloneProduct(p)
	return &p, nil
}

func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrDuplicate)
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.products[product.ID] = cloneProduct(*product)
	return nil
}

func (r *MemoryProductRepository) Update(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrNotFound)
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	r.products[product.ID] = cloneProduct(*product)
	return nil
}

func (r *MemoryProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	delete(r.products, id)
	return nil
}

func (r *MemoryProductRepository) Count(_ context.Context, availableOnly bool) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, p := range r.products {
		if !availableOnly || p.Available {
			n++
		}
	}
	return n, nil
}
