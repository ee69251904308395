package repositories

import (
	"context"

	"jlrp/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, availableOnly bool) (int64, error)
}
