package repositories

import (
	"context"
	"fmt"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var productSortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"title":      "title",
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// List retrieves the products matching filter.
func (r *GORMProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Gender != "" {
		q = q.Where("gender = ?", filter.Gender)
	}
	if filter.Subcategory != "" {
		q = q.Where("subcategory = ?", filter.Subcategory)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}

	column, ok := productSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if filter.SortDir == 1 {
		dir = "ASC"
	}
	q = q.Order(column + " " + dir).Offset(filter.Skip)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	products := []models.Product{}
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("product with ID %s: %w", id, translateGORMError(err))
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", translateGORMError(err))
	}
	return nil
}

// Update updates an existing product in the database.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(product).Select("*").Omit("id", "created_at").Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}

// Count returns the number of products, optionally only available ones.
func (r *GORMProductRepository) Count(ctx context.Context, availableOnly bool) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if availableOnly {
		q = q.Where("available = ?", true)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}
