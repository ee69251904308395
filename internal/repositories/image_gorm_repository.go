package repositories

import (
	"context"
	"fmt"
	"strings"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMImageRepository is a GORM implementation of ImageRepository.
type GORMImageRepository struct {
	db *gorm.DB
}

// NewGORMImageRepository creates a new instance of GORMImageRepository.
func NewGORMImageRepository(db *gorm.DB) *GORMImageRepository {
	return &GORMImageRepository{db: db}
}

// Create stores image metadata.
func (r *GORMImageRepository) Create(ctx context.Context, img *models.Image) error {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("failed to save image metadata: %w", err)
	}
	return nil
}

// GetByID returns image metadata by ID.
func (r *GORMImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	var img models.Image
	if err := r.db.WithContext(ctx).First(&img, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("image %s: %w", id, translateGORMError(err))
	}
	return &img, nil
}

// List returns a page of images whose title contains query (case-insensitive).
func (r *GORMImageRepository) List(ctx context.Context, query string, skip, limit int) ([]models.Image, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Image{})
	if query != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count images: %w", err)
	}
	images := []models.Image{}
	if err := q.Order("uploaded_at DESC").Offset(skip).Limit(limit).Find(&images).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list images: %w", err)
	}
	return images, total, nil
}

// Delete removes image metadata by ID.
func (r *GORMImageRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Image{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("image %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteByURL removes any metadata rows pointing at url.
func (r *GORMImageRepository) DeleteByURL(ctx context.Context, url string) error {
	if err := r.db.WithContext(ctx).Delete(&models.Image{}, "url = ?", url).Error; err != nil {
		return fmt.Errorf("failed to delete image metadata for %s: %w", url, err)
	}
	return nil
}

// NewGORMSet builds the GORM-backed repository set.
func NewGORMSet(db *gorm.DB) Set {
	return Set{
		Users:    NewGORMUserRepository(db),
		Products: NewGORMProductRepository(db),
		Orders:   NewGORMOrderRepository(db),
		Returns:  NewGORMReturnRepository(db),
		Payments: NewGORMPaymentRepository(db),
		Images:   NewGORMImageRepository(db),
	}
}

// AutoMigrate creates or updates the tables for every model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.ReturnRequest{},
		&models.Payment{},
		&models.Image{},
	)
}
