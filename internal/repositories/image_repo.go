package repositories

import (
	"context"

	"jlrp/internal/models"
)

// ImageRepository stores uploaded image metadata.
type ImageRepository interface {
	Create(ctx context.Context, img *models.Image) error
	GetByID(ctx context.Context, id string) (*models.Image, error)
	// List returns a page of images, newest first, with the total match count.
	List(ctx context.Context, query string, skip, limit int) ([]models.Image, int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByURL(ctx context.Context, url string) error
}

// Set bundles one implementation of every repository.
type Set struct {
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	Returns  ReturnRepository
	Payments PaymentRepository
	Images   ImageRepository
}
