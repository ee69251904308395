package repositories

import (
	"context"

	"jlrp/internal/models"
)

// ReturnRepository defines the interface for return request data access.
type ReturnRepository interface {
	// Create inserts the request; it fails with ErrDuplicate when another
	// open request holds the same line key.
	Create(ctx context.Context, req *models.ReturnRequest) error
	GetByID(ctx context.Context, id string) (*models.ReturnRequest, error)
	List(ctx context.Context, status models.ReturnStatus, limit int) ([]models.ReturnRequest, error)
	// CompareAndSetStatus moves the request to `to` only if its current status
	// is one of `from`. It reports whether the swap happened.
	CompareAndSetStatus(ctx context.Context, id string, from []models.ReturnStatus, to models.ReturnStatus) (bool, error)
	Update(ctx context.Context, req *models.ReturnRequest) error
	CountByStatus(ctx context.Context, status models.ReturnStatus) (int64, error)
}
