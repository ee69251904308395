package repositories

import (
	"context"
	"fmt"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMReturnRepository is a GORM implementation of ReturnRepository.
type GORMReturnRepository struct {
	db *gorm.DB
}

// NewGORMReturnRepository creates a new instance of GORMReturnRepository.
func NewGORMReturnRepository(db *gorm.DB) *GORMReturnRepository {
	return &GORMReturnRepository{db: db}
}

// Create inserts a return request. The unique index on line_key rejects a
// second open request for the same order line.
func (r *GORMReturnRepository) Create(ctx context.Context, req *models.ReturnRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create return request: %w", translateGORMError(err))
	}
	return nil
}

// GetByID returns a return request by its ID.
func (r *GORMReturnRepository) GetByID(ctx context.Context, id string) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("return request %s: %w", id, translateGORMError(err))
	}
	return &req, nil
}

// List returns return requests, newest first. An empty status lists all.
func (r *GORMReturnRepository) List(ctx context.Context, status models.ReturnStatus, limit int) ([]models.ReturnRequest, error) {
	q := r.db.WithContext(ctx).Order("requested_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	reqs := []models.ReturnRequest{}
	if err := q.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list return requests: %w", err)
	}
	return reqs, nil
}

// CompareAndSetStatus performs a conditional status update in one statement.
func (r *GORMReturnRepository) CompareAndSetStatus(ctx context.Context, id string, from []models.ReturnStatus, to models.ReturnStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update return status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Update saves every field of an existing return request.
func (r *GORMReturnRepository) Update(ctx context.Context, req *models.ReturnRequest) error {
	res := r.db.WithContext(ctx).Model(req).Select("*").Omit("id", "requested_at").Updates(req)
	if res.Error != nil {
		return fmt.Errorf("failed to update return request: %w", translateGORMError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("return request %s not found for update: %w", req.ID, ErrNotFound)
	}
	return nil
}

// CountByStatus counts requests in the given status.
func (r *GORMReturnRepository) CountByStatus(ctx context.Context, status models.ReturnStatus) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count return requests: %w", err)
	}
	return n, nil
}
