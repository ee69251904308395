package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"jlrp/internal/models"

	"github.com/google/uuid"
)

// MemoryImageRepository is an in-memory implementation of ImageRepository.
type MemoryImageRepository struct {
	mu     sync.RWMutex
	images map[string]models.Image
}

// NewMemoryImageRepository creates an empty in-memory image repository.
func NewMemoryImageRepository() *MemoryImageRepository {
	return &MemoryImageRepository{
		images: make(map[string]models.Image),
	}
}

func (r *MemoryImageRepository) Create(_ context.Context, img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	r.images[img.ID] = *img
	return nil
}

func (r *MemoryImageRepository) GetByID(_ context.Context, id string) (*models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	img, ok := r.images[id]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	return &img, nil
}

func (r *MemoryImageRepository) List(_ context.Context, query string, skip, limit int) ([]models.Image, int64, error) {
	r.mu.RLock()
	q := strings.ToLower(query)
	matched := make([]models.Image, 0, len(r.images))
	for _, img := range r.images {
		if q == "" || strings.Contains(strings.ToLower(img.Title), q) {
			matched = append(matched, img)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].UploadedAt.After(matched[j].UploadedAt)
	})
	total := int64(len(matched))
	if skip >= len(matched) {
		return []models.Image{}, total, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *MemoryImageRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.images[id]; !ok {
		return fmt.Errorf("image %s not found for deletion: %w", id, ErrNotFound)
	}
	delete(r.images, id)
	return nil
}

func (r *MemoryImageRepository) DeleteByURL(_ context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, img := range r.images {
		if img.URL == url {
			delete(r.images, id)
		}
	}
	return nil
}

// NewMemorySet builds a repository set backed entirely by memory.
func NewMemorySet() Set {
	return Set{
		Users:    NewMemoryUserRepository(),
		Products: NewMemoryProductRepository(),
		Orders:   NewMemoryOrderRepository(),
		Returns:  NewMemoryReturnRepository(),
		Payments: NewMemoryPaymentRepository(),
		Images:   NewMemoryImageRepository(),
	}
}
