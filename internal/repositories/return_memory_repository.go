package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"jlrp/internal/models"

	"github.com/google/uuid"
)

// MemoryReturnRepository is an in-memory implementation of ReturnRepository.
type MemoryReturnRepository struct {
	mu      sync.RWMutex
	returns map[string]models.ReturnRequest
}

// NewMemoryReturnRepository creates an empty in-memory return repository.
func NewMemoryReturnRepository() *MemoryReturnRepository {
	return &MemoryReturnRepository{
		returns: make(map[string]models.ReturnRequest),
	}
}

func cloneReturn(rr models.ReturnRequest) *models.ReturnRequest {
	rr.Photos = append([]string(nil), rr.Photos...)
	if rr.LineKey != nil {
		k := *rr.LineKey
		rr.LineKey = &k
	}
	return &rr
}

func (r *MemoryReturnRepository) lineKeyTaken(key *string, exceptID string) bool {
	if key == nil {
		return false
	}
	for id, rr := range r.returns {
		if id != exceptID && rr.LineKey != nil && *rr.LineKey == *key {
			return true
		}
	}
	return false
}

func (r *MemoryReturnRepository) Create(_ context.Context, req *models.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lineKeyTaken(req.LineKey, "") {
		return fmt.Errorf("return request for %s: %w", *req.LineKey, ErrDuplicate)
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	r.returns[req.ID] = *cloneReturn(*req)
	return nil
}

func (r *MemoryReturnRepository) GetByID(_ context.Context, id string) (*models.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rr, ok := r.returns[id]
	if !ok {
		return nil, fmt.Errorf("return request %s: %w", id, ErrNotFound)
	}
	return cloneReturn(rr), nil
}

func (r *MemoryReturnRepository) List(_ context.Context, status models.ReturnStatus, limit int) ([]models.ReturnRequest, error) {
	r.mu.RLock()
	out := make([]models.ReturnRequest, 0, len(r.returns))
	for _, rr := range r.returns {
		if status == "" || rr.Status == status {
			out = append(out, *cloneReturn(rr))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryReturnRepository) CompareAndSetStatus(_ context.Context, id string, from []models.ReturnStatus, to models.ReturnStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rr, ok := r.returns[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if rr.Status == s {
			rr.Status = to
			r.returns[id] = rr
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryReturnRepository) Update(_ context.Context, req *models.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.returns[req.ID]; !ok {
		return fmt.Errorf("return request %s not found for update: %w", req.ID, ErrNotFound)
	}
	if r.lineKeyTaken(req.LineKey, req.ID) {
		return fmt.Errorf("return request for %s: %w", *req.LineKey, ErrDuplicate)
	}
	r.returns[req.ID] = *cloneReturn(*req)
	return nil
}

func (r *MemoryReturnRepository) CountByStatus(_ context.Context, status models.ReturnStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, rr := range r.returns {
		if rr.Status == status {
			n++
		}
	}
	return n, nil
}
