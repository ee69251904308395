package services_test

import (
	"context"
	"sync"

	"jlrp/internal/models"
	"jlrp/internal/notify"
	"jlrp/internal/payment"
	"jlrp/internal/services"

	"github.com/stretchr/testify/mock"
)

var fastArgon2 = services.Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == "" {
		user.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) AddRefreshToken(ctx context.Context, id, jti string) error {
	return m.Called(ctx, id, jti).Error(0)
}

func (m *MockUserRepository) RemoveRefreshToken(ctx context.Context, id, jti string) (bool, error) {
	args := m.Called(ctx, id, jti)
	return args.Bool(0), args.Error(1)
}

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductRepository) Count(ctx context.Context, availableOnly bool) (int64, error) {
	args := m.Called(ctx, availableOnly)
	return args.Get(0).(int64), args.Error(1)
}

// MockGateway is a mock implementation of payment.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, receipt string) (*payment.GatewayOrder, error) {
	args := m.Called(ctx, amountMinor, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.GatewayOrder), args.Error(1)
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) error {
	return m.Called(orderID, paymentID, signature).Error(0)
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, amountMinor int64) (string, error) {
	args := m.Called(ctx, paymentID, amountMinor)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) KeyID() string {
	return "rzp_test_key"
}

// recordingDispatcher keeps every dispatched job.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []notify.Job
}

func (d *recordingDispatcher) Dispatch(job notify.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *recordingDispatcher) templates() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.jobs))
	for _, j := range d.jobs {
		out = append(out, j.Template)
	}
	return out
}

func (d *recordingDispatcher) last() notify.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs[len(d.jobs)-1]
}
