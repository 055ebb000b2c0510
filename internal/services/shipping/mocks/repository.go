package mocks

import (
	"context"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of shipping.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateShipment(ctx context.Context, s *models.InternationalShipment) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockRepository) GetShipment(ctx context.Context, id uuid.UUID) (*models.InternationalShipment, error) {
	args := m.Called(ctx, id)
	var sh *models.InternationalShipment
	if v := args.Get(0); v != nil {
		sh = v.(*models.InternationalShipment)
	}
	return sh, args.Error(1)
}

func (m *MockRepository) SaveShipment(ctx context.Context, s *models.InternationalShipment) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockRepository) ListShipments(ctx context.Context, f models.ShipmentFilter) ([]*models.InternationalShipment, error) {
	args := m.Called(ctx, f)
	var out []*models.InternationalShipment
	if v := args.Get(0); v != nil {
		out = v.([]*models.InternationalShipment)
	}
	return out, args.Error(1)
}

func (m *MockRepository) ScheduleClearanceCheck(ctx context.Context, id uuid.UUID, next *time.Time, lastErr *string) error {
	return m.Called(ctx, id, next, lastErr).Error(0)
}

func (m *MockRepository) CreateKYC(ctx context.Context, k *models.KYCValidation) error {
	return m.Called(ctx, k).Error(0)
}

func (m *MockRepository) GetKYC(ctx context.Context, id uuid.UUID) (*models.KYCValidation, error) {
	args := m.Called(ctx, id)
	var k *models.KYCValidation
	if v := args.Get(0); v != nil {
		k = v.(*models.KYCValidation)
	}
	return k, args.Error(1)
}

func (m *MockRepository) SaveKYC(ctx context.Context, k *models.KYCValidation) error {
	return m.Called(ctx, k).Error(0)
}

func (m *MockRepository) ListKYCByCustomer(ctx context.Context, customerID string) ([]*models.KYCValidation, error) {
	args := m.Called(ctx, customerID)
	var out []*models.KYCValidation
	if v := args.Get(0); v != nil {
		out = v.([]*models.KYCValidation)
	}
	return out, args.Error(1)
}
