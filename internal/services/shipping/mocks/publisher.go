package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a testify mock of shipping.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, topic, key string, v any) error {
	return m.Called(ctx, topic, key, v).Error(0)
}
