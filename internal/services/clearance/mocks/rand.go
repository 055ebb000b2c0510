package mocks

import "github.com/stretchr/testify/mock"

// Rand is a testify mock of clearance.Rand.
type Rand struct {
	mock.Mock
}

func (m *Rand) Intn(n int) int {
	return m.Called(n).Int(0)
}
