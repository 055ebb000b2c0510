package clearance

import (
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	clearancemocks "github.com/BearBump/CustomsBox/internal/services/clearance/mocks"
)

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay() {
	p := NewPlanner(PlannerConfig{}, &clearancemocks.Rand{})
	s.Equal(5*time.Minute, p.BackoffDelay(1))
	s.Equal(15*time.Minute, p.BackoffDelay(2))
	s.Equal(30*time.Minute, p.BackoffDelay(3))
	s.Equal(60*time.Minute, p.BackoffDelay(4))
	s.Equal(60*time.Minute, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestNextCheckDelay_InProcess_UsesRand() {
	m := &clearancemocks.Rand{}
	// окно 30..60 минут = 1801 вариант в секундах
	m.On("Intn", 1801).Return(600).Once()

	p := NewPlanner(DefaultPlannerConfig(), m)
	s.Equal(40*time.Minute, p.NextCheckDelay(models.CustomsInProcess))
	m.AssertExpectations(s.T())
}

func (s *PlannerSuite) TestNextCheckDelay_FixedWindowSkipsRand() {
	m := &clearancemocks.Rand{}
	p := NewPlanner(PlannerConfig{InProcessMinDelay: time.Minute, InProcessMaxDelay: time.Minute}, m)
	s.Equal(time.Minute, p.NextCheckDelay(models.CustomsInProcess))
	m.AssertNotCalled(s.T(), "Intn", mock.Anything)
}

func (s *PlannerSuite) TestNextCheckDelay_PerStatus() {
	p := NewPlanner(PlannerConfig{}, &clearancemocks.Rand{})
	s.Equal(4*time.Hour, p.NextCheckDelay(models.CustomsRequiresAdditionalInfo))
	s.Equal(6*time.Hour, p.NextCheckDelay(models.CustomsDetained))
	s.Equal(time.Hour, p.NextCheckDelay(""))
	s.Zero(p.NextCheckDelay(models.CustomsCleared))
	s.Zero(p.NextCheckDelay(models.CustomsRejected))
}

func (s *PlannerSuite) TestNewPlanner_MaxBelowMinIsRaised() {
	p := NewPlanner(PlannerConfig{InProcessMinDelay: 10 * time.Minute, InProcessMaxDelay: 5 * time.Minute}, nil)
	s.Equal(10*time.Minute, p.NextCheckDelay(models.CustomsInProcess))
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
