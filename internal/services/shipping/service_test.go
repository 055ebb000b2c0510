package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	cachemocks "github.com/BearBump/CustomsBox/internal/cache/mocks"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	shippingmocks "github.com/BearBump/CustomsBox/internal/services/shipping/mocks"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite

	repo   *shippingmocks.MockRepository
	cache  *cachemocks.MockBytesCache
	events *shippingmocks.MockPublisher
	svc    *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &shippingmocks.MockRepository{}
	s.cache = &cachemocks.MockBytesCache{}
	s.events = &shippingmocks.MockPublisher{}
	s.svc = New(s.repo, nil, Options{
		Cache:    s.cache,
		CacheTTL: 10 * time.Minute,
		Events:   s.events,
		Now:      func() time.Time { return fixedNow },
	})
}

func (s *ServiceSuite) shipment() *models.InternationalShipment {
	sh, err := models.NewInternationalShipment(models.ShipmentInput{
		GuideID:            "G-1",
		CustomerID:         "C-1",
		DestinationCountry: "US",
		ProductCategory:    "electronics",
		DeclaredValue:      models.MustMoney("500", models.CurrencyUSD),
	}, fixedNow)
	s.Require().NoError(err)
	return sh
}

func eventOfType(eventType string) any {
	return mock.MatchedBy(func(ev messages.ShipmentEvent) bool { return ev.Type == eventType })
}

func (s *ServiceSuite) TestCreate_ValidationErrorNeverReachesRepo() {
	_, err := s.svc.CreateInternationalShipment(context.Background(), models.ShipmentInput{GuideID: "G-1"})
	s.Require().ErrorIs(err, models.ErrValidation)
	s.repo.AssertNotCalled(s.T(), "CreateShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreate_EvaluatesComplianceAndPublishes() {
	s.repo.On("CreateShipment", mock.Anything, mock.MatchedBy(func(sh *models.InternationalShipment) bool {
		return sh.ComplianceStatus == models.ComplianceNonCompliant && len(sh.ApplicableRestrictions) == 1
	})).Return(nil).Once()
	s.cache.On("Set", mock.Anything, mock.AnythingOfType("string"), mock.Anything, 10*time.Minute).Return(nil).Once()
	// ошибка публикации не ломает создание
	s.events.On("PublishJSON", mock.Anything, DefaultEventsTopic, mock.AnythingOfType("string"), eventOfType(messages.EventShipmentCreated)).
		Return(errors.New("kafka down")).Once()

	sh, err := s.svc.CreateInternationalShipment(context.Background(), models.ShipmentInput{
		GuideID:            "G-1",
		CustomerID:         "C-1",
		DestinationCountry: "us",
		ProductCategory:    "electronics",
		DeclaredValue:      models.MustMoney("500", models.CurrencyUSD),
	})
	s.Require().NoError(err)
	s.Require().Equal("US", sh.DestinationCountry)
	s.Require().NotNil(sh.ComplianceNotes)
	s.Require().Contains(*sh.ComplianceNotes, "certificate_of_origin")
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
	s.events.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetShipment_CacheHit_NoDB() {
	sh := s.shipment()
	b, _ := json.Marshal(sh)
	s.cache.On("Get", mock.Anything, currentKey(sh.ID)).Return(b, true, nil).Once()

	out, err := s.svc.GetShipment(context.Background(), sh.ID)
	s.Require().NoError(err)
	s.Require().Equal(sh.ID, out.ID)
	s.repo.AssertNotCalled(s.T(), "GetShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetShipment_CacheErrorAndBadJSONAreMisses() {
	sh := s.shipment()
	s.cache.On("Get", mock.Anything, currentKey(sh.ID)).Return([]byte(nil), false, errors.New("redis down")).Once()
	s.cache.On("Get", mock.Anything, currentKey(sh.ID)).Return([]byte("not-json"), true, nil).Once()
	s.repo.On("GetShipment", mock.Anything, sh.ID).Return(sh, nil).Twice()
	s.cache.On("Set", mock.Anything, currentKey(sh.ID), mock.Anything, 10*time.Minute).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		out, err := s.svc.GetShipment(context.Background(), sh.ID)
		s.Require().NoError(err)
		s.Require().Equal(sh.ID, out.ID)
	}
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetShipment_TTLZeroDisablesCache() {
	svc := New(s.repo, nil, Options{Cache: s.cache})
	sh := s.shipment()
	s.repo.On("GetShipment", mock.Anything, sh.ID).Return(sh, nil).Once()

	_, err := svc.GetShipment(context.Background(), sh.ID)
	s.Require().NoError(err)
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestMutate_NotFound() {
	id := uuid.New()
	s.repo.On("GetShipment", mock.Anything, id).Return(nil, models.NotFound("shipment %s not found", id)).Once()

	_, err := s.svc.DetainAtCustoms(context.Background(), id, "inspection")
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.repo.AssertNotCalled(s.T(), "SaveShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestMutate_ModelErrorIsNotSaved() {
	sh := s.shipment()
	s.repo.On("GetShipment", mock.Anything, sh.ID).Return(sh, nil).Once()

	_, err := s.svc.DetainAtCustoms(context.Background(), sh.ID, "")
	s.Require().ErrorIs(err, models.ErrValidation)
	s.repo.AssertNotCalled(s.T(), "SaveShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestMutate_SaveFailureDropsSnapshot() {
	sh := s.shipment()
	want := errors.New("db error")
	s.repo.On("GetShipment", mock.Anything, sh.ID).Return(sh, nil).Once()
	s.repo.On("SaveShipment", mock.Anything, sh).Return(want).Once()
	s.cache.On("Delete", mock.Anything, currentKey(sh.ID)).Return(nil).Once()

	_, err := s.svc.DetainAtCustoms(context.Background(), sh.ID, "inspection")
	s.Require().ErrorIs(err, want)
	s.cache.AssertExpectations(s.T())
	s.events.AssertNotCalled(s.T(), "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestDetain_PublishesStatusChange() {
	sh := s.shipment()
	s.repo.On("GetShipment", mock.Anything, sh.ID).Return(sh, nil).Once()
	s.repo.On("SaveShipment", mock.Anything, sh).Return(nil).Once()
	s.cache.On("Set", mock.Anything, currentKey(sh.ID), mock.Anything, 10*time.Minute).Return(nil).Once()
	s.events.On("PublishJSON", mock.Anything, DefaultEventsTopic, sh.ID.String(), mock.MatchedBy(func(ev messages.ShipmentEvent) bool {
		return ev.Type == messages.EventCustomsStatusChanged &&
			ev.CustomsStatus == string(models.CustomsDetained) &&
			ev.Details["previous_status"] == string(models.CustomsPending)
	})).Return(nil).Once()

	out, err := s.svc.DetainAtCustoms(context.Background(), sh.ID, "inspection")
	s.Require().NoError(err)
	s.Require().Equal(models.CustomsDetained, out.CustomsStatus)
	s.Require().Equal("inspection", *out.CustomsHoldReason)
	s.events.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestStartCustomsClearance_NotReadyIsFalseNil() {
	sh := s.shipment()
	s.repo.On("GetShipment", mock.Anything, sh.ID).Return(sh, nil).Once()

	ok, err := s.svc.StartCustomsClearance(context.Background(), sh.ID)
	s.Require().NoError(err)
	s.Require().False(ok)
	s.repo.AssertNotCalled(s.T(), "SaveShipment", mock.Anything, mock.Anything)
	s.repo.AssertNotCalled(s.T(), "ScheduleClearanceCheck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestStartCustomsClearance_UnknownShipment() {
	id := uuid.New()
	s.repo.On("GetShipment", mock.Anything, id).Return(nil, models.NotFound("shipment %s not found", id)).Once()

	ok, err := s.svc.StartCustomsClearance(context.Background(), id)
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.Require().False(ok)
}

func (s *ServiceSuite) TestApplyCustomsUpdate_RequiresShipmentID() {
	err := s.svc.ApplyCustomsUpdate(context.Background(), messages.CustomsUpdated{})
	s.Require().ErrorIs(err, models.ErrValidation)
	s.repo.AssertNotCalled(s.T(), "GetShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestApplyCustomsUpdate_UnknownShipmentIsAcked() {
	id := uuid.New()
	s.repo.On("GetShipment", mock.Anything, id).Return(nil, models.NotFound("shipment %s not found", id)).Once()

	err := s.svc.ApplyCustomsUpdate(context.Background(), messages.CustomsUpdated{ShipmentID: id, Status: "cleared"})
	s.Require().NoError(err)
	s.repo.AssertNotCalled(s.T(), "ScheduleClearanceCheck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestApplyCustomsUpdate_NotApplicableReschedulesWithReason() {
	sh := s.shipment() // pending: cannot be cleared
	s.repo.On("GetShipment", mock.Anything, sh.ID).Return(sh, nil).Once()
	s.repo.On("ScheduleClearanceCheck", mock.Anything, sh.ID,
		mock.MatchedBy(func(next *time.Time) bool { return next != nil && next.Equal(fixedNow.Add(time.Hour)) }),
		mock.MatchedBy(func(reason *string) bool { return reason != nil && *reason != "" }),
	).Return(nil).Once()

	err := s.svc.ApplyCustomsUpdate(context.Background(), messages.CustomsUpdated{ShipmentID: sh.ID, Status: "cleared"})
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
	s.repo.AssertNotCalled(s.T(), "SaveShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestApplyCustomsUpdate_InfraErrorIsReturned() {
	id := uuid.New()
	want := errors.New("db down")
	s.repo.On("GetShipment", mock.Anything, id).Return(nil, want).Once()

	err := s.svc.ApplyCustomsUpdate(context.Background(), messages.CustomsUpdated{ShipmentID: id, Status: "cleared"})
	s.Require().ErrorIs(err, want)
}

func (s *ServiceSuite) TestListShipments_ClampsPaging() {
	s.repo.On("ListShipments", mock.Anything, models.ShipmentFilter{CustomerID: "C-1", Limit: 50, Offset: 0}).
		Return([]*models.InternationalShipment{}, nil).Once()

	_, err := s.svc.ListShipments(context.Background(), models.ShipmentFilter{CustomerID: "C-1", Limit: 1000, Offset: -3})
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestAttachKYC_UnknownKYC() {
	sh := s.shipment()
	kycID := uuid.New()
	s.repo.On("GetKYC", mock.Anything, kycID).Return(nil, models.NotFound("kyc validation %s not found", kycID)).Once()

	_, err := s.svc.AttachKYCValidation(context.Background(), sh.ID, kycID)
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.repo.AssertNotCalled(s.T(), "GetShipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestListCustomerKYC_RequiresCustomer() {
	_, err := s.svc.ListCustomerKYC(context.Background(), "")
	s.Require().ErrorIs(err, models.ErrValidation)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
