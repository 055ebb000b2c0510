package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/cache"
	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/BearBump/CustomsBox/internal/metrics"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/reference"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultEventsTopic = "shipment.events"

// InsuranceRate is the flat premium applied to the declared value.
var InsuranceRate = decimal.RequireFromString("0.02")

// ShipmentRepository loads and stores the whole aggregate: documents, declaration and the
// attached KYC come back with GetShipment, SaveShipment persists all of them.
type ShipmentRepository interface {
	CreateShipment(ctx context.Context, s *models.InternationalShipment) error
	GetShipment(ctx context.Context, id uuid.UUID) (*models.InternationalShipment, error)
	SaveShipment(ctx context.Context, s *models.InternationalShipment) error
	ListShipments(ctx context.Context, f models.ShipmentFilter) ([]*models.InternationalShipment, error)
	// ScheduleClearanceCheck sets when the clearance worker should look at the shipment next.
	// A nil next removes it from the schedule; a non-nil lastErr counts as a failed check.
	ScheduleClearanceCheck(ctx context.Context, id uuid.UUID, next *time.Time, lastErr *string) error
}

type KYCRepository interface {
	CreateKYC(ctx context.Context, k *models.KYCValidation) error
	GetKYC(ctx context.Context, id uuid.UUID) (*models.KYCValidation, error)
	SaveKYC(ctx context.Context, k *models.KYCValidation) error
	ListKYCByCustomer(ctx context.Context, customerID string) ([]*models.KYCValidation, error)
}

type Repository interface {
	ShipmentRepository
	KYCRepository
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Options struct {
	Locker      Locker
	Cache       cache.BytesCache
	CacheTTL    time.Duration
	Events      Publisher
	EventsTopic string
	Metrics     *metrics.Shipping
	Now         func() time.Time
}

type Service struct {
	repo        Repository
	tables      *reference.Tables
	locker      Locker
	cache       cache.BytesCache
	cacheTTL    time.Duration
	events      Publisher
	eventsTopic string
	metrics     *metrics.Shipping
	now         func() time.Time
}

func New(repo Repository, tables *reference.Tables, opts Options) *Service {
	if tables == nil {
		tables = reference.Defaults()
	}
	s := &Service{
		repo:        repo,
		tables:      tables,
		locker:      opts.Locker,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		events:      opts.Events,
		eventsTopic: opts.EventsTopic,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
	if s.locker == nil {
		s.locker = NewKeyedLocker()
	}
	if s.eventsTopic == "" {
		s.eventsTopic = DefaultEventsTopic
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) ListRestrictions(country, category string) []models.CountryRestriction {
	return s.tables.RestrictionsFor(country, category)
}

func shipmentLockKey(id uuid.UUID) string {
	return "shipment:" + id.String()
}

func kycLockKey(id uuid.UUID) string {
	return "kyc:" + id.String()
}

func currentKey(id uuid.UUID) string {
	return fmt.Sprintf("shipment:%s:current", id)
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

// storeSnapshot is best effort: a failed cache write only costs a DB read later.
func (s *Service) storeSnapshot(ctx context.Context, sh *models.InternationalShipment) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(sh)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, currentKey(sh.ID), b, s.cacheTTL); err != nil {
		logging.FromContext(ctx).Warn("shipment cache set failed", "shipment_id", sh.ID, "error", err)
	}
}

func (s *Service) dropSnapshot(ctx context.Context, id uuid.UUID) {
	if !s.cacheEnabled() {
		return
	}
	_ = s.cache.Delete(ctx, currentKey(id))
}

// mutateShipment runs fn against a fresh copy of the aggregate under its lock and persists the
// result. The cache is never used as the source for a mutation.
func (s *Service) mutateShipment(ctx context.Context, id uuid.UUID, op, event string, fn func(sh *models.InternationalShipment, now time.Time) error) (*models.InternationalShipment, error) {
	defer s.metrics.ObserveOperation(op, time.Now())

	unlock, err := s.locker.Lock(ctx, shipmentLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	sh, err := s.repo.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	compliance, customs := sh.ComplianceStatus, sh.CustomsStatus

	if err := fn(sh, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveShipment(ctx, sh); err != nil {
		s.dropSnapshot(ctx, id)
		return nil, err
	}
	s.storeSnapshot(ctx, sh)

	if event != "" {
		s.publish(ctx, event, sh, nil)
	}
	if sh.ComplianceStatus != compliance {
		s.metrics.IncCompliance(string(sh.ComplianceStatus))
		s.publish(ctx, messages.EventComplianceEvaluated, sh, complianceDetails(sh))
	}
	if sh.CustomsStatus != customs {
		s.metrics.IncCustomsTransition(string(sh.CustomsStatus))
		s.publish(ctx, messages.EventCustomsStatusChanged, sh, map[string]string{"previous_status": string(customs)})
	}
	return sh, nil
}

func (s *Service) mutateKYC(ctx context.Context, id uuid.UUID, op string, fn func(k *models.KYCValidation, now time.Time) error) (*models.KYCValidation, error) {
	defer s.metrics.ObserveOperation(op, time.Now())

	unlock, err := s.locker.Lock(ctx, kycLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	k, err := s.repo.GetKYC(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(k, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveKYC(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

// publish is fire-and-forget: the aggregate is already committed and the event is advisory.
func (s *Service) publish(ctx context.Context, eventType string, sh *models.InternationalShipment, details map[string]string) {
	if s.events == nil {
		return
	}
	ev := messages.ShipmentEvent{
		Type:             eventType,
		ShipmentID:       sh.ID,
		GuideID:          sh.GuideID,
		CustomerID:       sh.CustomerID,
		CustomsStatus:    string(sh.CustomsStatus),
		ComplianceStatus: string(sh.ComplianceStatus),
		OccurredAt:       sh.UpdatedAt,
		Details:          details,
	}
	if err := s.events.PublishJSON(ctx, s.eventsTopic, sh.ID.String(), ev); err != nil {
		logging.FromContext(ctx).Warn("shipment event publish failed",
			slog.String("type", eventType), slog.String("shipment_id", sh.ID.String()), slog.Any("error", err))
	}
}

func complianceDetails(sh *models.InternationalShipment) map[string]string {
	if sh.ComplianceNotes == nil {
		return nil
	}
	return map[string]string{"notes": *sh.ComplianceNotes}
}
