// Package memstore keeps aggregates in process memory. Every read and write goes through a JSON
// copy so callers never share pointers with the store, the same isolation a database gives.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type schedule struct {
	next      *time.Time
	failCount int32
	lastError *string
}

type Storage struct {
	mu        sync.RWMutex
	shipments map[uuid.UUID][]byte
	kyc       map[uuid.UUID][]byte
	schedules map[uuid.UUID]*schedule
}

func New() *Storage {
	return &Storage{
		shipments: map[uuid.UUID][]byte{},
		kyc:       map[uuid.UUID][]byte{},
		schedules: map[uuid.UUID]*schedule{},
	}
}

func (s *Storage) Close() {}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	return b, errors.Wrap(err, "memstore encode")
}

func decodeShipment(b []byte) (*models.InternationalShipment, error) {
	var sh models.InternationalShipment
	if err := json.Unmarshal(b, &sh); err != nil {
		return nil, errors.Wrap(err, "memstore decode shipment")
	}
	return &sh, nil
}

func decodeKYC(b []byte) (*models.KYCValidation, error) {
	var k models.KYCValidation
	if err := json.Unmarshal(b, &k); err != nil {
		return nil, errors.Wrap(err, "memstore decode kyc")
	}
	return &k, nil
}

// storedShipment drops the embedded KYC; it is re-read on load so its state is never stale.
func storedShipment(sh *models.InternationalShipment) ([]byte, error) {
	cp := *sh
	cp.KYCValidation = nil
	return encode(&cp)
}

func (s *Storage) CreateShipment(ctx context.Context, sh *models.InternationalShipment) error {
	b, err := storedShipment(sh)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[sh.ID]; ok {
		return models.InvalidState("shipment %s already exists", sh.ID)
	}
	for _, raw := range s.shipments {
		other, err := decodeShipment(raw)
		if err != nil {
			return err
		}
		if other.GuideID == sh.GuideID {
			return models.InvalidState("shipment for guide %s already exists", sh.GuideID)
		}
	}
	s.shipments[sh.ID] = b
	return nil
}

func (s *Storage) GetShipment(ctx context.Context, id uuid.UUID) (*models.InternationalShipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadShipment(id)
}

func (s *Storage) loadShipment(id uuid.UUID) (*models.InternationalShipment, error) {
	raw, ok := s.shipments[id]
	if !ok {
		return nil, models.NotFound("shipment %s not found", id)
	}
	sh, err := decodeShipment(raw)
	if err != nil {
		return nil, err
	}
	if sh.KYCValidationID != nil {
		if kb, ok := s.kyc[*sh.KYCValidationID]; ok {
			k, err := decodeKYC(kb)
			if err != nil {
				return nil, err
			}
			sh.KYCValidation = k
		}
	}
	return sh, nil
}

func (s *Storage) SaveShipment(ctx context.Context, sh *models.InternationalShipment) error {
	b, err := storedShipment(sh)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[sh.ID]; !ok {
		return models.NotFound("shipment %s not found", sh.ID)
	}
	s.shipments[sh.ID] = b
	return nil
}

func (s *Storage) ListShipments(ctx context.Context, f models.ShipmentFilter) ([]*models.InternationalShipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.InternationalShipment
	for id := range s.shipments {
		sh, err := s.loadShipment(id)
		if err != nil {
			return nil, err
		}
		if f.Matches(sh) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), nil
}

func page(in []*models.InternationalShipment, limit, offset int) []*models.InternationalShipment {
	if offset >= len(in) {
		return []*models.InternationalShipment{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (s *Storage) ScheduleClearanceCheck(ctx context.Context, id uuid.UUID, next *time.Time, lastErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[id]; !ok {
		return models.NotFound("shipment %s not found", id)
	}
	sc, ok := s.schedules[id]
	if !ok {
		sc = &schedule{}
		s.schedules[id] = sc
	}
	if next == nil {
		delete(s.schedules, id)
		return nil
	}
	at := next.UTC()
	sc.next = &at
	if lastErr != nil && *lastErr != "" {
		sc.failCount++
		msg := *lastErr
		sc.lastError = &msg
	} else {
		sc.failCount = 0
		sc.lastError = nil
	}
	return nil
}

func (s *Storage) ClaimDueClearances(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ClearanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.ClearanceCheck
	for id, sc := range s.schedules {
		if sc.next == nil || sc.next.After(now) {
			continue
		}
		sh, err := s.loadShipment(id)
		if err != nil {
			return nil, err
		}
		if !pollable(sh.CustomsStatus) || sh.CustomsTrackingNumber == nil {
			continue
		}
		due = append(due, &models.ClearanceCheck{
			ShipmentID:         sh.ID,
			GuideID:            sh.GuideID,
			TrackingNumber:     *sh.CustomsTrackingNumber,
			DestinationCountry: sh.DestinationCountry,
			CustomsStatus:      sh.CustomsStatus,
			DeclaredValue:      sh.DeclaredValue,
			CheckFailCount:     sc.failCount,
			NextCheckAt:        *sc.next,
		})
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextCheckAt.Before(due[j].NextCheckAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	leaseUntil := now.UTC().Add(lease)
	for _, c := range due {
		at := leaseUntil
		s.schedules[c.ShipmentID].next = &at
		c.NextCheckAt = leaseUntil
	}
	return due, nil
}

func pollable(st models.CustomsStatus) bool {
	switch st {
	case models.CustomsInProcess, models.CustomsRequiresAdditionalInfo, models.CustomsDetained:
		return true
	}
	return false
}

func (s *Storage) CreateKYC(ctx context.Context, k *models.KYCValidation) error {
	b, err := encode(k)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kyc[k.ID]; ok {
		return models.InvalidState("kyc validation %s already exists", k.ID)
	}
	s.kyc[k.ID] = b
	return nil
}

func (s *Storage) GetKYC(ctx context.Context, id uuid.UUID) (*models.KYCValidation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.kyc[id]
	if !ok {
		return nil, models.NotFound("kyc validation %s not found", id)
	}
	return decodeKYC(b)
}

func (s *Storage) SaveKYC(ctx context.Context, k *models.KYCValidation) error {
	b, err := encode(k)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kyc[k.ID]; !ok {
		return models.NotFound("kyc validation %s not found", k.ID)
	}
	s.kyc[k.ID] = b
	return nil
}

func (s *Storage) ListKYCByCustomer(ctx context.Context, customerID string) ([]*models.KYCValidation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.KYCValidation
	for _, b := range s.kyc {
		k, err := decodeKYC(b)
		if err != nil {
			return nil, err
		}
		if k.CustomerID == customerID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
