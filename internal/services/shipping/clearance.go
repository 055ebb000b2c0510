package shipping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var errNotReady = errors.New("shipment not ready for customs clearance")

func newTrackingNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("CUS-%s-%s", now.Format("20060102"), strings.ToUpper(id[:8]))
}

// StartCustomsClearance reports (false, nil) when the shipment is not ready yet; that is an
// expected, retryable outcome. An unknown shipment is an ErrNotFound error.
func (s *Service) StartCustomsClearance(ctx context.Context, shipmentID uuid.UUID) (bool, error) {
	sh, err := s.mutateShipment(ctx, shipmentID, "start_clearance", "", func(sh *models.InternationalShipment, now time.Time) error {
		if !sh.IsReadyForShipping(now) {
			return errNotReady
		}
		return sh.StartCustomsClearance(newTrackingNumber(now), now)
	})
	if errors.Is(err, errNotReady) {
		s.metrics.IncClearanceNotReady()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.repo.ScheduleClearanceCheck(ctx, sh.ID, &sh.UpdatedAt, nil); err != nil {
		return true, errors.Wrap(err, "schedule clearance check")
	}
	return true, nil
}

func (s *Service) DetainAtCustoms(ctx context.Context, shipmentID uuid.UUID, reason string) (*models.InternationalShipment, error) {
	return s.mutateShipment(ctx, shipmentID, "detain", "", func(sh *models.InternationalShipment, now time.Time) error {
		return sh.DetainAtCustoms(reason, now)
	})
}

func (s *Service) CalculateInternationalCosts(ctx context.Context, shipmentID uuid.UUID) (models.CostBreakdown, error) {
	var out models.CostBreakdown
	_, err := s.mutateShipment(ctx, shipmentID, "calculate_costs", "", func(sh *models.InternationalShipment, now time.Time) error {
		insurance, err := sh.DeclaredValue.MulRate(InsuranceRate)
		if err != nil {
			return err
		}
		if err := sh.SetInsuranceAmount(insurance, now); err != nil {
			return err
		}
		total, err := sh.CalculateTotalInternationalCosts()
		if err != nil {
			return err
		}
		out = models.CostBreakdown{CustomsFees: sh.CustomsFees, Insurance: insurance, Total: total}
		return nil
	})
	if err != nil {
		return models.CostBreakdown{}, err
	}
	return out, nil
}

func isTerminal(st models.CustomsStatus) bool {
	return st == models.CustomsCleared || st == models.CustomsRejected
}

// ApplyCustomsUpdate applies a broker outcome reported by the clearance worker. Updates that no
// longer fit the current state (late or duplicate deliveries) are logged and acknowledged so the
// consumer keeps moving; infrastructure errors are returned for redelivery.
func (s *Service) ApplyCustomsUpdate(ctx context.Context, msg messages.CustomsUpdated) error {
	if msg.ShipmentID == uuid.Nil {
		return models.Invalid("shipment_id is required")
	}
	log := logging.FromContext(ctx).With("shipment_id", msg.ShipmentID.String(), "status", msg.Status)
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = s.now()
	}
	if msg.NextCheckAt.IsZero() {
		// воркер не прислал next_check_at: проверим через час
		msg.NextCheckAt = msg.CheckedAt.Add(time.Hour)
	}

	sh, err := s.mutateShipment(ctx, msg.ShipmentID, "apply_customs_update", "", func(sh *models.InternationalShipment, now time.Time) error {
		return applyStatus(sh, msg, now)
	})
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Warn("customs update for unknown shipment dropped")
		return nil
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrCurrencyMismatch):
		log.Warn("customs update not applicable", "error", err)
		reason := err.Error()
		return s.repo.ScheduleClearanceCheck(ctx, msg.ShipmentID, &msg.NextCheckAt, &reason)
	case err != nil:
		return err
	}

	if isTerminal(sh.CustomsStatus) {
		return s.repo.ScheduleClearanceCheck(ctx, sh.ID, nil, nil)
	}
	return s.repo.ScheduleClearanceCheck(ctx, sh.ID, &msg.NextCheckAt, msg.Error)
}

func applyStatus(sh *models.InternationalShipment, msg messages.CustomsUpdated, now time.Time) error {
	target := models.CustomsStatus(msg.Status)
	if target == "" || target == sh.CustomsStatus {
		return nil
	}
	reason := ""
	if msg.Reason != nil {
		reason = *msg.Reason
	}

	// a broker answer past the info request implies the info was delivered
	if sh.CustomsStatus == models.CustomsRequiresAdditionalInfo &&
		(target == models.CustomsInProcess || target == models.CustomsCleared) {
		if err := sh.ResumeCustomsClearance(now); err != nil {
			return err
		}
	}

	switch target {
	case models.CustomsInProcess:
		if sh.CustomsStatus != models.CustomsInProcess {
			return models.InvalidState("cannot move from %s back to in_process", sh.CustomsStatus)
		}
		return nil
	case models.CustomsCleared:
		fees := models.ZeroMoney(sh.DeclaredValue.Currency)
		if msg.Fees != nil {
			m, err := models.NewMoney(msg.Fees.Amount, models.Currency(msg.Fees.Currency))
			if err != nil {
				return err
			}
			fees = m
		}
		return sh.CompleteCustomsClearance(fees, now)
	case models.CustomsDetained:
		if reason == "" {
			reason = "detained by customs"
		}
		return sh.DetainAtCustoms(reason, now)
	case models.CustomsRequiresAdditionalInfo:
		if reason == "" {
			reason = "customs requested additional information"
		}
		return sh.RequestAdditionalInfo(reason, now)
	case models.CustomsRejected:
		if reason == "" {
			reason = "rejected by customs"
		}
		return sh.RejectAtCustoms(reason, now)
	}
	return models.Invalid("unknown customs status %q", msg.Status)
}
