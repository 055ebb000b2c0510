package pgcustoms

import (
	"context"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

var pollableStatuses = []string{
	string(models.CustomsInProcess),
	string(models.CustomsRequiresAdditionalInfo),
	string(models.CustomsDetained),
}

// ScheduleClearanceCheck ведёт расписание опроса брокера: nil next снимает shipment с опроса,
// lastErr увеличивает счётчик неудачных проверок, успешная проверка его сбрасывает.
func (s *Storage) ScheduleClearanceCheck(ctx context.Context, id uuid.UUID, next *time.Time, lastErr *string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	switch {
	case next == nil:
		tag, err = s.db.Exec(ctx, `
UPDATE international_shipments
SET clearance_next_check_at = NULL, check_fail_count = 0, last_error = NULL
WHERE id = $1
`, id)
	case lastErr != nil && *lastErr != "":
		tag, err = s.db.Exec(ctx, `
UPDATE international_shipments
SET clearance_next_check_at = $2, check_fail_count = check_fail_count + 1, last_error = $3
WHERE id = $1
`, id, next.UTC(), *lastErr)
	default:
		tag, err = s.db.Exec(ctx, `
UPDATE international_shipments
SET clearance_next_check_at = $2, check_fail_count = 0, last_error = NULL
WHERE id = $1
`, id, next.UTC())
	}
	if err != nil {
		return errors.Wrap(err, "schedule clearance check")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("shipment %s not found", id)
	}
	return nil
}

// ClaimDueClearances выбирает пачку shipments, которые пора проверить у брокера, и
// "бронирует" их на lease, чтобы параллельные воркеры их не взяли.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueClearances(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ClearanceCheck, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT
  id, guide_id, customs_tracking_number, destination_country,
  customs_status, declared_amount::text, currency,
  check_fail_count, clearance_next_check_at
FROM international_shipments
WHERE clearance_next_check_at <= $1
  AND customs_status = ANY($2)
  AND customs_tracking_number IS NOT NULL
ORDER BY clearance_next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), pollableStatuses, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due clearances")
	}
	defer rows.Close()

	var picked []*models.ClearanceCheck
	for rows.Next() {
		var c models.ClearanceCheck
		var amount string
		var currency models.Currency
		if err := rows.Scan(
			&c.ShipmentID, &c.GuideID, &c.TrackingNumber, &c.DestinationCountry,
			&c.CustomsStatus, &amount, &currency,
			&c.CheckFailCount, &c.NextCheckAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan due clearance")
		}
		if c.DeclaredValue, err = money(amount, currency); err != nil {
			return nil, err
		}
		picked = append(picked, &c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	rows.Close()

	leaseUntil := now.UTC().Add(lease)
	for _, c := range picked {
		_, err := tx.Exec(ctx, `UPDATE international_shipments SET clearance_next_check_at = $2 WHERE id = $1`, c.ShipmentID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease clearance")
		}
		c.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}
