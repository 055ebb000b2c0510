package pgcustoms

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const kycColumns = `
  id, customer_id, provider, status,
  submitted_documents, validation_score, risk_level,
  approved_by, approved_at, expiry_date, rejection_reasons,
  created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKYC(row rowScanner) (*models.KYCValidation, error) {
	var k models.KYCValidation
	var docs, reasons []byte
	var risk string
	if err := row.Scan(
		&k.ID, &k.CustomerID, &k.Provider, &k.Status,
		&docs, &k.ValidationScore, &risk,
		&k.ApprovedBy, &k.ApprovedAt, &k.ExpiryDate, &reasons,
		&k.CreatedAt, &k.UpdatedAt,
	); err != nil {
		return nil, err
	}
	k.RiskLevel = models.RiskLevel(risk)
	k.SubmittedDocuments = map[string]string{}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &k.SubmittedDocuments); err != nil {
			return nil, errors.Wrap(err, "decode submitted_documents")
		}
	}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &k.RejectionReasons); err != nil {
			return nil, errors.Wrap(err, "decode rejection_reasons")
		}
	}
	return &k, nil
}

func kycArgs(k *models.KYCValidation) ([]any, error) {
	docs, err := json.Marshal(k.SubmittedDocuments)
	if err != nil {
		return nil, errors.Wrap(err, "encode submitted_documents")
	}
	var reasons []byte
	if k.RejectionReasons != nil {
		if reasons, err = json.Marshal(k.RejectionReasons); err != nil {
			return nil, errors.Wrap(err, "encode rejection_reasons")
		}
	}
	return []any{
		k.ID, k.CustomerID, k.Provider, string(k.Status),
		docs, k.ValidationScore, string(k.RiskLevel),
		k.ApprovedBy, utcPtr(k.ApprovedAt), utcPtr(k.ExpiryDate), reasons,
		k.CreatedAt.UTC(), k.UpdatedAt.UTC(),
	}, nil
}

func (s *Storage) CreateKYC(ctx context.Context, k *models.KYCValidation) error {
	args, err := kycArgs(k)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO kyc_validations (`+kycColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`, args...)
	if isUniqueViolation(err) {
		return models.InvalidState("kyc validation %s already exists", k.ID)
	}
	return errors.Wrap(err, "insert kyc")
}

func (s *Storage) GetKYC(ctx context.Context, id uuid.UUID) (*models.KYCValidation, error) {
	return getKYC(ctx, s.db, id)
}

func getKYC(ctx context.Context, q queryer, id uuid.UUID) (*models.KYCValidation, error) {
	k, err := scanKYC(q.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_validations WHERE id = $1`, id))
	if err != nil {
		return nil, errors.Wrap(notFoundOr(err, "kyc validation %s not found", id), "select kyc")
	}
	return k, nil
}

func (s *Storage) SaveKYC(ctx context.Context, k *models.KYCValidation) error {
	args, err := kycArgs(k)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
UPDATE kyc_validations SET
  customer_id = $2, provider = $3, status = $4,
  submitted_documents = $5, validation_score = $6, risk_level = $7,
  approved_by = $8, approved_at = $9, expiry_date = $10, rejection_reasons = $11,
  created_at = $12, updated_at = $13
WHERE id = $1
`, args...)
	if err != nil {
		return errors.Wrap(err, "update kyc")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("kyc validation %s not found", k.ID)
	}
	return nil
}

func (s *Storage) ListKYCByCustomer(ctx context.Context, customerID string) ([]*models.KYCValidation, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+kycColumns+`
FROM kyc_validations
WHERE customer_id = $1
ORDER BY created_at DESC
`, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "select kyc")
	}
	defer rows.Close()

	out := make([]*models.KYCValidation, 0)
	for rows.Next() {
		k, err := scanKYC(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan kyc")
		}
		out = append(out, k)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
