package pgcustoms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const shipmentColumns = `
  id, guide_id, customer_id, destination_country, product_category,
  declared_amount::text, currency, kyc_validation_id,
  customs_status, customs_tracking_number,
  estimated_customs_clearance_date, actual_customs_clearance_date, customs_hold_reason,
  customs_fees::text, insurance_amount::text,
  applicable_restrictions, compliance_status, compliance_notes,
  created_at, updated_at`

const shipmentInsertColumns = `
  id, guide_id, customer_id, destination_country, product_category,
  declared_amount, currency, kyc_validation_id,
  customs_status, customs_tracking_number,
  estimated_customs_clearance_date, actual_customs_clearance_date, customs_hold_reason,
  customs_fees, insurance_amount,
  applicable_restrictions, compliance_status, compliance_notes,
  created_at, updated_at`

const documentColumns = `
  id, shipment_id, guide_id, document_type, file_url,
  is_translated, translated_file_url, translation_language,
  validation_status, validated_by, validated_at, validation_notes,
  metadata, created_at, updated_at`

const declarationColumns = `
  id, shipment_id, guide_id, declared_amount::text, currency,
  product_description, product_category, quantity, weight_kg,
  country_of_origin, hs_code, purpose, created_at`

const declarationInsertColumns = `
  id, shipment_id, guide_id, declared_amount, currency,
  product_description, product_category, quantity, weight_kg,
  country_of_origin, hs_code, purpose, created_at`

func money(amount string, currency models.Currency) (models.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return models.Money{}, errors.Wrap(err, "parse amount")
	}
	return models.Money{Amount: d, Currency: currency}, nil
}

func scanShipment(row rowScanner) (*models.InternationalShipment, error) {
	var sh models.InternationalShipment
	var declared, fees, insurance string
	var currency models.Currency
	var restrictions []byte
	if err := row.Scan(
		&sh.ID, &sh.GuideID, &sh.CustomerID, &sh.DestinationCountry, &sh.ProductCategory,
		&declared, &currency, &sh.KYCValidationID,
		&sh.CustomsStatus, &sh.CustomsTrackingNumber,
		&sh.EstimatedCustomsClearanceDate, &sh.ActualCustomsClearanceDate, &sh.CustomsHoldReason,
		&fees, &insurance,
		&restrictions, &sh.ComplianceStatus, &sh.ComplianceNotes,
		&sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if sh.DeclaredValue, err = money(declared, currency); err != nil {
		return nil, err
	}
	if sh.CustomsFees, err = money(fees, currency); err != nil {
		return nil, err
	}
	if sh.InsuranceAmount, err = money(insurance, currency); err != nil {
		return nil, err
	}
	sh.ApplicableRestrictions = []models.CountryRestriction{}
	if len(restrictions) > 0 {
		if err := json.Unmarshal(restrictions, &sh.ApplicableRestrictions); err != nil {
			return nil, errors.Wrap(err, "decode applicable_restrictions")
		}
	}
	sh.Documents = []*models.InternationalDocument{}
	return &sh, nil
}

func scanDocument(row rowScanner) (*models.InternationalDocument, error) {
	var d models.InternationalDocument
	var metadata []byte
	if err := row.Scan(
		&d.ID, &d.ShipmentID, &d.ShipmentGuideID, &d.DocumentType, &d.FileURL,
		&d.IsTranslated, &d.TranslatedFileURL, &d.TranslationLanguage,
		&d.ValidationStatus, &d.ValidatedBy, &d.ValidatedAt, &d.ValidationNotes,
		&metadata, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, errors.Wrap(err, "decode metadata")
		}
	}
	return &d, nil
}

func scanDeclaration(row rowScanner) (*models.CustomsDeclaration, error) {
	var d models.CustomsDeclaration
	var amount string
	var currency models.Currency
	if err := row.Scan(
		&d.ID, &d.ShipmentID, &d.GuideID, &amount, &currency,
		&d.ProductDescription, &d.ProductCategory, &d.Quantity, &d.WeightKg,
		&d.CountryOfOrigin, &d.HSCode, &d.Purpose, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if d.DeclaredValue, err = money(amount, currency); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Storage) CreateShipment(ctx context.Context, sh *models.InternationalShipment) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	restrictions, err := json.Marshal(sh.ApplicableRestrictions)
	if err != nil {
		return errors.Wrap(err, "encode applicable_restrictions")
	}
	_, err = tx.Exec(ctx, `
INSERT INTO international_shipments (`+shipmentInsertColumns+`)
VALUES ($1,$2,$3,$4,$5,$6::numeric,$7,$8,$9,$10,$11,$12,$13,$14::numeric,$15::numeric,$16,$17,$18,$19,$20)
`,
		sh.ID, sh.GuideID, sh.CustomerID, sh.DestinationCountry, sh.ProductCategory,
		sh.DeclaredValue.Amount.String(), string(sh.DeclaredValue.Currency), sh.KYCValidationID,
		string(sh.CustomsStatus), sh.CustomsTrackingNumber,
		utcPtr(sh.EstimatedCustomsClearanceDate), utcPtr(sh.ActualCustomsClearanceDate), sh.CustomsHoldReason,
		sh.CustomsFees.Amount.String(), sh.InsuranceAmount.Amount.String(),
		restrictions, string(sh.ComplianceStatus), sh.ComplianceNotes,
		sh.CreatedAt.UTC(), sh.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return models.InvalidState("shipment for guide %s already exists", sh.GuideID)
	}
	if err != nil {
		return errors.Wrap(err, "insert shipment")
	}
	if err := saveChildren(ctx, tx, sh); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// SaveShipment writes the root row plus every document and the declaration. Documents are
// never removed from a shipment, so upserts are enough.
func (s *Storage) SaveShipment(ctx context.Context, sh *models.InternationalShipment) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	restrictions, err := json.Marshal(sh.ApplicableRestrictions)
	if err != nil {
		return errors.Wrap(err, "encode applicable_restrictions")
	}
	tag, err := tx.Exec(ctx, `
UPDATE international_shipments SET
  declared_amount = $2::numeric,
  kyc_validation_id = $3,
  customs_status = $4,
  customs_tracking_number = $5,
  estimated_customs_clearance_date = $6,
  actual_customs_clearance_date = $7,
  customs_hold_reason = $8,
  customs_fees = $9::numeric,
  insurance_amount = $10::numeric,
  applicable_restrictions = $11,
  compliance_status = $12,
  compliance_notes = $13,
  updated_at = $14
WHERE id = $1
`,
		sh.ID, sh.DeclaredValue.Amount.String(), sh.KYCValidationID,
		string(sh.CustomsStatus), sh.CustomsTrackingNumber,
		utcPtr(sh.EstimatedCustomsClearanceDate), utcPtr(sh.ActualCustomsClearanceDate), sh.CustomsHoldReason,
		sh.CustomsFees.Amount.String(), sh.InsuranceAmount.Amount.String(),
		restrictions, string(sh.ComplianceStatus), sh.ComplianceNotes,
		sh.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "update shipment")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("shipment %s not found", sh.ID)
	}
	if err := saveChildren(ctx, tx, sh); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func saveChildren(ctx context.Context, q queryer, sh *models.InternationalShipment) error {
	for _, d := range sh.Documents {
		metadata, err := json.Marshal(d.Metadata)
		if err != nil {
			return errors.Wrap(err, "encode metadata")
		}
		_, err = q.Exec(ctx, `
INSERT INTO international_documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  file_url = EXCLUDED.file_url,
  is_translated = EXCLUDED.is_translated,
  translated_file_url = EXCLUDED.translated_file_url,
  translation_language = EXCLUDED.translation_language,
  validation_status = EXCLUDED.validation_status,
  validated_by = EXCLUDED.validated_by,
  validated_at = EXCLUDED.validated_at,
  validation_notes = EXCLUDED.validation_notes,
  metadata = EXCLUDED.metadata,
  updated_at = EXCLUDED.updated_at
`,
			d.ID, sh.ID, d.ShipmentGuideID, string(d.DocumentType), d.FileURL,
			d.IsTranslated, d.TranslatedFileURL, d.TranslationLanguage,
			string(d.ValidationStatus), d.ValidatedBy, utcPtr(d.ValidatedAt), d.ValidationNotes,
			metadata, d.CreatedAt.UTC(), d.UpdatedAt.UTC(),
		)
		if isUniqueViolation(err) {
			return models.Invalid("document type already present: %s", d.DocumentType)
		}
		if err != nil {
			return errors.Wrap(err, "upsert document")
		}
	}

	if d := sh.CustomsDeclaration; d != nil {
		// декларация неизменяема, кроме HS-кода и стоимости
		_, err := q.Exec(ctx, `
INSERT INTO customs_declarations (`+declarationInsertColumns+`)
VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (shipment_id) DO UPDATE SET
  hs_code = EXCLUDED.hs_code,
  declared_amount = EXCLUDED.declared_amount
`,
			d.ID, sh.ID, d.GuideID, d.DeclaredValue.Amount.String(), string(d.DeclaredValue.Currency),
			d.ProductDescription, d.ProductCategory, d.Quantity, d.WeightKg,
			d.CountryOfOrigin, d.HSCode, string(d.Purpose), d.CreatedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "upsert declaration")
		}
	}
	return nil
}

func (s *Storage) GetShipment(ctx context.Context, id uuid.UUID) (*models.InternationalShipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM international_shipments WHERE id = $1`, id))
	if err != nil {
		return nil, errors.Wrap(notFoundOr(err, "shipment %s not found", id), "select shipment")
	}
	if err := s.hydrate(ctx, []*models.InternationalShipment{sh}); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *Storage) ListShipments(ctx context.Context, f models.ShipmentFilter) ([]*models.InternationalShipment, error) {
	var where []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id", f.CustomerID)
	}
	if f.GuideID != "" {
		add("guide_id", f.GuideID)
	}
	if f.DestinationCountry != "" {
		add("destination_country", f.DestinationCountry)
	}
	if f.CustomsStatus != "" {
		add("customs_status", string(f.CustomsStatus))
	}

	q := `SELECT ` + shipmentColumns + ` FROM international_shipments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	out := make([]*models.InternationalShipment, 0)
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	rows.Close()

	if err := s.hydrate(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// hydrate loads documents, declarations and the attached KYC for a batch of shipments.
func (s *Storage) hydrate(ctx context.Context, shipments []*models.InternationalShipment) error {
	if len(shipments) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.InternationalShipment, len(shipments))
	ids := make([]uuid.UUID, 0, len(shipments))
	for _, sh := range shipments {
		byID[sh.ID] = sh
		ids = append(ids, sh.ID)
	}

	rows, err := s.db.Query(ctx, `
SELECT `+documentColumns+`
FROM international_documents
WHERE shipment_id = ANY($1)
ORDER BY created_at ASC, id
`, ids)
	if err != nil {
		return errors.Wrap(err, "select documents")
	}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return errors.Wrap(err, "scan document")
		}
		byID[d.ShipmentID].Documents = append(byID[d.ShipmentID].Documents, d)
	}
	rows.Close()
	if rows.Err() != nil {
		return errors.Wrap(rows.Err(), "rows")
	}

	rows, err = s.db.Query(ctx, `SELECT `+declarationColumns+` FROM customs_declarations WHERE shipment_id = ANY($1)`, ids)
	if err != nil {
		return errors.Wrap(err, "select declarations")
	}
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			rows.Close()
			return errors.Wrap(err, "scan declaration")
		}
		byID[d.ShipmentID].CustomsDeclaration = d
	}
	rows.Close()
	if rows.Err() != nil {
		return errors.Wrap(rows.Err(), "rows")
	}

	for _, sh := range shipments {
		if sh.KYCValidationID == nil {
			continue
		}
		k, err := getKYC(ctx, s.db, *sh.KYCValidationID)
		if err != nil {
			return err
		}
		sh.KYCValidation = k
	}
	return nil
}
