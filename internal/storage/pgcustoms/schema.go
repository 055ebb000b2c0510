package pgcustoms

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS kyc_validations (
  id UUID PRIMARY KEY,
  customer_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  status TEXT NOT NULL,
  submitted_documents JSONB NOT NULL DEFAULT '{}'::jsonb,
  validation_score INT NULL,
  risk_level TEXT NOT NULL DEFAULT '',
  approved_by TEXT NULL,
  approved_at TIMESTAMPTZ NULL,
  expiry_date TIMESTAMPTZ NULL,
  rejection_reasons JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_kyc_validations_customer_id ON kyc_validations(customer_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS international_shipments (
  id UUID PRIMARY KEY,
  guide_id TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  destination_country CHAR(2) NOT NULL,
  product_category TEXT NOT NULL,
  declared_amount NUMERIC(14,2) NOT NULL,
  currency CHAR(3) NOT NULL,
  kyc_validation_id UUID NULL REFERENCES kyc_validations(id),
  customs_status TEXT NOT NULL,
  customs_tracking_number TEXT NULL,
  estimated_customs_clearance_date TIMESTAMPTZ NULL,
  actual_customs_clearance_date TIMESTAMPTZ NULL,
  customs_hold_reason TEXT NULL,
  customs_fees NUMERIC(14,2) NOT NULL DEFAULT 0,
  insurance_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
  applicable_restrictions JSONB NOT NULL DEFAULT '[]'::jsonb,
  compliance_status TEXT NOT NULL,
  compliance_notes TEXT NULL,
  clearance_next_check_at TIMESTAMPTZ NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CHECK (declared_amount > 0)
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_customer_id ON international_shipments(customer_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_clearance_next_check_at ON international_shipments(clearance_next_check_at) WHERE clearance_next_check_at IS NOT NULL`,
		`
CREATE TABLE IF NOT EXISTS international_documents (
  id UUID PRIMARY KEY,
  shipment_id UUID NOT NULL REFERENCES international_shipments(id) ON DELETE CASCADE,
  guide_id TEXT NOT NULL,
  document_type TEXT NOT NULL,
  file_url TEXT NULL,
  is_translated BOOLEAN NOT NULL DEFAULT FALSE,
  translated_file_url TEXT NULL,
  translation_language TEXT NULL,
  validation_status TEXT NOT NULL,
  validated_by TEXT NULL,
  validated_at TIMESTAMPTZ NULL,
  validation_notes TEXT NULL,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (shipment_id, document_type)
)`,
		`
CREATE TABLE IF NOT EXISTS customs_declarations (
  id UUID PRIMARY KEY,
  shipment_id UUID NOT NULL UNIQUE REFERENCES international_shipments(id) ON DELETE CASCADE,
  guide_id TEXT NOT NULL,
  declared_amount NUMERIC(14,2) NOT NULL,
  currency CHAR(3) NOT NULL,
  product_description TEXT NOT NULL,
  product_category TEXT NOT NULL,
  quantity INT NOT NULL CHECK (quantity > 0),
  weight_kg DOUBLE PRECISION NOT NULL CHECK (weight_kg > 0),
  country_of_origin TEXT NOT NULL,
  hs_code TEXT NULL,
  purpose TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
