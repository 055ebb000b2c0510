package shipping

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/google/uuid"
)

func (s *Service) CreateInternationalShipment(ctx context.Context, in models.ShipmentInput) (*models.InternationalShipment, error) {
	defer s.metrics.ObserveOperation("create_shipment", time.Now())

	sh, err := models.NewInternationalShipment(in, s.now())
	if err != nil {
		return nil, err
	}
	sh.ValidateCountryRestrictions(s.tables.Restrictions, sh.CreatedAt)

	if err := s.repo.CreateShipment(ctx, sh); err != nil {
		return nil, err
	}
	s.storeSnapshot(ctx, sh)
	s.metrics.IncShipmentCreated()
	s.metrics.IncCompliance(string(sh.ComplianceStatus))
	s.publish(ctx, messages.EventShipmentCreated, sh, complianceDetails(sh))
	return sh, nil
}

func (s *Service) GetShipment(ctx context.Context, id uuid.UUID) (*models.InternationalShipment, error) {
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, currentKey(id)); err == nil && ok {
			var sh models.InternationalShipment
			if json.Unmarshal(b, &sh) == nil {
				return &sh, nil
			}
		}
	}
	sh, err := s.repo.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.storeSnapshot(ctx, sh)
	return sh, nil
}

func (s *Service) ListShipments(ctx context.Context, f models.ShipmentFilter) ([]*models.InternationalShipment, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.DestinationCountry != "" {
		f.DestinationCountry = models.NormalizeCountry(f.DestinationCountry)
	}
	return s.repo.ListShipments(ctx, f)
}

// AttachKYCValidation reads the KYC without taking its lock; only the shipment is written.
func (s *Service) AttachKYCValidation(ctx context.Context, shipmentID, kycID uuid.UUID) (*models.InternationalShipment, error) {
	k, err := s.repo.GetKYC(ctx, kycID)
	if err != nil {
		return nil, err
	}
	return s.mutateShipment(ctx, shipmentID, "attach_kyc", messages.EventKYCAttached, func(sh *models.InternationalShipment, now time.Time) error {
		return sh.SetKYCValidation(k, now)
	})
}

func (s *Service) CreateCustomsDeclaration(ctx context.Context, shipmentID uuid.UUID, in models.DeclarationInput) (*models.CustomsDeclaration, error) {
	sh, err := s.mutateShipment(ctx, shipmentID, "create_declaration", messages.EventDeclarationCreated, func(sh *models.InternationalShipment, now time.Time) error {
		decl, err := sh.CreateCustomsDeclaration(in, now)
		if err != nil {
			return err
		}
		decl.SetHSCode(s.tables.HSCodes.Lookup(decl.ProductCategory, decl.ProductDescription))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sh.CustomsDeclaration, nil
}

type AddDocumentInput struct {
	DocumentType models.DocumentType
	FileURL      string
	Metadata     map[string]any
}

// AddRequiredDocument attaches a document and marks it when the destination expects an
// English copy. No translation happens here.
func (s *Service) AddRequiredDocument(ctx context.Context, shipmentID uuid.UUID, in AddDocumentInput) (*models.InternationalDocument, error) {
	var doc *models.InternationalDocument
	_, err := s.mutateShipment(ctx, shipmentID, "add_document", messages.EventDocumentAdded, func(sh *models.InternationalShipment, now time.Time) error {
		d, err := models.NewInternationalDocument(sh.GuideID, in.DocumentType, now)
		if err != nil {
			return err
		}
		if in.FileURL != "" {
			if err := d.Upload(in.FileURL, in.Metadata, now); err != nil {
				return err
			}
		}
		if d.RequiresTranslation(sh.DestinationCountry) {
			d.Metadata["requires_translation"] = true
		}
		if err := sh.AddDocument(d, now); err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) ValidateDocument(ctx context.Context, shipmentID, documentID uuid.UUID, isValid bool, validatedBy, notes string) (*models.InternationalDocument, error) {
	var doc *models.InternationalDocument
	_, err := s.mutateShipment(ctx, shipmentID, "validate_document", "", func(sh *models.InternationalShipment, now time.Time) error {
		d := sh.DocumentByID(documentID)
		if d == nil {
			return models.NotFound("document %s not found on shipment %s", documentID, shipmentID)
		}
		if err := d.Validate(isValid, validatedBy, notes, now); err != nil {
			return err
		}
		sh.UpdatedAt = now
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) AddDocumentTranslation(ctx context.Context, shipmentID, documentID uuid.UUID, url, language string) (*models.InternationalDocument, error) {
	var doc *models.InternationalDocument
	_, err := s.mutateShipment(ctx, shipmentID, "add_translation", "", func(sh *models.InternationalShipment, now time.Time) error {
		d := sh.DocumentByID(documentID)
		if d == nil {
			return models.NotFound("document %s not found on shipment %s", documentID, shipmentID)
		}
		if err := d.AddTranslation(url, language, now); err != nil {
			return err
		}
		sh.UpdatedAt = now
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// RevalidateCompliance re-runs restriction evaluation, e.g. after the reference table changed.
func (s *Service) RevalidateCompliance(ctx context.Context, shipmentID uuid.UUID) (*models.InternationalShipment, error) {
	return s.mutateShipment(ctx, shipmentID, "revalidate_compliance", "", func(sh *models.InternationalShipment, now time.Time) error {
		sh.ValidateCountryRestrictions(s.tables.Restrictions, now)
		return nil
	})
}

func (s *Service) UpdateDeclaredValue(ctx context.Context, shipmentID uuid.UUID, v models.Money) (*models.InternationalShipment, error) {
	return s.mutateShipment(ctx, shipmentID, "update_declared_value", "", func(sh *models.InternationalShipment, now time.Time) error {
		return sh.UpdateDeclaredValue(v, now)
	})
}

// CheckShipmentReadiness never mutates; it always reads the repository so KYC expiry is current.
func (s *Service) CheckShipmentReadiness(ctx context.Context, shipmentID uuid.UUID) (models.ReadinessReport, error) {
	sh, err := s.repo.GetShipment(ctx, shipmentID)
	if err != nil {
		return models.ReadinessReport{}, err
	}
	return sh.Readiness(s.now()), nil
}
