package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	DocumentCommercialInvoice    DocumentType = "commercial_invoice"
	DocumentResponsibilityLetter DocumentType = "responsibility_letter"
	DocumentExportPermit         DocumentType = "export_permit"
	DocumentCertificateOfOrigin  DocumentType = "certificate_of_origin"
	DocumentPackingList          DocumentType = "packing_list"
	DocumentCustomsDeclaration   DocumentType = "customs_declaration"
	DocumentInsuranceCertificate DocumentType = "insurance_certificate"
)

var documentTypes = map[DocumentType]struct{}{
	DocumentCommercialInvoice:    {},
	DocumentResponsibilityLetter: {},
	DocumentExportPermit:         {},
	DocumentCertificateOfOrigin:  {},
	DocumentPackingList:          {},
	DocumentCustomsDeclaration:   {},
	DocumentInsuranceCertificate: {},
}

func (t DocumentType) Valid() bool {
	_, ok := documentTypes[t]
	return ok
}

type DocumentValidationStatus string

const (
	DocumentPending DocumentValidationStatus = "pending"
	DocumentValid   DocumentValidationStatus = "valid"
	DocumentInvalid DocumentValidationStatus = "invalid"
)

// Destinations whose customs expect English paperwork, unless Spanish is also accepted there.
var (
	englishRequiredCountries = map[string]struct{}{
		"US": {}, "GB": {}, "CA": {}, "AU": {}, "NZ": {}, "IE": {}, "SG": {},
	}
	spanishAcceptedCountries = map[string]struct{}{
		"ES": {}, "MX": {}, "AR": {}, "CL": {}, "PE": {}, "EC": {}, "PA": {}, "CR": {}, "PR": {},
	}
)

type InternationalDocument struct {
	ID                  uuid.UUID                `json:"id"`
	ShipmentID          uuid.UUID                `json:"shipment_id"`
	ShipmentGuideID     string                   `json:"shipment_guide_id"`
	DocumentType        DocumentType             `json:"document_type"`
	FileURL             *string                  `json:"file_url,omitempty"`
	IsTranslated        bool                     `json:"is_translated"`
	TranslatedFileURL   *string                  `json:"translated_file_url,omitempty"`
	TranslationLanguage *string                  `json:"translation_language,omitempty"`
	ValidationStatus    DocumentValidationStatus `json:"validation_status"`
	ValidatedBy         *string                  `json:"validated_by,omitempty"`
	ValidatedAt         *time.Time               `json:"validated_at,omitempty"`
	ValidationNotes     *string                  `json:"validation_notes,omitempty"`
	Metadata            map[string]any           `json:"metadata,omitempty"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

func NewInternationalDocument(guideID string, docType DocumentType, now time.Time) (*InternationalDocument, error) {
	if guideID == "" {
		return nil, Invalid("guide_id is required")
	}
	if !docType.Valid() {
		return nil, Invalid("unknown document type %q", docType)
	}
	return &InternationalDocument{
		ID:               uuid.New(),
		ShipmentGuideID:  guideID,
		DocumentType:     docType,
		ValidationStatus: DocumentPending,
		Metadata:         map[string]any{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (d *InternationalDocument) Upload(url string, metadata map[string]any, now time.Time) error {
	if url == "" {
		return Invalid("file url is required")
	}
	d.FileURL = &url
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	for k, v := range metadata {
		d.Metadata[k] = v
	}
	d.UpdatedAt = now
	return nil
}

// AddTranslation leaves ValidationStatus alone: a translated copy still needs its own review.
func (d *InternationalDocument) AddTranslation(url, language string, now time.Time) error {
	if url == "" || language == "" {
		return Invalid("translated file url and language are required")
	}
	d.TranslatedFileURL = &url
	d.TranslationLanguage = &language
	d.IsTranslated = true
	d.UpdatedAt = now
	return nil
}

func (d *InternationalDocument) Validate(isValid bool, validatedBy, notes string, now time.Time) error {
	if validatedBy == "" {
		return Invalid("validated_by is required")
	}
	d.ValidationStatus = DocumentInvalid
	if isValid {
		d.ValidationStatus = DocumentValid
	}
	d.ValidatedBy = &validatedBy
	d.ValidatedAt = &now
	d.ValidationNotes = nil
	if notes != "" {
		d.ValidationNotes = &notes
	}
	d.UpdatedAt = now
	return nil
}

func (d *InternationalDocument) RequiresTranslation(destinationCountry string) bool {
	return RequiresTranslation(destinationCountry)
}

func RequiresTranslation(destinationCountry string) bool {
	_, english := englishRequiredCountries[destinationCountry]
	_, spanish := spanishAcceptedCountries[destinationCountry]
	return english && !spanish
}
