package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CustomsStatus string

const (
	CustomsPending                CustomsStatus = "pending"
	CustomsInProcess              CustomsStatus = "in_process"
	CustomsCleared                CustomsStatus = "cleared"
	CustomsDetained               CustomsStatus = "detained"
	CustomsRejected               CustomsStatus = "rejected"
	CustomsRequiresAdditionalInfo CustomsStatus = "requires_additional_info"
)

type ComplianceStatus string

const (
	CompliancePending      ComplianceStatus = "pending"
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
)

// MinCustomsClearanceDays is the floor for the clearance estimate whatever the restriction table says.
const MinCustomsClearanceDays = 3

var baselineDocuments = []DocumentType{DocumentCommercialInvoice, DocumentResponsibilityLetter}

// InternationalShipment is the aggregate root of a cross-border shipment. Readiness and missing
// documents are always derived from the attached state and never stored.
type InternationalShipment struct {
	ID                 uuid.UUID `json:"id"`
	GuideID            string    `json:"guide_id"`
	CustomerID         string    `json:"customer_id"`
	DestinationCountry string    `json:"destination_country"`
	ProductCategory    string    `json:"product_category"`
	DeclaredValue      Money     `json:"declared_value"`

	KYCValidationID    *uuid.UUID               `json:"kyc_validation_id,omitempty"`
	KYCValidation      *KYCValidation           `json:"kyc_validation,omitempty"`
	Documents          []*InternationalDocument `json:"documents"`
	CustomsDeclaration *CustomsDeclaration      `json:"customs_declaration,omitempty"`

	CustomsStatus                 CustomsStatus `json:"customs_status"`
	CustomsTrackingNumber         *string       `json:"customs_tracking_number,omitempty"`
	EstimatedCustomsClearanceDate *time.Time    `json:"estimated_customs_clearance_date,omitempty"`
	ActualCustomsClearanceDate    *time.Time    `json:"actual_customs_clearance_date,omitempty"`
	CustomsHoldReason             *string       `json:"customs_hold_reason,omitempty"`
	CustomsFees                   Money         `json:"customs_fees"`
	InsuranceAmount               Money         `json:"insurance_amount"`

	ApplicableRestrictions []CountryRestriction `json:"applicable_restrictions"`
	ComplianceStatus       ComplianceStatus     `json:"compliance_status"`
	ComplianceNotes        *string              `json:"compliance_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShipmentInput struct {
	GuideID            string
	CustomerID         string
	DestinationCountry string
	ProductCategory    string
	DeclaredValue      Money
}

func NewInternationalShipment(in ShipmentInput, now time.Time) (*InternationalShipment, error) {
	in.DestinationCountry = NormalizeCountry(in.DestinationCountry)
	in.ProductCategory = NormalizeCategory(in.ProductCategory)
	switch {
	case in.GuideID == "":
		return nil, Invalid("guide_id is required")
	case in.CustomerID == "":
		return nil, Invalid("customer_id is required")
	case len(in.DestinationCountry) != 2:
		return nil, Invalid("destination_country must be a 2-letter country code")
	case in.ProductCategory == "":
		return nil, Invalid("product_category is required")
	case !in.DeclaredValue.IsPositive():
		return nil, Invalid("declared_value must be greater than zero")
	}
	return &InternationalShipment{
		ID:                     uuid.New(),
		GuideID:                in.GuideID,
		CustomerID:             in.CustomerID,
		DestinationCountry:     in.DestinationCountry,
		ProductCategory:        in.ProductCategory,
		DeclaredValue:          in.DeclaredValue,
		Documents:              []*InternationalDocument{},
		CustomsStatus:          CustomsPending,
		CustomsFees:            ZeroMoney(in.DeclaredValue.Currency),
		InsuranceAmount:        ZeroMoney(in.DeclaredValue.Currency),
		ApplicableRestrictions: []CountryRestriction{},
		ComplianceStatus:       CompliancePending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

func (s *InternationalShipment) SetKYCValidation(kyc *KYCValidation, now time.Time) error {
	if kyc == nil || !kyc.IsValidForInternationalShipping(now) {
		return InvalidState("KYC not valid for international shipping")
	}
	if kyc.CustomerID != s.CustomerID {
		return Invalid("KYC validation belongs to customer %s, shipment belongs to %s", kyc.CustomerID, s.CustomerID)
	}
	id := kyc.ID
	s.KYCValidationID = &id
	s.KYCValidation = kyc
	s.UpdatedAt = now
	return nil
}

func (s *InternationalShipment) AddDocument(doc *InternationalDocument, now time.Time) error {
	if doc == nil {
		return Invalid("document is required")
	}
	if doc.ShipmentGuideID != s.GuideID {
		return Invalid("document belongs to guide %s, shipment guide is %s", doc.ShipmentGuideID, s.GuideID)
	}
	if s.Document(doc.DocumentType) != nil {
		return Invalid("document type already present: %s", doc.DocumentType)
	}
	doc.ShipmentID = s.ID
	s.Documents = append(s.Documents, doc)
	s.UpdatedAt = now
	s.evaluateCompliance()
	return nil
}

func (s *InternationalShipment) Document(docType DocumentType) *InternationalDocument {
	for _, d := range s.Documents {
		if d.DocumentType == docType {
			return d
		}
	}
	return nil
}

func (s *InternationalShipment) DocumentByID(id uuid.UUID) *InternationalDocument {
	for _, d := range s.Documents {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *InternationalShipment) CreateCustomsDeclaration(in DeclarationInput, now time.Time) (*CustomsDeclaration, error) {
	if s.CustomsDeclaration != nil {
		return nil, InvalidState("customs declaration already exists for shipment %s", s.ID)
	}
	// категория и стоимость декларации совпадают с отправлением
	if in.ProductCategory == "" {
		in.ProductCategory = s.ProductCategory
	}
	in.ProductCategory = NormalizeCategory(in.ProductCategory)
	if in.ProductCategory != s.ProductCategory {
		return nil, Invalid("declaration product_category %q does not match shipment category %q", in.ProductCategory, s.ProductCategory)
	}
	if in.DeclaredValue.Currency == "" {
		in.DeclaredValue = s.DeclaredValue
	}
	if in.DeclaredValue.Currency != s.DeclaredValue.Currency {
		return nil, newError(ErrCurrencyMismatch, "declaration value must be in %s, got %s", s.DeclaredValue.Currency, in.DeclaredValue.Currency)
	}
	if !in.DeclaredValue.Equal(s.DeclaredValue) {
		return nil, Invalid("declaration value %s does not match shipment declared value %s", in.DeclaredValue, s.DeclaredValue)
	}
	decl := NewCustomsDeclaration(s.ID, s.GuideID, in, now)
	if problems := decl.Validate(); len(problems) > 0 {
		return nil, Invalid("invalid customs declaration: %s", strings.Join(problems, "; "))
	}
	s.CustomsDeclaration = decl
	s.UpdatedAt = now
	s.evaluateCompliance()
	return decl, nil
}

// ValidateCountryRestrictions selects the restrictions for the destination and category and
// re-evaluates compliance. Calling it again with the same inputs yields the same verdict.
func (s *InternationalShipment) ValidateCountryRestrictions(all []CountryRestriction, now time.Time) {
	s.ApplicableRestrictions = FilterRestrictions(all, s.DestinationCountry, s.ProductCategory)
	s.UpdatedAt = now
	s.evaluate()
}

// UpdateDeclaredValue is only allowed before clearance starts; the currency is fixed at creation.
// An existing declaration follows the new value.
func (s *InternationalShipment) UpdateDeclaredValue(v Money, now time.Time) error {
	if s.CustomsStatus != CustomsPending {
		return InvalidState("declared value cannot change once customs clearance started (status %s)", s.CustomsStatus)
	}
	if v.Currency != s.DeclaredValue.Currency {
		return newError(ErrCurrencyMismatch, "declared value must stay in %s", s.DeclaredValue.Currency)
	}
	if !v.IsPositive() {
		return Invalid("declared_value must be greater than zero")
	}
	s.DeclaredValue = v
	if s.CustomsDeclaration != nil {
		s.CustomsDeclaration.DeclaredValue = v
	}
	s.UpdatedAt = now
	s.evaluateCompliance()
	return nil
}

// evaluateCompliance recomputes the verdict after a mutation, once restrictions have been evaluated.
func (s *InternationalShipment) evaluateCompliance() {
	if s.ComplianceStatus == CompliancePending {
		return
	}
	s.evaluate()
}

func (s *InternationalShipment) evaluate() {
	available := s.attachedTypes()

	var notes []string
	for _, r := range s.ApplicableRestrictions {
		if r.RestrictionLevel == RestrictionProhibited {
			notes = append(notes, fmt.Sprintf("product category %s is prohibited for %s", r.ProductCategory, r.CountryCode))
		}
		limit, ok := r.MaxValueFor(s.DeclaredValue.Currency)
		switch {
		case !ok:
			notes = append(notes, fmt.Sprintf("declared value %s cannot be checked against maximum %s", s.DeclaredValue, *r.MaxValue))
		case limit != nil:
			if over, _ := s.DeclaredValue.GreaterThan(*limit); over {
				notes = append(notes, fmt.Sprintf("declared value %s exceeds maximum %s for %s to %s", s.DeclaredValue, *limit, r.ProductCategory, r.CountryCode))
			}
		}
		if r.MaxWeightKg != nil && s.CustomsDeclaration != nil && s.CustomsDeclaration.WeightKg > *r.MaxWeightKg {
			notes = append(notes, fmt.Sprintf("declared weight %.2f kg exceeds maximum %.2f kg for %s to %s",
				s.CustomsDeclaration.WeightKg, *r.MaxWeightKg, r.ProductCategory, r.CountryCode))
		}
		var missing []string
		for _, t := range r.RequiredDocuments {
			if _, ok := available[t]; !ok {
				missing = append(missing, string(t))
			}
		}
		if len(missing) > 0 {
			notes = append(notes, "missing required documents: "+strings.Join(missing, ", "))
		}
	}

	if len(notes) > 0 {
		joined := strings.Join(notes, "; ")
		s.ComplianceStatus = ComplianceNonCompliant
		s.ComplianceNotes = &joined
		return
	}
	s.ComplianceStatus = ComplianceCompliant
	s.ComplianceNotes = nil
}

func (s *InternationalShipment) attachedTypes() map[DocumentType]struct{} {
	out := make(map[DocumentType]struct{}, len(s.Documents))
	for _, d := range s.Documents {
		out[d.DocumentType] = struct{}{}
	}
	return out
}

func (s *InternationalShipment) GetRequiredDocuments() []DocumentType {
	seen := map[DocumentType]struct{}{}
	out := make([]DocumentType, 0, len(baselineDocuments))
	add := func(t DocumentType) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range baselineDocuments {
		add(t)
	}
	for _, r := range s.ApplicableRestrictions {
		for _, t := range r.RequiredDocuments {
			add(t)
		}
	}
	return out
}

func (s *InternationalShipment) GetMissingDocuments() []DocumentType {
	available := s.attachedTypes()
	missing := make([]DocumentType, 0)
	for _, t := range s.GetRequiredDocuments() {
		if _, ok := available[t]; !ok {
			missing = append(missing, t)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func (s *InternationalShipment) IsReadyForShipping(now time.Time) bool {
	return s.Readiness(now).Ready
}

type ReadinessReport struct {
	ShipmentID         uuid.UUID      `json:"shipment_id"`
	Ready              bool           `json:"ready"`
	KYCValid           bool           `json:"kyc_valid"`
	CustomsDeclaration bool           `json:"customs_declaration"`
	DocumentsComplete  bool           `json:"documents_complete"`
	ComplianceVerified bool           `json:"compliance_verified"`
	MissingDocuments   []DocumentType `json:"missing_documents"`
	ComplianceNotes    string         `json:"compliance_notes,omitempty"`
	CustomsStatus      CustomsStatus  `json:"customs_status"`
}

func (s *InternationalShipment) Readiness(now time.Time) ReadinessReport {
	missing := s.GetMissingDocuments()
	rep := ReadinessReport{
		ShipmentID:         s.ID,
		KYCValid:           s.KYCValidation != nil && s.KYCValidation.IsValidForInternationalShipping(now),
		CustomsDeclaration: s.CustomsDeclaration != nil,
		DocumentsComplete:  len(missing) == 0,
		ComplianceVerified: s.ComplianceStatus == ComplianceCompliant,
		MissingDocuments:   missing,
		CustomsStatus:      s.CustomsStatus,
	}
	if s.ComplianceNotes != nil {
		rep.ComplianceNotes = *s.ComplianceNotes
	}
	rep.Ready = rep.KYCValid && rep.CustomsDeclaration && rep.DocumentsComplete && rep.ComplianceVerified
	return rep
}

func (s *InternationalShipment) StartCustomsClearance(trackingNumber string, now time.Time) error {
	if s.CustomsDeclaration == nil {
		return InvalidState("customs declaration is required before clearance")
	}
	if s.ComplianceStatus != ComplianceCompliant {
		return InvalidState("shipment is not compliant (status %s)", s.ComplianceStatus)
	}
	if s.CustomsStatus != CustomsPending {
		return InvalidState("customs clearance already started (status %s)", s.CustomsStatus)
	}
	if trackingNumber == "" {
		return Invalid("customs tracking number is required")
	}

	days := MinCustomsClearanceDays
	for _, r := range s.ApplicableRestrictions {
		if r.EstimatedCustomsDays > days {
			days = r.EstimatedCustomsDays
		}
	}
	eta := now.AddDate(0, 0, days)

	s.CustomsStatus = CustomsInProcess
	s.CustomsTrackingNumber = &trackingNumber
	s.EstimatedCustomsClearanceDate = &eta
	s.UpdatedAt = now
	return nil
}

func (s *InternationalShipment) CompleteCustomsClearance(fees Money, now time.Time) error {
	if s.CustomsStatus != CustomsInProcess {
		return InvalidState("customs clearance must be in_process to complete, current status %s", s.CustomsStatus)
	}
	if fees.Currency != s.DeclaredValue.Currency {
		return newError(ErrCurrencyMismatch, "customs fees must be in %s, got %s", s.DeclaredValue.Currency, fees.Currency)
	}
	s.CustomsStatus = CustomsCleared
	s.CustomsFees = fees
	s.ActualCustomsClearanceDate = &now
	s.UpdatedAt = now
	return nil
}

// DetainAtCustoms is the exception path and is accepted from any status.
func (s *InternationalShipment) DetainAtCustoms(reason string, now time.Time) error {
	if reason == "" {
		return Invalid("detention reason is required")
	}
	s.CustomsStatus = CustomsDetained
	s.CustomsHoldReason = &reason
	s.ComplianceNotes = &reason
	s.UpdatedAt = now
	return nil
}

func (s *InternationalShipment) RequestAdditionalInfo(reason string, now time.Time) error {
	if s.CustomsStatus != CustomsInProcess {
		return InvalidState("additional information can only be requested while in_process, current status %s", s.CustomsStatus)
	}
	if reason == "" {
		return Invalid("reason is required")
	}
	s.CustomsStatus = CustomsRequiresAdditionalInfo
	s.CustomsHoldReason = &reason
	s.UpdatedAt = now
	return nil
}

func (s *InternationalShipment) ResumeCustomsClearance(now time.Time) error {
	if s.CustomsStatus != CustomsRequiresAdditionalInfo {
		return InvalidState("clearance can only resume from requires_additional_info, current status %s", s.CustomsStatus)
	}
	s.CustomsStatus = CustomsInProcess
	s.CustomsHoldReason = nil
	s.UpdatedAt = now
	return nil
}

func (s *InternationalShipment) RejectAtCustoms(reason string, now time.Time) error {
	switch s.CustomsStatus {
	case CustomsInProcess, CustomsRequiresAdditionalInfo, CustomsDetained:
	default:
		return InvalidState("customs cannot reject a shipment in status %s", s.CustomsStatus)
	}
	if reason == "" {
		return Invalid("rejection reason is required")
	}
	s.CustomsStatus = CustomsRejected
	s.CustomsHoldReason = &reason
	s.UpdatedAt = now
	return nil
}

func (s *InternationalShipment) SetInsuranceAmount(m Money, now time.Time) error {
	if m.Currency != s.DeclaredValue.Currency {
		return newError(ErrCurrencyMismatch, "insurance must be in %s, got %s", s.DeclaredValue.Currency, m.Currency)
	}
	s.InsuranceAmount = m
	s.UpdatedAt = now
	return nil
}

func (s *InternationalShipment) CalculateTotalInternationalCosts() (Money, error) {
	return s.CustomsFees.Add(s.InsuranceAmount)
}

type CostBreakdown struct {
	CustomsFees Money `json:"customs_fees"`
	Insurance   Money `json:"insurance"`
	Total       Money `json:"total"`
}

type ShipmentFilter struct {
	CustomerID         string
	GuideID            string
	DestinationCountry string
	CustomsStatus      CustomsStatus
	Limit              int
	Offset             int
}

func (f ShipmentFilter) Matches(s *InternationalShipment) bool {
	if f.CustomerID != "" && s.CustomerID != f.CustomerID {
		return false
	}
	if f.GuideID != "" && s.GuideID != f.GuideID {
		return false
	}
	if f.DestinationCountry != "" && s.DestinationCountry != f.DestinationCountry {
		return false
	}
	if f.CustomsStatus != "" && s.CustomsStatus != f.CustomsStatus {
		return false
	}
	return true
}

// ClearanceCheck is a claimed unit of work for the clearance worker.
type ClearanceCheck struct {
	ShipmentID         uuid.UUID     `json:"shipment_id"`
	GuideID            string        `json:"guide_id"`
	TrackingNumber     string        `json:"tracking_number"`
	DestinationCountry string        `json:"destination_country"`
	CustomsStatus      CustomsStatus `json:"customs_status"`
	DeclaredValue      Money         `json:"declared_value"`
	CheckFailCount     int32         `json:"check_fail_count"`
	NextCheckAt        time.Time     `json:"next_check_at"`
}
