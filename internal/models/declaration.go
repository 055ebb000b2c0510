package models

import (
	"time"

	"github.com/google/uuid"
)

type DeclarationPurpose string

const (
	PurposeSale     DeclarationPurpose = "sale"
	PurposeGift     DeclarationPurpose = "gift"
	PurposeSample   DeclarationPurpose = "sample"
	PurposePersonal DeclarationPurpose = "personal"
	PurposeReturn   DeclarationPurpose = "return"
)

// CustomsDeclaration is what the sender declares about the shipment content.
// Category and value always mirror the shipment; besides the value only the HS code
// changes after creation.
type CustomsDeclaration struct {
	ID                 uuid.UUID          `json:"id"`
	ShipmentID         uuid.UUID          `json:"shipment_id"`
	GuideID            string             `json:"guide_id"`
	DeclaredValue      Money              `json:"declared_value"`
	ProductDescription string             `json:"product_description"`
	ProductCategory    string             `json:"product_category"`
	Quantity           int                `json:"quantity"`
	WeightKg           float64            `json:"weight_kg"`
	CountryOfOrigin    string             `json:"country_of_origin"`
	HSCode             *string            `json:"hs_code,omitempty"`
	Purpose            DeclarationPurpose `json:"purpose"`
	CreatedAt          time.Time          `json:"created_at"`
}

type DeclarationInput struct {
	DeclaredValue      Money
	ProductDescription string
	ProductCategory    string
	Quantity           int
	WeightKg           float64
	CountryOfOrigin    string
	Purpose            DeclarationPurpose
}

func NewCustomsDeclaration(shipmentID uuid.UUID, guideID string, in DeclarationInput, now time.Time) *CustomsDeclaration {
	purpose := in.Purpose
	if purpose == "" {
		purpose = PurposeSale
	}
	return &CustomsDeclaration{
		ID:                 uuid.New(),
		ShipmentID:         shipmentID,
		GuideID:            guideID,
		DeclaredValue:      in.DeclaredValue,
		ProductDescription: in.ProductDescription,
		ProductCategory:    in.ProductCategory,
		Quantity:           in.Quantity,
		WeightKg:           in.WeightKg,
		CountryOfOrigin:    in.CountryOfOrigin,
		Purpose:            purpose,
		CreatedAt:          now,
	}
}

func (d *CustomsDeclaration) SetHSCode(code string) {
	d.HSCode = &code
}

// Validate reports every violated invariant at once so callers can fix a batch in one go.
func (d *CustomsDeclaration) Validate() []string {
	var problems []string
	if d.Quantity <= 0 {
		problems = append(problems, "quantity must be greater than zero")
	}
	if d.WeightKg <= 0 {
		problems = append(problems, "weight_kg must be greater than zero")
	}
	if d.ProductDescription == "" {
		problems = append(problems, "product_description is required")
	}
	if d.ProductCategory == "" {
		problems = append(problems, "product_category is required")
	}
	if d.CountryOfOrigin == "" {
		problems = append(problems, "country_of_origin is required")
	}
	if !d.DeclaredValue.IsPositive() {
		problems = append(problems, "declared_value must be greater than zero")
	}
	return problems
}
