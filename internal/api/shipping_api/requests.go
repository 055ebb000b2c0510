package shipping_api

import (
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/shopspring/decimal"
)

type moneyRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"required,oneof=USD COP EUR GBP"`
}

func (m moneyRequest) toMoney() (models.Money, error) {
	return models.NewMoney(m.Amount, models.Currency(m.Currency))
}

func (m moneyRequest) checkPositive(field string) []FieldError {
	if !m.Amount.IsPositive() {
		return []FieldError{{Field: field + ".amount", Message: "must be greater than 0"}}
	}
	return nil
}

type createShipmentRequest struct {
	GuideID            string       `json:"guide_id" validate:"required"`
	CustomerID         string       `json:"customer_id" validate:"required"`
	DestinationCountry string       `json:"destination_country" validate:"required,len=2"`
	ProductCategory    string       `json:"product_category" validate:"required"`
	DeclaredValue      moneyRequest `json:"declared_value"`
}

func (r *createShipmentRequest) check() []FieldError {
	return r.DeclaredValue.checkPositive("declared_value")
}

type attachKYCRequest struct {
	KYCValidationID string `json:"kyc_validation_id" validate:"required,uuid"`
}

type createDeclarationRequest struct {
	ProductDescription string        `json:"product_description" validate:"required"`
	ProductCategory    string        `json:"product_category"`
	Quantity           int           `json:"quantity" validate:"gt=0"`
	WeightKg           float64       `json:"weight_kg" validate:"gt=0"`
	CountryOfOrigin    string        `json:"country_of_origin" validate:"required,len=2"`
	Purpose            string        `json:"purpose" validate:"omitempty,oneof=sale gift sample personal return"`
	DeclaredValue      *moneyRequest `json:"declared_value" validate:"omitempty"`
}

func (r *createDeclarationRequest) check() []FieldError {
	if r.DeclaredValue == nil {
		return nil
	}
	return r.DeclaredValue.checkPositive("declared_value")
}

type addDocumentRequest struct {
	DocumentType string         `json:"document_type" validate:"required"`
	FileURL      string         `json:"file_url" validate:"omitempty,url"`
	Metadata     map[string]any `json:"metadata"`
}

type validateDocumentRequest struct {
	IsValid     *bool  `json:"is_valid" validate:"required"`
	ValidatedBy string `json:"validated_by" validate:"required"`
	Notes       string `json:"notes"`
}

type translationRequest struct {
	TranslatedFileURL string `json:"translated_file_url" validate:"required,url"`
	Language          string `json:"language" validate:"required"`
}

// check runs when the money object is the whole body (PUT declared-value).
func (m *moneyRequest) check() []FieldError {
	if !m.Amount.IsPositive() {
		return []FieldError{{Field: "amount", Message: "must be greater than 0"}}
	}
	return nil
}

type detainRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type startKYCRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Provider   string `json:"provider" validate:"required"`
}

type kycDocumentRequest struct {
	DocumentType string `json:"document_type" validate:"required"`
	URL          string `json:"url" validate:"required,url"`
}

type approveKYCRequest struct {
	ApprovedBy   string `json:"approved_by" validate:"required"`
	Score        *int   `json:"score" validate:"required,gte=0,lte=100"`
	RiskLevel    string `json:"risk_level" validate:"required,oneof=low medium high"`
	ExpiryMonths int    `json:"expiry_months" validate:"omitempty,gte=1"`
}

type rejectKYCRequest struct {
	Reasons []string `json:"reasons" validate:"required,min=1,dive,required"`
}

type clearanceResponse struct {
	Started   bool                          `json:"started"`
	Shipment  *models.InternationalShipment `json:"shipment,omitempty"`
	Readiness *models.ReadinessReport       `json:"readiness,omitempty"`
}
