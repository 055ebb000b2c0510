package reference

import "github.com/BearBump/CustomsBox/internal/models"

func money(amount string, c models.Currency) *models.Money {
	m := models.MustMoney(amount, c)
	return &m
}

func cop(amount string) []models.Money {
	return []models.Money{models.MustMoney(amount, models.CurrencyCOP)}
}

func kg(v float64) *float64 { return &v }

// Defaults returns the built-in tables used when no reference file is configured.
func Defaults() *Tables {
	return &Tables{
		Restrictions: []models.CountryRestriction{
			{
				CountryCode:          "US",
				ProductCategory:      "electronics",
				RestrictionLevel:     models.RestrictionDocumentation,
				RequiredDocuments:    []models.DocumentType{models.DocumentCertificateOfOrigin},
				MaxValue:             money("800", models.CurrencyUSD),
				EquivalentMaxValues:  cop("3200000"),
				MaxWeightKg:          kg(50),
				EstimatedCustomsDays: 5,
			},
			{
				CountryCode:          "US",
				ProductCategory:      "food",
				RestrictionLevel:     models.RestrictionProhibited,
				EstimatedCustomsDays: 10,
			},
			{
				CountryCode:      "US",
				ProductCategory:  "medicines",
				RestrictionLevel: models.RestrictionRestricted,
				RequiredDocuments: []models.DocumentType{
					models.DocumentExportPermit, models.DocumentCertificateOfOrigin,
				},
				MaxValue:             money("200", models.CurrencyUSD),
				EquivalentMaxValues:  cop("800000"),
				EstimatedCustomsDays: 10,
			},
			{
				CountryCode:          "US",
				ProductCategory:      "clothing",
				RestrictionLevel:     models.RestrictionNone,
				MaxValue:             money("800", models.CurrencyUSD),
				EquivalentMaxValues:  cop("3200000"),
				EstimatedCustomsDays: 3,
			},
			{
				CountryCode:          "ES",
				ProductCategory:      "clothing",
				RestrictionLevel:     models.RestrictionDocumentation,
				RequiredDocuments:    []models.DocumentType{models.DocumentPackingList},
				MaxValue:             money("150", models.CurrencyEUR),
				EquivalentMaxValues:  cop("650000"),
				EstimatedCustomsDays: 7,
			},
			{
				CountryCode:      "ES",
				ProductCategory:  "electronics",
				RestrictionLevel: models.RestrictionDocumentation,
				RequiredDocuments: []models.DocumentType{
					models.DocumentCertificateOfOrigin, models.DocumentPackingList,
				},
				MaxValue:             money("150", models.CurrencyEUR),
				EquivalentMaxValues:  cop("650000"),
				MaxWeightKg:          kg(20),
				EstimatedCustomsDays: 7,
			},
			{
				CountryCode:          "GB",
				ProductCategory:      "electronics",
				RestrictionLevel:     models.RestrictionDocumentation,
				RequiredDocuments:    []models.DocumentType{models.DocumentCertificateOfOrigin},
				MaxValue:             money("135", models.CurrencyGBP),
				EquivalentMaxValues:  cop("700000"),
				EstimatedCustomsDays: 5,
			},
			{
				CountryCode:          "MX",
				ProductCategory:      "electronics",
				RestrictionLevel:     models.RestrictionDocumentation,
				RequiredDocuments:    []models.DocumentType{models.DocumentCertificateOfOrigin},
				MaxValue:             money("1000", models.CurrencyUSD),
				EquivalentMaxValues:  cop("4000000"),
				EstimatedCustomsDays: 4,
			},
			{
				CountryCode:          "CN",
				ProductCategory:      "food",
				RestrictionLevel:     models.RestrictionProhibited,
				EstimatedCustomsDays: 10,
			},
			{
				CountryCode:      "CA",
				ProductCategory:  "jewelry",
				RestrictionLevel: models.RestrictionRestricted,
				RequiredDocuments: []models.DocumentType{
					models.DocumentInsuranceCertificate, models.DocumentCertificateOfOrigin,
				},
				MaxValue:             money("2000", models.CurrencyUSD),
				EquivalentMaxValues:  cop("8000000"),
				EstimatedCustomsDays: 6,
			},
		},
		HSCodes: HSCodes{
			ByCategory: map[string]string{
				"electronics": "8471.30",
				"clothing":    "6109.10",
				"textiles":    "6302.21",
				"cosmetics":   "3304.99",
				"books":       "4901.99",
				"toys":        "9503.00",
				"food":        "2106.90",
				"jewelry":     "7113.19",
				"documents":   "4907.00",
				"medicines":   "3004.90",
				"footwear":    "6403.99",
				"auto_parts":  "8708.99",
				"coffee":      "0901.21",
			},
			Keywords: []KeywordRule{
				{Keywords: []string{"phone", "celular", "smartphone"}, Code: "8517.13"},
				{Keywords: []string{"laptop", "computer", "computador", "portátil"}, Code: "8471.30"},
				{Keywords: []string{"shirt", "camiseta", "t-shirt"}, Code: "6109.10"},
				{Keywords: []string{"coffee", "café"}, Code: "0901.21"},
				{Keywords: []string{"book", "libro"}, Code: "4901.99"},
			},
		},
	}
}
