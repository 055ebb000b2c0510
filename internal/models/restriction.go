package models

import "strings"

type RestrictionLevel string

const (
	RestrictionNone          RestrictionLevel = "none"
	RestrictionDocumentation RestrictionLevel = "documentation"
	RestrictionRestricted    RestrictionLevel = "restricted"
	RestrictionProhibited    RestrictionLevel = "prohibited"
)

func (l RestrictionLevel) Valid() bool {
	switch l {
	case RestrictionNone, RestrictionDocumentation, RestrictionRestricted, RestrictionProhibited:
		return true
	}
	return false
}

// CountryRestriction is static reference data: what customs at CountryCode expects for a category.
type CountryRestriction struct {
	CountryCode          string           `json:"country_code"`
	ProductCategory      string           `json:"product_category"`
	RestrictionLevel     RestrictionLevel `json:"restriction_level"`
	RequiredDocuments    []DocumentType   `json:"required_documents,omitempty"`
	MaxValue             *Money           `json:"max_value,omitempty"`
	// EquivalentMaxValues is the same ceiling as MaxValue expressed in other currencies.
	EquivalentMaxValues  []Money          `json:"equivalent_max_values,omitempty"`
	MaxWeightKg          *float64         `json:"max_weight_kg,omitempty"`
	EstimatedCustomsDays int              `json:"estimated_customs_days"`
}

// MaxValueFor returns the value ceiling in currency c. ok is false when the restriction has a
// ceiling but none in that currency; limit is nil when there is no ceiling at all.
func (r CountryRestriction) MaxValueFor(c Currency) (limit *Money, ok bool) {
	if r.MaxValue == nil {
		return nil, true
	}
	if r.MaxValue.Currency == c {
		return r.MaxValue, true
	}
	for i := range r.EquivalentMaxValues {
		if r.EquivalentMaxValues[i].Currency == c {
			return &r.EquivalentMaxValues[i], true
		}
	}
	return nil, false
}

// NormalizeCategory is the form product categories are stored and compared in.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// FilterRestrictions keeps table order so evaluation notes stay stable between runs.
// An empty category matches every category of the country.
func FilterRestrictions(all []CountryRestriction, country, category string) []CountryRestriction {
	country, category = NormalizeCountry(country), NormalizeCategory(category)
	out := make([]CountryRestriction, 0)
	for _, r := range all {
		if NormalizeCountry(r.CountryCode) != country {
			continue
		}
		if category != "" && NormalizeCategory(r.ProductCategory) != category {
			continue
		}
		out = append(out, r)
	}
	return out
}
