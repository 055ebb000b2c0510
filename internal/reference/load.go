package reference

import (
	"os"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.yaml.in/yaml/v4"
)

type fileMoney struct {
	Amount   string `yaml:"amount"`
	Currency string `yaml:"currency"`
}

type fileRestriction struct {
	CountryCode          string      `yaml:"country_code"`
	ProductCategory      string      `yaml:"product_category"`
	RestrictionLevel     string      `yaml:"restriction_level"`
	RequiredDocuments    []string    `yaml:"required_documents"`
	MaxValue             *fileMoney  `yaml:"max_value"`
	EquivalentMaxValues  []fileMoney `yaml:"equivalent_max_values"`
	MaxWeightKg          *float64    `yaml:"max_weight_kg"`
	EstimatedCustomsDays int         `yaml:"estimated_customs_days"`
}

type fileKeywordRule struct {
	Keywords []string `yaml:"keywords"`
	Code     string   `yaml:"code"`
}

type file struct {
	Restrictions []fileRestriction `yaml:"restrictions"`
	HSCodes      map[string]string `yaml:"hs_codes"`
	HSKeywords   []fileKeywordRule `yaml:"hs_keywords"`
}

// LoadFile reads a YAML reference file. Sections left out of the file keep the built-in defaults.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read reference file")
	}
	return Parse(data)
}

func Parse(data []byte) (*Tables, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal reference YAML")
	}

	t := Defaults()
	if len(f.Restrictions) > 0 {
		rs := make([]models.CountryRestriction, 0, len(f.Restrictions))
		for i, fr := range f.Restrictions {
			r, err := fr.toModel()
			if err != nil {
				return nil, errors.Wrapf(err, "restrictions[%d]", i)
			}
			rs = append(rs, r)
		}
		t.Restrictions = rs
	}
	if len(f.HSCodes) > 0 {
		byCat := make(map[string]string, len(f.HSCodes))
		for cat, code := range f.HSCodes {
			byCat[models.NormalizeCategory(cat)] = code
		}
		t.HSCodes.ByCategory = byCat
	}
	if len(f.HSKeywords) > 0 {
		rules := make([]KeywordRule, 0, len(f.HSKeywords))
		for _, r := range f.HSKeywords {
			rules = append(rules, KeywordRule{Keywords: r.Keywords, Code: r.Code})
		}
		t.HSCodes.Keywords = rules
	}
	return t, nil
}

func (fr fileRestriction) toModel() (models.CountryRestriction, error) {
	r := models.CountryRestriction{
		CountryCode:          models.NormalizeCountry(fr.CountryCode),
		ProductCategory:      models.NormalizeCategory(fr.ProductCategory),
		RestrictionLevel:     models.RestrictionLevel(fr.RestrictionLevel),
		MaxWeightKg:          fr.MaxWeightKg,
		EstimatedCustomsDays: fr.EstimatedCustomsDays,
	}
	if len(r.CountryCode) != 2 {
		return r, errors.Errorf("country_code must have 2 letters, got %q", fr.CountryCode)
	}
	if r.ProductCategory == "" {
		return r, errors.New("product_category is required")
	}
	if r.RestrictionLevel == "" {
		r.RestrictionLevel = models.RestrictionNone
	}
	if !r.RestrictionLevel.Valid() {
		return r, errors.Errorf("unknown restriction_level %q", fr.RestrictionLevel)
	}
	for _, d := range fr.RequiredDocuments {
		dt := models.DocumentType(d)
		if !dt.Valid() {
			return r, errors.Errorf("unknown document type %q", d)
		}
		r.RequiredDocuments = append(r.RequiredDocuments, dt)
	}
	if fr.MaxValue != nil {
		m, err := fr.MaxValue.toMoney()
		if err != nil {
			return r, errors.Wrap(err, "max_value")
		}
		r.MaxValue = &m
	}
	for i, fm := range fr.EquivalentMaxValues {
		if r.MaxValue == nil {
			return r, errors.New("equivalent_max_values requires max_value")
		}
		m, err := fm.toMoney()
		if err != nil {
			return r, errors.Wrapf(err, "equivalent_max_values[%d]", i)
		}
		if m.Currency == r.MaxValue.Currency {
			return r, errors.Errorf("equivalent_max_values[%d] repeats currency %s", i, m.Currency)
		}
		r.EquivalentMaxValues = append(r.EquivalentMaxValues, m)
	}
	return r, nil
}

func (fm fileMoney) toMoney() (models.Money, error) {
	amount, err := decimal.NewFromString(fm.Amount)
	if err != nil {
		return models.Money{}, errors.Wrap(err, "amount")
	}
	return models.NewMoney(amount, models.Currency(fm.Currency))
}
