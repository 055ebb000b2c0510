// Package reference holds the static lookup data the shipping engine evaluates against:
// the country/category restriction table and the HS code table.
package reference

import (
	"sort"
	"strings"

	"github.com/BearBump/CustomsBox/internal/models"
)

// UnclassifiedHSCode is assigned when neither the category nor the description matches.
const UnclassifiedHSCode = "9999.00"

// KeywordRule maps any of Keywords found in a free-text product description to Code.
type KeywordRule struct {
	Keywords []string
	Code     string
}

type HSCodes struct {
	ByCategory map[string]string
	Keywords   []KeywordRule
}

// Lookup resolves the category first, then scans the description for keywords in rule order.
func (h HSCodes) Lookup(category, description string) string {
	if code, ok := h.ByCategory[models.NormalizeCategory(category)]; ok {
		return code
	}
	desc := strings.ToLower(description)
	for _, rule := range h.Keywords {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(desc, strings.ToLower(kw)) {
				return rule.Code
			}
		}
	}
	return UnclassifiedHSCode
}

// Tables is loaded once at startup and treated as read-only afterwards.
type Tables struct {
	Restrictions []models.CountryRestriction
	HSCodes      HSCodes
}

func (t *Tables) RestrictionsFor(country, category string) []models.CountryRestriction {
	return models.FilterRestrictions(t.Restrictions, country, category)
}

func (t *Tables) Countries() []string {
	seen := map[string]struct{}{}
	for _, r := range t.Restrictions {
		seen[r.CountryCode] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
