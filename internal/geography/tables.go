package geography

import (
	"strings"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// countriesNormalized maps lowercased country names and ISO codes to
// canonical entries. The set covers the countries the certification
// programs operate in; anything else resolves as unknown and the caller
// keeps the raw string.
var countriesNormalized = buildCountries([]domain.Country{
	{Abbr: "US", Name: "United States"},
	{Abbr: "CA", Name: "Canada"},
	{Abbr: "MX", Name: "Mexico"},
	{Abbr: "GB", Name: "United Kingdom"},
	{Abbr: "PR", Name: "Puerto Rico"},
	{Abbr: "VI", Name: "U.S. Virgin Islands"},
	{Abbr: "GU", Name: "Guam"},
	{Abbr: "DE", Name: "Germany"},
	{Abbr: "FR", Name: "France"},
	{Abbr: "AU", Name: "Australia"},
	{Abbr: "NZ", Name: "New Zealand"},
	{Abbr: "JP", Name: "Japan"},
}, map[string]string{
	"usa":                      "US",
	"united states of america": "US",
	"america":                  "US",
	"u.s.":                     "US",
	"u.s.a.":                   "US",
	"uk":                       "GB",
	"great britain":            "GB",
	"england":                  "GB",
	"virgin islands":           "VI",
})

func buildCountries(countries []domain.Country, aliases map[string]string) map[string]domain.Country {
	byAbbr := make(map[string]domain.Country, len(countries))
	out := make(map[string]domain.Country, len(countries)*2+len(aliases))
	for _, c := range countries {
		byAbbr[c.Abbr] = c
		out[strings.ToLower(c.Abbr)] = c
		out[strings.ToLower(c.Name)] = c
	}
	for alias, abbr := range aliases {
		out[alias] = byAbbr[abbr]
	}
	return out
}

