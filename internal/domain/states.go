package domain

import (
	"fmt"
	"strings"
)

// statesNormalized maps lowercased US state names, abbreviations, and the
// common misspellings that show up in provider output to the canonical
// two-letter code.
var statesNormalized = buildStates(map[string][]string{
	"AL": {"alabama"},
	"AK": {"alaska"},
	"AZ": {"arizona"},
	"AR": {"arkansas"},
	"CA": {"california", "calif"},
	"CO": {"colorado"},
	"CT": {"connecticut"},
	"DE": {"delaware"},
	"DC": {"district of columbia", "washington dc", "washington d.c."},
	"FL": {"florida"},
	"GA": {"georgia"},
	"HI": {"hawaii"},
	"ID": {"idaho"},
	"IL": {"illinois"},
	"IN": {"indiana"},
	"IA": {"iowa"},
	"KS": {"kansas"},
	"KY": {"kentucky"},
	"LA": {"louisiana"},
	"ME": {"maine"},
	"MD": {"maryland"},
	"MA": {"massachusetts"},
	"MI": {"michigan"},
	"MN": {"minnesota"},
	"MS": {"mississippi"},
	"MO": {"missouri"},
	"MT": {"montana"},
	"NE": {"nebraska"},
	"NV": {"nevada"},
	"NH": {"new hampshire"},
	"NJ": {"new jersey"},
	"NM": {"new mexico"},
	"NY": {"new york"},
	"NC": {"north carolina"},
	"ND": {"north dakota"},
	"OH": {"ohio"},
	"OK": {"oklahoma"},
	"OR": {"oregon"},
	"PA": {"pennsylvania"},
	"RI": {"rhode island"},
	"SC": {"south carolina"},
	"SD": {"south dakota"},
	"TN": {"tennessee"},
	"TX": {"texas"},
	"UT": {"utah"},
	"VT": {"vermont"},
	"VA": {"virginia"},
	"WA": {"washington"},
	"WV": {"west virginia"},
	"WI": {"wisconsin"},
	"WY": {"wyoming"},
	"PR": {"puerto rico"},
	"VI": {"virgin islands", "u.s. virgin islands"},
	"GU": {"guam"},
})

func buildStates(names map[string][]string) map[string]string {
	out := make(map[string]string, len(names)*3)
	for abbr, variants := range names {
		out[strings.ToLower(abbr)] = abbr
		for _, v := range variants {
			out[v] = abbr
		}
	}
	return out
}

// NormalizeState maps full US state names and abbreviations, in any
// casing, to the canonical two-letter code.
func NormalizeState(name string) (string, error) {
	abbr, ok := statesNormalized[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("normalize state %q: %w", name, ErrUnknownState)
	}
	return abbr, nil
}
