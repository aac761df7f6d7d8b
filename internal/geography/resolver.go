// Package geography provides the disambiguation resolvers the broker and
// scorer layers depend on: free-text state, country, county, and city names
// mapped to canonical entities. The production system backs these with a
// database; this in-memory implementation is seeded at construction and is
// idempotent, which is all the reconciliation core requires.
package geography

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xrash/smetrics"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// fuzzyCountyFloor is the Jaro-Winkler score a near-miss county name must
// reach to be treated as a spelling variant of a known county.
const fuzzyCountyFloor = 0.90

// duplicateFirstMatch lists lowercased city names that legitimately appear
// more than once per state. For these, first match wins instead of
// surfacing an ambiguity — a long-standing exception for cities that span
// county lines under separate records.
var duplicateFirstMatch = map[string]bool{
	"portland": true,
}

// Resolver is an in-memory domain.Geography implementation.
type Resolver struct {
	logger *slog.Logger

	mu       sync.RWMutex
	counties map[string][]domain.County // state abbr -> counties
	cities   map[string][]domain.City   // state abbr (or country) -> cities
}

// NewResolver creates a Resolver seeded with the given counties.
func NewResolver(counties []domain.County, logger *slog.Logger) *Resolver {
	r := &Resolver{
		logger:   logger,
		counties: make(map[string][]domain.County),
		cities:   make(map[string][]domain.City),
	}
	for _, c := range counties {
		key := strings.ToUpper(c.State)
		r.counties[key] = append(r.counties[key], c)
	}
	return r
}

// NormalizeState maps full state names and abbreviations, in any casing,
// to the canonical two-letter code. The table lives in the domain package
// so request formatting can share it.
func (r *Resolver) NormalizeState(name string) (string, error) {
	return domain.NormalizeState(name)
}

// ResolveCountry maps a country name or ISO variant to a canonical entry.
func (r *Resolver) ResolveCountry(name string) (domain.Country, error) {
	country, ok := countriesNormalized[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.Country{}, fmt.Errorf("resolve country %q: %w", name, domain.ErrUnknownCountry)
	}
	return country, nil
}

// ResolveCounty maps a county name within a state to the canonical county.
// The comparison ignores the jurisdiction suffix, so "Saratoga" finds
// "Saratoga County". Near-miss spellings are accepted when the Jaro-
// Winkler similarity clears fuzzyCountyFloor. Multiple in-state matches
// surface ErrAmbiguousCounty.
func (r *Resolver) ResolveCounty(name, stateAbbr string) (domain.County, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.County{}, fmt.Errorf("resolve county: empty name: %w", domain.ErrPlaceNotFound)
	}
	stateAbbr = strings.ToUpper(strings.TrimSpace(stateAbbr))

	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(trimCountySuffix(name))
	var matches []domain.County
	for _, county := range r.counties[stateAbbr] {
		if strings.ToLower(trimCountySuffix(county.Name)) == needle {
			matches = append(matches, county)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return r.fuzzyCounty(needle, stateAbbr)
	default:
		return domain.County{}, fmt.Errorf("resolve county %q in %s: %d matches: %w",
			name, stateAbbr, len(matches), domain.ErrAmbiguousCounty)
	}
}

// fuzzyCounty scans the state's counties for a close spelling. Caller
// holds the read lock.
func (r *Resolver) fuzzyCounty(needle, stateAbbr string) (domain.County, error) {
	best := domain.County{}
	bestScore := 0.0
	for _, county := range r.counties[stateAbbr] {
		score := smetrics.JaroWinkler(needle, strings.ToLower(trimCountySuffix(county.Name)), 0.7, 4)
		if score > bestScore {
			best, bestScore = county, score
		}
	}
	if bestScore >= fuzzyCountyFloor {
		r.logger.Debug("fuzzy county match",
			"input", needle, "matched", best.Name, "state", stateAbbr, "score", bestScore)
		return best, nil
	}
	return domain.County{}, fmt.Errorf("resolve county %q in %s: %w", needle, stateAbbr, domain.ErrPlaceNotFound)
}

// ResolveCity looks up a city by name within a state (or country for
// non-US), creating the canonical entry on first sight. Resolution is
// idempotent: the same inputs always return the same entry. A duplicate
// name within one state is ambiguous unless listed in duplicateFirstMatch.
func (r *Resolver) ResolveCity(name, county, stateAbbr, country string) (domain.City, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.City{}, fmt.Errorf("resolve city: empty name: %w", domain.ErrPlaceNotFound)
	}
	if country == "" {
		country = "US"
	}
	stateAbbr = strings.ToUpper(strings.TrimSpace(stateAbbr))

	key := stateAbbr
	if key == "" {
		key = strings.ToUpper(country)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lower := strings.ToLower(name)
	var matches []domain.City
	for _, city := range r.cities[key] {
		if strings.ToLower(city.Name) == lower {
			matches = append(matches, city)
		}
	}

	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		if duplicateFirstMatch[lower] {
			return matches[0], nil
		}
		r.logger.Error("multiple cities for name/state",
			"name", name, "state", stateAbbr, "matches", len(matches))
		return domain.City{}, fmt.Errorf("resolve city %q in %s: %d matches: %w",
			name, key, len(matches), domain.ErrAmbiguousCity)
	}

	city := domain.City{Name: name, County: trimCountySuffix(county), State: stateAbbr, Country: strings.ToUpper(country)}
	r.cities[key] = append(r.cities[key], city)
	return city, nil
}

// AddCity registers a canonical city directly, for seeding.
func (r *Resolver) AddCity(city domain.City) {
	key := strings.ToUpper(city.State)
	if key == "" {
		key = strings.ToUpper(city.Country)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cities[key] = append(r.cities[key], city)
}

func trimCountySuffix(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range []string{" county", " parish", " borough", " municipality", " census area"} {
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSpace(name[:len(name)-len(suffix)])
		}
	}
	return strings.TrimSpace(name)
}
