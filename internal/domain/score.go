package domain

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Candidate is a normalized place plus its similarity ratio against the
// originating request. Candidates live only for the duration of one
// scoring pass; the underlying stored response is what gets cached.
type Candidate struct {
	Place Place   `json:"place"`
	Score float64 `json:"score"`
}

// Default acceptance thresholds per entity type. Street numbers and route
// names transliterate consistently across providers, so street addresses
// must match tightly; intersections and city names are phrased far more
// loosely. These are empirically tuned values carried over as defaults,
// not derived quantities.
var defaultThresholds = map[EntityType]float64{
	EntityStreetAddress: 0.80,
	EntityCounty:        0.70,
	EntityCity:          0.60,
	EntityIntersection:  0.60,
	EntityNeighborhood:  0.60,
}

var (
	// countySuffixRe strips the jurisdiction suffix providers append to
	// county names: "Maricopa County" and "Maricopa" are the same county.
	countySuffixRe = regexp.MustCompile(`(?i)\s+(county|parish|borough|municipality|census area)$`)

	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StateNormalizer maps free-text state names and abbreviations to the
// canonical two-letter code.
type StateNormalizer interface {
	NormalizeState(name string) (string, error)
}

// Scorer computes per-candidate similarity ratios and applies the
// per-entity-type acceptance thresholds.
type Scorer struct {
	thresholds map[EntityType]float64
	states     StateNormalizer
	logger     *slog.Logger
}

// NewScorer creates a Scorer. A nil thresholds map uses the defaults;
// individual entries override per entity type.
func NewScorer(states StateNormalizer, thresholds map[EntityType]float64, logger *slog.Logger) *Scorer {
	merged := make(map[EntityType]float64, len(defaultThresholds))
	for k, v := range defaultThresholds {
		merged[k] = v
	}
	for k, v := range thresholds {
		merged[k] = v
	}
	return &Scorer{thresholds: merged, states: states, logger: logger}
}

// Threshold returns the acceptance threshold for an entity type.
func (s *Scorer) Threshold(t EntityType) float64 {
	return s.thresholds[t]
}

// Score compares each confirmed place against the request and returns the
// candidates whose ratio clears the entity type's threshold, in input
// order. Places that cannot be compared reliably are skipped, not failed.
func (s *Scorer) Score(req Request, places []Place) []Candidate {
	candidates := make([]Candidate, 0, len(places))
	for _, place := range places {
		ratio, ok := s.ratio(req, place)
		if !ok {
			continue
		}
		if ratio <= s.thresholds[req.EntityType] {
			s.logger.Debug("candidate below threshold",
				"engine", place.Engine,
				"ratio", ratio,
				"threshold", s.thresholds[req.EntityType],
				"address", req.RawAddress,
			)
			continue
		}
		candidates = append(candidates, Candidate{Place: place, Score: ratio})
	}
	return candidates
}

// ratio computes the similarity between the request's components and the
// place, both rendered as token strings in the same fixed field order.
func (s *Scorer) ratio(req Request, place Place) (float64, bool) {
	c := req.Components

	// A US query with neither a county nor a city gives the comparison
	// nothing geographic to anchor on; matching would produce false
	// positives, so skip instead.
	if isDomestic(c.Country) && c.County == "" && c.City == "" {
		s.logger.Warn("cannot score without county or city for US address",
			"address", req.RawAddress, "engine", place.Engine)
		return 0, false
	}

	expected := s.tokenString(
		c.City, c.Intersection, c.StreetLine1, c.StreetLine2,
		c.City, c.County, s.stateAbbr(c.State), c.Zipcode, c.Country,
	)
	candidate := s.tokenString(
		place.City, place.Intersection, place.StreetLine1, place.StreetLine2,
		place.City, stripCountySuffix(place.County), s.stateAbbr(place.State), place.Zipcode, place.Country,
	)
	if expected == "" || candidate == "" {
		return 0, false
	}
	return similarityRatio(expected, candidate), true
}

// tokenString joins the supplied values in order, normalizing each one.
// The order must be identical for the expected and candidate sides — a
// different ordering of the same tokens would read as an edit.
func (s *Scorer) tokenString(values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalizeToken(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// stateAbbr canonicalizes a state so "Arizona" and "AZ" compare equal.
// Unrecognized values pass through untouched.
func (s *Scorer) stateAbbr(state string) string {
	if state == "" {
		return ""
	}
	if abbr, err := s.states.NormalizeState(state); err == nil {
		return abbr
	}
	return state
}

// similarityRatio is an edit-distance ratio in [0, 1]. Spaces carry no
// signal once tokens are joined, so they are dropped before comparing.
func similarityRatio(a, b string) float64 {
	a = strings.ReplaceAll(a, " ", "")
	b = strings.ReplaceAll(b, " ", "")
	if a == b {
		return 1.0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctRe.ReplaceAllString(s, "")
	return whitespaceRe.ReplaceAllString(s, " ")
}

func stripCountySuffix(county string) string {
	return countySuffixRe.ReplaceAllString(county, "")
}

func isDomestic(country string) bool {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "", "US", "USA", "UNITED STATES", "UNITED STATES OF AMERICA":
		return true
	}
	return false
}
