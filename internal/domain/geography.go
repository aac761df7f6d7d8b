package domain

// Country is a canonical country entry.
type Country struct {
	Abbr string `json:"abbr"` // ISO 3166-1 alpha-2
	Name string `json:"name"`
}

// County is a canonical county-level jurisdiction.
type County struct {
	Name  string `json:"name"`
	State string `json:"state"`
	// LegalDescription is the full statistical-area name, e.g.
	// "Saratoga County" rather than "Saratoga".
	LegalDescription string `json:"legal_description,omitempty"`
}

// City is a canonical city entry.
type City struct {
	Name    string `json:"name"`
	County  string `json:"county,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country"`
}

// Geography resolves free-text place names into canonical geographic
// entities. Implementations must be idempotent: the same input always
// resolves to the same entity, creating it if absent. Misses and
// ambiguity come back as wrapped sentinel errors (ErrPlaceNotFound,
// ErrAmbiguousCounty, ErrAmbiguousCity) so callers decide explicitly what
// to do — the resolver never picks an arbitrary winner unless a
// documented fallback rule applies.
type Geography interface {
	StateNormalizer

	// ResolveCountry maps a name or ISO variant to a canonical country.
	ResolveCountry(name string) (Country, error)

	// ResolveCounty maps a county name within a state to the canonical
	// county.
	ResolveCounty(name, stateAbbr string) (County, error)

	// ResolveCity maps a city name to the canonical city, creating it if
	// absent.
	ResolveCity(name, county, stateAbbr, country string) (City, error)
}
