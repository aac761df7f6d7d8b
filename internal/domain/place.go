package domain

import (
	"math"
)

// DefaultCorrelationKm is the haversine distance under which two places
// from different providers are treated as the same point.
const DefaultCorrelationKm = 0.1

// earthRadiusKm matches the constant the legacy scoring data was tuned
// against; do not "fix" it to the WGS-84 mean radius.
const earthRadiusKm = 6367

// Place is the canonical, provider-independent shape of one geocoding
// answer. It is derived fresh from a stored payload on every pass and is
// never persisted itself. Missing fields stay empty — a broker must not
// fabricate data the provider did not return.
type Place struct {
	StreetLine1  string `json:"street_line1,omitempty"`
	StreetLine2  string `json:"street_line2,omitempty"`
	City         string `json:"city,omitempty"`
	County       string `json:"county,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
	Zipcode      string `json:"zipcode,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	Intersection string `json:"intersection,omitempty"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	FormattedAddress string     `json:"formatted_address"`
	EntityType       EntityType `json:"entity_type"`
	Confirmed        bool       `json:"confirmed"`
	Engine           string     `json:"engine"`
	SearchString     string     `json:"search_string,omitempty"`
}

// HasCoords reports whether the provider returned a usable coordinate pair.
func (p Place) HasCoords() bool {
	return p.Latitude != 0 || p.Longitude != 0
}

// DistanceKm returns the great-circle distance to other in kilometers.
func (p Place) DistanceKm(other Place) float64 {
	return Haversine(p.Longitude, p.Latitude, other.Longitude, other.Latitude)
}

// SameLocation reports whether two places are within epsilonKm of each
// other. This is the cross-provider deduplication test: providers rarely
// agree on coordinates to the meter, but answers for the same rooftop land
// well inside a tenth of a kilometer. Pass epsilonKm <= 0 for the default.
func (p Place) SameLocation(other Place, epsilonKm float64) bool {
	if !p.HasCoords() || !other.HasCoords() {
		return false
	}
	if epsilonKm <= 0 {
		epsilonKm = DefaultCorrelationKm
	}
	return p.DistanceKm(other) <= epsilonKm
}

// Haversine computes the great-circle distance in kilometers between two
// points given in decimal degrees.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	lon1, lat1 = lon1*math.Pi/180, lat1*math.Pi/180
	lon2, lat2 = lon2*math.Pi/180, lat2*math.Pi/180

	dlon := lon2 - lon1
	dlat := lat2 - lat1
	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// ConfirmedOnly returns the subset of places whose provider confirmed the
// requested entity type, preserving input order.
func ConfirmedOnly(places []Place) []Place {
	confirmed := make([]Place, 0, len(places))
	for _, p := range places {
		if p.Confirmed {
			confirmed = append(confirmed, p)
		}
	}
	return confirmed
}
