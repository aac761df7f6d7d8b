package broker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// EngineGoogle is the stored engine identifier for Google payloads.
const EngineGoogle = "Google"

// googleEntityMap translates our entity types into Google's result-type
// taxonomy.
var googleEntityMap = map[domain.EntityType]string{
	domain.EntityCounty:        "administrative_area_level_2",
	domain.EntityCity:          "locality",
	domain.EntityStreetAddress: "street_address",
	domain.EntityNeighborhood:  "neighborhood",
	domain.EntityIntersection:  "intersection",
}

// Google parses Google Geocoding API payloads.
type Google struct {
	geo    domain.Geography
	logger *slog.Logger
}

// NewGoogle creates the Google broker.
func NewGoogle(geo domain.Geography, logger *slog.Logger) *Google {
	return &Google{geo: geo, logger: logger}
}

func (g *Google) Engine() string { return EngineGoogle }

// Google Geocoding API response shape, typed instead of duck-typed access
// into raw maps so schema drift fails loudly in one place.

type googleResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []googleResult `json:"results"`
}

type googleResult struct {
	AddressComponents []googleComponent `json:"address_components"`
	FormattedAddress  string            `json:"formatted_address"`
	Geometry          googleGeometry    `json:"geometry"`
	Types             []string          `json:"types"`
}

type googleComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type googleGeometry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	LocationType string `json:"location_type"`
}

// Parse interprets a Google payload. A non-OK status in the body maps to
// the provider error taxonomy; ZERO_RESULTS is simply an empty result set.
func (g *Google) Parse(payload []byte, entityType domain.EntityType, searchString string) ([]domain.Place, error) {
	var resp googleResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, &domain.ParseError{Engine: EngineGoogle, Err: err}
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	case "OVER_QUERY_LIMIT":
		return nil, &domain.ProviderError{Engine: EngineGoogle, Kind: domain.ProviderQuotaError, Detail: resp.ErrorMessage}
	case "OVER_DAILY_LIMIT":
		return nil, &domain.ProviderError{Engine: EngineGoogle, Kind: domain.ProviderQuotaError, Detail: resp.ErrorMessage}
	case "REQUEST_DENIED":
		return nil, &domain.ProviderError{Engine: EngineGoogle, Kind: domain.ProviderAuthError, Detail: resp.ErrorMessage}
	case "INVALID_REQUEST":
		return nil, &domain.ProviderError{Engine: EngineGoogle, Kind: domain.ProviderQueryError, Detail: resp.ErrorMessage}
	case "UNKNOWN_ERROR":
		return nil, &domain.ProviderError{Engine: EngineGoogle, Kind: domain.ProviderUnavailableError, Detail: resp.ErrorMessage}
	default:
		return nil, &domain.ProviderError{Engine: EngineGoogle, Kind: domain.ProviderServiceError,
			Detail: fmt.Sprintf("status %s: %s", resp.Status, resp.ErrorMessage)}
	}

	places := make([]domain.Place, 0, len(resp.Results))
	for _, result := range resp.Results {
		places = append(places, g.parseResult(result, entityType, searchString))
	}
	return places, nil
}

func (g *Google) parseResult(result googleResult, entityType domain.EntityType, searchString string) domain.Place {
	place := domain.Place{
		Engine:       EngineGoogle,
		EntityType:   entityType,
		SearchString: searchString,
	}

	shortComponent := func(label string) string { return googleComponentValue(result.AddressComponents, label, false) }

	place.Country = resolveCountryAbbr(g.geo, shortComponent("country"))
	place.City = googleComponentValue(result.AddressComponents, "locality", true)
	place.County = shortComponent("administrative_area_level_2")
	place.State = shortComponent("administrative_area_level_1")
	place.Zipcode = shortComponent("postal_code")
	place.Neighborhood = shortComponent("neighborhood")

	streetNumber := shortComponent("street_number")
	route := shortComponent("route")
	if streetNumber != "" && route != "" {
		place.StreetLine1 = streetNumber + " " + route
	}
	if suite := shortComponent("subpremise"); suite != "" {
		place.StreetLine2 = suite
	}

	place.Latitude = result.Geometry.Location.Lat
	place.Longitude = result.Geometry.Location.Lng

	// Keep the country segment short outside the US, drop it inside.
	formatted, country := rsplitComma(result.FormattedAddress)
	if strings.TrimSpace(country) != "USA" {
		formatted += ", " + place.Country
	}
	if entityType == domain.EntityCity {
		formatted = formatCityAddress(place)
	}
	place.FormattedAddress = formatted

	if entityType == domain.EntityIntersection {
		place.Intersection = strings.SplitN(formatted, ", ", 2)[0]
	}

	if wanted, ok := googleEntityMap[entityType]; ok {
		if slices.Contains(result.Types, wanted) {
			place.Confirmed = true
		} else if entityType == domain.EntityStreetAddress {
			// Premise-precision results identify a building or unit, which
			// is at least as precise as a street address.
			if slices.Contains(result.Types, "premise") || slices.Contains(result.Types, "subpremise") {
				place.Confirmed = true
			}
		}
	}

	scrubForeign(&place)
	return place
}

// googleComponentValue finds the first address component carrying the
// label and returns its short or long name.
func googleComponentValue(components []googleComponent, label string, long bool) string {
	for _, c := range components {
		if slices.Contains(c.Types, label) {
			if long {
				return c.LongName
			}
			return c.ShortName
		}
	}
	return ""
}

// rsplitComma splits on the last comma, mirroring how Google terminates a
// formatted address with the country segment.
func rsplitComma(s string) (head, tail string) {
	idx := strings.LastIndex(s, ",")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}
