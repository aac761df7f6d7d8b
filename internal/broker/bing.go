package broker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// EngineBing is the stored engine identifier for Bing payloads.
const EngineBing = "Bing"

// bingEntityMap translates our entity types into Bing's entityType
// taxonomy.
var bingEntityMap = map[domain.EntityType]string{
	domain.EntityCounty:        "AdminDivision2",
	domain.EntityCity:          "PopulatedPlace",
	domain.EntityStreetAddress: "Address",
	domain.EntityNeighborhood:  "Neighborhood",
	domain.EntityIntersection:  "RoadIntersection",
}

// countyReplacements expands the abbreviations Bing uses in adminDistrict2.
var countyReplacements = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`Co\.`), "County"},
	{regexp.MustCompile(`C\.A\.`), "Census Area"},
}

// Bing parses Bing Maps Locations API payloads.
type Bing struct {
	geo    domain.Geography
	logger *slog.Logger
}

// NewBing creates the Bing broker.
func NewBing(geo domain.Geography, logger *slog.Logger) *Bing {
	return &Bing{geo: geo, logger: logger}
}

func (b *Bing) Engine() string { return EngineBing }

type bingResponse struct {
	StatusCode        int               `json:"statusCode"`
	StatusDescription string            `json:"statusDescription"`
	ErrorDetails      []string          `json:"errorDetails"`
	ResourceSets      []bingResourceSet `json:"resourceSets"`
}

type bingResourceSet struct {
	Resources []bingResource `json:"resources"`
}

type bingResource struct {
	Name       string      `json:"name"`
	Point      bingPoint   `json:"point"`
	Address    bingAddress `json:"address"`
	Confidence string      `json:"confidence"`
	EntityType string      `json:"entityType"`
}

type bingPoint struct {
	Coordinates []float64 `json:"coordinates"` // [lat, lon]
}

type bingAddress struct {
	AddressLine       string `json:"addressLine"`
	AdminDistrict     string `json:"adminDistrict"`
	AdminDistrict2    string `json:"adminDistrict2"`
	Locality          string `json:"locality"`
	PostalCode        string `json:"postalCode"`
	CountryRegion     string `json:"countryRegion"`
	CountryRegionIso2 string `json:"countryRegionIso2"`
	FormattedAddress  string `json:"formattedAddress"`
}

// Parse interprets a Bing payload. Bing reports failures through an HTTP
// status code mirrored in the body, which maps onto the provider error
// taxonomy.
func (b *Bing) Parse(payload []byte, entityType domain.EntityType, searchString string) ([]domain.Place, error) {
	var resp bingResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, &domain.ParseError{Engine: EngineBing, Err: err}
	}

	if resp.StatusCode != 0 && resp.StatusCode != 200 {
		return nil, bingStatusError(resp)
	}

	var places []domain.Place
	for _, set := range resp.ResourceSets {
		for _, resource := range set.Resources {
			places = append(places, b.parseResource(resource, entityType, searchString))
		}
	}
	return places, nil
}

func bingStatusError(resp bingResponse) error {
	detail := resp.StatusDescription
	if len(resp.ErrorDetails) > 0 {
		detail = strings.Join(resp.ErrorDetails, "; ")
	}
	kind := domain.ProviderServiceError
	switch resp.StatusCode {
	case 400:
		kind = domain.ProviderQueryError
	case 401:
		kind = domain.ProviderAuthError
	case 403:
		kind = domain.ProviderPrivilegeError
	case 429:
		kind = domain.ProviderQuotaError
	case 500, 503:
		kind = domain.ProviderUnavailableError
	}
	return &domain.ProviderError{Engine: EngineBing, Kind: kind,
		Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, detail)}
}

func (b *Bing) parseResource(resource bingResource, entityType domain.EntityType, searchString string) domain.Place {
	place := domain.Place{
		Engine:       EngineBing,
		EntityType:   entityType,
		SearchString: searchString,
	}

	addr := resource.Address
	if addr.CountryRegionIso2 != "" {
		place.Country = resolveCountryAbbr(b.geo, addr.CountryRegionIso2)
	} else {
		place.Country = resolveCountryAbbr(b.geo, addr.CountryRegion)
	}

	if addr.AdminDistrict2 != "" {
		county := addr.AdminDistrict2
		for _, r := range countyReplacements {
			county = r.re.ReplaceAllString(county, r.with)
		}
		place.County = county
	}

	if entityType == domain.EntityIntersection {
		place.Intersection = addr.AddressLine
	} else {
		place.StreetLine1 = addr.AddressLine
	}
	place.City = addr.Locality
	place.State = addr.AdminDistrict
	place.Zipcode = addr.PostalCode
	place.FormattedAddress = addr.FormattedAddress

	if entityType == domain.EntityCity {
		place.FormattedAddress = formatCityAddress(place)
	}

	if len(resource.Point.Coordinates) == 2 {
		place.Latitude = resource.Point.Coordinates[0]
		place.Longitude = resource.Point.Coordinates[1]
	}

	// Bing self-classifies every resource; the classification has to match
	// exactly and come back at High confidence before we trust it.
	place.Confirmed = bingEntityMap[entityType] == resource.EntityType &&
		resource.Confidence == "High"

	scrubForeign(&place)
	return place
}
