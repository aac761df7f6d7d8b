package domain

import (
	"strings"
)

// EntityType is the kind of place a geocode query targets.
type EntityType string

const (
	EntityStreetAddress EntityType = "street_address"
	EntityCity          EntityType = "city"
	EntityCounty        EntityType = "county"
	EntityIntersection  EntityType = "intersection"
	EntityNeighborhood  EntityType = "neighborhood"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityStreetAddress, EntityCity, EntityCounty, EntityIntersection, EntityNeighborhood:
		return true
	}
	return false
}

// Components are the structured address parts a caller may supply.
// Unused parts stay empty. Country defaults to "US" when blank.
type Components struct {
	StreetLine1  string `json:"street_line1,omitempty"`
	StreetLine2  string `json:"street_line2,omitempty"`
	Intersection string `json:"intersection,omitempty"`
	City         string `json:"city,omitempty"`
	County       string `json:"county,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
	Zipcode      string `json:"zipcode,omitempty"`
}

// Empty reports whether no locatable component was supplied.
func (c Components) Empty() bool {
	return c.StreetLine1 == "" && c.StreetLine2 == "" && c.Intersection == "" &&
		c.City == "" && c.County == ""
}

// FormatComponents builds the raw address string sent to providers and
// infers the entity type from whichever components are present.
//
// The county is only part of the address when neither a city nor any
// street-level data was given; once a city appears the query is at least
// city-level, and street lines or an intersection push it to street level.
// Street lines win over an intersection when both were supplied upstream of
// validation. Non-US addresses without an intersection get the country
// appended so providers bias to the right region.
func FormatComponents(c Components) (string, EntityType, error) {
	if err := ValidateComponents(c); err != nil {
		return "", "", err
	}

	country := strings.TrimSpace(c.Country)
	if country == "" {
		country = "US"
	}

	var entityType EntityType
	address := ""

	if c.Zipcode != "" {
		address = c.Zipcode
	}
	if c.State != "" {
		// Providers get the two-letter code; a full or misspelled state
		// name keeps its raw form.
		state := c.State
		if abbr, err := NormalizeState(c.State); err == nil {
			state = abbr
		}
		address = prependPart(state, address)
	}

	// The county stays out of the address once geocoding happens at the
	// street level within a known city.
	streetLevel := c.StreetLine1 != "" || c.StreetLine2 != "" || c.Intersection != ""
	if c.County != "" && (c.City == "" || !streetLevel) {
		entityType = EntityCounty
		address = prependPart(c.County, address)
	}

	if c.City != "" {
		entityType = EntityCity
		address = prependPart(c.City, address)
	}

	switch {
	case c.StreetLine1 != "" || c.StreetLine2 != "":
		entityType = EntityStreetAddress
		if c.StreetLine2 != "" {
			address = prependPart(c.StreetLine2, address)
		}
		if c.StreetLine1 != "" {
			address = prependPart(c.StreetLine1, address)
		}
	case c.Intersection != "":
		entityType = EntityIntersection
		address = prependPart(c.Intersection, address)
	}

	if c.Intersection == "" && country != "US" {
		address += ", " + country
	}

	if entityType == "" {
		return "", "", &ValidationError{Reason: "no locatable components supplied"}
	}
	return address, entityType, nil
}

// prependPart joins a new leading address part onto the parts built so
// far, skipping the separator when nothing follows yet.
func prependPart(part, address string) string {
	if address == "" {
		return part
	}
	return part + ", " + address
}

// ValidateComponents rejects inputs the pipeline cannot act on before any
// provider is called.
func ValidateComponents(c Components) error {
	if c.Intersection != "" && (c.StreetLine1 != "" || c.StreetLine2 != "") {
		return &ValidationError{Reason: "street lines cannot be combined with an intersection"}
	}
	if c.Empty() {
		return &ValidationError{Reason: "no locatable components supplied"}
	}
	return nil
}
