// Package broker holds the per-provider payload parsers. A broker
// encapsulates one provider's JSON schema — field names, entity
// classification taxonomy, status codes — behind a uniform Parse call, so
// the same stored payload can be re-interpreted years later without
// re-querying the provider. Brokers never perform network I/O; the
// adapter clients fetch, brokers parse.
package broker

import (
	"fmt"
	"strings"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// Broker turns one provider's raw payload into normalized places.
type Broker interface {
	// Engine is the provider identifier stored alongside payloads.
	Engine() string

	// Parse interprets a raw payload for the given entity type and search
	// string. Malformed payloads return a *domain.ParseError; provider
	// status failures embedded in the body return a *domain.ProviderError.
	// Missing fields stay empty, never fabricated.
	Parse(payload []byte, entityType domain.EntityType, searchString string) ([]domain.Place, error)
}

// Registry is an explicit engine-to-broker mapping. It replaces what used
// to be process-global state so tests can substitute fake providers.
type Registry struct {
	order   []string
	brokers map[string]Broker
}

// NewRegistry builds a registry from the given brokers. Engine order is
// preserved for deterministic iteration.
func NewRegistry(brokers ...Broker) *Registry {
	r := &Registry{brokers: make(map[string]Broker, len(brokers))}
	for _, b := range brokers {
		if _, dup := r.brokers[b.Engine()]; dup {
			continue
		}
		r.brokers[b.Engine()] = b
		r.order = append(r.order, b.Engine())
	}
	return r
}

// Broker returns the broker for an engine.
func (r *Registry) Broker(engine string) (Broker, error) {
	b, ok := r.brokers[engine]
	if !ok {
		return nil, fmt.Errorf("broker for %q: %w", engine, domain.ErrUnknownEngine)
	}
	return b, nil
}

// Engines lists registered engines in registration order.
func (r *Registry) Engines() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// formatCityAddress reconstructs a city-level formatted address from
// parsed components. Providers phrase city results inconsistently
// ("Gilbert, AZ, USA" vs "Gilbert, Arizona, United States"), so for city
// queries we rebuild the string ourselves to align with the raw input.
func formatCityAddress(p domain.Place) string {
	formatted := p.City
	if p.Country == "US" {
		if p.County != "" {
			formatted += ", " + p.County
		}
		if p.State != "" {
			formatted += " " + p.State
		}
	} else if p.Country != "" {
		formatted += " " + p.Country
	}
	return formatted
}

// resolveCountryAbbr maps a provider's country value to the short code,
// keeping the raw value when the resolver does not know it.
func resolveCountryAbbr(geo domain.Geography, raw string) string {
	if raw == "" {
		return ""
	}
	if country, err := geo.ResolveCountry(raw); err == nil {
		return country.Abbr
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// scrubForeign clears state and county on non-US places. Those concepts
// are not reliable outside the supported country set; city and country
// remain valid.
func scrubForeign(p *domain.Place) {
	if p.Country != "US" {
		p.County = ""
		p.State = ""
	}
}
