// Command geocode runs a single immediate-mode lookup from the command
// line and prints the ranked candidates as JSON. It uses the same
// provider clients, brokers, and reconciliation core as the service.
//
// Usage:
//
//	GOOGLE_MAPS_KEY=... go run ./cmd/geocode \
//	  -street1 "202 E Maple St" -city "Gilbert" -state "AZ" -zip "85233"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mlcrowe/geocode-reconciler/internal/adapter/bing"
	"github.com/mlcrowe/geocode-reconciler/internal/adapter/google"
	"github.com/mlcrowe/geocode-reconciler/internal/broker"
	"github.com/mlcrowe/geocode-reconciler/internal/domain"
	"github.com/mlcrowe/geocode-reconciler/internal/geography"
	"github.com/mlcrowe/geocode-reconciler/internal/observability"
	"github.com/mlcrowe/geocode-reconciler/internal/pipeline"
	"github.com/mlcrowe/geocode-reconciler/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	street1 := flag.String("street1", "", "first street line")
	street2 := flag.String("street2", "", "second street line (unit, suite)")
	intersection := flag.String("intersection", "", "cross streets, e.g. \"Main St and 1st Ave\"")
	city := flag.String("city", "", "city name")
	county := flag.String("county", "", "county name")
	state := flag.String("state", "", "state name or two-letter code")
	zip := flag.String("zip", "", "postal code")
	country := flag.String("country", "", "country (defaults to US)")
	countiesPath := flag.String("counties", "", "optional JSON county seed file")
	timeout := flag.Duration("timeout", 30*time.Second, "overall lookup timeout")
	flag.Parse()

	logger := observability.NewLogger(envOrDefault("LOG_LEVEL", "warn"), "text")

	var counties []domain.County
	if *countiesPath != "" {
		var err error
		counties, err = geography.LoadCounties(*countiesPath)
		if err != nil {
			return err
		}
	}
	geo := geography.NewResolver(counties, logger)

	googleKey := os.Getenv("GOOGLE_MAPS_KEY")
	bingKey := os.Getenv("BING_MAPS_KEY")
	if googleKey == "" && bingKey == "" {
		return fmt.Errorf("at least one of GOOGLE_MAPS_KEY or BING_MAPS_KEY is required")
	}

	var clients []pipeline.ProviderClient
	var brokers []broker.Broker
	if googleKey != "" {
		clients = append(clients, google.NewClient(googleKey, 5*time.Second, logger))
		brokers = append(brokers, broker.NewGoogle(geo, logger))
	}
	if bingKey != "" {
		clients = append(clients, bing.NewClient(bingKey, 5*time.Second, logger))
		brokers = append(brokers, broker.NewBing(geo, logger))
	}

	memStore, err := store.NewMemory(16)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Config{
		Clients:  clients,
		Registry: broker.NewRegistry(brokers...),
		Scorer:   domain.NewScorer(geo, nil, logger),
		Reducer:  domain.NewReducer(domain.DefaultCliffCutoff, broker.EngineGoogle),
		Policy:   domain.NewRefreshPolicy(domain.DefaultStaleAfter),
		Store:    memStore,
		Logger:   logger,
		Metrics:  observability.NewUnregisteredMetrics(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	candidates, err := p.Lookup(ctx, domain.Components{
		StreetLine1:  *street1,
		StreetLine2:  *street2,
		Intersection: *intersection,
		City:         *city,
		County:       *county,
		State:        *state,
		Zipcode:      *zip,
		Country:      *country,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(candidates)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
