package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcrowe/geocode-reconciler/internal/broker"
	"github.com/mlcrowe/geocode-reconciler/internal/domain"
	"github.com/mlcrowe/geocode-reconciler/internal/observability"
	"github.com/mlcrowe/geocode-reconciler/internal/store"
)

// stubBroker decodes payloads that are already JSON-encoded place lists,
// standing in for a real provider schema.
type stubBroker struct {
	engine string
}

func (b stubBroker) Engine() string { return b.engine }

func (b stubBroker) Parse(payload []byte, _ domain.EntityType, _ string) ([]domain.Place, error) {
	var places []domain.Place
	if err := json.Unmarshal(payload, &places); err != nil {
		return nil, &domain.ParseError{Engine: b.engine, Err: err}
	}
	return places, nil
}

// stubClient returns canned payloads or errors and counts calls.
type stubClient struct {
	engine string
	calls  atomic.Int64
	fetch  func(attempt int64) ([]byte, error)
}

func (c *stubClient) Engine() string { return c.engine }

func (c *stubClient) Fetch(_ context.Context, _ string, _ domain.EntityType) ([]byte, error) {
	return c.fetch(c.calls.Add(1))
}

type stubStates struct{}

func (stubStates) NormalizeState(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "az", "arizona":
		return "AZ", nil
	}
	return "", domain.ErrUnknownState
}

func placePayload(t *testing.T, places ...domain.Place) []byte {
	t.Helper()
	data, err := json.Marshal(places)
	require.NoError(t, err)
	return data
}

func confirmedPlace(engine string) domain.Place {
	return domain.Place{
		City: "Gilbert", County: "Maricopa", State: "AZ", Country: "US",
		Latitude: 33.352, Longitude: -111.789,
		Confirmed: true, Engine: engine,
	}
}

func alwaysReturn(payload []byte) func(int64) ([]byte, error) {
	return func(int64) ([]byte, error) { return payload, nil }
}

func newTestPipeline(t *testing.T, clients ...ProviderClient) *Pipeline {
	t.Helper()
	memStore, err := store.NewMemory(0)
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	return New(Config{
		Clients:        clients,
		Registry:       broker.NewRegistry(stubBroker{"Google"}, stubBroker{"Bing"}),
		Scorer:         domain.NewScorer(stubStates{}, nil, logger),
		Reducer:        domain.NewReducer(0, "Google"),
		Policy:         domain.NewRefreshPolicy(0),
		Store:          memStore,
		Logger:         logger,
		Metrics:        observability.NewMetricsForTesting(),
		RetryBaseDelay: time.Millisecond,
	})
}

func gilbertComponents() domain.Components {
	return domain.Components{City: "Gilbert", County: "Maricopa", State: "AZ"}
}

func TestLookupFansOutToAllProviders(t *testing.T) {
	google := &stubClient{engine: "Google", fetch: alwaysReturn(placePayload(t, confirmedPlace("Google")))}
	bing := &stubClient{engine: "Bing", fetch: alwaysReturn(placePayload(t, confirmedPlace("Bing")))}
	p := newTestPipeline(t, google, bing)

	candidates, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, "Google", candidates[0].Place.Engine)
	assert.Equal(t, 1.0, candidates[0].Score)
	assert.Equal(t, "Bing", candidates[1].Place.Engine)
	assert.Equal(t, 1.0, candidates[1].Score)
	assert.Equal(t, int64(1), google.calls.Load())
	assert.Equal(t, int64(1), bing.calls.Load())
}

func TestLookupProviderFailureIsIsolated(t *testing.T) {
	google := &stubClient{engine: "Google", fetch: func(int64) ([]byte, error) {
		return nil, &domain.ProviderError{Engine: "Google", Kind: domain.ProviderAuthError}
	}}
	bing := &stubClient{engine: "Bing", fetch: alwaysReturn(placePayload(t, confirmedPlace("Bing")))}
	p := newTestPipeline(t, google, bing)

	candidates, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "Bing", candidates[0].Place.Engine)
	// Auth failures are terminal; no retries.
	assert.Equal(t, int64(1), google.calls.Load())
}

func TestLookupRetriesTransientFailures(t *testing.T) {
	google := &stubClient{engine: "Google", fetch: func(attempt int64) ([]byte, error) {
		if attempt < 3 {
			return nil, &domain.ProviderError{Engine: "Google", Kind: domain.ProviderQuotaError}
		}
		return placePayload(t, confirmedPlace("Google")), nil
	}}
	p := newTestPipeline(t, google)

	candidates, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, int64(3), google.calls.Load())
}

func TestLookupExhaustsRetriesAndMovesOn(t *testing.T) {
	google := &stubClient{engine: "Google", fetch: func(int64) ([]byte, error) {
		return nil, &domain.ProviderError{Engine: "Google", Kind: domain.ProviderUnavailableError}
	}}
	p := newTestPipeline(t, google)

	candidates, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	assert.Empty(t, candidates)
	// Initial attempt plus the default two retries.
	assert.Equal(t, int64(3), google.calls.Load())
}

func TestLookupValidationFailsFast(t *testing.T) {
	google := &stubClient{engine: "Google", fetch: alwaysReturn(nil)}
	p := newTestPipeline(t, google)

	_, err := p.Lookup(context.Background(), domain.Components{State: "AZ"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, google.calls.Load())
}

func TestLookupUnconfirmedPlacesYieldNoCandidates(t *testing.T) {
	unconfirmed := confirmedPlace("Google")
	unconfirmed.Confirmed = false
	google := &stubClient{engine: "Google", fetch: alwaysReturn(placePayload(t, unconfirmed))}
	p := newTestPipeline(t, google)

	candidates, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestLookupReusesFreshResponses(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	google := &stubClient{engine: "Google", fetch: alwaysReturn(placePayload(t, confirmedPlace("Google")))}
	p := newTestPipeline(t, google)

	first, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, int64(1), google.calls.Load())

	fake.Advance(time.Hour)

	second, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, int64(1), google.calls.Load(), "fresh responses must be served from the store")
}

func TestLookupRequeriesStaleUnconfirmed(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	unconfirmed := confirmedPlace("Google")
	unconfirmed.Confirmed = false
	google := &stubClient{engine: "Google", fetch: alwaysReturn(placePayload(t, unconfirmed))}
	p := newTestPipeline(t, google)

	_, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	require.Equal(t, int64(1), google.calls.Load())

	fake.Advance(domain.DefaultStaleAfter + time.Hour)

	_, err = p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	assert.Equal(t, int64(2), google.calls.Load(), "stale unconfirmed requests go back to the providers")
}

func TestLookupDoesNotRequeryStaleConfirmed(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	google := &stubClient{engine: "Google", fetch: alwaysReturn(placePayload(t, confirmedPlace("Google")))}
	p := newTestPipeline(t, google)

	_, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)

	fake.Advance(domain.DefaultStaleAfter + time.Hour)

	candidates, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	assert.Len(t, candidates, 1, "confirmed answers keep serving from the store")
	assert.Equal(t, int64(1), google.calls.Load(), "confirmed answers are never re-bought")
}

func TestLookupDropsUnparseableStoredResponse(t *testing.T) {
	google := &stubClient{engine: "Google", fetch: alwaysReturn([]byte("not json"))}
	bing := &stubClient{engine: "Bing", fetch: alwaysReturn(placePayload(t, confirmedPlace("Bing")))}
	p := newTestPipeline(t, google, bing)

	candidates, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Bing", candidates[0].Place.Engine)
}

func TestCheckReadiness(t *testing.T) {
	google := &stubClient{engine: "Google", fetch: alwaysReturn(placePayload(t, confirmedPlace("Google")))}
	p := newTestPipeline(t, google)

	require.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.Lookup(context.Background(), gilbertComponents())
	require.NoError(t, err)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(4*time.Second, 5*time.Second))
}
