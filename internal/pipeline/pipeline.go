// Package pipeline orchestrates the reconciliation flow: fan out one
// request to every configured provider, store the raw payloads, then
// normalize, confirm-filter, score, and reduce them into a ranked
// candidate list. The package owns all policy around retries, timeouts,
// and cache reuse; the domain package owns the pure logic.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mlcrowe/geocode-reconciler/internal/broker"
	"github.com/mlcrowe/geocode-reconciler/internal/domain"
	"github.com/mlcrowe/geocode-reconciler/internal/observability"
)

// ProviderClient fetches one provider's raw payload for a query.
// Implementations live in internal/adapter; tests substitute fakes.
type ProviderClient interface {
	Engine() string
	Fetch(ctx context.Context, query string, entityType domain.EntityType) ([]byte, error)
}

// Store is the request cache plus provider response store, keyed by
// (raw_address, entity_type) and (request, engine) respectively.
type Store interface {
	GetOrCreate(ctx context.Context, req domain.Request) (domain.Request, bool, error)
	Touch(ctx context.Context, req domain.Request) error
	Responses(ctx context.Context, key domain.RequestKey) ([]domain.StoredResponse, error)
	PutResponse(ctx context.Context, key domain.RequestKey, resp domain.StoredResponse) error
}

const (
	defaultProviderTimeout = 5 * time.Second
	defaultMaxRetries      = 2
	defaultRetryBaseDelay  = 200 * time.Millisecond
)

// Config wires a Pipeline.
type Config struct {
	Clients  []ProviderClient
	Registry *broker.Registry
	Scorer   *domain.Scorer
	Reducer  *domain.Reducer
	Policy   *domain.RefreshPolicy
	Store    Store
	Logger   *slog.Logger
	Metrics  *observability.Metrics

	// ProviderTimeout bounds each individual provider call. A provider
	// exceeding it contributes nothing and does not block the others.
	ProviderTimeout time.Duration
	// MaxRetries bounds retries of transient provider failures.
	MaxRetries int
	// RetryBaseDelay is the starting backoff between retries; it doubles
	// per attempt.
	RetryBaseDelay time.Duration
}

// Pipeline runs geocode lookups in immediate mode and, via Run, consumes
// deferred jobs.
type Pipeline struct {
	clients  []ProviderClient
	registry *broker.Registry
	scorer   *domain.Scorer
	reducer  *domain.Reducer
	policy   *domain.RefreshPolicy
	store    Store
	logger   *slog.Logger
	metrics  *observability.Metrics

	providerTimeout time.Duration
	maxRetries      int
	retryBaseDelay  time.Duration

	ready atomic.Bool
}

// New creates a Pipeline, applying defaults for unset tunables.
func New(cfg Config) *Pipeline {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	return &Pipeline{
		clients:         cfg.Clients,
		registry:        cfg.Registry,
		scorer:          cfg.Scorer,
		reducer:         cfg.Reducer,
		policy:          cfg.Policy,
		store:           cfg.Store,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		providerTimeout: cfg.ProviderTimeout,
		maxRetries:      cfg.MaxRetries,
		retryBaseDelay:  cfg.RetryBaseDelay,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one
// lookup.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed any lookups yet")
	}
	return nil
}

// Lookup geocodes the supplied components in immediate mode: the caller
// blocks until every provider answered or timed out. The returned slice
// is ordered by descending score; an empty slice means no provider's
// answer could be confirmed against the input — a valid terminal state
// the caller presents as "could not verify this address".
func (p *Pipeline) Lookup(ctx context.Context, components domain.Components) ([]domain.Candidate, error) {
	start := time.Now()

	req, err := domain.NewRequest(components)
	if err != nil {
		return nil, err
	}

	stored, created, err := p.store.GetOrCreate(ctx, req)
	if err != nil {
		p.metrics.LookupsTotal.WithLabelValues(string(req.EntityType), "error").Inc()
		return nil, err
	}

	responses, err := p.store.Responses(ctx, stored.Key())
	if err != nil {
		p.metrics.LookupsTotal.WithLabelValues(string(req.EntityType), "error").Inc()
		return nil, err
	}
	current := domain.CurrentResponses(stored, responses)
	if len(current) > 0 {
		p.metrics.StoreLookups.WithLabelValues("hit").Inc()
	} else {
		p.metrics.StoreLookups.WithLabelValues("miss").Inc()
	}

	if p.shouldQuery(stored, created, current) {
		// Touching first makes the fresh responses postdate the request.
		stored.ModifiedAt = domain.Now().UTC()
		if err := p.store.Touch(ctx, stored); err != nil {
			p.logger.Warn("touch request failed", "error", err, "address", stored.RawAddress)
		}
		p.fanOut(ctx, stored)

		responses, err = p.store.Responses(ctx, stored.Key())
		if err != nil {
			p.metrics.LookupsTotal.WithLabelValues(string(req.EntityType), "error").Inc()
			return nil, err
		}
		current = domain.CurrentResponses(stored, responses)
	}

	accepted := p.reconcile(stored, current)

	outcome := "matched"
	if len(accepted) == 0 {
		outcome = "unmatched"
	}
	p.metrics.LookupsTotal.WithLabelValues(string(req.EntityType), outcome).Inc()
	p.metrics.CandidatesAccepted.Observe(float64(len(accepted)))
	p.metrics.LookupDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)

	return accepted, nil
}

// shouldQuery decides whether providers get called for this lookup: always
// for a brand-new request, otherwise only when the refresh policy allows.
func (p *Pipeline) shouldQuery(req domain.Request, created bool, current []domain.StoredResponse) bool {
	if created {
		return true
	}
	confirmedAny := p.anyConfirmed(req, current)
	state := p.policy.Classify(req, current, confirmedAny)
	p.metrics.PolicyDecisions.WithLabelValues(string(state)).Inc()
	if !p.policy.ShouldRequery(req, current, confirmedAny) {
		p.logger.Debug("refresh policy declined requery",
			"address", req.RawAddress, "state", string(state), "responses", len(current))
		return false
	}
	return true
}

// reconcile runs the pure half of the pipeline over stored responses:
// normalize each payload through its broker, keep confirmed places, score
// them against the request, and reduce across providers.
func (p *Pipeline) reconcile(req domain.Request, responses []domain.StoredResponse) []domain.Candidate {
	places := p.normalize(req, responses)
	confirmed := domain.ConfirmedOnly(places)
	scored := p.scorer.Score(req, confirmed)
	return p.reducer.Reduce(scored)
}

// normalize parses every stored response through its engine's broker.
// A malformed or error payload drops that provider's contribution and
// never fails the lookup.
func (p *Pipeline) normalize(req domain.Request, responses []domain.StoredResponse) []domain.Place {
	var places []domain.Place
	for _, resp := range responses {
		b, err := p.registry.Broker(resp.Engine)
		if err != nil {
			p.logger.Warn("stored response from unknown engine", "engine", resp.Engine)
			continue
		}
		parsed, err := b.Parse(resp.Payload, req.EntityType, req.RawAddress)
		if err != nil {
			p.logger.Warn("dropping unparseable response",
				"engine", resp.Engine, "address", req.RawAddress, "error", err)
			continue
		}
		places = append(places, parsed...)
	}
	return places
}

// anyConfirmed reports whether any current stored response normalizes to
// at least one confirmed place.
func (p *Pipeline) anyConfirmed(req domain.Request, responses []domain.StoredResponse) bool {
	for _, place := range p.normalize(req, responses) {
		if place.Confirmed {
			return true
		}
	}
	return false
}

// fanOut queries all configured providers concurrently and stores each
// successful payload. Provider failures are isolated: a provider timing
// out or erroring never blocks the others' contributions.
func (p *Pipeline) fanOut(ctx context.Context, req domain.Request) {
	var wg sync.WaitGroup
	for _, client := range p.clients {
		wg.Add(1)
		go func(client ProviderClient) {
			defer wg.Done()
			p.queryProvider(ctx, client, req)
		}(client)
	}
	wg.Wait()
}

// queryProvider runs one provider call with its own timeout, retrying
// transient failures (quota, unavailable) a bounded number of times with
// exponential backoff. Terminal failures are logged and dropped; auth
// failures log at error severity because they are configuration problems,
// not per-request noise.
func (p *Pipeline) queryProvider(ctx context.Context, client ProviderClient, req domain.Request) {
	engine := client.Engine()
	delay := p.retryBaseDelay

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.providerTimeout)
		start := time.Now()
		payload, err := client.Fetch(callCtx, req.RawAddress, req.EntityType)
		p.metrics.ProviderDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
		cancel()

		if err == nil {
			if len(payload) == 0 {
				p.metrics.ProviderRequests.WithLabelValues(engine, "empty").Inc()
				return
			}
			p.metrics.ProviderRequests.WithLabelValues(engine, "success").Inc()
			resp := domain.StoredResponse{Engine: engine, Payload: payload, CreatedAt: domain.Now().UTC()}
			if putErr := p.store.PutResponse(ctx, req.Key(), resp); putErr != nil {
				p.logger.Error("store response failed", "engine", engine, "error", putErr)
			}
			return
		}

		p.metrics.ProviderRequests.WithLabelValues(engine, "error").Inc()

		if !domain.RetryableProviderError(err) || attempt >= p.maxRetries {
			var pe *domain.ProviderError
			if errors.As(err, &pe) && (pe.Kind == domain.ProviderAuthError || pe.Kind == domain.ProviderPrivilegeError) {
				p.logger.Error("provider rejected credentials",
					"engine", engine, "error", err)
			} else {
				p.logger.Warn("provider query failed",
					"engine", engine, "address", req.RawAddress, "attempts", attempt+1, "error", err)
			}
			return
		}

		p.metrics.ProviderRetries.WithLabelValues(engine).Inc()
		if !sleepWithContext(ctx, delay) {
			return
		}
		delay = nextBackoff(delay, p.providerTimeout)
	}
}
