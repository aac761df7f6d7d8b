package domain

import (
	"time"
)

// DefaultStaleAfter is how long a request's stored responses are trusted
// before the refresh policy will consider re-querying providers.
const DefaultStaleAfter = 14 * 24 * time.Hour

// FreshnessState classifies a stored request for the refresh decision.
type FreshnessState string

const (
	// Fresh: recently modified, the stored responses stand.
	Fresh FreshnessState = "fresh"
	// StaleNoResponses: old enough to retry and no provider ever answered.
	StaleNoResponses FreshnessState = "stale_no_responses"
	// StaleUnconfirmed: old enough to retry and nothing was ever confirmed.
	// These are the addresses worth another attempt — a typo may have been
	// fixed upstream, or provider coverage may have improved.
	StaleUnconfirmed FreshnessState = "stale_unconfirmed"
	// StaleConfirmed: old but at least one provider confirmed it. Known
	// answers are not re-bought from paid APIs.
	StaleConfirmed FreshnessState = "stale_confirmed"
)

// RefreshPolicy decides whether a previously stored request should be sent
// back out to the providers. It exists to avoid hammering paid geocoding
// APIs for addresses that will never resolve (PO boxes, typos that were
// confirmed as-is) while still letting legitimately stale or unconfirmed
// addresses retry.
type RefreshPolicy struct {
	staleAfter time.Duration
}

// NewRefreshPolicy creates a policy. Pass staleAfter <= 0 for the default.
func NewRefreshPolicy(staleAfter time.Duration) *RefreshPolicy {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &RefreshPolicy{staleAfter: staleAfter}
}

// Classify returns the freshness state of a request given its current
// stored responses and their confirmation outcome. confirmedAny is whether
// any current response ever normalized to a confirmed place.
func (p *RefreshPolicy) Classify(req Request, responses []StoredResponse, confirmedAny bool) FreshnessState {
	elapsed := clock.Now().Sub(req.ModifiedAt)
	if elapsed <= p.staleAfter {
		return Fresh
	}
	if len(responses) == 0 {
		return StaleNoResponses
	}
	if confirmedAny {
		return StaleConfirmed
	}
	return StaleUnconfirmed
}

// ShouldRequery reports whether the pipeline may call providers again for
// this request.
func (p *RefreshPolicy) ShouldRequery(req Request, responses []StoredResponse, confirmedAny bool) bool {
	switch p.Classify(req, responses, confirmedAny) {
	case StaleNoResponses, StaleUnconfirmed:
		return true
	default:
		return false
	}
}
