package domain

import (
	"errors"
	"fmt"
)

// ValidationError means the request itself was unusable; it fails fast
// before any provider is called.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid geocode request: " + e.Reason
}

// ParseError means one provider's payload could not be interpreted. The
// provider's contribution is dropped; the rest of the pipeline continues.
type ParseError struct {
	Engine string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Engine, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ProviderErrorKind classifies provider-level failures so callers can tell
// retryable conditions from terminal ones.
type ProviderErrorKind string

const (
	ProviderAuthError        ProviderErrorKind = "auth"
	ProviderPrivilegeError   ProviderErrorKind = "privileges"
	ProviderQuotaError       ProviderErrorKind = "quota"
	ProviderUnavailableError ProviderErrorKind = "unavailable"
	ProviderQueryError       ProviderErrorKind = "bad_query"
	ProviderServiceError     ProviderErrorKind = "service"
)

// ProviderError is a typed provider failure. Quota and unavailable errors
// are transient and worth a bounded retry; auth, privilege, and query
// errors are configuration or input problems and are not retried.
type ProviderError struct {
	Engine string
	Kind   ProviderErrorKind
	Detail string
}

func (e *ProviderError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s error", e.Engine, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Engine, e.Kind, e.Detail)
}

// Retryable reports whether the failure is transient.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ProviderQuotaError || e.Kind == ProviderUnavailableError
}

// ProviderErrorFromStatus maps an HTTP status code onto the provider error
// taxonomy. Both provider clients speak plain HTTPS and fail the same way
// at the transport level.
func ProviderErrorFromStatus(engine string, status int, detail string) *ProviderError {
	kind := ProviderServiceError
	switch {
	case status == 401:
		kind = ProviderAuthError
	case status == 403:
		kind = ProviderPrivilegeError
	case status == 429:
		kind = ProviderQuotaError
	case status == 400:
		kind = ProviderQueryError
	case status >= 500:
		kind = ProviderUnavailableError
	}
	return &ProviderError{Engine: engine, Kind: kind, Detail: fmt.Sprintf("status %d: %s", status, detail)}
}

// RetryableProviderError reports whether err is a transient provider failure.
func RetryableProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

// Sentinel errors for the geography resolvers. Resolution is explicit: a
// miss or an ambiguous name is a value the caller decides on, never
// control flow by exception.
var (
	ErrPlaceNotFound    = errors.New("place not found")
	ErrAmbiguousCounty  = errors.New("multiple counties match")
	ErrAmbiguousCity    = errors.New("multiple cities match")
	ErrUnknownState     = errors.New("unknown state")
	ErrUnknownCountry   = errors.New("unknown country")
	ErrUnknownEngine    = errors.New("unknown geocoding engine")
	ErrNoStoredResponse = errors.New("no stored responses")
)
