package domain

import (
	"time"
)

// Request is a normalized geocode query. It is immutable once issued: the
// pipeline reads it, providers answer it, but nobody rewrites it. A fresh
// submission of the same address updates ModifiedAt through the request
// cache instead of creating a duplicate.
type Request struct {
	RawAddress string     `json:"raw_address"`
	EntityType EntityType `json:"entity_type"`
	Components Components `json:"components"`
	ModifiedAt time.Time  `json:"modified_at"`
}

// Key returns the request's uniqueness key. Two submissions with the same
// raw address and entity type are the same request.
func (r Request) Key() RequestKey {
	return RequestKey{RawAddress: r.RawAddress, EntityType: r.EntityType}
}

// RequestKey identifies a request in the response store.
type RequestKey struct {
	RawAddress string     `json:"raw_address"`
	EntityType EntityType `json:"entity_type"`
}

func (k RequestKey) String() string {
	return k.RawAddress + "|" + string(k.EntityType)
}

// NewRequest builds a Request from caller-supplied components, validating
// them and deriving the raw address and entity type.
func NewRequest(c Components) (Request, error) {
	raw, entityType, err := FormatComponents(c)
	if err != nil {
		return Request{}, err
	}
	if c.Country == "" {
		c.Country = "US"
	}
	return Request{
		RawAddress: raw,
		EntityType: entityType,
		Components: c,
		ModifiedAt: clock.Now().UTC(),
	}, nil
}

// StoredResponse is one provider's raw answer to one request, as held by
// the response store. The payload stays opaque until a broker parses it.
type StoredResponse struct {
	Engine    string    `json:"engine"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Current reports whether the response postdates the request's last
// modification. Only current responses are valid for scoring; anything
// older answered a previous version of the address.
func (r StoredResponse) Current(req Request) bool {
	return r.CreatedAt.After(req.ModifiedAt) || r.CreatedAt.Equal(req.ModifiedAt)
}

// CurrentResponses filters responses down to those valid for req,
// preserving order.
func CurrentResponses(req Request, responses []StoredResponse) []StoredResponse {
	current := make([]StoredResponse, 0, len(responses))
	for _, resp := range responses {
		if resp.Current(req) {
			current = append(current, resp)
		}
	}
	return current
}
