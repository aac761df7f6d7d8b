// Package store holds the provider response store and request cache: the
// append/update structure keyed by (request, engine) that the pipeline
// reads cached payloads from and writes fresh ones into. Two
// implementations exist — an in-process LRU for single-node deployments
// and tests, and a Redis store shared across workers.
package store

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// DefaultMaxRequests bounds the in-memory store.
const DefaultMaxRequests = 10000

type memoryEntry struct {
	request   domain.Request
	responses map[string]domain.StoredResponse // engine -> latest response
}

// Memory is an in-process store backed by an LRU over request keys.
type Memory struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *memoryEntry]
}

// NewMemory creates an in-memory store. Pass maxRequests <= 0 for the
// default.
func NewMemory(maxRequests int) (*Memory, error) {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	entries, err := lru.New[string, *memoryEntry](maxRequests)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: entries}, nil
}

// GetOrCreate returns the stored request for req's key, creating it from
// req when absent. The second return is true when the request was created.
func (s *Memory) GetOrCreate(_ context.Context, req domain.Request) (domain.Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.Key().String()
	if entry, ok := s.entries.Get(key); ok {
		return entry.request, false, nil
	}
	s.entries.Add(key, &memoryEntry{
		request:   req,
		responses: make(map[string]domain.StoredResponse),
	})
	return req, true, nil
}

// Touch updates the stored request's ModifiedAt, marking the moment a
// re-query was authorized. Responses stored afterwards count as current.
func (s *Memory) Touch(_ context.Context, req domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.Key().String()
	if entry, ok := s.entries.Get(key); ok {
		entry.request.ModifiedAt = req.ModifiedAt
		return nil
	}
	s.entries.Add(key, &memoryEntry{
		request:   req,
		responses: make(map[string]domain.StoredResponse),
	})
	return nil
}

// Responses returns all stored responses for a request key, one per
// engine, in unspecified order.
func (s *Memory) Responses(_ context.Context, key domain.RequestKey) ([]domain.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(key.String())
	if !ok {
		return nil, nil
	}
	out := make([]domain.StoredResponse, 0, len(entry.responses))
	for _, resp := range entry.responses {
		out = append(out, resp)
	}
	return out, nil
}

// PutResponse stores a provider response, overwriting any previous
// response for the same (request, engine) pair. Concurrent writers for
// different engines on the same request do not conflict.
func (s *Memory) PutResponse(_ context.Context, key domain.RequestKey, resp domain.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	entry, ok := s.entries.Get(k)
	if !ok {
		// The request entry can be evicted between GetOrCreate and the
		// response write. Rebuild it from the key, dating it to the
		// response, so a later GetOrCreate never surfaces a zero-valued
		// request.
		entry = &memoryEntry{
			request: domain.Request{
				RawAddress: key.RawAddress,
				EntityType: key.EntityType,
				ModifiedAt: resp.CreatedAt,
			},
			responses: make(map[string]domain.StoredResponse),
		}
		s.entries.Add(k, entry)
	}
	entry.responses[resp.Engine] = resp
	return nil
}
