package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

const (
	requestKeyPrefix  = "geocode:req:"
	responseKeyPrefix = "geocode:resp:"
)

// Redis is a store shared across worker processes. Requests live as JSON
// strings, responses as a hash field per engine, so concurrent writers for
// different engines on the same request never conflict and a rewrite for
// the same engine overwrites in place.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. ttl bounds how long both request
// records and response payloads are retained; pass 0 for no expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// GetOrCreate returns the stored request for req's key, creating it from
// req when absent.
func (s *Redis) GetOrCreate(ctx context.Context, req domain.Request) (domain.Request, bool, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return domain.Request{}, false, fmt.Errorf("marshal request: %w", err)
	}

	key := requestKeyPrefix + req.Key().String()
	created, err := s.client.SetNX(ctx, key, data, s.ttl).Result()
	if err != nil {
		return domain.Request{}, false, fmt.Errorf("store request: %w", err)
	}
	if created {
		return req, true, nil
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Request{}, false, fmt.Errorf("load request: %w", err)
	}
	var stored domain.Request
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.Request{}, false, fmt.Errorf("decode request: %w", err)
	}
	return stored, false, nil
}

// Touch rewrites the stored request, updating its ModifiedAt.
func (s *Redis) Touch(ctx context.Context, req domain.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := s.client.Set(ctx, requestKeyPrefix+req.Key().String(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("touch request: %w", err)
	}
	return nil
}

// Responses returns all stored responses for a request key.
func (s *Redis) Responses(ctx context.Context, key domain.RequestKey) ([]domain.StoredResponse, error) {
	fields, err := s.client.HGetAll(ctx, responseKeyPrefix+key.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	out := make([]domain.StoredResponse, 0, len(fields))
	for engine, raw := range fields {
		var resp domain.StoredResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", engine, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// PutResponse stores a provider response, overwriting any previous entry
// for the same (request, engine) pair.
func (s *Redis) PutResponse(ctx context.Context, key domain.RequestKey, resp domain.StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	k := responseKeyPrefix + key.String()
	if err := s.client.HSet(ctx, k, resp.Engine, data).Err(); err != nil {
		return fmt.Errorf("store response: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, k, s.ttl).Err(); err != nil {
			return fmt.Errorf("expire responses: %w", err)
		}
	}
	return nil
}
