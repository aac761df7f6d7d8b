package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

func testRequest(t *testing.T) domain.Request {
	t.Helper()
	req, err := domain.NewRequest(domain.Components{
		City: "Gilbert", County: "Maricopa", State: "AZ",
	})
	require.NoError(t, err)
	return req
}

func TestMemoryGetOrCreate(t *testing.T) {
	s, err := NewMemory(0)
	require.NoError(t, err)
	ctx := context.Background()
	req := testRequest(t)

	stored, created, err := s.GetOrCreate(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, req, stored)

	// The second submission finds the first record, including its
	// original ModifiedAt.
	later := req
	later.ModifiedAt = req.ModifiedAt.Add(time.Hour)
	stored, created, err = s.GetOrCreate(ctx, later)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, req.ModifiedAt, stored.ModifiedAt)
}

func TestMemoryTouch(t *testing.T) {
	s, err := NewMemory(0)
	require.NoError(t, err)
	ctx := context.Background()
	req := testRequest(t)

	_, _, err = s.GetOrCreate(ctx, req)
	require.NoError(t, err)

	touched := req
	touched.ModifiedAt = req.ModifiedAt.Add(time.Hour)
	require.NoError(t, s.Touch(ctx, touched))

	stored, created, err := s.GetOrCreate(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, touched.ModifiedAt, stored.ModifiedAt)
}

func TestMemoryPutResponseOverwritesPerEngine(t *testing.T) {
	s, err := NewMemory(0)
	require.NoError(t, err)
	ctx := context.Background()
	req := testRequest(t)
	key := req.Key()

	now := time.Now().UTC()
	require.NoError(t, s.PutResponse(ctx, key, domain.StoredResponse{
		Engine: "Google", Payload: []byte(`{"v":1}`), CreatedAt: now,
	}))
	require.NoError(t, s.PutResponse(ctx, key, domain.StoredResponse{
		Engine: "Bing", Payload: []byte(`{"v":2}`), CreatedAt: now,
	}))
	require.NoError(t, s.PutResponse(ctx, key, domain.StoredResponse{
		Engine: "Google", Payload: []byte(`{"v":3}`), CreatedAt: now.Add(time.Minute),
	}))

	responses, err := s.Responses(ctx, key)
	require.NoError(t, err)
	require.Len(t, responses, 2)

	byEngine := make(map[string]domain.StoredResponse, len(responses))
	for _, r := range responses {
		byEngine[r.Engine] = r
	}
	assert.JSONEq(t, `{"v":3}`, string(byEngine["Google"].Payload))
	assert.JSONEq(t, `{"v":2}`, string(byEngine["Bing"].Payload))
}

func TestMemoryPutResponseAfterEvictionRebuildsRequest(t *testing.T) {
	s, err := NewMemory(1)
	require.NoError(t, err)
	ctx := context.Background()
	req := testRequest(t)
	key := req.Key()

	_, _, err = s.GetOrCreate(ctx, req)
	require.NoError(t, err)

	// A second request evicts the first; the in-flight response write for
	// the evicted key must rebuild the record rather than leave a
	// zero-valued request behind.
	other, err := domain.NewRequest(domain.Components{City: "Chandler", County: "Maricopa", State: "AZ"})
	require.NoError(t, err)
	_, _, err = s.GetOrCreate(ctx, other)
	require.NoError(t, err)

	resp := domain.StoredResponse{
		Engine: "Google", Payload: []byte(`{"v":1}`), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.PutResponse(ctx, key, resp))

	stored, created, err := s.GetOrCreate(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, req.RawAddress, stored.RawAddress)
	assert.Equal(t, req.EntityType, stored.EntityType)
	assert.True(t, resp.Current(stored), "stored response should remain current for the rebuilt request")
}

func TestMemoryResponsesUnknownKey(t *testing.T) {
	s, err := NewMemory(0)
	require.NoError(t, err)

	responses, err := s.Responses(context.Background(), domain.RequestKey{
		RawAddress: "nowhere", EntityType: domain.EntityCity,
	})
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestMemoryEvictsOldestRequest(t *testing.T) {
	s, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	reqs := make([]domain.Request, 3)
	for i, city := range []string{"Gilbert", "Chandler", "Tempe"} {
		req, err := domain.NewRequest(domain.Components{City: city, County: "Maricopa", State: "AZ"})
		require.NoError(t, err)
		reqs[i] = req
		_, _, err = s.GetOrCreate(ctx, req)
		require.NoError(t, err)
	}

	_, created, err := s.GetOrCreate(ctx, reqs[0])
	require.NoError(t, err)
	assert.True(t, created, "oldest request should have been evicted")
}

func TestMemoryConcurrentWriters(t *testing.T) {
	s, err := NewMemory(0)
	require.NoError(t, err)
	ctx := context.Background()
	req := testRequest(t)
	key := req.Key()

	var wg sync.WaitGroup
	for _, engine := range []string{"Google", "Bing"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				err := s.PutResponse(ctx, key, domain.StoredResponse{
					Engine: engine, Payload: []byte("{}"), CreatedAt: time.Now(),
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	responses, err := s.Responses(ctx, key)
	require.NoError(t, err)
	assert.Len(t, responses, 2)
}
