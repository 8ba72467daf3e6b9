package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketplace/internal/domain"
	"marketplace/internal/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) (*InventoryClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	breaker := resilience.NewCircuitBreaker("inventory-test", resilience.BreakerConfig{
		ErrorThreshold: 3,
		ResetTimeout:   time.Minute,
	})
	client := NewInventoryClient(srv.URL, 2*time.Second, breaker, resilience.RetryConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	return client, srv
}

func TestInventoryClient_GetProduct(t *testing.T) {
	t.Run("decodes product snapshot", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/products/prod-1", r.URL.Path)
			w.Write([]byte(`{"id":"prod-1","name":"Widget","sku":"W-1","price":2500,"active":true,"available":7}`))
		}))

		info, err := client.GetProduct(context.Background(), "prod-1")

		assert.NoError(t, err)
		assert.Equal(t, "Widget", info.Name)
		assert.Equal(t, int64(2500), info.Price)
		assert.Equal(t, int64(7), info.Available)
	})

	t.Run("404 maps to not found without retrying", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))

		info, err := client.GetProduct(context.Background(), "ghost")

		assert.Nil(t, info)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"id":"prod-1","name":"Widget","price":2500,"active":true,"available":7}`))
		}))

		info, err := client.GetProduct(context.Background(), "prod-1")

		assert.NoError(t, err)
		assert.Equal(t, "prod-1", info.ID)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("mock products bypass the service", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("mock product must not reach the inventory service")
		}))

		info, err := client.GetProduct(context.Background(), "mock-demo")

		assert.NoError(t, err)
		assert.True(t, info.Active)
		assert.Greater(t, info.Available, int64(1000000))
	})
}

func TestInventoryClient_Reserve(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/products/prod-1/reserve", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusOK)
		}))

		assert.NoError(t, client.Reserve(context.Background(), "prod-1", 2))
	})

	t.Run("409 maps to insufficient inventory", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))

		err := client.Reserve(context.Background(), "prod-1", 99)

		assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	})

	t.Run("writes are not retried", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))

		err := client.Reserve(context.Background(), "prod-1", 1)

		assert.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("mock products are no-ops", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("mock product must not reach the inventory service")
		}))

		assert.NoError(t, client.Reserve(context.Background(), "mock-demo", 5))
		assert.NoError(t, client.Release(context.Background(), "mock-demo", 5))
		assert.NoError(t, client.Consume(context.Background(), "mock-demo", 5))
	})
}

func TestInventoryClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 3; i++ {
		assert.Error(t, client.Reserve(context.Background(), "prod-1", 1))
	}

	// Breaker is open now: the next call fails fast and maps to an
	// upstream-unavailable error without another HTTP request.
	before := atomic.LoadInt32(&calls)
	err := client.Reserve(context.Background(), "prod-1", 1)

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}
