package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthAggregator_AllProbesPass(t *testing.T) {
	agg := NewHealthAggregator(time.Second)
	agg.Register("mysql", func(ctx context.Context) error { return nil })
	agg.Register("inventory", func(ctx context.Context) error { return nil })

	report := agg.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Probes, 2)
	for _, p := range report.Probes {
		assert.True(t, p.Healthy)
		assert.Empty(t, p.Error)
	}
}

func TestHealthAggregator_OneFailureDegrades(t *testing.T) {
	agg := NewHealthAggregator(time.Second)
	agg.Register("mysql", func(ctx context.Context) error { return nil })
	agg.Register("inventory", func(ctx context.Context) error { return errors.New("connection refused") })

	report := agg.Check(context.Background())

	assert.Equal(t, StatusDegraded, report.Status)

	byName := make(map[string]ProbeResult)
	for _, p := range report.Probes {
		byName[p.Name] = p
	}
	assert.True(t, byName["mysql"].Healthy)
	assert.False(t, byName["inventory"].Healthy)
	assert.Contains(t, byName["inventory"].Error, "connection refused")
}

func TestHealthAggregator_SlowProbeTimesOutWithoutBlockingSiblings(t *testing.T) {
	agg := NewHealthAggregator(20 * time.Millisecond)
	agg.Register("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	agg.Register("fast", func(ctx context.Context) error { return nil })

	start := time.Now()
	report := agg.Check(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusDegraded, report.Status)

	byName := make(map[string]ProbeResult)
	for _, p := range report.Probes {
		byName[p.Name] = p
	}
	assert.False(t, byName["slow"].Healthy)
	assert.True(t, byName["fast"].Healthy)
}

func TestHealthAggregator_NoProbes(t *testing.T) {
	agg := NewHealthAggregator(time.Second)
	report := agg.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Empty(t, report.Probes)
}
