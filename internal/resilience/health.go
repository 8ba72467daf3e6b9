package resilience

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type ProbeResult struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latencyMs"`
}

type HealthReport struct {
	Status  string        `json:"status"`
	Checked time.Time     `json:"checked"`
	Probes  []ProbeResult `json:"probes"`
}

// HealthAggregator probes all downstream services in parallel with a fixed
// timeout. The overall status is healthy only if every probe succeeds.
type HealthAggregator struct {
	timeout time.Duration
	probes  []Probe
}

func NewHealthAggregator(timeout time.Duration) *HealthAggregator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthAggregator{timeout: timeout}
}

func (h *HealthAggregator) Register(name string, check func(ctx context.Context) error) {
	h.probes = append(h.probes, Probe{Name: name, Check: check})
}

func (h *HealthAggregator) Check(ctx context.Context) HealthReport {
	results := make([]ProbeResult, len(h.probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range h.probes {
		i, p := i, p
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := p.Check(pctx)
			results[i] = ProbeResult{
				Name:    p.Name,
				Healthy: err == nil,
				Latency: time.Since(start) / time.Millisecond,
			}
			if err != nil {
				results[i].Error = err.Error()
			}
			// Probe failures degrade the report, they never abort sibling probes.
			return nil
		})
	}
	_ = g.Wait()

	report := HealthReport{Status: StatusHealthy, Checked: time.Now(), Probes: results}
	for _, r := range results {
		if !r.Healthy {
			report.Status = StatusDegraded
			break
		}
	}
	return report
}

// HTTPProbe builds a probe that GETs url and expects a 2xx answer.
func HTTPProbe(client *http.Client, url string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("health probe returned status %d", resp.StatusCode)
		}
		return nil
	}
}
