package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/solar-cli/internal/metrics"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
	Available() bool
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers        []Provider
	metrics          *metrics.Metrics
	batchConcurrency int
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCascadeBatchConcurrency sets the max parallel calls for BatchGeocode.
func WithCascadeBatchConcurrency(n int) CascadeOption {
	return func(c *CascadeClient) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// WithCascadeMetrics records per-provider latency.
func WithCascadeMetrics(m *metrics.Metrics) CascadeOption {
	return func(c *CascadeClient) {
		c.metrics = m
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:        providers,
		batchConcurrency: 10,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode implements Client by trying each available provider in order.
// Provider errors are logged and the next provider is tried; when every
// provider misses or fails the result is unmatched.
func (c *CascadeClient) Geocode(ctx context.Context, address string) (*Result, error) {
	if normalizeAddress(address) == "" {
		return &Result{Matched: false, Source: "cascade"}, nil
	}

	var lastResult *Result
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		start := time.Now()
		result, err := p.Geocode(ctx, address)
		c.metrics.ObserveUpstream("geocode_"+p.Name(), start)
		if err != nil {
			zap.L().Warn("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			zap.L().Debug("cascade: address resolved",
				zap.String("provider", p.Name()),
				zap.String("quality", result.Quality),
			)
			return result, nil
		}
		if result != nil {
			lastResult = result
		}
	}

	noMatch := &Result{Matched: false, Source: "cascade"}
	if lastResult != nil {
		noMatch.Source = lastResult.Source
	}
	return noMatch, nil
}

// BatchGeocode implements Client by geocoding addresses in parallel.
func (c *CascadeClient) BatchGeocode(ctx context.Context, addresses []string) ([]Result, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	results := make([]Result, len(addresses))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)

	for i, addr := range addresses {
		eg.Go(func() error {
			r, gcErr := c.Geocode(gCtx, addr)
			if gcErr != nil || r == nil {
				results[i] = Result{Matched: false, Source: "cascade"}
				return nil //nolint:nilerr // individual geocode failures don't fail the batch
			}
			results[i] = *r
			return nil
		})
	}

	_ = eg.Wait()
	return results, nil
}
