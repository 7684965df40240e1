package roof

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/metrics"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/resilience"
)

// Guard runs a provider behind a circuit breaker and records its latency.
// Only transient upstream failures count toward opening the circuit; while
// it is open, calls fail fast without reaching the dataset.
type Guard struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
}

// NewGuard wraps p. m may be nil.
func NewGuard(p Provider, cb *resilience.CircuitBreaker, m *metrics.Metrics) *Guard {
	return &Guard{provider: p, breaker: cb, metrics: m}
}

// Name implements Provider.
func (g *Guard) Name() string { return g.provider.Name() }

// Candidates implements Provider.
func (g *Guard) Candidates(ctx context.Context, c model.Coordinates) ([]model.RoofCandidate, error) {
	start := time.Now()
	cands, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]model.RoofCandidate, error) {
		return g.provider.Candidates(ctx, c)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, eris.Wrapf(err, "roof: %s unavailable", g.provider.Name())
	}
	g.metrics.ObserveUpstream(g.provider.Name(), start)
	return cands, err
}
