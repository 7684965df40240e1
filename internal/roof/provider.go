// Package roof adapts rooftop solar datasets to a common candidate surface
// interface.
package roof

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/model"
)

// ErrNoData is returned when no dataset covers the requested location.
var ErrNoData = eris.New("roof: no roof surfaces found")

// Provider fetches candidate roof surfaces for a location.
type Provider interface {
	Name() string
	// Candidates returns the roof surfaces at c in dataset order. It returns
	// ErrNoData (possibly wrapped) when the dataset has no coverage there.
	Candidates(ctx context.Context, c model.Coordinates) ([]model.RoofCandidate, error)
}

// Chain tries providers in order; the first non-empty result wins.
type Chain struct {
	providers []Provider
}

// NewChain creates a Chain over providers.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// Candidates implements Provider. When no provider returns candidates, any
// provider error wins over missing coverage, so ErrNoData is returned only
// when every provider reported no coverage.
func (c *Chain) Candidates(ctx context.Context, coords model.Coordinates) ([]model.RoofCandidate, error) {
	if len(c.providers) == 0 {
		return nil, eris.New("roof: no providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		cands, err := p.Candidates(ctx, coords)
		switch {
		case err == nil && len(cands) > 0:
			zap.L().Debug("roof: candidates found",
				zap.String("provider", p.Name()),
				zap.Int("surfaces", len(cands)),
			)
			return cands, nil
		case err == nil || errors.Is(err, ErrNoData):
			zap.L().Debug("roof: provider has no coverage, trying next",
				zap.String("provider", p.Name()),
				zap.Float64("lat", coords.Lat),
				zap.Float64("lng", coords.Lng),
			)
		default:
			zap.L().Warn("roof: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			lastErr = err
		}
	}

	if lastErr == nil {
		return nil, ErrNoData
	}
	return nil, eris.Wrap(lastErr, "roof: no provider returned candidates")
}
