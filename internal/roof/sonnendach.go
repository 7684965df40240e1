package roof

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/pkg/sonnendach"
)

// SonnendachProvider resolves the building at a location and returns its
// roofs with their precomputed yield.
type SonnendachProvider struct {
	client sonnendach.Client
}

// NewSonnendachProvider wraps a sonnendach client.
func NewSonnendachProvider(client sonnendach.Client) *SonnendachProvider {
	return &SonnendachProvider{client: client}
}

// Name implements Provider.
func (p *SonnendachProvider) Name() string { return "sonnendach" }

// Candidates implements Provider.
func (p *SonnendachProvider) Candidates(ctx context.Context, c model.Coordinates) ([]model.RoofCandidate, error) {
	building, err := p.client.Identify(ctx, c.Lat, c.Lng)
	if err != nil {
		if errors.Is(err, sonnendach.ErrNotFound) {
			return nil, ErrNoData
		}
		return nil, eris.Wrap(err, "roof: sonnendach identify")
	}

	roofs, err := p.client.FindByBuilding(ctx, building.ID)
	if err != nil {
		if errors.Is(err, sonnendach.ErrNotFound) {
			return nil, ErrNoData
		}
		return nil, eris.Wrapf(err, "roof: sonnendach find building %s", building.ID)
	}

	var center *model.Coordinates
	if building.Footprint != nil && len(building.Centroid) >= 2 {
		center = &model.Coordinates{Lat: building.Centroid[1], Lng: building.Centroid[0]}
	}

	cands := make([]model.RoofCandidate, 0, len(roofs))
	for _, r := range roofs {
		cands = append(cands, model.YieldSurface{
			Surface: model.Surface{
				ID:              r.FeatureID,
				BuildingID:      r.BuildingID,
				Source:          p.Name(),
				AreaM2:          r.AreaM2,
				AzimuthDegrees:  SouthToBearing(r.Orientation),
				PitchDegrees:    r.Slope,
				MeanRadiation:   r.MeanRadiation,
				MonthlyYieldKWh: r.MonthlyYield,
				Center:          center,
			},
			ElectricYieldKWh: r.ElectricYield,
		})
	}
	return cands, nil
}

// SouthToBearing converts a south-based azimuth (0 = south, -90 = east,
// 90 = west) to a compass bearing in (-180, 180] with 0 = north.
func SouthToBearing(deg float64) float64 {
	b := math.Mod(deg+180, 360)
	switch {
	case b > 180:
		b -= 360
	case b <= -180:
		b += 360
	}
	return b
}
