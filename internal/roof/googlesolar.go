package roof

import (
	"context"
	"errors"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/pkg/solarapi"
)

// GoogleSolarProvider returns the roof segments of the building closest to
// a location, each with its sunshine-hours distribution.
type GoogleSolarProvider struct {
	client solarapi.Client
}

// NewGoogleSolarProvider wraps a Solar API client.
func NewGoogleSolarProvider(client solarapi.Client) *GoogleSolarProvider {
	return &GoogleSolarProvider{client: client}
}

// Name implements Provider.
func (p *GoogleSolarProvider) Name() string { return "google_solar" }

// Candidates implements Provider.
func (p *GoogleSolarProvider) Candidates(ctx context.Context, c model.Coordinates) ([]model.RoofCandidate, error) {
	insights, err := p.client.FindClosest(ctx, c.Lat, c.Lng)
	if err != nil {
		if errors.Is(err, solarapi.ErrNotFound) {
			return nil, ErrNoData
		}
		return nil, eris.Wrap(err, "roof: google solar")
	}

	segments := insights.SolarPotential.RoofSegmentStats
	if len(segments) == 0 {
		return nil, ErrNoData
	}

	cands := make([]model.RoofCandidate, 0, len(segments))
	for i, seg := range segments {
		s := model.Surface{
			ID:             "segment-" + strconv.Itoa(i),
			BuildingID:     insights.Name,
			Source:         p.Name(),
			AreaM2:         seg.Stats.AreaMeters2,
			AzimuthDegrees: seg.AzimuthDegrees,
			PitchDegrees:   seg.PitchDegrees,
		}
		if seg.Center != nil {
			s.Center = &model.Coordinates{Lat: seg.Center.Latitude, Lng: seg.Center.Longitude}
		}
		cands = append(cands, model.QuantileSurface{Surface: s, Quantiles: seg.Stats.SunshineQuantiles})
	}
	return cands, nil
}
