// Package solar selects the most productive roof surface and projects the
// financial and environmental return of a rooftop system.
package solar

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/model"
)

const (
	// PanelCapacityWatts is the nameplate capacity assumed per panel.
	PanelCapacityWatts = 300.0
	// PanelEfficiency is the module efficiency used for yield and sizing.
	PanelEfficiency = 0.18
)

// ErrNoSurfaces is returned when the candidate set is empty.
var ErrNoSurfaces = eris.New("solar: no roof surfaces found")

// ElectricYield estimates the annual yield in kWh of a surface from its area
// and representative annual sunshine hours.
func ElectricYield(areaM2, sunshineHours float64) float64 {
	return areaM2 * sunshineHours * PanelCapacityWatts * PanelEfficiency / 1000
}

// RepresentativeSunshine picks the most optimistic quantile of a sunshine
// distribution. Returns 0 for an empty distribution.
func RepresentativeSunshine(quantiles []float64) float64 {
	best, found := 0.0, false
	for _, q := range quantiles {
		if math.IsNaN(q) {
			continue
		}
		if !found || q > best {
			best, found = q, true
		}
	}
	return best
}

// CandidateYield returns the provider's precomputed yield when present and
// derives it from the sunshine distribution otherwise. Non-finite values are 0.
func CandidateYield(c model.RoofCandidate) float64 {
	y, ok := c.PrecomputedYield()
	if !ok {
		y = ElectricYield(c.Attributes().AreaM2, RepresentativeSunshine(c.SunshineQuantiles()))
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0
	}
	return y
}

// SelectBest returns the candidate with the highest yield. The earliest of
// tied maxima wins.
func SelectBest(candidates []model.RoofCandidate) (model.BestSurface, error) {
	if len(candidates) == 0 {
		return model.BestSurface{}, ErrNoSurfaces
	}

	bestIdx := 0
	bestYield := CandidateYield(candidates[0])
	for i := 1; i < len(candidates); i++ {
		if y := CandidateYield(candidates[i]); y > bestYield {
			bestIdx, bestYield = i, y
		}
	}

	surface := candidates[bestIdx].Attributes()
	return model.BestSurface{
		Surface:          surface,
		Orientation:      Cardinal(surface.AzimuthDegrees),
		ElectricYieldKWh: bestYield,
		NumSurfaces:      len(candidates),
	}, nil
}

// Cardinal converts a bearing in degrees (0 = north, clockwise) to one of the
// eight compass labels. Sectors are 45° wide, lower edge inclusive. Bearings
// in the 0..360 convention are folded into -180..180 first.
func Cardinal(degrees float64) string {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return "N"
	}
	d := math.Mod(degrees, 360)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}

	switch {
	case d >= -22.5 && d < 22.5:
		return "N"
	case d >= 22.5 && d < 67.5:
		return "NE"
	case d >= 67.5 && d < 112.5:
		return "E"
	case d >= 112.5 && d < 157.5:
		return "SE"
	case d >= 157.5 || d < -157.5:
		return "S"
	case d >= -157.5 && d < -112.5:
		return "SW"
	case d >= -112.5 && d < -67.5:
		return "W"
	default:
		return "NW"
	}
}
