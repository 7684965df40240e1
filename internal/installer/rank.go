package installer

import (
	"sort"

	"github.com/sells-group/solar-cli/internal/model"
)

// DefaultTopN is the number of installers returned to callers.
const DefaultTopN = 3

// Rank orders installers by distance from origin ascending, then rating
// descending, then review count descending, and returns at most n public
// records. n <= 0 means DefaultTopN. The input slice is not modified.
func Rank(origin model.Coordinates, installers []model.Installer, n int) []model.RankedInstaller {
	if n <= 0 {
		n = DefaultTopN
	}

	ranked := make([]model.RankedInstaller, 0, len(installers))
	for _, in := range installers {
		ranked = append(ranked, model.RankedInstaller{
			Name:       in.Name,
			Address:    in.Address,
			Phone:      in.Phone,
			Rating:     in.Rating,
			Reviews:    in.Reviews,
			URL:        in.URL,
			DistanceKM: Distance(origin, in.Location),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.DistanceKM != b.DistanceKM {
			return a.DistanceKM < b.DistanceKM
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.Reviews > b.Reviews
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
