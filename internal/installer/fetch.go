package installer

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/pkg/google"
)

const (
	defaultMaxPages = 3
	defaultRadiusM  = 25000
)

// FetchOptions narrows a Places search.
type FetchOptions struct {
	Near     *model.Coordinates
	RadiusM  float64
	MaxPages int
	Language string
}

// Fetch builds installer records from a Google Places text search, following
// page tokens up to MaxPages. Places without a location are dropped.
func Fetch(ctx context.Context, places google.Client, query string, opts FetchOptions) ([]model.Installer, error) {
	if query == "" {
		return nil, eris.New("installer: fetch query is required")
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	req := google.TextSearchRequest{TextQuery: query, LanguageCode: opts.Language}
	if opts.Near != nil {
		radius := opts.RadiusM
		if radius <= 0 {
			radius = defaultRadiusM
		}
		req.LocationBias = &google.LocationBias{Circle: google.Circle{
			Center: google.LatLng{Latitude: opts.Near.Lat, Longitude: opts.Near.Lng},
			Radius: radius,
		}}
	}

	seen := make(map[string]bool)
	var out []model.Installer
	for page := 0; page < maxPages; page++ {
		resp, err := places.TextSearch(ctx, req)
		if err != nil {
			return nil, eris.Wrapf(err, "installer: places search page %d", page+1)
		}

		for _, p := range resp.Places {
			if p.Location == nil {
				continue
			}
			key := p.ID
			if key == "" {
				key = p.DisplayName.Text + "|" + p.FormattedAddress
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, fromPlace(p))
		}

		if resp.NextPageToken == "" {
			break
		}
		req.PageToken = resp.NextPageToken
	}

	zap.L().Info("installer: fetched from places",
		zap.String("query", query),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func fromPlace(p google.Place) model.Installer {
	summary := ""
	if p.UserRatingCount > 0 {
		summary = strconv.Itoa(p.UserRatingCount) + " reviews"
	}
	return model.Installer{
		Name:          p.DisplayName.Text,
		Address:       p.FormattedAddress,
		Phone:         p.Phone(),
		Rating:        p.Rating,
		ReviewSummary: summary,
		Reviews:       p.UserRatingCount,
		Location:      model.Coordinates{Lat: p.Location.Latitude, Lng: p.Location.Longitude},
		URL:           p.WebsiteURI,
	}
}

// WriteCSV writes installers with the header Load expects.
func WriteCSV(w io.Writer, installers []model.Installer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "installer: write csv header")
	}
	for _, in := range installers {
		summary := in.ReviewSummary
		if summary == "" && in.Reviews > 0 {
			summary = strconv.Itoa(in.Reviews)
		}
		record := []string{
			in.Name,
			in.Address,
			in.Phone,
			strconv.FormatFloat(in.Rating, 'f', -1, 64),
			summary,
			strconv.FormatFloat(in.Location.Lat, 'f', -1, 64),
			strconv.FormatFloat(in.Location.Lng, 'f', -1, 64),
			in.URL,
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "installer: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "installer: flush csv")
}
