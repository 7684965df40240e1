package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/resilience"
)

const geoAdminSearchURL = "https://api3.geo.admin.ch/rest/services/api/SearchServer"

// geoAdminResponse is the JSON response from the swisstopo SearchServer.
type geoAdminResponse struct {
	Results []struct {
		Attrs struct {
			Label  string  `json:"label"`
			Lat    float64 `json:"lat"`
			Lon    float64 `json:"lon"`
			Origin string  `json:"origin"`
		} `json:"attrs"`
	} `json:"results"`
}

// htmlTag strips the <b> markup SearchServer puts in labels.
var htmlTag = regexp.MustCompile(`<[^>]*>`)

// GeoAdminProvider geocodes Swiss addresses via the keyless swisstopo
// GeoAdmin SearchServer.
type GeoAdminProvider struct {
	httpProvider
}

// NewGeoAdminProvider creates a GeoAdminProvider.
func NewGeoAdminProvider(opts ...Option) *GeoAdminProvider {
	return &GeoAdminProvider{httpProvider: newHTTPProvider(geoAdminSearchURL, 20, opts)}
}

// Name implements Provider.
func (p *GeoAdminProvider) Name() string { return "geoadmin" }

// Available implements Provider.
func (p *GeoAdminProvider) Available() bool { return true }

// Geocode implements Provider.
func (p *GeoAdminProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	oneLine := normalizeAddress(address)
	if oneLine == "" {
		return &Result{Matched: false, Source: "geoadmin"}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: geoadmin rate limit")
	}

	params := url.Values{
		"searchText": {oneLine},
		"type":       {"locations"},
		"origins":    {"address"},
		"sr":         {"4326"},
		"limit":      {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: geoadmin build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: geoadmin request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: geoadmin read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(resilience.NewUpstreamError("geoadmin search", resp.StatusCode, body), "geocode: geoadmin")
	}

	var gaResp geoAdminResponse
	if err := json.Unmarshal(body, &gaResp); err != nil {
		return nil, eris.Wrap(err, "geocode: geoadmin parse response")
	}

	if len(gaResp.Results) == 0 {
		return &Result{Matched: false, Source: "geoadmin"}, nil
	}

	attrs := gaResp.Results[0].Attrs
	quality := "approximate"
	if attrs.Origin == "address" {
		quality = "rooftop"
	}
	return &Result{
		Latitude:         attrs.Lat,
		Longitude:        attrs.Lon,
		Source:           "geoadmin",
		Quality:          quality,
		FormattedAddress: htmlTag.ReplaceAllString(attrs.Label, ""),
		Matched:          true,
	}, nil
}
