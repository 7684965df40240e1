package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleProvider geocodes via the Google Geocoding API.
type GoogleProvider struct {
	httpProvider
	key string
}

// NewGoogleProvider creates a GoogleProvider. The provider reports itself
// unavailable when key is empty.
func NewGoogleProvider(key string, opts ...Option) *GoogleProvider {
	return &GoogleProvider{
		httpProvider: newHTTPProvider(googleGeocodeURL, 50, opts),
		key:          key,
	}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.key != "" }

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	if p.key == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	oneLine := normalizeAddress(address)
	if oneLine == "" {
		return &Result{Matched: false, Source: "google"}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {oneLine},
		"key":     {p.key},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(resilience.NewUpstreamError("google geocode", resp.StatusCode, body), "geocode: google")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	result := googleResp.Results[0]
	return &Result{
		Latitude:         result.Geometry.Location.Lat,
		Longitude:        result.Geometry.Location.Lng,
		Source:           "google",
		Quality:          googleLocationTypeToQuality(result.Geometry.LocationType),
		FormattedAddress: result.FormattedAddress,
		Matched:          true,
	}, nil
}

// googleLocationTypeToQuality maps Google's location_type to our quality taxonomy.
func googleLocationTypeToQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	default:
		return "approximate"
	}
}
