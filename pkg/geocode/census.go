package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/resilience"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBenchmark  = "Public_AR_Current"
)

// censusOneLineResponse is the JSON response from the Census single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// CensusProvider geocodes US addresses via the keyless Census one-line API.
type CensusProvider struct {
	httpProvider
}

// NewCensusProvider creates a CensusProvider.
func NewCensusProvider(opts ...Option) *CensusProvider {
	return &CensusProvider{httpProvider: newHTTPProvider(censusOneLineURL, 50, opts)}
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return "census" }

// Available implements Provider.
func (p *CensusProvider) Available() bool { return true }

// Geocode implements Provider.
func (p *CensusProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	oneLine := normalizeAddress(address)
	if oneLine == "" {
		return &Result{Matched: false, Source: "census"}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	params := url.Values{
		"address":   {oneLine},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(resilience.NewUpstreamError("census geocode", resp.StatusCode, body), "geocode: census")
	}

	var censusResp censusOneLineResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Result{
		Latitude:         match.Coordinates.Y,
		Longitude:        match.Coordinates.X,
		Source:           "census",
		Quality:          "rooftop", // Census one-line matches are exact
		FormattedAddress: match.MatchedAddress,
		Matched:          true,
	}, nil
}
