// Package solarapi is a client for the Google Solar API building insights
// endpoint.
package solarapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/solar-cli/internal/resilience"
)

const defaultBaseURL = "https://solar.googleapis.com/v1"

// ErrNotFound is returned when the API has no building insights near the
// requested location.
var ErrNotFound = eris.New("solarapi: no building insights at location")

// Client performs Google Solar API operations.
type Client interface {
	FindClosest(ctx context.Context, lat, lng float64) (*BuildingInsights, error)
}

// LatLng is a WGS-84 point as encoded by the Solar API.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BuildingInsights is the subset of the findClosest response used for
// surface selection.
type BuildingInsights struct {
	Name           string         `json:"name"`
	Center         LatLng         `json:"center"`
	ImageryQuality string         `json:"imageryQuality"`
	SolarPotential SolarPotential `json:"solarPotential"`
}

// SolarPotential summarises the building's rooftop.
type SolarPotential struct {
	MaxArrayPanelsCount     int                `json:"maxArrayPanelsCount"`
	MaxArrayAreaMeters2     float64            `json:"maxArrayAreaMeters2"`
	MaxSunshineHoursPerYear float64            `json:"maxSunshineHoursPerYear"`
	RoofSegmentStats        []RoofSegmentStats `json:"roofSegmentStats"`
}

// RoofSegmentStats describes one planar roof segment.
type RoofSegmentStats struct {
	PitchDegrees   float64    `json:"pitchDegrees"`
	AzimuthDegrees float64    `json:"azimuthDegrees"`
	Stats          SizeAndSun `json:"stats"`
	Center         *LatLng    `json:"center,omitempty"`
	PlaneHeight    float64    `json:"planeHeightAtCenterMeters"`
}

// SizeAndSun carries a segment's area and its sunshine distribution.
type SizeAndSun struct {
	AreaMeters2       float64   `json:"areaMeters2"`
	GroundAreaMeters2 float64   `json:"groundAreaMeters2"`
	SunshineQuantiles []float64 `json:"sunshineQuantiles"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithRequiredQuality sets the minimum imagery quality (LOW, MEDIUM, HIGH).
func WithRequiredQuality(q string) Option {
	return func(c *httpClient) {
		if q != "" {
			c.requiredQuality = q
		}
	}
}

type httpClient struct {
	apiKey          string
	baseURL         string
	requiredQuality string
	http            *http.Client
	limiter         *rate.Limiter
}

// NewClient creates a Google Solar API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:          apiKey,
		baseURL:         defaultBaseURL,
		requiredQuality: "MEDIUM",
		http:            &http.Client{Timeout: 5 * time.Second},
		limiter:         rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) FindClosest(ctx context.Context, lat, lng float64) (*BuildingInsights, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "solarapi: rate limit")
	}

	params := url.Values{
		"location.latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"location.longitude": {strconv.FormatFloat(lng, 'f', -1, 64)},
		"requiredQuality":    {c.requiredQuality},
		"key":                {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/buildingInsights:findClosest?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "solarapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "solarapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "solarapi: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Wrap(resilience.NewUpstreamError("google solar", resp.StatusCode, respBody), "solarapi: find closest")
	}

	var result BuildingInsights
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "solarapi: unmarshal response")
	}
	return &result, nil
}
