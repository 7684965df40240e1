// Package google is a thin client for the Google Places API (New) text search.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/solar-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"

	// DefaultTimeout bounds a single Places request.
	DefaultTimeout = 10 * time.Second
)

// fieldMask lists the place fields an installer record is built from.
var fieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.nationalPhoneNumber",
	"places.internationalPhoneNumber",
	"places.rating",
	"places.userRatingCount",
	"places.location",
	"places.websiteUri",
	"nextPageToken",
}, ",")

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the body of a Places Text Search call.
type TextSearchRequest struct {
	TextQuery      string        `json:"textQuery"`
	PageSize       int           `json:"pageSize,omitempty"`
	PageToken      string        `json:"pageToken,omitempty"`
	LanguageCode   string        `json:"languageCode,omitempty"`
	LocationBias   *LocationBias `json:"locationBias,omitempty"`
	IncludedType   string        `json:"includedType,omitempty"`
	MinRating      float64       `json:"minRating,omitempty"`
	StrictTypeOnly bool          `json:"strictTypeFiltering,omitempty"`
}

// LocationBias biases results toward a circle.
type LocationBias struct {
	Circle Circle `json:"circle"`
}

// Circle is a center point plus a radius in meters.
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// LatLng is a WGS-84 point.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place represents a place returned by the API.
type Place struct {
	ID                       string      `json:"id,omitempty"`
	DisplayName              DisplayName `json:"displayName"`
	FormattedAddress         string      `json:"formattedAddress,omitempty"`
	NationalPhoneNumber      string      `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber string      `json:"internationalPhoneNumber,omitempty"`
	Rating                   float64     `json:"rating"`
	UserRatingCount          int         `json:"userRatingCount"`
	Location                 *LatLng     `json:"location,omitempty"`
	WebsiteURI               string      `json:"websiteUri,omitempty"`
}

// Phone returns the national number, falling back to the international one.
func (p Place) Phone() string {
	if p.NationalPhoneNumber != "" {
		return p.NationalPhoneNumber
	}
	return p.InternationalPhoneNumber
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
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
		c.http.Timeout = d
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, in TextSearchRequest) (*TextSearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "google: rate limit wait")
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewUpstreamError("google_places", resp.StatusCode, respBody)
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}
