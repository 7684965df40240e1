// Package geocode resolves free-text addresses to coordinates through a
// cascade of geocoding providers (Google, swisstopo GeoAdmin, US Census).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every geocoding request unless WithHTTPClient or
// WithTimeout overrides it.
const DefaultTimeout = 5 * time.Second

// Client geocodes one-line addresses.
type Client interface {
	// Geocode geocodes a single address. An unresolvable address is not an
	// error: the result has Matched=false.
	Geocode(ctx context.Context, address string) (*Result, error)

	// BatchGeocode geocodes multiple addresses, preserving input order.
	BatchGeocode(ctx context.Context, addresses []string) ([]Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Source           string  `json:"source"`  // provider name
	Quality          string  `json:"quality"` // "rooftop", "range", "centroid", "approximate"
	FormattedAddress string  `json:"formatted_address,omitempty"`
	Matched          bool    `json:"matched"`
}

// Option configures an HTTP-backed provider.
type Option func(*httpProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *httpProvider) {
		p.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(p *httpProvider) {
		if d > 0 {
			p.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit sets the requests-per-second limit for the provider.
func WithRateLimit(rps float64) Option {
	return func(p *httpProvider) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) Option {
	return func(p *httpProvider) {
		p.baseURL = u
	}
}

// httpProvider carries the transport shared by every HTTP geocoder.
type httpProvider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

func newHTTPProvider(baseURL string, rps float64, opts []Option) httpProvider {
	p := httpProvider{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// normalizeAddress collapses whitespace; an empty result means there is
// nothing to geocode.
func normalizeAddress(address string) string {
	return strings.Join(strings.Fields(address), " ")
}
