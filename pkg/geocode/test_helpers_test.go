package geocode

import (
	"golang.org/x/time/rate"
)

// withoutRateLimit lifts the provider limiter so tests never wait on it.
func withoutRateLimit() Option {
	return func(p *httpProvider) {
		p.limiter = rate.NewLimiter(rate.Inf, 1)
	}
}

// testServerOptions points a provider at an httptest server with no rate
// limit. Later options override earlier ones.
func testServerOptions(srvURL string, extra ...Option) []Option {
	return append([]Option{WithBaseURL(srvURL), withoutRateLimit()}, extra...)
}
