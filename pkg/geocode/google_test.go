package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-cli/internal/resilience"
)

func newTestGoogle(srvURL string) *GoogleProvider {
	return NewGoogleProvider("test-key", testServerOptions(srvURL)...)
}

func TestGoogleGeocode_Rooftop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bahnhofstrasse 1, 8001 Zürich", r.URL.Query().Get("address"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": 47.3686, "lng": 8.5392},
					"location_type": "ROOFTOP"
				},
				"formatted_address": "Bahnhofstrasse 1, 8001 Zürich, Switzerland"
			}]
		}`)
	}))
	defer srv.Close()

	result, err := newTestGoogle(srv.URL).Geocode(context.Background(), "  Bahnhofstrasse 1,   8001 Zürich ")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 47.3686, result.Latitude, 0.0001)
	assert.InDelta(t, 8.5392, result.Longitude, 0.0001)
	assert.Equal(t, "google", result.Source)
	assert.Equal(t, "rooftop", result.Quality)
	assert.Equal(t, "Bahnhofstrasse 1, 8001 Zürich, Switzerland", result.FormattedAddress)
}

func TestGoogleGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	result, err := newTestGoogle(srv.URL).Geocode(context.Background(), "000 Nonexistent, Nowhere")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGoogleGeocode_StatusNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "REQUEST_DENIED", "error_message": "bad key", "results": []}`)
	}))
	defer srv.Close()

	result, err := newTestGoogle(srv.URL).Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGoogleGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestGoogle(srv.URL).Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.True(t, resilience.IsTransient(err))
}

func TestGoogleGeocode_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	_, err := newTestGoogle(srv.URL).Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestGoogleGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(w, `{"status": "OK", "results": []}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", testServerOptions(srv.URL,
		WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))...)

	_, err := p.Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGoogleGeocode_EmptyAddressSkipsCall(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	result, err := newTestGoogle(srv.URL).Geocode(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Zero(t, calls)
}

func TestGoogleGeocode_NoKey(t *testing.T) {
	p := NewGoogleProvider("")
	assert.False(t, p.Available())

	_, err := p.Geocode(context.Background(), "123 Main St")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestGoogleLocationTypeToQuality(t *testing.T) {
	tests := []struct {
		locType  string
		expected string
	}{
		{"ROOFTOP", "rooftop"},
		{"RANGE_INTERPOLATED", "range"},
		{"GEOMETRIC_CENTER", "centroid"},
		{"APPROXIMATE", "approximate"},
		{"UNKNOWN", "approximate"},
		{"", "approximate"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, googleLocationTypeToQuality(tt.locType), "location_type=%s", tt.locType)
	}
}
