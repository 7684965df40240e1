// Package sonnendach queries the Swiss federal rooftop solar suitability
// dataset (ch.bfe.solarenergie-eignung-daecher) published on geo.admin.ch.
package sonnendach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"golang.org/x/time/rate"

	"github.com/sells-group/solar-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api3.geo.admin.ch/rest/services"

	// Layer is the geo.admin.ch layer id of the rooftop dataset.
	Layer = "ch.bfe.solarenergie-eignung-daecher"

	// DefaultBBoxTolerance is the half-width in degrees of the map extent
	// sent with identify requests.
	DefaultBBoxTolerance = 0.01
)

// ErrNotFound is returned when the dataset has no building or no roof at
// the requested location.
var ErrNotFound = eris.New("sonnendach: no building at location")

// Building is the result of an identify request.
type Building struct {
	ID string
	// Footprint is the roof polygon returned with the identify hit, if any.
	Footprint geom.T
	// Centroid of the footprint as (lng, lat); zero when no footprint was returned.
	Centroid geom.Coord
}

// Roof is one roof surface of a building.
type Roof struct {
	FeatureID     string
	BuildingID    string
	AreaM2        float64   // flaeche
	Orientation   float64   // ausrichtung, degrees, 0 = south, -90 = east, 90 = west
	Slope         float64   // neigung, degrees
	MeanRadiation float64   // mstrahlung, kWh/m²/year
	ElectricYield float64   // stromertrag, kWh/year
	MonthlyYield  []float64 // monats_ertrag, kWh per month
	Suitability   int       // klasse, 1 (low) .. 5 (excellent)
}

// Client performs geo.admin.ch identify/find operations.
type Client interface {
	// Identify returns the building closest to (lat, lng).
	Identify(ctx context.Context, lat, lng float64) (*Building, error)
	// FindByBuilding returns every roof surface of a building.
	FindByBuilding(ctx context.Context, buildingID string) ([]Roof, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default REST services base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
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

// WithBBoxTolerance sets the map extent half-width in degrees.
func WithBBoxTolerance(deg float64) Option {
	return func(c *httpClient) {
		if deg > 0 {
			c.bboxTolerance = deg
		}
	}
}

// WithTolerancePixels sets the identify hit tolerance in screen pixels.
func WithTolerancePixels(px int) Option {
	return func(c *httpClient) {
		if px > 0 {
			c.tolerancePx = px
		}
	}
}

type httpClient struct {
	baseURL       string
	http          *http.Client
	limiter       *rate.Limiter
	bboxTolerance float64
	tolerancePx   int
}

// NewClient creates a geo.admin.ch rooftop dataset client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:       defaultBaseURL,
		http:          &http.Client{Timeout: 5 * time.Second},
		limiter:       rate.NewLimiter(10, 10),
		bboxTolerance: DefaultBBoxTolerance,
		tolerancePx:   5,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type identifyResponse struct {
	Results []struct {
		FeatureID  flexString `json:"featureId"`
		Properties struct {
			BuildingID flexString `json:"building_id"`
		} `json:"properties"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"results"`
}

func (c *httpClient) Identify(ctx context.Context, lat, lng float64) (*Building, error) {
	d := c.bboxTolerance
	params := url.Values{
		"geometry":       {formatFloat(lng) + "," + formatFloat(lat)},
		"geometryType":   {"esriGeometryPoint"},
		"layers":         {"all:" + Layer},
		"returnGeometry": {"true"},
		"geometryFormat": {"geojson"},
		"tolerance":      {strconv.Itoa(c.tolerancePx)},
		"sr":             {"4326"},
		"lang":           {"en"},
		"imageDisplay":   {"1487,1027,96"},
		"mapExtent": {strings.Join([]string{
			formatFloat(lng - d), formatFloat(lat - d), formatFloat(lng + d), formatFloat(lat + d),
		}, ",")},
		"limit": {"10"},
	}

	body, err := c.get(ctx, "/all/MapServer/identify", params)
	if err != nil {
		return nil, eris.Wrap(err, "sonnendach: identify")
	}

	var resp identifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "sonnendach: identify: unmarshal response")
	}

	for _, r := range resp.Results {
		id := string(r.Properties.BuildingID)
		if id == "" {
			continue
		}
		b := &Building{ID: id}
		if len(r.Geometry) > 0 && string(r.Geometry) != "null" {
			var g geom.T
			if err := geojson.Unmarshal(r.Geometry, &g); err == nil {
				b.Footprint = g
				if centroid, err := xy.Centroid(g); err == nil {
					b.Centroid = centroid
				}
			}
		}
		return b, nil
	}
	return nil, ErrNotFound
}

type findResponse struct {
	Results []struct {
		FeatureID  flexString `json:"featureId"`
		Attributes struct {
			BuildingID   flexString `json:"building_id"`
			Flaeche      *float64   `json:"flaeche"`
			Ausrichtung  float64    `json:"ausrichtung"`
			Neigung      float64    `json:"neigung"`
			Mstrahlung   float64    `json:"mstrahlung"`
			Stromertrag  *float64   `json:"stromertrag"`
			MonatsErtrag flexFloats `json:"monats_ertrag"`
			Klasse       int        `json:"klasse"`
		} `json:"attributes"`
	} `json:"results"`
}

func (c *httpClient) FindByBuilding(ctx context.Context, buildingID string) ([]Roof, error) {
	if strings.TrimSpace(buildingID) == "" {
		return nil, eris.New("sonnendach: find: empty building id")
	}

	params := url.Values{
		"layer":          {Layer},
		"searchText":     {buildingID},
		"searchField":    {"building_id"},
		"returnGeometry": {"false"},
		"contains":       {"false"},
	}

	body, err := c.get(ctx, "/api/MapServer/find", params)
	if err != nil {
		return nil, eris.Wrap(err, "sonnendach: find")
	}

	var resp findResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "sonnendach: find: unmarshal response")
	}

	roofs := make([]Roof, 0, len(resp.Results))
	for _, r := range resp.Results {
		a := r.Attributes
		if a.Flaeche == nil || a.Stromertrag == nil {
			return nil, eris.Errorf("sonnendach: find: feature %s missing flaeche or stromertrag", r.FeatureID)
		}
		bid := string(a.BuildingID)
		if bid == "" {
			bid = buildingID
		}
		roofs = append(roofs, Roof{
			FeatureID:     string(r.FeatureID),
			BuildingID:    bid,
			AreaM2:        *a.Flaeche,
			Orientation:   a.Ausrichtung,
			Slope:         a.Neigung,
			MeanRadiation: a.Mstrahlung,
			ElectricYield: *a.Stromertrag,
			MonthlyYield:  []float64(a.MonatsErtrag),
			Suitability:   a.Klasse,
		})
	}
	if len(roofs) == 0 {
		return nil, ErrNotFound
	}
	return roofs, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewUpstreamError("sonnendach", resp.StatusCode, body)
	}
	return body, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexFloats accepts a JSON array of numbers or a comma separated string.
type flexFloats []float64

func (f *flexFloats) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var vals []float64
		if err := json.Unmarshal(b, &vals); err != nil {
			return err
		}
		*f = vals
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	str = strings.Trim(str, "[] ")
	if str == "" {
		*f = nil
		return nil
	}
	parts := strings.Split(str, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("monats_ertrag: %w", err)
		}
		vals = append(vals, v)
	}
	*f = vals
	return nil
}
