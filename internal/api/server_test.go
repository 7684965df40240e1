package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-cli/internal/cache"
	"github.com/sells-group/solar-cli/internal/lead"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/pipeline"
	"github.com/sells-group/solar-cli/internal/resilience"
)

type fakeEstimator struct {
	surfaceFn func(ctx context.Context, address string) (*pipeline.SurfaceResult, error)
	reportFn  func(ctx context.Context, address string, bill float64) (*pipeline.ReportResult, error)
	rankFn    func(ctx context.Context, address string) ([]model.RankedInstaller, error)
}

func (f *fakeEstimator) BestSurface(ctx context.Context, address string) (*pipeline.SurfaceResult, error) {
	return f.surfaceFn(ctx, address)
}

func (f *fakeEstimator) Report(ctx context.Context, address string, bill float64) (*pipeline.ReportResult, error) {
	return f.reportFn(ctx, address, bill)
}

func (f *fakeEstimator) RankInstallers(ctx context.Context, address string) ([]model.RankedInstaller, error) {
	return f.rankFn(ctx, address)
}

type fakeLeads struct {
	createFn func(ctx context.Context, in lead.Input) (*lead.Result, error)
}

func (f *fakeLeads) Create(ctx context.Context, in lead.Input) (*lead.Result, error) {
	return f.createFn(ctx, in)
}

func testSurface() *pipeline.SurfaceResult {
	return &pipeline.SurfaceResult{
		Address:     "Bahnhofstrasse 1, Zürich",
		Coordinates: model.Coordinates{Lat: 47.37, Lng: 8.54},
		BestSurface: model.BestSurface{
			Surface:          model.Surface{ID: "1", AreaM2: 40, AzimuthDegrees: 180, PitchDegrees: 30},
			Orientation:      "S",
			ElectricYieldKWh: 6000,
			NumSurfaces:      3,
		},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSurface_OK(t *testing.T) {
	est := &fakeEstimator{surfaceFn: func(_ context.Context, address string) (*pipeline.SurfaceResult, error) {
		assert.Equal(t, "Bahnhofstrasse 1, Zürich", address)
		return testSurface(), nil
	}}
	s := NewServer(":0", est)

	rec := do(t, s, http.MethodPost, "/solar_panel_calculations", `{"address":"Bahnhofstrasse 1, Zürich"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var res pipeline.SurfaceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "S", res.BestSurface.Orientation)
	assert.InDelta(t, 6000, res.BestSurface.ElectricYieldKWh, 0.001)
	assert.Equal(t, 3, res.BestSurface.NumSurfaces)
}

func TestSurface_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   pipeline.Kind
		msg    string
	}{
		{"invalid", &pipeline.Error{Kind: pipeline.KindInvalidInput, Message: pipeline.MsgAddressEmpty}, http.StatusBadRequest, pipeline.KindInvalidInput, pipeline.MsgAddressEmpty},
		{"resolution", &pipeline.Error{Kind: pipeline.KindResolution, Message: pipeline.MsgUnresolved}, http.StatusUnprocessableEntity, pipeline.KindResolution, pipeline.MsgUnresolved},
		{"no data", &pipeline.Error{Kind: pipeline.KindNoData, Message: pipeline.MsgNoSurfaces}, http.StatusNotFound, pipeline.KindNoData, pipeline.MsgNoSurfaces},
		{"upstream", &pipeline.Error{Kind: pipeline.KindUpstream, Message: pipeline.MsgUpstream, Err: errors.New("503")}, http.StatusBadGateway, pipeline.KindUpstream, pipeline.MsgUpstream},
		{"unclassified", errors.New("db password leaked"), http.StatusInternalServerError, pipeline.KindInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := &fakeEstimator{surfaceFn: func(context.Context, string) (*pipeline.SurfaceResult, error) {
				return nil, tt.err
			}}
			rec := do(t, NewServer(":0", est), http.MethodPost, "/solar_panel_calculations", `{"address":"x"}`)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.msg, resp.Error)
		})
	}
}

func TestSurface_BadBody(t *testing.T) {
	est := &fakeEstimator{}
	s := NewServer(":0", est)

	rec := do(t, s, http.MethodPost, "/solar_panel_calculations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, pipeline.KindInvalidInput, decodeError(t, rec).Kind)

	rec = do(t, s, http.MethodPost, "/solar_panel_calculations", ``)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body is empty", decodeError(t, rec).Error)
}

func TestSurface_MethodNotAllowed(t *testing.T) {
	rec := do(t, NewServer(":0", &fakeEstimator{}), http.MethodGet, "/solar_panel_calculations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReport_OK(t *testing.T) {
	payback := 9.5
	est := &fakeEstimator{reportFn: func(_ context.Context, _ string, bill float64) (*pipeline.ReportResult, error) {
		assert.InDelta(t, 150, bill, 0)
		return &pipeline.ReportResult{
			SurfaceResult: *testSurface(),
			MonthlyBill:   bill,
			Report:        model.SolarReport{SystemSizeKW: 5.2, PaybackYears: &payback},
		}, nil
	}}

	rec := do(t, NewServer(":0", est), http.MethodPost, "/process_solar_data", `{"address":"a","monthly_bill":150}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "best_surface")
	report := body["report"].(map[string]any)
	assert.InDelta(t, 9.5, report["payback_years"], 0.001)
}

func TestReport_UnboundedPaybackIsNull(t *testing.T) {
	est := &fakeEstimator{reportFn: func(_ context.Context, _ string, bill float64) (*pipeline.ReportResult, error) {
		return &pipeline.ReportResult{SurfaceResult: *testSurface(), MonthlyBill: bill}, nil
	}}

	rec := do(t, NewServer(":0", est), http.MethodPost, "/process_solar_data", `{"address":"a","monthly_bill":0}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Report map[string]any `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	v, ok := body.Report["payback_years"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestReport_MissingBill(t *testing.T) {
	rec := do(t, NewServer(":0", &fakeEstimator{}), http.MethodPost, "/process_solar_data", `{"address":"a"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "monthly_bill is required", decodeError(t, rec).Error)
}

func TestInstallers_OK(t *testing.T) {
	est := &fakeEstimator{rankFn: func(context.Context, string) ([]model.RankedInstaller, error) {
		return []model.RankedInstaller{{Name: "Sonnenkraft AG", DistanceKM: 1.2}}, nil
	}}

	rec := do(t, NewServer(":0", est), http.MethodPost, "/find_best_solar_installers", `{"address":"a"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp InstallersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Installers, 1)
	assert.Equal(t, "Sonnenkraft AG", resp.Installers[0].Name)
}

func TestInstallers_EmptyIsArray(t *testing.T) {
	est := &fakeEstimator{rankFn: func(context.Context, string) ([]model.RankedInstaller, error) {
		return nil, nil
	}}

	rec := do(t, NewServer(":0", est), http.MethodPost, "/find_best_solar_installers", `{"address":"a"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"installers":[]`)
}

func TestCreateLead(t *testing.T) {
	var got lead.Input
	leads := &fakeLeads{createFn: func(_ context.Context, in lead.Input) (*lead.Result, error) {
		got = in
		return &lead.Result{ID: "lead-1"}, nil
	}}
	s := NewServer(":0", &fakeEstimator{}, WithLeads(leads))

	rec := do(t, s, http.MethodPost, "/create_lead", `{"name":"Anna","phone":"044 123","address":"a","monthly_bill":80}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Anna", got.Name)
	assert.InDelta(t, 80, got.MonthlyBill, 0)
	assert.Contains(t, rec.Body.String(), `"id":"lead-1"`)
}

func TestCreateLead_Duplicate(t *testing.T) {
	leads := &fakeLeads{createFn: func(context.Context, lead.Input) (*lead.Result, error) {
		return &lead.Result{ID: "lead-1", Duplicate: true}, nil
	}}

	rec := do(t, NewServer(":0", &fakeEstimator{}, WithLeads(leads)), http.MethodPost, "/create_lead", `{"name":"a","phone":"1","address":"b"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate":true`)
}

func TestCreateLead_Validation(t *testing.T) {
	leads := &fakeLeads{createFn: func(_ context.Context, in lead.Input) (*lead.Result, error) {
		return nil, in.Validate()
	}}

	rec := do(t, NewServer(":0", &fakeEstimator{}, WithLeads(leads)), http.MethodPost, "/create_lead", `{"name":"a"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, pipeline.KindInvalidInput, resp.Kind)
	assert.Contains(t, resp.Error, "phone")
}

func TestCreateLead_NotConfigured(t *testing.T) {
	rec := do(t, NewServer(":0", &fakeEstimator{}), http.MethodPost, "/create_lead", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	lc := cache.NewLookupCache(cache.NewMapStore(), nil)
	lc.Put(model.Coordinates{Lat: 1, Lng: 2}, model.BestSurface{})
	lc.Get(model.Coordinates{Lat: 1, Lng: 2})

	breakers := resilience.NewBreakers(resilience.DefaultCircuitBreakerConfig())
	breakers.Get("sonnendach")

	s := NewServer(":0", &fakeEstimator{}, WithCache(lc), WithBreakers(breakers))
	rec := do(t, s, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Cache)
	assert.Equal(t, 1, resp.Cache.Entries)
	assert.Equal(t, int64(1), resp.Cache.Hits)
	assert.Equal(t, "closed", resp.Circuits["sonnendach"])
}

func TestMetrics(t *testing.T) {
	s := NewServer(":0", &fakeEstimator{}, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("solar_pipeline_runs_total 1\n"))
	})))

	rec := do(t, s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "solar_pipeline_runs_total")
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(":0", &fakeEstimator{}, WithCORSOrigins([]string{"https://example.ch"}))

	req := httptest.NewRequest(http.MethodOptions, "/process_solar_data", nil)
	req.Header.Set("Origin", "https://example.ch")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.ch", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverer(t *testing.T) {
	est := &fakeEstimator{surfaceFn: func(context.Context, string) (*pipeline.SurfaceResult, error) {
		panic("boom")
	}}

	rec := do(t, NewServer(":0", est), http.MethodPost, "/solar_panel_calculations", `{"address":"a"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
