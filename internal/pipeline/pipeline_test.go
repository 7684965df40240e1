package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-cli/internal/cache"
	"github.com/sells-group/solar-cli/internal/metrics"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/resilience"
	"github.com/sells-group/solar-cli/internal/roof"
	"github.com/sells-group/solar-cli/pkg/geocode"
)

const testAddress = "Bahnhofstrasse 1, 8001 Zürich"

var zurich = model.Coordinates{Lat: 47.37, Lng: 8.54}

func matched(c model.Coordinates) *geocode.Result {
	return &geocode.Result{Latitude: c.Lat, Longitude: c.Lng, Source: "geoadmin", Quality: "rooftop", Matched: true}
}

func candidates() []model.RoofCandidate {
	return []model.RoofCandidate{
		model.YieldSurface{
			Surface:          model.Surface{ID: "1", Source: "sonnendach", AreaM2: 20, AzimuthDegrees: -90, PitchDegrees: 30},
			ElectricYieldKWh: 2000,
		},
		model.YieldSurface{
			Surface:          model.Surface{ID: "2", Source: "sonnendach", AreaM2: 50, AzimuthDegrees: 10, PitchDegrees: 30},
			ElectricYieldKWh: 4000,
		},
	}
}

func newTestPipeline(gc *mockGeocoder, rp *mockRoofProvider, opts ...Option) *Pipeline {
	return New(gc, rp, opts...)
}

func TestBestSurface_Success(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(candidates(), nil)

	p := newTestPipeline(gc, rp)
	res, err := p.BestSurface(context.Background(), testAddress)

	require.NoError(t, err)
	assert.Equal(t, zurich, res.Coordinates)
	assert.False(t, res.Cached)
	assert.Equal(t, "2", res.BestSurface.Surface.ID)
	assert.Equal(t, "N", res.BestSurface.Orientation)
	assert.InDelta(t, 4000, res.BestSurface.ElectricYieldKWh, 1e-9)
	assert.Equal(t, 2, res.BestSurface.NumSurfaces)
	assert.Equal(t, zurich, res.BestSurface.Coordinates)
	gc.AssertExpectations(t)
	rp.AssertExpectations(t)
}

func TestBestSurface_CacheHitSkipsRoofProvider(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(candidates(), nil)

	p := newTestPipeline(gc, rp)
	first, err := p.BestSurface(context.Background(), testAddress)
	require.NoError(t, err)
	second, err := p.BestSurface(context.Background(), testAddress)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.BestSurface, second.BestSurface)
	rp.AssertNumberOfCalls(t, "Candidates", 1)
	gc.AssertNumberOfCalls(t, "Geocode", 2)

	stats := p.Cache().Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestBestSurface_SharedCacheAcrossPipelines(t *testing.T) {
	lc := cache.NewLookupCache(cache.NewMapStore(), nil)
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, mock.Anything).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(candidates(), nil).Once()

	_, err := New(gc, rp, WithCache(lc)).BestSurface(context.Background(), "a")
	require.NoError(t, err)
	res, err := New(gc, rp, WithCache(lc)).BestSurface(context.Background(), "b")
	require.NoError(t, err)

	assert.True(t, res.Cached)
	rp.AssertNumberOfCalls(t, "Candidates", 1)
}

func TestBestSurface_ConcurrentCallsShareCache(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, mock.Anything).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(candidates(), nil)

	p := newTestPipeline(gc, rp)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.BestSurface(context.Background(), testAddress)
			assert.NoError(t, err)
			assert.Equal(t, "2", res.BestSurface.Surface.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.Cache().Stats().Entries)
}

func TestBestSurface_EmptyAddress(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}

	_, err := newTestPipeline(gc, rp).BestSurface(context.Background(), "   ")

	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	gc.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestBestSurface_Unmatched(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, "nowhere").Return(&geocode.Result{Matched: false}, nil)

	_, err := newTestPipeline(gc, rp).BestSurface(context.Background(), "nowhere")

	require.Error(t, err)
	assert.Equal(t, KindResolution, KindOf(err))
	assert.Equal(t, MsgUnresolved, MessageOf(err))
	rp.AssertNotCalled(t, "Candidates", mock.Anything, mock.Anything)
}

func TestBestSurface_GeocoderError(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(nil, eris.New("timeout"))

	_, err := newTestPipeline(gc, rp).BestSurface(context.Background(), testAddress)

	assert.Equal(t, KindResolution, KindOf(err))
}

func TestBestSurface_NoData(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(nil, eris.Wrap(roof.ErrNoData, "sonnendach")).Twice()

	p := newTestPipeline(gc, rp)
	_, err := p.BestSurface(context.Background(), testAddress)
	require.Error(t, err)
	assert.Equal(t, KindNoData, KindOf(err))
	assert.Equal(t, MsgNoSurfaces, MessageOf(err))

	// Failures are not cached.
	_, err = p.BestSurface(context.Background(), testAddress)
	require.Error(t, err)
	rp.AssertNumberOfCalls(t, "Candidates", 2)
	assert.Zero(t, p.Cache().Stats().Entries)
}

func TestBestSurface_EmptyCandidates(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return([]model.RoofCandidate{}, nil)

	_, err := newTestPipeline(gc, rp).BestSurface(context.Background(), testAddress)

	assert.Equal(t, KindNoData, KindOf(err))
}

func TestBestSurface_UpstreamFailure(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(nil, resilience.NewUpstreamError("sonnendach", 503, nil))

	_, err := newTestPipeline(gc, rp).BestSurface(context.Background(), testAddress)

	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	var ue *resilience.UpstreamError
	assert.ErrorAs(t, err, &ue)
}

func TestReport_Success(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(candidates(), nil)

	res, err := newTestPipeline(gc, rp).Report(context.Background(), testAddress, 80)

	require.NoError(t, err)
	assert.Equal(t, "2", res.BestSurface.Surface.ID)
	assert.InDelta(t, 80, res.MonthlyBill, 1e-9)
	assert.LessOrEqual(t, res.Report.SystemSizeKW, res.Report.MaxSystemSizeKW)
	assert.GreaterOrEqual(t, res.Report.AnnualProductionKWh, 0.0)
	assert.Equal(t, "N", res.Report.Orientation)
}

func TestReport_ZeroBillIsUnbounded(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	rp.On("Candidates", mock.Anything, zurich).Return(candidates(), nil)

	res, err := newTestPipeline(gc, rp).Report(context.Background(), testAddress, 0)

	require.NoError(t, err)
	assert.True(t, res.Report.PaybackUnbounded())
}

func TestReport_NegativeBill(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}

	_, err := newTestPipeline(gc, rp).Report(context.Background(), testAddress, -5)

	assert.Equal(t, KindInvalidInput, KindOf(err))
	gc.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestRankInstallers(t *testing.T) {
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)

	list := []model.Installer{
		{Name: "Far", Location: model.Coordinates{Lat: 47.05, Lng: 8.31}},
		{Name: "Near", Location: model.Coordinates{Lat: 47.40, Lng: 8.60}},
		{Name: "Mid", Location: model.Coordinates{Lat: 47.50, Lng: 8.72}},
	}
	got, err := newTestPipeline(gc, rp, WithInstallers(list, 2)).RankInstallers(context.Background(), testAddress)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Near", got[0].Name)
	assert.Equal(t, "Mid", got[1].Name)
	rp.AssertNotCalled(t, "Candidates", mock.Anything, mock.Anything)
}

func TestRecordsRunMetrics(t *testing.T) {
	m := metrics.NewForTesting()
	gc := &mockGeocoder{}
	rp := &mockRoofProvider{}
	gc.On("Geocode", mock.Anything, testAddress).Return(matched(zurich), nil)
	gc.On("Geocode", mock.Anything, "nowhere").Return(&geocode.Result{}, nil)
	rp.On("Candidates", mock.Anything, zurich).Return(candidates(), nil)

	p := newTestPipeline(gc, rp, WithMetrics(m))
	_, _ = p.BestSurface(context.Background(), testAddress)
	_, _ = p.BestSurface(context.Background(), testAddress)
	_, _ = p.BestSurface(context.Background(), "nowhere")

	assert.InDelta(t, 2, testutil.ToFloat64(m.PipelineRuns.WithLabelValues(OpSurface, metrics.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PipelineRuns.WithLabelValues(OpSurface, metrics.OutcomeError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.CacheHit)), 0)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(eris.New("boom")))
	wrapped := eris.Wrap(newError(KindNoData, MsgNoSurfaces, nil), "context")
	assert.Equal(t, KindNoData, KindOf(wrapped))
	assert.Equal(t, MsgNoSurfaces, MessageOf(wrapped))
}
