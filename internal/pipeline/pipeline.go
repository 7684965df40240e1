// Package pipeline chains coordinate resolution, roof lookup, best-surface
// selection and the financial estimate behind a lookup cache.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/cache"
	"github.com/sells-group/solar-cli/internal/installer"
	"github.com/sells-group/solar-cli/internal/metrics"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/roof"
	"github.com/sells-group/solar-cli/internal/solar"
	"github.com/sells-group/solar-cli/pkg/geocode"
)

// Operation labels used for run metrics.
const (
	OpSurface    = "surface"
	OpReport     = "report"
	OpInstallers = "installers"
)

// Geocoder resolves a one-line address. geocode.CascadeClient satisfies it.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Result, error)
}

// SurfaceResult is the best roof surface for an address.
type SurfaceResult struct {
	Address     string            `json:"address"`
	Coordinates model.Coordinates `json:"coordinates"`
	BestSurface model.BestSurface `json:"best_surface"`
	Cached      bool              `json:"cached"`
}

// ReportResult pairs the best surface with its financial projection.
type ReportResult struct {
	SurfaceResult
	MonthlyBill float64           `json:"monthly_bill"`
	Report      model.SolarReport `json:"report"`
}

// Pipeline runs the estimator synchronously per call. It is safe for
// concurrent use as long as its collaborators are.
type Pipeline struct {
	geocoder   Geocoder
	roof       roof.Provider
	cache      *cache.LookupCache
	installers []model.Installer
	topN       int
	metrics    *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache injects the lookup cache. Without it each Pipeline gets its own
// unbounded cache.
func WithCache(c *cache.LookupCache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithInstallers sets the installer dataset and how many to return.
func WithInstallers(list []model.Installer, topN int) Option {
	return func(p *Pipeline) {
		p.installers = list
		p.topN = topN
	}
}

// WithMetrics records run outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a Pipeline.
func New(geocoder Geocoder, provider roof.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		geocoder: geocoder,
		roof:     provider,
		topN:     installer.DefaultTopN,
	}
	for _, o := range opts {
		o(p)
	}
	if p.cache == nil {
		p.cache = cache.NewLookupCache(cache.NewMapStore(), p.metrics)
	}
	return p
}

// Cache exposes the lookup cache for health reporting.
func (p *Pipeline) Cache() *cache.LookupCache { return p.cache }

// Installers returns the loaded installer dataset.
func (p *Pipeline) Installers() []model.Installer { return p.installers }

// Resolve geocodes address. Any geocoder error or miss is a resolution
// failure; the pipeline never retries.
func (p *Pipeline) Resolve(ctx context.Context, address string) (model.Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return model.Coordinates{}, newError(KindInvalidInput, MsgAddressEmpty, nil)
	}

	res, err := p.geocoder.Geocode(ctx, address)
	if err != nil {
		zap.L().Warn("pipeline: geocode failed", zap.String("address", address), zap.Error(err))
		return model.Coordinates{}, newError(KindResolution, MsgUnresolved, err)
	}
	if res == nil || !res.Matched {
		zap.L().Info("pipeline: address not matched", zap.String("address", address))
		return model.Coordinates{}, newError(KindResolution, MsgUnresolved, nil)
	}

	coords := model.Coordinates{Lat: res.Latitude, Lng: res.Longitude}
	if !coords.Valid() {
		return model.Coordinates{}, newError(KindResolution, MsgUnresolved, nil)
	}

	zap.L().Debug("pipeline: address resolved",
		zap.String("address", address),
		zap.String("source", res.Source),
		zap.String("quality", res.Quality),
		zap.Float64("lat", coords.Lat),
		zap.Float64("lng", coords.Lng),
	)
	return coords, nil
}

// BestSurface resolves address and returns its most productive roof
// surface. Results are cached by exact coordinates; failures are not.
func (p *Pipeline) BestSurface(ctx context.Context, address string) (res *SurfaceResult, err error) {
	defer p.record(OpSurface, time.Now(), &err)
	return p.bestSurface(ctx, address)
}

func (p *Pipeline) bestSurface(ctx context.Context, address string) (*SurfaceResult, error) {
	coords, err := p.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	out := &SurfaceResult{Address: strings.TrimSpace(address), Coordinates: coords}
	if best, ok := p.cache.Get(coords); ok {
		out.BestSurface = best
		out.Cached = true
		return out, nil
	}

	candidates, err := p.roof.Candidates(ctx, coords)
	if err != nil {
		if errors.Is(err, roof.ErrNoData) {
			return nil, newError(KindNoData, MsgNoSurfaces, err)
		}
		zap.L().Error("pipeline: roof lookup failed",
			zap.String("provider", p.roof.Name()),
			zap.Float64("lat", coords.Lat),
			zap.Float64("lng", coords.Lng),
			zap.Error(err),
		)
		return nil, newError(KindUpstream, MsgUpstream, err)
	}

	best, err := solar.SelectBest(candidates)
	if err != nil {
		if errors.Is(err, solar.ErrNoSurfaces) {
			return nil, newError(KindNoData, MsgNoSurfaces, err)
		}
		return nil, newError(KindInternal, "surface selection failed", err)
	}
	best.Coordinates = coords

	p.cache.Put(coords, best)
	out.BestSurface = best
	return out, nil
}

// Report finds the best surface for address and projects a system sized
// against monthlyBill.
func (p *Pipeline) Report(ctx context.Context, address string, monthlyBill float64) (res *ReportResult, err error) {
	defer p.record(OpReport, time.Now(), &err)

	if err := (solar.Input{MonthlyBill: monthlyBill}).Validate(); err != nil {
		return nil, newError(KindInvalidInput, err.Error(), err)
	}

	surface, err := p.bestSurface(ctx, address)
	if err != nil {
		return nil, err
	}

	report, err := solar.EstimateReport(solar.InputFromSurface(surface.BestSurface, monthlyBill))
	if err != nil {
		return nil, newError(KindInvalidInput, err.Error(), err)
	}

	return &ReportResult{
		SurfaceResult: *surface,
		MonthlyBill:   monthlyBill,
		Report:        report,
	}, nil
}

// RankInstallers resolves address and returns the nearest installers.
func (p *Pipeline) RankInstallers(ctx context.Context, address string) (res []model.RankedInstaller, err error) {
	defer p.record(OpInstallers, time.Now(), &err)

	coords, err := p.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}
	return installer.Rank(coords, p.installers, p.topN), nil
}

func (p *Pipeline) record(op string, start time.Time, errp *error) {
	outcome := metrics.OutcomeSuccess
	if *errp != nil {
		outcome = metrics.OutcomeError
	}
	p.metrics.RecordRun(op, outcome)
	zap.L().Debug("pipeline: run complete",
		zap.String("operation", op),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("kind", string(KindOf(*errp))),
	)
}
