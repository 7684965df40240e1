package main

import (
	"errors"
	"io/fs"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/cache"
	"github.com/sells-group/solar-cli/internal/config"
	"github.com/sells-group/solar-cli/internal/installer"
	"github.com/sells-group/solar-cli/internal/metrics"
	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/pipeline"
	"github.com/sells-group/solar-cli/internal/resilience"
	"github.com/sells-group/solar-cli/internal/roof"
	"github.com/sells-group/solar-cli/pkg/geocode"
	"github.com/sells-group/solar-cli/pkg/solarapi"
	"github.com/sells-group/solar-cli/pkg/sonnendach"
)

// solarEnv holds the clients and pipeline shared by the serve, surface,
// estimate, batch and installers commands.
type solarEnv struct {
	Pipeline *pipeline.Pipeline
	Geocoder *geocode.CascadeClient
	Cache    *cache.LookupCache
	Breakers *resilience.Breakers
	Metrics  *metrics.Metrics
}

// installerDataset controls whether initEnv loads the installer dataset.
type installerDataset int

const (
	skipInstallers     installerDataset = iota
	optionalInstallers                  // load if the file exists
	requireInstallers
)

// initEnv validates c for mode and builds the pipeline.
func initEnv(c *config.Config, mode string, m *metrics.Metrics, dataset installerDataset) (*solarEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	breakers := newBreakers(c, m)
	geocoder := newGeocoder(c, m)
	provider, err := newRoofProvider(c, breakers, m)
	if err != nil {
		return nil, err
	}

	lookup := cache.NewLookupCache(cache.NewStore(c.Cache.MaxEntries), m)
	pipeOpts := []pipeline.Option{
		pipeline.WithCache(lookup),
		pipeline.WithMetrics(m),
	}

	if dataset != skipInstallers {
		list, err := loadInstallers(c.Installers.Path, dataset == optionalInstallers)
		if err != nil {
			return nil, err
		}
		if m != nil {
			m.InstallersLoaded.Set(float64(len(list)))
		}
		pipeOpts = append(pipeOpts, pipeline.WithInstallers(list, c.Installers.TopN))
	}

	return &solarEnv{
		Pipeline: pipeline.New(geocoder, provider, pipeOpts...),
		Geocoder: geocoder,
		Cache:    lookup,
		Breakers: breakers,
		Metrics:  m,
	}, nil
}

func httpTimeout(c *config.Config) time.Duration {
	return time.Duration(c.HTTP.TimeoutSecs) * time.Second
}

func newBreakers(c *config.Config, m *metrics.Metrics) *resilience.Breakers {
	cbCfg := resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs)
	cbCfg.OnStateChange = func(name string, _, to resilience.CircuitState) {
		m.SetCircuitOpen(name, to == resilience.CircuitOpen)
	}
	return resilience.NewBreakers(cbCfg)
}

// newGeocoder builds the address cascade in configured order.
func newGeocoder(c *config.Config, m *metrics.Metrics) *geocode.CascadeClient {
	opts := []geocode.Option{
		geocode.WithTimeout(httpTimeout(c)),
		geocode.WithRateLimit(c.Geocode.RateLimit),
	}

	var providers []geocode.Provider
	for _, name := range c.Geocode.Providers {
		switch name {
		case "google":
			providers = append(providers, geocode.NewGoogleProvider(c.Google.Key, opts...))
		case "geoadmin":
			providers = append(providers, geocode.NewGeoAdminProvider(opts...))
		case "census":
			providers = append(providers, geocode.NewCensusProvider(opts...))
		}
	}

	return geocode.NewCascadeClient(providers,
		geocode.WithCascadeBatchConcurrency(c.Batch.MaxConcurrency),
		geocode.WithCascadeMetrics(m),
	)
}

// newRoofProvider builds the roof dataset chain. Each dataset sits behind
// its own circuit breaker. google_solar is skipped without an API key.
func newRoofProvider(c *config.Config, breakers *resilience.Breakers, m *metrics.Metrics) (roof.Provider, error) {
	var providers []roof.Provider
	for _, name := range c.Roof.Providers {
		var p roof.Provider
		switch name {
		case "sonnendach":
			p = roof.NewSonnendachProvider(sonnendach.NewClient(
				sonnendach.WithTimeout(httpTimeout(c)),
				sonnendach.WithRateLimit(c.Roof.RateLimit),
				sonnendach.WithBBoxTolerance(c.Roof.BBoxTolerance),
				sonnendach.WithTolerancePixels(c.Roof.TolerancePixels),
			))
		case "google_solar":
			if c.Google.Key == "" {
				zap.L().Warn("roof: google_solar disabled, google.key is empty")
				continue
			}
			p = roof.NewGoogleSolarProvider(solarapi.NewClient(c.Google.Key,
				solarapi.WithTimeout(httpTimeout(c)),
				solarapi.WithRateLimit(c.Roof.RateLimit),
				solarapi.WithRequiredQuality(c.Roof.RequiredQuality),
			))
		default:
			return nil, eris.Errorf("roof: unknown provider %q", name)
		}
		providers = append(providers, roof.NewGuard(p, breakers.Get(name), m))
	}
	if len(providers) == 0 {
		return nil, eris.New("roof: no usable providers configured")
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return roof.NewChain(providers...), nil
}

// loadInstallers reads the installer dataset. With optional set, a missing
// file yields an empty dataset.
func loadInstallers(path string, optional bool) ([]model.Installer, error) {
	list, err := installer.Load(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("installers: dataset not found, ranking disabled", zap.String("path", path))
			return nil, nil
		}
		return nil, eris.Wrap(err, "load installers")
	}
	zap.L().Info("installers: dataset loaded", zap.String("path", path), zap.Int("count", len(list)))
	return list, nil
}
