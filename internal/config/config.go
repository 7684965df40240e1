package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Roof       RoofConfig       `yaml:"roof" mapstructure:"roof"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Installers InstallersConfig `yaml:"installers" mapstructure:"installers"`
	Lead       LeadConfig       `yaml:"lead" mapstructure:"lead"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds the Google Maps Platform key shared by the geocoding,
// Solar and Places clients.
type GoogleConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GeocodeConfig configures the address resolver cascade.
type GeocodeConfig struct {
	Providers []string `yaml:"providers" mapstructure:"providers"`
	RateLimit float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RoofConfig configures the rooftop dataset providers.
type RoofConfig struct {
	Providers       []string `yaml:"providers" mapstructure:"providers"`
	BBoxTolerance   float64  `yaml:"bbox_tolerance" mapstructure:"bbox_tolerance"`
	TolerancePixels int      `yaml:"tolerance_px" mapstructure:"tolerance_px"`
	RequiredQuality string   `yaml:"required_quality" mapstructure:"required_quality"`
	RateLimit       float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// HTTPConfig configures outbound HTTP clients.
type HTTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CircuitConfig configures the circuit breakers around upstream services.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CacheConfig configures the coordinate lookup cache. MaxEntries of 0 keeps
// every entry for the life of the process.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// InstallersConfig configures the installer dataset.
type InstallersConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	TopN int    `yaml:"top_n" mapstructure:"top_n"`
}

// LeadConfig configures where captured leads are written.
type LeadConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Source      string `yaml:"source" mapstructure:"source"`
	Company     string `yaml:"company" mapstructure:"company"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a natural default are registered empty so that
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("google.key", "")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("geocode.providers", []string{"google", "geoadmin", "census"})
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("roof.providers", []string{"sonnendach", "google_solar"})
	v.SetDefault("roof.bbox_tolerance", 0.01)
	v.SetDefault("roof.tolerance_px", 5)
	v.SetDefault("roof.required_quality", "MEDIUM")
	v.SetDefault("roof.rate_limit", 10.0)
	v.SetDefault("http.timeout_secs", 5)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("cache.max_entries", 0)
	v.SetDefault("installers.path", "installers.csv")
	v.SetDefault("installers.top_n", 3)
	v.SetDefault("lead.backend", "sqlite")
	v.SetDefault("lead.database_url", "leads.db")
	v.SetDefault("lead.source", "Solar Estimator")
	v.SetDefault("lead.company", "Residential")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("batch.max_concurrency", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
