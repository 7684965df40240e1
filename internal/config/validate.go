package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	knownGeocoders     = []string{"google", "geoadmin", "census"}
	knownRoofProviders = []string{"sonnendach", "google_solar"}
	knownLeadBackends  = []string{"salesforce", "sqlite", "postgres"}
)

// Validate checks that the configuration satisfies the requirements of the
// given mode: "serve", "estimate", "batch", "installers" or "lead".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateEstimate()...)
		errs = append(errs, c.validateInstallers()...)
		errs = append(errs, c.validateLead()...)
	case "estimate":
		errs = append(errs, c.validateEstimate()...)
	case "batch":
		errs = append(errs, c.validateEstimate()...)
		if c.Batch.MaxConcurrency < 1 || c.Batch.MaxConcurrency > 50 {
			errs = append(errs, "batch.max_concurrency must be between 1 and 50")
		}
	case "installers":
		errs = append(errs, c.validateGeocode()...)
		errs = append(errs, c.validateInstallers()...)
	case "lead":
		errs = append(errs, c.validateLead()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.HTTP.TimeoutSecs <= 0 {
		errs = append(errs, "http.timeout_secs must be > 0")
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache.max_entries must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateGeocode() []string {
	var errs []string
	if len(c.Geocode.Providers) == 0 {
		errs = append(errs, "geocode.providers must not be empty")
	}
	for _, p := range c.Geocode.Providers {
		if !slices.Contains(knownGeocoders, p) {
			errs = append(errs, "geocode.providers: unknown provider "+p)
		}
	}
	return errs
}

func (c *Config) validateEstimate() []string {
	errs := c.validateGeocode()
	if len(c.Roof.Providers) == 0 {
		errs = append(errs, "roof.providers must not be empty")
	}
	usable := false
	for _, p := range c.Roof.Providers {
		switch {
		case !slices.Contains(knownRoofProviders, p):
			errs = append(errs, "roof.providers: unknown provider "+p)
		case p == "google_solar" && c.Google.Key == "":
		default:
			usable = true
		}
	}
	if len(c.Roof.Providers) > 0 && !usable {
		errs = append(errs, "google.key is required when google_solar is the only roof provider")
	}
	if c.Roof.BBoxTolerance <= 0 || c.Roof.BBoxTolerance > 1 {
		errs = append(errs, "roof.bbox_tolerance must be in (0, 1]")
	}
	return errs
}

func (c *Config) validateInstallers() []string {
	var errs []string
	if c.Installers.Path == "" {
		errs = append(errs, "installers.path is required")
	}
	if c.Installers.TopN < 1 {
		errs = append(errs, "installers.top_n must be >= 1")
	}
	return errs
}

func (c *Config) validateLead() []string {
	var errs []string
	switch c.Lead.Backend {
	case "salesforce":
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			errs = append(errs, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.key_path is required")
		}
	case "sqlite", "postgres":
		if c.Lead.DatabaseURL == "" {
			errs = append(errs, "lead.database_url is required")
		}
	default:
		errs = append(errs, "lead.backend must be one of "+strings.Join(knownLeadBackends, ", "))
	}
	return errs
}
