package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/config"
	"github.com/sells-group/solar-cli/internal/lead"
	"github.com/sells-group/solar-cli/internal/metrics"
	"github.com/sells-group/solar-cli/internal/store"
	"github.com/sells-group/solar-cli/pkg/salesforce"
)

// sfRateLimit caps Salesforce API calls per second.
const sfRateLimit = 5

// leadEnv is the configured lead backend. Store is nil for Salesforce.
type leadEnv struct {
	Service *lead.Service
	Store   store.LeadStore
}

// Close releases the lead store, if any.
func (le *leadEnv) Close() {
	if le.Store != nil {
		_ = le.Store.Close()
	}
}

// initLeads opens the configured lead backend and wraps it in a Service.
func initLeads(ctx context.Context, c *config.Config, m *metrics.Metrics) (*leadEnv, error) {
	writer, st, err := newLeadWriter(ctx, c)
	if err != nil {
		return nil, err
	}
	svc := lead.NewService(writer,
		lead.WithSource(c.Lead.Source),
		lead.WithMetrics(m),
	)
	return &leadEnv{Service: svc, Store: st}, nil
}

func newLeadWriter(ctx context.Context, c *config.Config) (lead.Writer, store.LeadStore, error) {
	switch c.Lead.Backend {
	case "salesforce":
		client, err := salesforce.Connect(salesforce.JWTConfig{
			LoginURL: c.Salesforce.LoginURL,
			Username: c.Salesforce.Username,
			ClientID: c.Salesforce.ClientID,
			KeyPath:  c.Salesforce.KeyPath,
		}, salesforce.WithRateLimit(sfRateLimit))
		if err != nil {
			return nil, nil, eris.Wrap(err, "connect salesforce")
		}
		return lead.NewSalesforceWriter(client, c.Lead.Company), nil, nil
	case "sqlite", "postgres":
		st, err := openLeadStore(ctx, c)
		if err != nil {
			return nil, nil, err
		}
		return lead.NewStoreWriter(st, c.Lead.Backend), st, nil
	default:
		return nil, nil, eris.Errorf("unsupported lead backend: %s", c.Lead.Backend)
	}
}

// openLeadStore opens and migrates the SQL lead store.
func openLeadStore(ctx context.Context, c *config.Config) (store.LeadStore, error) {
	var (
		st  store.LeadStore
		err error
	)
	switch c.Lead.Backend {
	case "sqlite":
		st, err = store.NewSQLite(c.Lead.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Lead.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("lead backend %s has no local store", c.Lead.Backend)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open lead store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate lead store")
	}
	return st, nil
}
