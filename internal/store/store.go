// Package store persists captured leads in SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/model"
)

// ErrDuplicatePhone is returned when a lead with the same phone already exists.
var ErrDuplicatePhone = eris.New("store: lead with this phone already exists")

// LeadStore defines the persistence interface for captured leads.
type LeadStore interface {
	InsertLead(ctx context.Context, lead model.Lead) error
	FindLeadByPhone(ctx context.Context, phone string) (*model.Lead, error)
	ListLeads(ctx context.Context, limit int) ([]model.Lead, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
