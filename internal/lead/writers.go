package lead

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/internal/store"
	"github.com/sells-group/solar-cli/pkg/salesforce"
)

// SalesforceWriter writes leads as Salesforce Lead sObjects.
type SalesforceWriter struct {
	client  salesforce.Client
	company string
}

// NewSalesforceWriter creates a writer. company fills the required Company
// field on person leads.
func NewSalesforceWriter(client salesforce.Client, company string) *SalesforceWriter {
	if company == "" {
		company = "Residential"
	}
	return &SalesforceWriter{client: client, company: company}
}

// Name implements Writer.
func (w *SalesforceWriter) Name() string { return "salesforce" }

// FindByPhone implements Writer.
func (w *SalesforceWriter) FindByPhone(ctx context.Context, phone string) (string, error) {
	existing, err := salesforce.FindLeadByPhone(ctx, w.client, phone)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", nil
	}
	return existing.ID, nil
}

// Write implements Writer.
func (w *SalesforceWriter) Write(ctx context.Context, lead model.Lead) (string, error) {
	first, last := salesforce.SplitName(lead.Name)
	return salesforce.CreateLead(ctx, w.client, salesforce.Lead{
		FirstName:   first,
		LastName:    last,
		Company:     w.company,
		Phone:       lead.Phone,
		Street:      lead.Address,
		LeadSource:  lead.Source,
		Description: Describe(lead),
	})
}

// StoreWriter writes leads to a SQLite or Postgres LeadStore.
type StoreWriter struct {
	store store.LeadStore
	name  string
}

// NewStoreWriter creates a writer over s; name labels metrics and logs.
func NewStoreWriter(s store.LeadStore, name string) *StoreWriter {
	return &StoreWriter{store: s, name: name}
}

// Name implements Writer.
func (w *StoreWriter) Name() string { return w.name }

// FindByPhone implements Writer.
func (w *StoreWriter) FindByPhone(ctx context.Context, phone string) (string, error) {
	existing, err := w.store.FindLeadByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", nil
	}
	return existing.ID, nil
}

// Write implements Writer. A unique-constraint race with a concurrent insert
// resolves to the winning row's id.
func (w *StoreWriter) Write(ctx context.Context, lead model.Lead) (string, error) {
	err := w.store.InsertLead(ctx, lead)
	if errors.Is(err, store.ErrDuplicatePhone) {
		existing, findErr := w.store.FindLeadByPhone(ctx, lead.Phone)
		if findErr == nil && existing != nil {
			return existing.ID, nil
		}
		return "", eris.Wrap(err, "lead: duplicate insert")
	}
	if err != nil {
		return "", err
	}
	return lead.ID, nil
}
