package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead is the subset of the Salesforce Lead sObject written by the estimator.
type Lead struct {
	ID          string `json:"Id" salesforce:"Id"`
	FirstName   string `json:"FirstName" salesforce:"FirstName"`
	LastName    string `json:"LastName" salesforce:"LastName"`
	Company     string `json:"Company" salesforce:"Company"`
	Phone       string `json:"Phone" salesforce:"Phone"`
	Street      string `json:"Street" salesforce:"Street"`
	LeadSource  string `json:"LeadSource" salesforce:"LeadSource"`
	Description string `json:"Description" salesforce:"Description"`
}

var leadFields = []string{
	"Id", "FirstName", "LastName", "Company", "Phone", "Street", "LeadSource", "Description",
}

// SplitName splits a full name into first and last name. Salesforce requires
// LastName, so a single-word name becomes the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// CreateLead inserts a Lead and returns its Salesforce ID.
func CreateLead(ctx context.Context, c Client, lead Lead) (string, error) {
	if lead.LastName == "" {
		return "", eris.New("sf: lead LastName is required")
	}
	if lead.Company == "" {
		return "", eris.New("sf: lead Company is required")
	}

	record := map[string]any{
		"LastName": lead.LastName,
		"Company":  lead.Company,
	}
	for k, v := range map[string]string{
		"FirstName":   lead.FirstName,
		"Phone":       lead.Phone,
		"Street":      lead.Street,
		"LeadSource":  lead.LeadSource,
		"Description": lead.Description,
	} {
		if v != "" {
			record[k] = v
		}
	}

	id, err := c.InsertOne(ctx, "Lead", record)
	if err != nil {
		return "", eris.Wrap(err, "sf: create lead")
	}
	return id, nil
}

// FindLeadByPhone returns the first Lead with the given phone number, or nil.
func FindLeadByPhone(ctx context.Context, c Client, phone string) (*Lead, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Phone = '%s' LIMIT 1",
		strings.Join(leadFields, ", "),
		escapeSoql(phone),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find lead by phone %s", phone))
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
