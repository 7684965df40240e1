// Package lead captures prospective customers and writes them to a CRM or a
// local database, deduplicating by phone number.
package lead

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/metrics"
	"github.com/sells-group/solar-cli/internal/model"
)

// Outcome labels for lead metrics.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// DefaultSource is the LeadSource recorded when none is configured.
const DefaultSource = "Solar Estimator"

// Input is a lead as submitted by a caller.
type Input struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Address     string  `json:"address"`
	MonthlyBill float64 `json:"monthly_bill,omitempty"`
}

// Result reports the stored lead id and whether it already existed.
type Result struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "lead: " + strings.Join(e.Fields, ", ") + " required"
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Writer persists leads in one backend.
type Writer interface {
	Name() string
	// FindByPhone returns the id of an existing lead with phone, or "".
	FindByPhone(ctx context.Context, phone string) (string, error)
	// Write stores lead and returns its backend id.
	Write(ctx context.Context, lead model.Lead) (string, error)
}

// Service validates, deduplicates and writes leads.
type Service struct {
	writer  Writer
	source  string
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithSource sets the LeadSource recorded on each lead.
func WithSource(source string) Option {
	return func(s *Service) {
		if source != "" {
			s.source = source
		}
	}
}

// WithMetrics records lead outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a Service writing through w.
func NewService(w Writer, opts ...Option) *Service {
	s := &Service{
		writer: w,
		source: DefaultSource,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Validate checks that name, phone and address are present and the bill is
// a finite non-negative number.
func (in Input) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if NormalizePhone(in.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(in.Address) == "" {
		missing = append(missing, "address")
	}
	if math.IsNaN(in.MonthlyBill) || math.IsInf(in.MonthlyBill, 0) || in.MonthlyBill < 0 {
		missing = append(missing, "non-negative monthly_bill")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Create validates in and writes it unless a lead with the same phone exists.
func (s *Service) Create(ctx context.Context, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	phone := NormalizePhone(in.Phone)
	log := zap.L().With(zap.String("backend", s.writer.Name()), zap.String("phone", phone))

	existing, err := s.writer.FindByPhone(ctx, phone)
	if err != nil {
		s.record(OutcomeError)
		return nil, eris.Wrap(err, "lead: dedupe lookup")
	}
	if existing != "" {
		log.Info("lead: duplicate phone, skipping write", zap.String("id", existing))
		s.record(OutcomeDuplicate)
		return &Result{ID: existing, Duplicate: true}, nil
	}

	lead := model.Lead{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Phone:       phone,
		Address:     strings.TrimSpace(in.Address),
		MonthlyBill: in.MonthlyBill,
		Source:      s.source,
		CreatedAt:   s.now().UTC(),
	}

	id, err := s.writer.Write(ctx, lead)
	if err != nil {
		s.record(OutcomeError)
		return nil, eris.Wrap(err, "lead: write")
	}

	log.Info("lead: created", zap.String("id", id))
	s.record(OutcomeCreated)
	return &Result{ID: id}, nil
}

func (s *Service) record(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.LeadsCreated.WithLabelValues(s.writer.Name(), outcome).Inc()
}

// NormalizePhone keeps digits and a leading plus sign so that formatting
// differences do not defeat deduplication.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// Describe renders the free-text description attached to CRM leads.
func Describe(lead model.Lead) string {
	if lead.MonthlyBill <= 0 {
		return fmt.Sprintf("Captured by %s for %s.", lead.Source, lead.Address)
	}
	return fmt.Sprintf("Captured by %s for %s. Monthly electricity bill: %.2f.",
		lead.Source, lead.Address, lead.MonthlyBill)
}
