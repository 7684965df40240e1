package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/solar-cli/internal/model"
)

// SQLiteStore implements LeadStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	phone        TEXT NOT NULL UNIQUE,
	address      TEXT NOT NULL,
	monthly_bill REAL NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead model.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, phone, address, monthly_bill, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Name, lead.Phone, lead.Address, lead.MonthlyBill, lead.Source, lead.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicatePhone, "sqlite: insert lead %s", lead.Phone)
		}
		return eris.Wrap(err, "sqlite: insert lead")
	}
	return nil
}

func (s *SQLiteStore) FindLeadByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, address, monthly_bill, source, created_at FROM leads WHERE phone = ?`, phone)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find lead by phone")
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, address, monthly_bill, source, created_at FROM leads ORDER BY created_at DESC LIMIT ?`,
		listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var created time.Time
	if err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Address, &l.MonthlyBill, &l.Source, &created); err != nil {
		return nil, err
	}
	l.CreatedAt = created.UTC()
	return &l, nil
}
