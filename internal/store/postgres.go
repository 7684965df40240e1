package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/db"
	"github.com/sells-group/solar-cli/internal/model"
)

// PostgresStore implements LeadStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	phone        TEXT NOT NULL UNIQUE,
	address      TEXT NOT NULL,
	monthly_bill DOUBLE PRECISION NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead model.Lead) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, phone, address, monthly_bill, source, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lead.ID, lead.Name, lead.Phone, lead.Address, lead.MonthlyBill, lead.Source, lead.CreatedAt.UTC(),
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicatePhone, "postgres: insert lead %s", lead.Phone)
		}
		return eris.Wrap(err, "postgres: insert lead")
	}
	return nil
}

func (s *PostgresStore) FindLeadByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, phone, address, monthly_bill, source, created_at FROM leads WHERE phone = $1`, phone)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find lead by phone")
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, phone, address, monthly_bill, source, created_at FROM leads ORDER BY created_at DESC LIMIT $1`,
		listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}
