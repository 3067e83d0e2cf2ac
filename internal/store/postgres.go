package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Mnemosyn1154/WVP-QNA/internal/db"
	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_exchange": `INSERT INTO exchanges (id, question, answer, sources, reason, tier, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"list_exchanges":  `SELECT id, question, answer, sources, reason, tier, created_at FROM exchanges ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// NewPostgresFromPool wraps an existing pool, used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., vector retrieval).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS exchanges (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	sources    JSONB NOT NULL DEFAULT '[]',
	reason     TEXT NOT NULL DEFAULT '',
	tier       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`

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

func (s *PostgresStore) SaveExchange(ctx context.Context, ex model.Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.New().String()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	sourcesJSON, err := json.Marshal(ex.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO exchanges (id, question, answer, sources, reason, tier, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ex.ID, ex.Question, ex.Answer, sourcesJSON, string(ex.Reason), ex.Tier, ex.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert exchange")
}

func (s *PostgresStore) ListExchanges(ctx context.Context, filter ExchangeFilter) ([]model.Exchange, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, question, answer, sources, reason, tier, created_at FROM exchanges ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list exchanges")
	}
	defer rows.Close()

	var exchanges []model.Exchange
	for rows.Next() {
		var ex model.Exchange
		var sourcesJSON []byte
		var reason string
		if err := rows.Scan(&ex.ID, &ex.Question, &ex.Answer, &sourcesJSON, &reason, &ex.Tier, &ex.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan exchange")
		}
		if err := json.Unmarshal(sourcesJSON, &ex.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
		ex.Reason = model.ReasonCode(reason)
		exchanges = append(exchanges, ex)
	}
	return exchanges, eris.Wrap(rows.Err(), "postgres: list exchanges iterate")
}
