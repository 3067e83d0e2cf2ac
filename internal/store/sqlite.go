package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS exchanges (
	id         TEXT PRIMARY KEY,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '[]',
	reason     TEXT NOT NULL DEFAULT '',
	tier       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveExchange(ctx context.Context, ex model.Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.New().String()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	sourcesJSON, err := json.Marshal(ex.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, question, answer, sources, reason, tier, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.Question, ex.Answer, string(sourcesJSON), string(ex.Reason), ex.Tier, ex.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert exchange")
}

func (s *SQLiteStore) ListExchanges(ctx context.Context, filter ExchangeFilter) ([]model.Exchange, error) {
	query := `SELECT id, question, answer, sources, reason, tier, created_at FROM exchanges ORDER BY created_at DESC`
	var args []any

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list exchanges")
	}
	defer rows.Close()

	var exchanges []model.Exchange
	for rows.Next() {
		var ex model.Exchange
		var sourcesJSON string
		var reason string
		if err := rows.Scan(&ex.ID, &ex.Question, &ex.Answer, &sourcesJSON, &reason, &ex.Tier, &ex.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan exchange")
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &ex.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
		ex.Reason = model.ReasonCode(reason)
		exchanges = append(exchanges, ex)
	}
	return exchanges, eris.Wrap(rows.Err(), "sqlite: list exchanges iterate")
}
