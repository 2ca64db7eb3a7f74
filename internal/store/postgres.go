package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/db"
	"github.com/aliscan/aliscan-cli/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_analysis":          `INSERT INTO analyses (id, text_hash, capture, supplier, result, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_analysis":             `SELECT id, text_hash, capture, supplier, result, status, created_at FROM analyses WHERE id = $1`,
	"get_analysis_by_hash":     `SELECT id, text_hash, capture, supplier, result, status, created_at FROM analyses WHERE text_hash = $1 ORDER BY created_at DESC LIMIT 1`,
	"get_ledger":               `SELECT ledger FROM billing_ledgers WHERE user_id = $1`,
	"get_cached_tracking":      `SELECT data FROM tracking_cache WHERE number = $1 AND expires_at > now()`,
	"delete_expired_trackings": `DELETE FROM tracking_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
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

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	text_hash  TEXT NOT NULL,
	capture    JSONB NOT NULL,
	supplier   JSONB,
	result     JSONB,
	status     TEXT NOT NULL DEFAULT 'complete',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS billing_ledgers (
	user_id    TEXT PRIMARY KEY,
	ledger     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tracking_cache (
	number     TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_text_hash ON analyses(text_hash);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_hash_created ON analyses(text_hash, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tracking_cache_expires_at ON tracking_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
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

func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *model.Analysis) error {
	normalizeAnalysis(a)

	captureJSON, supplierJSON, resultJSON, err := marshalAnalysis(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, text_hash, capture, supplier, result, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TextHash, captureJSON, nullable(supplierJSON), nullable(resultJSON), string(a.Status), a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert analysis")
}

// SaveAnalyses bulk-inserts through the COPY protocol, used by history imports.
func (s *PostgresStore) SaveAnalyses(ctx context.Context, analyses []model.Analysis) (int, error) {
	rows := make([][]any, 0, len(analyses))
	for i := range analyses {
		a := &analyses[i]
		normalizeAnalysis(a)

		captureJSON, supplierJSON, resultJSON, err := marshalAnalysis(a)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal analysis")
		}
		rows = append(rows, []any{
			a.ID, a.TextHash, captureJSON, nullable(supplierJSON), nullable(resultJSON), string(a.Status), a.CreatedAt,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "analyses",
		[]string{"id", "text_hash", "capture", "supplier", "result", "status", "created_at"},
		rows,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: batch insert analyses")
	}
	return int(n), nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, text_hash, capture, supplier, result, status, created_at FROM analyses WHERE id = $1`,
		id,
	)
	return scanPgAnalysis(row)
}

func (s *PostgresStore) GetAnalysisByHash(ctx context.Context, textHash string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, text_hash, capture, supplier, result, status, created_at FROM analyses
		 WHERE text_hash = $1 ORDER BY created_at DESC LIMIT 1`,
		textHash,
	)
	return scanPgAnalysis(row)
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter HistoryFilter) ([]model.Analysis, error) {
	query := `SELECT id, text_hash, capture, supplier, result, status, created_at FROM analyses WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		a, err := scanPgAnalysisRow(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("analysis not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetLedger(ctx context.Context, userID string) (*billing.Ledger, error) {
	var ledgerJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT ledger FROM billing_ledgers WHERE user_id = $1`,
		userID,
	).Scan(&ledgerJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get ledger")
	}

	var l billing.Ledger
	if err := json.Unmarshal(ledgerJSON, &l); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal ledger")
	}
	return &l, nil
}

func (s *PostgresStore) SaveLedger(ctx context.Context, userID string, l *billing.Ledger) error {
	ledgerJSON, err := json.Marshal(l)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ledger")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO billing_ledgers (user_id, ledger, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET ledger = $2, updated_at = $3`,
		userID, ledgerJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save ledger")
}

func (s *PostgresStore) GetCachedTracking(ctx context.Context, number string) (*model.Tracking, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM tracking_cache WHERE number = $1 AND expires_at > now()`,
		number,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached tracking")
	}

	var t model.Tracking
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached tracking")
	}
	return &t, nil
}

func (s *PostgresStore) SetCachedTracking(ctx context.Context, t *model.Tracking, ttl time.Duration) error {
	dataJSON, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tracking")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tracking_cache (number, data, fetched_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (number) DO UPDATE SET data = $2, fetched_at = $3, expires_at = $4`,
		t.Number, dataJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached tracking")
}

func (s *PostgresStore) DeleteExpiredTrackings(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tracking_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired trackings")
	}
	return int(tag.RowsAffected()), nil
}

// nullable converts an optional JSON column for pgx parameter binding.
func nullable(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}

func scanPgAnalysis(row pgx.Row) (*model.Analysis, error) {
	a, err := scanPgAnalysisRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func scanPgAnalysisRow(row pgx.Row) (*model.Analysis, error) {
	var a model.Analysis
	var captureJSON []byte
	var supplierJSON, resultJSON *[]byte

	err := row.Scan(&a.ID, &a.TextHash, &captureJSON, &supplierJSON, &resultJSON, &a.Status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan analysis")
	}

	if err := json.Unmarshal(captureJSON, &a.Capture); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal capture")
	}
	if supplierJSON != nil {
		a.Supplier = &model.Supplier{}
		if err := json.Unmarshal(*supplierJSON, a.Supplier); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal supplier")
		}
	}
	if resultJSON != nil {
		a.Result = &model.ReliabilityResult{}
		if err := json.Unmarshal(*resultJSON, a.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &a, nil
}
