package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	text_hash  TEXT NOT NULL,
	capture    TEXT NOT NULL,
	supplier   TEXT,
	result     TEXT,
	status     TEXT NOT NULL DEFAULT 'complete',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS billing_ledgers (
	user_id    TEXT PRIMARY KEY,
	ledger     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tracking_cache (
	number     TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_text_hash ON analyses(text_hash);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_tracking_cache_expires_at ON tracking_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *model.Analysis) error {
	normalizeAnalysis(a)

	captureJSON, supplierJSON, resultJSON, err := marshalAnalysis(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, text_hash, capture, supplier, result, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TextHash, captureJSON, supplierJSON, resultJSON, string(a.Status), a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert analysis")
}

func (s *SQLiteStore) SaveAnalyses(ctx context.Context, analyses []model.Analysis) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int
	for i := range analyses {
		a := &analyses[i]
		normalizeAnalysis(a)

		captureJSON, supplierJSON, resultJSON, err := marshalAnalysis(a)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal analysis")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO analyses (id, text_hash, capture, supplier, result, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.TextHash, captureJSON, supplierJSON, resultJSON, string(a.Status), a.CreatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: batch insert analysis %s", a.ID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit batch")
	}
	return n, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text_hash, capture, supplier, result, status, created_at
		 FROM analyses WHERE id = ?`, id)
	return scanAnalysis(row, "sqlite")
}

func (s *SQLiteStore) GetAnalysisByHash(ctx context.Context, textHash string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text_hash, capture, supplier, result, status, created_at
		 FROM analyses WHERE text_hash = ? ORDER BY created_at DESC LIMIT 1`, textHash)
	return scanAnalysis(row, "sqlite")
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter HistoryFilter) ([]model.Analysis, error) {
	query := `SELECT id, text_hash, capture, supplier, result, status, created_at
		 FROM analyses WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows, "sqlite")
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete analysis %s", id)
	}
	return checkRowsAffected(res, "analysis", id)
}

func (s *SQLiteStore) GetLedger(ctx context.Context, userID string) (*billing.Ledger, error) {
	var ledgerJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT ledger FROM billing_ledgers WHERE user_id = ?`, userID,
	).Scan(&ledgerJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get ledger")
	}

	var l billing.Ledger
	if err := json.Unmarshal([]byte(ledgerJSON), &l); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal ledger")
	}
	return &l, nil
}

func (s *SQLiteStore) SaveLedger(ctx context.Context, userID string, l *billing.Ledger) error {
	ledgerJSON, err := json.Marshal(l)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ledger")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO billing_ledgers (user_id, ledger, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET ledger = excluded.ledger, updated_at = excluded.updated_at`,
		userID, string(ledgerJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save ledger")
}

func (s *SQLiteStore) GetCachedTracking(ctx context.Context, number string) (*model.Tracking, error) {
	var dataJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tracking_cache WHERE number = ? AND expires_at > datetime('now')`,
		number,
	).Scan(&dataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached tracking")
	}

	var t model.Tracking
	if err := json.Unmarshal([]byte(dataJSON), &t); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached tracking")
	}
	return &t, nil
}

func (s *SQLiteStore) SetCachedTracking(ctx context.Context, t *model.Tracking, ttl time.Duration) error {
	dataJSON, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tracking")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tracking_cache (number, data, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(number) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		t.Number, string(dataJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached tracking")
}

func (s *SQLiteStore) DeleteExpiredTrackings(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tracking_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired trackings")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// normalizeAnalysis fills the identity and timestamp of a new record.
func normalizeAnalysis(a *model.Analysis) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
}

func marshalAnalysis(a *model.Analysis) (capture string, supplier, result sql.NullString, err error) {
	captureJSON, err := json.Marshal(a.Capture)
	if err != nil {
		return "", sql.NullString{}, sql.NullString{}, err
	}
	capture = string(captureJSON)

	if a.Supplier != nil {
		b, err := json.Marshal(a.Supplier)
		if err != nil {
			return "", sql.NullString{}, sql.NullString{}, err
		}
		supplier = sql.NullString{String: string(b), Valid: true}
	}
	if a.Result != nil {
		b, err := json.Marshal(a.Result)
		if err != nil {
			return "", sql.NullString{}, sql.NullString{}, err
		}
		result = sql.NullString{String: string(b), Valid: true}
	}
	return capture, supplier, result, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable, backend string) (*model.Analysis, error) {
	var a model.Analysis
	var captureJSON string
	var supplierJSON, resultJSON sql.NullString

	err := row.Scan(&a.ID, &a.TextHash, &captureJSON, &supplierJSON, &resultJSON, &a.Status, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: scan analysis", backend)
	}

	if err := json.Unmarshal([]byte(captureJSON), &a.Capture); err != nil {
		return nil, eris.Wrapf(err, "%s: unmarshal capture", backend)
	}
	if supplierJSON.Valid {
		a.Supplier = &model.Supplier{}
		if err := json.Unmarshal([]byte(supplierJSON.String), a.Supplier); err != nil {
			return nil, eris.Wrapf(err, "%s: unmarshal supplier", backend)
		}
	}
	if resultJSON.Valid {
		a.Result = &model.ReliabilityResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), a.Result); err != nil {
			return nil, eris.Wrapf(err, "%s: unmarshal result", backend)
		}
	}
	return &a, nil
}
