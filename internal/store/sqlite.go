package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	_ "modernc.org/sqlite"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/model"
)

// SQLiteStore persists alerts and quote history to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := ensureParentDir(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

// DB exposes the handle for health checks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			condition       TEXT NOT NULL,
			threshold_price REAL NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			enabled         INTEGER NOT NULL,
			triggered       INTEGER NOT NULL,
			created_at      INTEGER NOT NULL,
			triggered_at    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_owner ON alerts(owner_id)`,

		`CREATE TABLE IF NOT EXISTS quote_history (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp         INTEGER NOT NULL,
			symbol            TEXT NOT NULL,
			price             REAL NOT NULL,
			previous_price    REAL,
			variation_percent REAL,
			unit              TEXT,
			source            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quote_history_symbol_ts ON quote_history(symbol, timestamp)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) Create(ctx context.Context, a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var triggeredAt sql.NullInt64
	if a.TriggeredAt != nil {
		triggeredAt = sql.NullInt64{Int64: a.TriggeredAt.UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO alerts
		(id, owner_id, symbol, condition, threshold_price, description, enabled, triggered, created_at, triggered_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.OwnerID, a.Symbol, string(a.Condition), a.ThresholdPrice, a.Description,
		boolInt(a.Enabled), boolInt(a.Triggered), a.CreatedAt.UnixMilli(), triggeredAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, owner_id, symbol, condition, threshold_price, description, enabled, triggered, created_at, triggered_at
		FROM alerts ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var (
			a           model.Alert
			cond        string
			enabled     int
			triggered   int
			createdAt   int64
			triggeredAt sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Symbol, &cond, &a.ThresholdPrice, &a.Description,
			&enabled, &triggered, &createdAt, &triggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Condition = model.Condition(cond)
		a.Enabled = enabled != 0
		a.Triggered = triggered != 0
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		if triggeredAt.Valid {
			ts := time.UnixMilli(triggeredAt.Int64).UTC()
			a.TriggeredAt = &ts
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return alert.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := s.exec(ctx, `DELETE FROM alerts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if err := s.exec(ctx, `UPDATE alerts SET enabled = ? WHERE id = ?`, boolInt(enabled), id); err != nil {
		return fmt.Errorf("set enabled %s: %w", id, err)
	}
	return nil
}

// MarkTriggered records the trigger. An alert already triggered keeps its
// original trigger time.
func (s *SQLiteStore) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	err := s.exec(ctx, `UPDATE alerts SET triggered = 1, triggered_at = COALESCE(triggered_at, ?) WHERE id = ?`,
		at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark triggered %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) RecordQuotes(ctx context.Context, quotes []model.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quote_history
		(timestamp, symbol, price, previous_price, variation_percent, unit, source)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, q := range quotes {
		var prev sql.NullFloat64
		if q.PreviousPrice != nil {
			prev = sql.NullFloat64{Float64: *q.PreviousPrice, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, q.Timestamp.UnixMilli(), q.Symbol, q.Price, prev,
			q.VariationPercent, q.Unit, q.Source); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert quote %s: %w", q.Symbol, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) QuoteHistory(ctx context.Context, symbol string, since time.Time) (model.PriceSeries, error) {
	symbol = model.NormalizeSymbol(symbol)
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, price FROM quote_history
		WHERE symbol = ? AND timestamp >= ? ORDER BY timestamp, id`, symbol, since.UnixMilli())
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	series := model.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var ts int64
		var p model.PricePoint
		if err := rows.Scan(&ts, &p.Price); err != nil {
			return model.PriceSeries{}, fmt.Errorf("scan history: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts).UTC()
		series.Points = append(series.Points, p)
	}
	return series, rows.Err()
}

func (s *SQLiteStore) Close() error {
	log.Info().Msg("closing sqlite store")
	return s.db.Close()
}

var (
	_ alert.Store   = (*SQLiteStore)(nil)
	_ QuoteRecorder = (*SQLiteStore)(nil)
)
