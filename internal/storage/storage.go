// Package storage provides a SQLite journal of screening runs and fired alerts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/volspike/internal/models"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/volspike/journal.db. maxRuns bounds the
// number of screening runs kept per exchange by RotateRuns.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "volspike", "journal.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxRuns: maxRuns}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_runs (
			id              TEXT PRIMARY KEY,
			exchange        TEXT NOT NULL,
			as_of           TEXT NOT NULL,
			window_days     INTEGER NOT NULL,
			cv_threshold    REAL NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			run_id          TEXT NOT NULL REFERENCES screening_runs(id) ON DELETE CASCADE,
			code            TEXT NOT NULL,
			name            TEXT,
			exchange        TEXT NOT NULL,
			date            TEXT NOT NULL,
			closing_price   REAL NOT NULL,
			trade_volume    REAL NOT NULL,
			baseline_volume REAL NOT NULL,
			sample_stddev   REAL NOT NULL,
			cv              REAL NOT NULL,
			PRIMARY KEY (run_id, code)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id                 TEXT PRIMARY KEY,
			session_date       TEXT NOT NULL,
			symbol             TEXT NOT NULL,
			exchange           TEXT NOT NULL,
			name               TEXT,
			baseline_volume    REAL NOT NULL,
			projected_volume   REAL NOT NULL,
			accumulated_volume REAL NOT NULL,
			session_fraction   REAL NOT NULL,
			current_price      REAL NOT NULL,
			price_available    INTEGER NOT NULL DEFAULT 0,
			previous_close     REAL NOT NULL,
			detected_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_exchange_created ON screening_runs(exchange, created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_session_symbol ON alerts(session_date, symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordScreening stores a run and its candidates in one transaction.
func (s *Storage) RecordScreening(ctx context.Context, run models.ScreeningRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO screening_runs (id, exchange, as_of, window_days, cv_threshold, created_at)
		VALUES (?,?,?,?,?,?)`,
		run.ID, string(run.Exchange), run.AsOf, run.Window, run.CVThreshold, run.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert screening run: %w", err)
	}

	for _, c := range run.Candidates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO candidates
				(run_id, code, name, exchange, date, closing_price, trade_volume,
				 baseline_volume, sample_stddev, cv)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			run.ID, c.Symbol, c.Name, string(c.Exchange), c.Date, c.ClosingPrice, c.TradeVolume,
			c.BaselineVolume, c.SampleStdDev, c.CV,
		); err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit screening run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent screening run for exchange with its candidates.
func (s *Storage) LatestRun(ctx context.Context, exchange models.Exchange) (*models.ScreeningRun, error) {
	var run models.ScreeningRun
	var ex string
	var createdAtNano int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, exchange, as_of, window_days, cv_threshold, created_at
		FROM screening_runs WHERE exchange = ?
		ORDER BY created_at DESC LIMIT 1`, string(exchange),
	).Scan(&run.ID, &ex, &run.AsOf, &run.Window, &run.CVThreshold, &createdAtNano)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("screening run for %s: %w", exchange, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query screening run: %w", err)
	}
	run.Exchange = models.Exchange(ex)
	run.CreatedAt = time.Unix(0, createdAtNano)

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, exchange, date, closing_price, trade_volume,
		       baseline_volume, sample_stddev, cv
		FROM candidates WHERE run_id = ? ORDER BY code`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	run.Candidates = []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		var cex string
		if err := rows.Scan(&c.Symbol, &c.Name, &cex, &c.Date, &c.ClosingPrice, &c.TradeVolume,
			&c.BaselineVolume, &c.SampleStdDev, &c.CV); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		c.Exchange = models.Exchange(cex)
		run.Candidates = append(run.Candidates, c)
	}
	return &run, rows.Err()
}

// AddAlert journals a fired alert. A second alert for the same symbol and
// session is ignored.
func (s *Storage) AddAlert(ctx context.Context, alert models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alerts
			(id, session_date, symbol, exchange, name, baseline_volume, projected_volume,
			 accumulated_volume, session_fraction, current_price, price_available,
			 previous_close, detected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		alert.ID, alert.SessionDate, alert.Symbol, string(alert.Exchange), alert.Name,
		alert.BaselineVolume, alert.ProjectedVolume, alert.AccumulatedVolume, alert.SessionFraction,
		alert.CurrentPrice, boolToInt(alert.PriceAvailable), alert.PreviousClose,
		alert.DetectedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// Notify lets the journal act as an alert sink.
func (s *Storage) Notify(ctx context.Context, alert models.Alert) error {
	return s.AddAlert(ctx, alert)
}

// AlertsForSession returns the alerts fired in a session, oldest first.
func (s *Storage) AlertsForSession(ctx context.Context, sessionDate string) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_date, symbol, exchange, name, baseline_volume, projected_volume,
		       accumulated_volume, session_fraction, current_price, price_available,
		       previous_close, detected_at
		FROM alerts WHERE session_date = ? ORDER BY detected_at, symbol`, sessionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var ex string
		var priceAvailable int
		var detectedAtNano int64

		err := rows.Scan(
			&a.ID, &a.SessionDate, &a.Symbol, &ex, &a.Name,
			&a.BaselineVolume, &a.ProjectedVolume, &a.AccumulatedVolume, &a.SessionFraction,
			&a.CurrentPrice, &priceAvailable, &a.PreviousClose, &detectedAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		a.Exchange = models.Exchange(ex)
		a.PriceAvailable = priceAvailable != 0
		a.DetectedAt = time.Unix(0, detectedAtNano)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// RotateRuns keeps at most maxRuns newest screening runs per exchange.
// Cascading deletes remove their candidates.
func (s *Storage) RotateRuns(ctx context.Context) error {
	if s.maxRuns <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM screening_runs WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY exchange ORDER BY created_at DESC) AS rn
				FROM screening_runs
			) WHERE rn > ?
		)`, s.maxRuns)
	if err != nil {
		return fmt.Errorf("failed to rotate screening runs: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
