package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL so API reads do not block the reporter's inserts
	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_cache_size=10000&_foreign_keys=ON", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS load_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		endpoint TEXT NOT NULL,
		workers INTEGER NOT NULL,
		report_interval_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_load_runs_started ON load_runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS report_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		rps REAL NOT NULL,
		total INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES load_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_report_samples_run ON report_samples(run_id, timestamp_ms);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run record.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *LoadRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO load_runs (id, started_at, endpoint, workers, report_interval_ms)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Endpoint, run.Workers, run.ReportIntervalMs)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run by id, or nil if it does not exist.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*LoadRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, endpoint, workers, report_interval_ms
		FROM load_runs WHERE id = ?
	`, id)

	var run LoadRun
	err := row.Scan(&run.ID, &run.StartedAt, &run.Endpoint, &run.Workers, &run.ReportIntervalMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// InsertSample appends one report sample to a run.
func (s *SQLiteStorage) InsertSample(ctx context.Context, runID string, sample Sample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_samples (run_id, timestamp_ms, rps, total, errors)
		VALUES (?, ?, ?, ?, ?)
	`, runID, sample.TimestampMs, sample.RPS, sample.Total, sample.Errors)
	if err != nil {
		return fmt.Errorf("failed to insert sample for run %s: %w", runID, err)
	}
	return nil
}

// ListSamples returns a page of a run's samples in time order.
func (s *SQLiteStorage) ListSamples(ctx context.Context, runID string, limit, offset int) (*PaginatedSamples, error) {
	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM report_samples WHERE run_id = ?", runID).Scan(&total)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ms, rps, total, errors
		FROM report_samples
		WHERE run_id = ?
		ORDER BY timestamp_ms, id
		LIMIT ? OFFSET ?
	`, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.TimestampMs, &sample.RPS, &sample.Total, &sample.Errors); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &PaginatedSamples{
		Samples: samples,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}
