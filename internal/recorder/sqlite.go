package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"compgrid/internal/model"
)

// SQLiteRecorder persists grid runs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets the HTTP API read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS grid_runs (
			id         TEXT PRIMARY KEY,
			grid       TEXT NOT NULL,
			target     TEXT NOT NULL,
			anchor     TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			delivered  INTEGER NOT NULL,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_grid ON grid_runs(grid, target, anchor)`,

		`CREATE TABLE IF NOT EXISTS grid_cells (
			run_id      TEXT NOT NULL REFERENCES grid_runs(id),
			row_idx     INTEGER NOT NULL,
			col_idx     INTEGER NOT NULL,
			row_name    TEXT NOT NULL,
			column_name TEXT NOT NULL,
			kind        TEXT NOT NULL,
			raw         REAL,
			display     TEXT,
			status      TEXT,
			tone        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cells_run ON grid_cells(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run and every cell of its result. An empty ID is
// filled with a new UUID.
func (r *SQLiteRecorder) RecordRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO grid_runs
		(id, grid, target, anchor, created_at, delivered, error)
		VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.Grid, run.Target, run.Anchor.String(),
		run.CreatedAt.Unix(), run.Delivered, run.Error,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if g := run.Result; g != nil {
		stmt, err := tx.Prepare(`INSERT INTO grid_cells
			(run_id, row_idx, col_idx, row_name, column_name, kind, raw, display, status, tone)
			VALUES (?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare cells: %w", err)
		}
		defer stmt.Close()
		for i, row := range g.Rows {
			for j, cell := range row.Cells {
				var raw sql.NullFloat64
				if cell.Kind != model.ColumnSparkline {
					raw = sql.NullFloat64{Float64: cell.Raw.Value, Valid: cell.Raw.Valid}
				}
				if _, err := stmt.Exec(run.ID, i, j, row.Spec.Name, g.Columns[j].Name,
					string(cell.Kind), raw, cell.Display, string(cell.Status), string(cell.Tone)); err != nil {
					return fmt.Errorf("insert cell (%d,%d): %w", i, j, err)
				}
			}
		}
	}
	return tx.Commit()
}

// LastDelivered returns the latest anchor delivered for grid to target.
func (r *SQLiteRecorder) LastDelivered(grid, target string) (model.Date, bool, error) {
	var anchor string
	err := r.db.QueryRow(`SELECT anchor FROM grid_runs
		WHERE grid = ? AND target = ? AND delivered = 1
		ORDER BY anchor DESC LIMIT 1`, grid, target).Scan(&anchor)
	if err == sql.ErrNoRows {
		return model.Date{}, false, nil
	}
	if err != nil {
		return model.Date{}, false, fmt.Errorf("query last delivered: %w", err)
	}
	d, err := model.ParseDate(anchor)
	if err != nil {
		return model.Date{}, false, fmt.Errorf("stored anchor %q: %w", anchor, err)
	}
	return d, true, nil
}

// RecentRuns lists the latest runs, newest first, without their cells.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]Run, error) {
	rows, err := r.db.Query(`SELECT id, grid, target, anchor, created_at, delivered, COALESCE(error, '')
		FROM grid_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			anchor  string
			created int64
		)
		if err := rows.Scan(&run.ID, &run.Grid, &run.Target, &anchor, &created, &run.Delivered, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.Anchor, err = model.ParseDate(anchor); err != nil {
			return nil, fmt.Errorf("stored anchor %q: %w", anchor, err)
		}
		run.CreatedAt = time.Unix(created, 0)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CellCount returns the number of cells stored for a run.
func (r *SQLiteRecorder) CellCount(runID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM grid_cells WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
