package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/shotdiff/internal/model"
)

// FileName is the database file inside the database directory.
const FileName = "shotdiff.db"

var (
	// ErrRunNotFound is returned when no run matches an ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
)

// HistoryDB stores run reports in SQLite.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		}
		mode = "rw"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close() //nolint:errcheck // open error takes precedence
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // open error takes precedence
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close() //nolint:errcheck // open error takes precedence
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := hdb.createTables(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // open error takes precedence
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		urls_file TEXT NOT NULL,
		trainer_dir TEXT NOT NULL,
		ssim_threshold REAL NOT NULL,
		execution_ok INTEGER NOT NULL,
		returncode INTEGER NOT NULL,
		total_ok INTEGER NOT NULL,
		total_warn INTEGER NOT NULL,
		total_fail INTEGER NOT NULL,
		total_no_baseline INTEGER NOT NULL,
		report_path TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	-- One row per URL checked in a run, in list order.
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		ssim REAL,
		mse REAL,
		reason TEXT,
		diff_path TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_url ON items(url);
	CREATE INDEX IF NOT EXISTS idx_items_run ON items(run_id);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores a run and its items in one transaction.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.RunReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is returned
		}
	}()

	t := report.Totals
	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, created_at, urls_file, trainer_dir, ssim_threshold,
		execution_ok, returncode, total_ok, total_warn, total_fail, total_no_baseline,
		report_path, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.CreatedAt.UTC().Format(storedTimeFormat),
		report.URLsFile,
		report.TrainerDir,
		report.SSIMThreshold,
		report.Execution.OK,
		report.Execution.ReturnCode,
		t.OK, t.Warn, t.Fail, t.NoBaseline,
		report.ReportPath,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO items (run_id, position, url, status, ssim, mse, reason, diff_path)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range report.Items {
		var ssim, mse sql.NullFloat64
		if item.Metrics != nil {
			ssim = sql.NullFloat64{Float64: item.Metrics.SSIM, Valid: true}
			mse = sql.NullFloat64{Float64: item.Metrics.MSE, Valid: true}
		}
		var diff sql.NullString
		if item.Diff != nil {
			diff = sql.NullString{String: *item.Diff, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, report.RunID, i, item.URL, string(item.Status), ssim, mse, item.Reason, diff); err != nil {
			return fmt.Errorf("failed to save item %s: %w", item.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunSummary is a run without its items.
type RunSummary struct {
	RunID         string
	CreatedAt     time.Time
	URLsFile      string
	SSIMThreshold float64
	ExecutionOK   bool
	Totals        model.Totals
	ReportPath    string
}

// ListRuns returns the most recent runs first. A limit of 0 or less
// returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT run_id, created_at, urls_file, ssim_threshold, execution_ok,
		total_ok, total_warn, total_fail, total_no_baseline, COALESCE(report_path, '')
	FROM runs
	ORDER BY created_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var created string
		if err := rows.Scan(&s.RunID, &created, &s.URLsFile, &s.SSIMThreshold, &s.ExecutionOK,
			&s.Totals.OK, &s.Totals.Warn, &s.Totals.Fail, &s.Totals.NoBaseline, &s.ReportPath); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.CreatedAt = parseTimestamp(created)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRun returns the full report of a run. id may be a unique prefix of
// the run ID.
func (h *HistoryDB) GetRun(ctx context.Context, id string) (*model.RunReport, error) {
	var doc, path string
	err := h.db.QueryRowContext(ctx,
		"SELECT report_json, COALESCE(report_path, '') FROM runs WHERE run_id = ?", id,
	).Scan(&doc, &path)
	if errors.Is(err, sql.ErrNoRows) {
		doc, path, err = h.findByPrefix(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(doc), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ReportPath = path
	return &report, nil
}

func (h *HistoryDB) findByPrefix(ctx context.Context, prefix string) (doc, path string, err error) {
	if prefix == "" {
		return "", "", fmt.Errorf("%w: empty ID", ErrRunNotFound)
	}
	rows, err := h.db.QueryContext(ctx, `
	SELECT report_json, COALESCE(report_path, '') FROM runs
	WHERE run_id LIKE ? ESCAPE '\'
	LIMIT 2
	`, escapeLike(prefix)+"%")
	if err != nil {
		return "", "", fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
		if n > 1 {
			return "", "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
		}
		if err := rows.Scan(&doc, &path); err != nil {
			return "", "", fmt.Errorf("failed to scan run: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return "", "", err
	}
	if n == 0 {
		return "", "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	}
	return doc, path, nil
}

// URLHistoryEntry is the verdict of one URL in one run.
type URLHistoryEntry struct {
	RunID     string
	CreatedAt time.Time
	Status    model.Status
	Metrics   *model.Metrics
	Reason    string
}

// URLHistory returns the verdicts of url, most recent first. A limit of 0
// or less returns all of them.
func (h *HistoryDB) URLHistory(ctx context.Context, url string, limit int) ([]URLHistoryEntry, error) {
	query := `
	SELECT i.run_id, r.created_at, i.status, i.ssim, i.mse, COALESCE(i.reason, '')
	FROM items i JOIN runs r ON r.run_id = i.run_id
	WHERE i.url = ?
	ORDER BY r.created_at DESC, i.position
	`
	args := []any{url}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query URL history: %w", err)
	}
	defer rows.Close()

	entries := make([]URLHistoryEntry, 0)
	for rows.Next() {
		var e URLHistoryEntry
		var created, status string
		var ssim, mse sql.NullFloat64
		if err := rows.Scan(&e.RunID, &created, &status, &ssim, &mse, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan URL history: %w", err)
		}
		e.CreatedAt = parseTimestamp(created)
		e.Status = model.Status(status)
		if ssim.Valid {
			e.Metrics = &model.Metrics{SSIM: ssim.Float64, MSE: mse.Float64}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneRuns deletes all but the keep most recent runs and returns how many
// were removed.
func (h *HistoryDB) PruneRuns(ctx context.Context, keep int) (removed int64, err error) {
	keep = max(keep, 0)
	const stale = "SELECT run_id FROM runs ORDER BY created_at DESC LIMIT -1 OFFSET ?"

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is returned
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM items WHERE run_id IN ("+stale+")", keep); err != nil {
		return 0, fmt.Errorf("failed to prune items: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id IN ("+stale+")", keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if removed, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return removed, nil
}

// escapeLike escapes the LIKE wildcards of s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// storedTimeFormat sorts lexically in time order for UTC values.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	storedTimeFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
