package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/spacedown/spacedown/internal/model"
)

// HistoryDB provides SQLite-based storage for export run history.
// It manages connection pooling and provides methods for saving and
// querying past runs.
//
// Design decision: We use a single database file for all spaces rather
// than separate files per space. This simplifies cross-space queries
// ("what did I export last week?") and backup/restore operations.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, "spacedown.db")

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s (run an export first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Create tables
	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Export runs store one row per export attempt
	CREATE TABLE IF NOT EXISTS export_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		space_key TEXT NOT NULL,
		base_url TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		pages_exported INTEGER DEFAULT 0,
		attachments_downloaded INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_space ON export_runs(space_key);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON export_runs(started_at);

	-- Skipped items per run, kept relational so history listings do not
	-- need to parse the report JSON
	CREATE TABLE IF NOT EXISTS run_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		page_title TEXT,
		item TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON run_failures(run_id);
	CREATE INDEX IF NOT EXISTS idx_failures_kind ON run_failures(kind);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// Failure kinds stored in the run_failures table.
const (
	// FailureAttachment marks an attachment that could not be downloaded.
	FailureAttachment = "attachment"

	// FailureLink marks an inline link whose target was not exported.
	FailureLink = "link"

	// FailureConversion marks a page whose body conversion degraded.
	FailureConversion = "conversion"
)

// SaveRun stores one finished export run and its skipped items.
// Returns the database ID of the new run row.
func (hdb *HistoryDB) SaveRun(ctx context.Context, report *model.ExportReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	var finishedAt sql.NullString
	if !report.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: report.FinishedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	// The run row and its failure rows land together or not at all.
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO export_runs (space_key, base_url, output_dir, started_at, finished_at, status, pages_exported, attachments_downloaded, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.SpaceKey,
		report.BaseURL,
		report.OutputDir,
		report.StartedAt.UTC().Format(time.RFC3339),
		finishedAt,
		report.Status(),
		report.PagesExported,
		report.AttachmentsDownloaded,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert export run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	insertFailure := `
	INSERT INTO run_failures (run_id, kind, page_title, item, reason)
	VALUES (?, ?, ?, ?, ?)
	`
	for _, f := range report.AttachmentFailures {
		if _, err := tx.ExecContext(ctx, insertFailure, runID, FailureAttachment, f.PageTitle, f.Filename, f.Reason); err != nil {
			return 0, fmt.Errorf("failed to insert attachment failure: %w", err)
		}
	}
	for _, l := range report.UnresolvedLinks {
		if _, err := tx.ExecContext(ctx, insertFailure, runID, FailureLink, l.PageTitle, l.Target, "target not in export"); err != nil {
			return 0, fmt.Errorf("failed to insert unresolved link: %w", err)
		}
	}
	for _, n := range report.ConversionNotes {
		if _, err := tx.ExecContext(ctx, insertFailure, runID, FailureConversion, n.PageTitle, n.PageTitle, n.Note); err != nil {
			return 0, fmt.Errorf("failed to insert conversion note: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RunMetadata contains summary information about one stored run.
// This is used for displaying run history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// SpaceKey is the exported space.
	SpaceKey string

	// BaseURL is the Confluence site the space was fetched from.
	BaseURL string

	// OutputDir is where the export tree was written.
	OutputDir string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Status is completed, partial, or failed.
	Status string

	// PagesExported and AttachmentsDownloaded are the run totals.
	PagesExported         int
	AttachmentsDownloaded int

	// FailureCount is the number of skipped items recorded for the run.
	FailureCount int
}

// ListRuns retrieves run metadata, newest first. An empty spaceKey lists
// runs across all spaces.
func (hdb *HistoryDB) ListRuns(ctx context.Context, spaceKey string) ([]RunMetadata, error) {
	query := `
	SELECT id, space_key, base_url, output_dir, started_at, finished_at, status, pages_exported, attachments_downloaded,
		(SELECT COUNT(*) FROM run_failures WHERE run_id = export_runs.id)
	FROM export_runs
	WHERE 1=1
	`
	args := make([]interface{}, 0)

	if spaceKey != "" {
		query += " AND space_key = ?"
		args = append(args, spaceKey)
	}

	query += " ORDER BY started_at DESC, id DESC"

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var finishedAt sql.NullString

		err := rows.Scan(
			&meta.ID,
			&meta.SpaceKey,
			&meta.BaseURL,
			&meta.OutputDir,
			&startedAt,
			&finishedAt,
			&meta.Status,
			&meta.PagesExported,
			&meta.AttachmentsDownloaded,
			&meta.FailureCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		// SQLite may return timestamps in different formats depending on
		// version and configuration.
		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			meta.FinishedAt = parseTimestamp(finishedAt.String)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRunReport retrieves the full report of a run by its database ID.
// Returns nil without error when no such run exists.
func (hdb *HistoryDB) GetRunReport(ctx context.Context, id int64) (*model.ExportReport, error) {
	query := `
	SELECT report_json FROM export_runs
	WHERE id = ?
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.ExportReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetLatestRunReport retrieves the most recent report for a space.
// Returns nil without error when the space has never been exported.
func (hdb *HistoryDB) GetLatestRunReport(ctx context.Context, spaceKey string) (*model.ExportReport, error) {
	query := `
	SELECT report_json FROM export_runs
	WHERE space_key = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, spaceKey).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.ExportReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListSpaces returns every space key that has at least one stored run.
func (hdb *HistoryDB) ListSpaces(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT space_key FROM export_runs
	ORDER BY space_key
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []string
	for rows.Next() {
		var space string
		if err := rows.Scan(&space); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, space)
	}

	return spaces, rows.Err()
}

// RunFailure is one skipped item recorded for a stored run.
type RunFailure struct {
	// ID is the unique identifier of the failure row.
	ID int64

	// RunID references the run this failure belongs to.
	RunID int64

	// Kind is one of FailureAttachment, FailureLink, FailureConversion.
	Kind string

	// PageTitle identifies the page the item belonged to.
	PageTitle string

	// Item is the skipped filename, link target, or page.
	Item string

	// Reason is the human-readable cause.
	Reason string
}

// ListRunFailures retrieves the skipped items of one run.
func (hdb *HistoryDB) ListRunFailures(ctx context.Context, runID int64) ([]RunFailure, error) {
	query := `
	SELECT id, run_id, kind, page_title, item, reason
	FROM run_failures
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run failures: %w", err)
	}
	defer rows.Close()

	var results []RunFailure
	for rows.Next() {
		var f RunFailure
		var pageTitle, reason sql.NullString

		if err := rows.Scan(&f.ID, &f.RunID, &f.Kind, &pageTitle, &f.Item, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan run failure: %w", err)
		}
		f.PageTitle = pageTitle.String
		f.Reason = reason.String

		results = append(results, f)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
