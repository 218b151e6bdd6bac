// Package ledger is a SQLite record of runs, persisted chapters, and LLM
// calls. It doubles as the checkpoint store used to resume a book.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/synopsis/internal/sink"
)

// FileName is the default ledger file inside the home directory.
const FileName = "ledger.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	book_id     TEXT NOT NULL,
	book_dir    TEXT NOT NULL,
	title       TEXT NOT NULL,
	author      TEXT NOT NULL,
	category    TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL,
	persisted   INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_book ON runs(book_id, started_at);

CREATE TABLE IF NOT EXISTS chapters (
	run_id          TEXT NOT NULL,
	book_id         TEXT NOT NULL,
	chapter_id      TEXT NOT NULL,
	ordinal         INTEGER NOT NULL,
	title           TEXT NOT NULL,
	category        TEXT NOT NULL,
	summary         TEXT NOT NULL,
	analysis        TEXT NOT NULL,
	extraction_json TEXT NOT NULL,
	context_json    TEXT NOT NULL,
	original_words  INTEGER NOT NULL,
	summary_words   INTEGER NOT NULL,
	target_words    INTEGER NOT NULL,
	segments        INTEGER NOT NULL,
	persisted_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, chapter_id)
);
CREATE INDEX IF NOT EXISTS idx_chapters_book ON chapters(book_id, chapter_id, persisted_at);

CREATE TABLE IF NOT EXISTS llm_calls (
	id            TEXT PRIMARY KEY,
	timestamp     TEXT NOT NULL,
	latency_ms    INTEGER NOT NULL,
	run_id        TEXT,
	book_id       TEXT,
	chapter_id    TEXT,
	stage         TEXT NOT NULL,
	prompt_key    TEXT NOT NULL,
	prompt_hash   TEXT,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	temperature   REAL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd      REAL NOT NULL,
	response      TEXT NOT NULL,
	cached        INTEGER NOT NULL,
	attempts      INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	error         TEXT
);
CREATE INDEX IF NOT EXISTS idx_llm_calls_run ON llm_calls(run_id, timestamp);
`

var pragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

// Ledger wraps the SQLite database. It is safe for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the ledger at path and applies the schema.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// One writer; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) Close() error {
	return l.db.Close()
}

// withTx runs fn in a transaction, retrying when the database is busy.
func (l *Ledger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	const maxRetries = 3
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var tx *sql.Tx
		tx, err = l.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusy(err) {
				continue
			}
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err = fn(tx); err != nil {
			tx.Rollback()
			if isBusy(err) {
				continue
			}
			return err
		}
		if err = tx.Commit(); err != nil {
			if isBusy(err) {
				continue
			}
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxRetries, err)
}

func isBusy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ sink.Sink       = (*Ledger)(nil)
	_ sink.RunTracker = (*Ledger)(nil)
)
