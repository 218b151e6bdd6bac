package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackzampolin/synopsis/internal/report"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunHalted    = "halted"
	RunCancelled = "cancelled"
)

// Run is one row of run history.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	BookID     string    `json:"book_id" yaml:"book_id"`
	BookDir    string    `json:"book_dir" yaml:"book_dir"`
	Title      string    `json:"title" yaml:"title"`
	Author     string    `json:"author" yaml:"author"`
	Category   string    `json:"category" yaml:"category"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status     string    `json:"status" yaml:"status"`
	Persisted  int       `json:"persisted" yaml:"persisted"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// StartRun records a run as running.
func (l *Ledger) StartRun(ctx context.Context, run *report.Book) error {
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, book_id, book_dir, title, author, category, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.BookID, run.Dir, run.Title, run.Author, run.Category, formatTime(started), RunRunning)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// FinishRun stores the final tallies. It runs even if ctx is already
// cancelled so interrupted runs are still closed out.
func (l *Ledger) FinishRun(ctx context.Context, run *report.Book) error {
	ctx = context.WithoutCancel(ctx)
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, persisted = ?, skipped = ?, failed = ?, error = ?
		WHERE id = ?`,
		formatTime(finished), RunStatus(run), run.Persisted, run.Skipped, run.Failed, nullString(run.Error), run.RunID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RunStatus derives the stored status from a finished report.
func RunStatus(run *report.Book) string {
	switch {
	case run.Halted && isCancellation(run.Error):
		return RunCancelled
	case run.Halted:
		return RunHalted
	default:
		return RunCompleted
	}
}

func isCancellation(msg string) bool {
	return msg == "context canceled" || msg == "context deadline exceeded"
}

// Runs lists runs newest first. An empty bookID lists every book.
func (l *Ledger) Runs(ctx context.Context, bookID string, limit int) ([]Run, error) {
	query := `SELECT id, book_id, book_dir, title, author, category, started_at, finished_at,
		status, persisted, skipped, failed, error FROM runs`
	var args []any
	if bookID != "" {
		query += ` WHERE book_id = ?`
		args = append(args, bookID)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                  Run
			started            string
			finished, errorMsg sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.BookID, &r.BookDir, &r.Title, &r.Author, &r.Category, &started, &finished,
			&r.Status, &r.Persisted, &r.Skipped, &r.Failed, &errorMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		r.Error = errorMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}
