package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackzampolin/synopsis/internal/book"
)

// Chapter is a persisted chapter as stored in the ledger.
type Chapter struct {
	RunID         string    `json:"run_id" yaml:"run_id"`
	BookID        string    `json:"book_id" yaml:"book_id"`
	ChapterID     string    `json:"chapter_id" yaml:"chapter_id"`
	Ordinal       int       `json:"ordinal" yaml:"ordinal"`
	Title         string    `json:"title" yaml:"title"`
	Category      string    `json:"category" yaml:"category"`
	Summary       string    `json:"summary" yaml:"summary"`
	Analysis      string    `json:"analysis" yaml:"analysis"`
	OriginalWords int       `json:"original_words" yaml:"original_words"`
	SummaryWords  int       `json:"summary_words" yaml:"summary_words"`
	TargetWords   int       `json:"target_words" yaml:"target_words"`
	Segments      int       `json:"segments" yaml:"segments"`
	PersistedAt   time.Time `json:"persisted_at" yaml:"persisted_at"`
}

// PersistChapter stores a chapter together with the context produced after
// it, which is what Checkpoints hands back on resume.
func (l *Ledger) PersistChapter(ctx context.Context, b *book.Book, r book.ChapterResult) error {
	extraction, err := json.Marshal(r.Extraction)
	if err != nil {
		return fmt.Errorf("encode extraction: %w", err)
	}
	rolling, err := json.Marshal(r.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO chapters (run_id, book_id, chapter_id, ordinal, title, category,
				summary, analysis, extraction_json, context_json,
				original_words, summary_words, target_words, segments, persisted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, b.ID, r.Chapter.ID, r.Chapter.Ordinal, r.Chapter.Label(), string(r.Category),
			r.Summary, r.Analysis, string(extraction), string(rolling),
			r.OriginalWords, r.SummaryWords, r.TargetWords, r.Segments, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("record chapter %s: %w", r.Chapter.ID, err)
		}
		return nil
	})
}

// RetractChapter removes the row PersistChapter wrote for r's run, so a
// chapter another sink rejected is not offered as a resume checkpoint.
func (l *Ledger) RetractChapter(ctx context.Context, b *book.Book, r book.ChapterResult) error {
	return l.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM chapters WHERE run_id = ? AND book_id = ? AND chapter_id = ?`,
			r.RunID, b.ID, r.Chapter.ID)
		if err != nil {
			return fmt.Errorf("retract chapter %s: %w", r.Chapter.ID, err)
		}
		return nil
	})
}

// PersistContext is a no-op: the final context is already stored with the
// last persisted chapter.
func (l *Ledger) PersistContext(context.Context, *book.Book, book.RollingContext) error {
	return nil
}

// Checkpoints returns, for each chapter of b persisted under b's current
// category, the rolling context produced by its most recent persist.
func (l *Ledger) Checkpoints(ctx context.Context, b *book.Book) (map[string]book.RollingContext, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT chapter_id, context_json FROM chapters
		WHERE book_id = ? AND category = ?
		ORDER BY persisted_at ASC, rowid ASC`, b.ID, string(b.Category))
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]book.RollingContext)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		rc, err := book.ParseRollingContext(b.Category, []byte(raw))
		if err != nil {
			// A checkpoint that no longer parses is treated as missing.
			delete(out, id)
			continue
		}
		out[id] = rc
	}
	return out, rows.Err()
}

// Chapters lists the chapters persisted by a run in reading order.
func (l *Ledger) Chapters(ctx context.Context, runID string) ([]Chapter, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, book_id, chapter_id, ordinal, title, category, summary, analysis,
			original_words, summary_words, target_words, segments, persisted_at
		FROM chapters WHERE run_id = ? ORDER BY ordinal ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var out []Chapter
	for rows.Next() {
		var (
			c         Chapter
			persisted string
		)
		if err := rows.Scan(&c.RunID, &c.BookID, &c.ChapterID, &c.Ordinal, &c.Title, &c.Category,
			&c.Summary, &c.Analysis, &c.OriginalWords, &c.SummaryWords, &c.TargetWords, &c.Segments,
			&persisted); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		c.PersistedAt = parseTime(persisted)
		out = append(out, c)
	}
	return out, rows.Err()
}
