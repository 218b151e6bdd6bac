package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackzampolin/synopsis/internal/llmcall"
)

// RecordCall stores one LLM call.
func (l *Ledger) RecordCall(ctx context.Context, c *llmcall.Call) error {
	if c == nil {
		return nil
	}
	var temp sql.NullFloat64
	if c.Temperature != nil {
		temp = sql.NullFloat64{Float64: *c.Temperature, Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO llm_calls (id, timestamp, latency_ms, run_id, book_id, chapter_id, stage,
			prompt_key, prompt_hash, provider, model, temperature, input_tokens, output_tokens,
			cost_usd, response, cached, attempts, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, formatTime(c.Timestamp), c.LatencyMs, nullString(c.RunID), nullString(c.BookID),
		nullString(c.ChapterID), c.Stage, c.PromptKey, nullString(c.PromptHash), c.Provider, c.Model,
		temp, c.InputTokens, c.OutputTokens, c.CostUSD, c.Response, boolInt(c.Cached), c.Attempts,
		boolInt(c.Success), nullString(c.Error))
	if err != nil {
		return fmt.Errorf("record llm call: %w", err)
	}
	return nil
}

// Calls lists recorded calls matching filter, newest first.
func (l *Ledger) Calls(ctx context.Context, filter llmcall.QueryFilter) ([]llmcall.Call, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	add("run_id", filter.RunID)
	add("book_id", filter.BookID)
	add("chapter_id", filter.ChapterID)
	add("stage", filter.Stage)
	add("prompt_key", filter.PromptKey)
	if filter.Success != nil {
		where = append(where, "success = ?")
		args = append(args, boolInt(*filter.Success))
	}

	query := `SELECT id, timestamp, latency_ms, run_id, book_id, chapter_id, stage, prompt_key,
		prompt_hash, provider, model, temperature, input_tokens, output_tokens, cost_usd,
		response, cached, attempts, success, error FROM llm_calls`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query llm calls: %w", err)
	}
	defer rows.Close()

	var out []llmcall.Call
	for rows.Next() {
		var (
			c                                       llmcall.Call
			ts                                      string
			runID, bookID, chapterID, hash, errText sql.NullString
			temp                                    sql.NullFloat64
			cached, success                         int
		)
		if err := rows.Scan(&c.ID, &ts, &c.LatencyMs, &runID, &bookID, &chapterID, &c.Stage, &c.PromptKey,
			&hash, &c.Provider, &c.Model, &temp, &c.InputTokens, &c.OutputTokens, &c.CostUSD,
			&c.Response, &cached, &c.Attempts, &success, &errText); err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		c.Timestamp = parseTime(ts)
		c.RunID, c.BookID, c.ChapterID = runID.String, bookID.String, chapterID.String
		c.PromptHash, c.Error = hash.String, errText.String
		if temp.Valid {
			t := temp.Float64
			c.Temperature = &t
		}
		c.Cached, c.Success = cached == 1, success == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ llmcall.Sink = (*Ledger)(nil)
