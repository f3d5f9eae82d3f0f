package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// SearchResult represents one prompt search hit.
type SearchResult struct {
	ID      string
	Snippet string
}

// Insert adds a new generation record and its FTS entry.
func (db *DB) Insert(rec models.HistoryRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO history (uuid, model_id, timestamp, prompt, compiled_params, output_path, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ModelID, ts, rec.Prompt, orDefault(rec.Params, "[]"), rec.Output, orDefault(rec.Metadata, "{}"))
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	if err := ftsUpsert(tx, rec.ID, rec.Prompt); err != nil {
		return err
	}
	return tx.Commit()
}

// ReadAll returns every record ordered by timestamp descending.
func (db *DB) ReadAll() ([]models.HistoryRecord, error) {
	rows, err := db.conn.Query(`
		SELECT uuid, model_id, timestamp, prompt, compiled_params, output_path, metadata
		FROM history ORDER BY timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("history: read all: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Get returns a single record by id.
func (db *DB) Get(id string) (*models.HistoryRecord, error) {
	row := db.conn.QueryRow(`
		SELECT uuid, model_id, timestamp, prompt, compiled_params, output_path, metadata
		FROM history WHERE uuid = ?
	`, id)
	var rec models.HistoryRecord
	err := row.Scan(&rec.ID, &rec.ModelID, &rec.Timestamp, &rec.Prompt, &rec.Params, &rec.Output, &rec.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get %s: %w", id, err)
	}
	return &rec, nil
}

// ListPage returns one page of records, newest first, with optional model
// filter and prompt substring search, plus the total matching count.
func (db *DB) ListPage(page, pageSize int, modelID, search string) ([]models.HistoryRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	where := " WHERE 1=1"
	var args []any
	if modelID != "" {
		where += " AND model_id = ?"
		args = append(args, modelID)
	}
	if search != "" {
		where += " AND prompt LIKE ?"
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM history`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history: count: %w", err)
	}

	query := `
		SELECT uuid, model_id, timestamp, prompt, compiled_params, output_path, metadata
		FROM history` + where + ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("history: list page: %w", err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// WriteBatch applies prompt updates (record id → new prompt text) in a single
// transaction. The batch is the unit of isolation: either every update lands
// or none do. An unknown record id fails the whole batch.
func (db *DB) WriteBatch(updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("history: begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`UPDATE history SET prompt = ? WHERE uuid = ?`)
	if err != nil {
		return fmt.Errorf("history: prepare batch: %w", err)
	}
	defer stmt.Close()

	for id, text := range updates {
		res, err := stmt.Exec(text, id)
		if err != nil {
			return fmt.Errorf("history: batch update %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("history: batch update %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("history: batch update %s: %w", id, apperr.ErrNotFound)
		}
		if err := ftsUpsert(tx, id, text); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit batch: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]models.HistoryRecord, error) {
	var out []models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.ModelID, &rec.Timestamp, &rec.Prompt, &rec.Params, &rec.Output, &rec.Metadata); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
