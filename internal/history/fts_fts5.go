//go:build sqlite_fts5

package history

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS prompts_fts USING fts5(
			uuid UNINDEXED,
			prompt,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, promptText string) error {
	_, _ = tx.Exec(`DELETE FROM prompts_fts WHERE uuid = ?`, id)
	_, err := tx.Exec(`INSERT INTO prompts_fts (uuid, prompt) VALUES (?, ?)`, id, promptText)
	if err != nil {
		return fmt.Errorf("history: upsert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over prompts.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT uuid,
		       snippet(prompts_fts, 1, '<b>', '</b>', '...', 64)
		FROM prompts_fts
		WHERE prompts_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
