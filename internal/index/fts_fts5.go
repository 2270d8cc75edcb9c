//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS artifacts_fts USING fts5(
			path UNINDEXED,
			filename,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, filename, body string) error {
	_, _ = tx.Exec(`DELETE FROM artifacts_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO artifacts_fts (path, filename, body) VALUES (?, ?, ?)`, path, filename, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM artifacts_fts WHERE path = ?`, path)
}

// Search runs an FTS5 match over artifact bodies and returns the best
// ranked paths with highlighted snippets.
func (db *DB) Search(q SearchQuery) ([]SearchResult, error) {
	clause, args, ok := filterClause("a.", q.Filename, q.Idx, q.Model, q.Prompt)
	if !ok {
		return []SearchResult{}, nil
	}
	if clause != "" {
		clause = " AND " + clause
	}
	rows, err := db.conn.Query(`
		SELECT artifacts_fts.path,
		       snippet(artifacts_fts, 2, '<b>', '</b>', '...', 64)
		FROM artifacts_fts
		JOIN artifacts a ON a.path = artifacts_fts.path
		WHERE artifacts_fts MATCH ?`+clause+`
		ORDER BY rank
		LIMIT ?
	`, append(append([]any{q.Text}, args...), q.limit())...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
