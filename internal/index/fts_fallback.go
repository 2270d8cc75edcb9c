//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE on artifacts.body.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error {
	// Body is already stored in the artifacts table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches artifact bodies with LIKE. Used when FTS5 is not compiled
// in; snippets are the first 200 characters of the body.
func (db *DB) Search(q SearchQuery) ([]SearchResult, error) {
	clause, args, ok := filterClause("a.", q.Filename, q.Idx, q.Model, q.Prompt)
	if !ok {
		return []SearchResult{}, nil
	}
	if clause != "" {
		clause = " AND " + clause
	}
	rows, err := db.conn.Query(`
		SELECT a.path, substr(a.body, 1, 200)
		FROM artifacts a
		WHERE a.body LIKE ?`+clause+`
		ORDER BY a.idx, a.model, a.prompt, a.ts, a.filename
		LIMIT ?
	`, append(append([]any{"%" + q.Text + "%"}, args...), q.limit())...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
