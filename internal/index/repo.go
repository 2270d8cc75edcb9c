package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/apperr"
)

// ArtifactRow represents a row in the artifacts table. Path is relative to
// the results root and slash-separated.
type ArtifactRow struct {
	Path      string
	Idx       int
	Model     string
	Prompt    string
	Timestamp string
	Filename  string
	Checksum  string
	Size      int64
	UpdatedAt time.Time
}

// Address returns the decoded address of the row under root.
func (r ArtifactRow) Address(root string) address.Address {
	return address.Address{Root: root, Idx: r.Idx, Model: r.Model, Prompt: r.Prompt, Timestamp: r.Timestamp, Filename: r.Filename}
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// Stats summarizes the catalog.
type Stats struct {
	Artifacts int `json:"artifacts"`
	Cases     int `json:"cases"`
	Runs      int `json:"runs"`
}

// UpsertArtifact inserts or replaces an artifact and its FTS entry within a
// transaction.
func (db *DB) UpsertArtifact(a ArtifactRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	ts, _ := strconv.ParseFloat(a.Timestamp, 64)
	_, err = tx.Exec(`
		INSERT INTO artifacts (path, idx, model, prompt, timestamp, ts, filename, checksum, size, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			size       = excluded.size,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, a.Path, a.Idx, a.Model, a.Prompt, a.Timestamp, ts, a.Filename, a.Checksum, a.Size, body, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert artifact: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, a.Path, a.Filename, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteArtifact removes an artifact and its FTS entry.
func (db *DB) DeleteArtifact(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM artifacts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete artifact: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for an artifact, or empty string
// if it is not cataloged.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM artifacts WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const artifactColumns = `path, idx, model, prompt, timestamp, filename, checksum, size, updated_at`

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan search result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanArtifact(s interface{ Scan(...any) error }) (ArtifactRow, error) {
	var r ArtifactRow
	err := s.Scan(&r.Path, &r.Idx, &r.Model, &r.Prompt, &r.Timestamp, &r.Filename, &r.Checksum, &r.Size, &r.UpdatedAt)
	return r, err
}

// GetArtifact returns the catalog row for path.
func (db *DB) GetArtifact(path string) (*ArtifactRow, error) {
	r, err := scanArtifact(db.conn.QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: artifact %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get artifact: %w", err)
	}
	return &r, nil
}

// ListArtifacts returns one page of matching artifacts ordered by address,
// with the total match count.
func (db *DB) ListArtifacts(q ListQuery) ([]ArtifactRow, int, error) {
	clause, args, ok := filterClause("", q.Filename, q.Idx, q.Model, q.Prompt)
	if !ok {
		return []ArtifactRow{}, 0, nil
	}
	if clause != "" {
		clause = " WHERE " + clause
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM artifacts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count artifacts: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`SELECT `+artifactColumns+` FROM artifacts`+clause+
		` ORDER BY idx, model, prompt, ts, filename LIMIT ? OFFSET ?`, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list artifacts: %w", err)
	}
	defer rows.Close()

	out := []ArtifactRow{}
	for rows.Next() {
		r, err := scanArtifact(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// filterClause renders the non-wildcard filters as an AND-joined condition
// on columns prefixed with alias. ok is false when a filter is an empty set
// and nothing can match.
func filterClause(alias, filename string, idx, model, prompt address.Filter) (clause string, args []any, ok bool) {
	var where []string
	if filename != "" {
		where = append(where, alias+"filename = ?")
		args = append(args, filename)
	}
	for _, f := range []struct {
		col    string
		filter address.Filter
	}{{"idx", idx}, {"model", model}, {"prompt", prompt}} {
		if f.filter.Kind() == address.Wildcard {
			continue
		}
		vals := f.filter.Values()
		if len(vals) == 0 {
			return "", nil, false
		}
		where = append(where, alias+f.col+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(vals)), ",")+")")
		for _, v := range vals {
			args = append(args, v)
		}
	}
	return strings.Join(where, " AND "), args, true
}

// Stats counts artifacts, distinct cases and distinct runs.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`
		SELECT count(*),
		       count(DISTINCT idx),
		       count(DISTINCT idx || '/' || model || '/' || prompt || '/' || timestamp)
		FROM artifacts
	`).Scan(&s.Artifacts, &s.Cases, &s.Runs)
	if err != nil {
		return Stats{}, fmt.Errorf("index: stats: %w", err)
	}
	return s, nil
}

// AllChecksums returns the checksum of every cataloged artifact keyed by
// path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM artifacts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
