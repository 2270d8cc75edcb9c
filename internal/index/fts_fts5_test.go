//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM artifacts_fts`).Scan(&count); err != nil {
		t.Fatalf("artifacts_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	r := row("5/m/p/1.000000/gen_note.txt", 5, "m", "p", "1.000000", "gen_note.txt", "f1")
	if err := db.UpsertArtifact(r, "Patient reports intermittent dyspnea on exertion."); err != nil {
		t.Fatalf("UpsertArtifact: %v", err)
	}

	results, err := db.Search(SearchQuery{Text: "dyspnea", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != r.Path {
		t.Errorf("path = %q", results[0].Path)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	r := row("5/m/p/1.000000/gen_note.txt", 5, "m", "p", "1.000000", "gen_note.txt", "g")
	_ = db.UpsertArtifact(r, "vanishing content")
	_ = db.DeleteArtifact(r.Path)

	results, _ := db.Search(SearchQuery{Text: "vanishing", Limit: 10})
	for _, res := range results {
		if res.Path == r.Path {
			t.Error("deleted artifact still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	r := row("5/m/p/1.000000/gen_note.txt", 5, "m", "p", "1.000000", "gen_note.txt", "1")
	_ = db.UpsertArtifact(r, "original text")
	r.Checksum = "2"
	_ = db.UpsertArtifact(r, "replacement text")

	results, _ := db.Search(SearchQuery{Text: "original", Limit: 10})
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search(SearchQuery{Text: "replacement", Limit: 10})
	if len(results) != 1 || results[0].Path != r.Path {
		t.Errorf("FTS not updated: %+v", results)
	}
}
