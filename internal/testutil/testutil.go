// Package testutil provides shared test helpers for setting up result trees
// and databases.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notecheck/internal/index"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notecheck-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestResults creates a temporary results root and a sibling standards
// directory. Neither exists on disk until written to.
func TestResults(t *testing.T) (root, standardsDir string) {
	t.Helper()
	base := t.TempDir()
	return filepath.Join(base, "results"), filepath.Join(base, "standards")
}

// WriteArtifact writes content at root/rel, creating parent directories,
// and returns the absolute path.
func WriteArtifact(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// EvalReport is a one-record eval_report.json body scored against std with
// every rouge metric equal to score.
func EvalReport(t *testing.T, std string, score float64) string {
	t.Helper()
	triple := map[string]float64{"p": score, "r": score, "f": score}
	data, err := json.Marshal([]map[string]any{{
		"standard_note_path": std,
		"cleaned":            false,
		"rouge-1":            triple,
		"rouge-2":            triple,
		"rouge-l":            triple,
	}})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
