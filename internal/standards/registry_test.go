package standards

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notecheck/internal/apperr"
)

func TestSetGetAndReference(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "standards"))

	if err := r.Set(42, "/a/b.txt"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := r.Get(42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "/a/b.txt" {
		t.Errorf("Get = %q", got)
	}

	if err := r.Set(42, Reference); err != nil {
		t.Fatalf("Set reference: %v", err)
	}
	if _, err := r.Get(42); !errors.Is(err, ErrStandardNotFound) {
		t.Errorf("Get after reference = %v, want ErrStandardNotFound", err)
	}
	if !errors.Is(ErrStandardNotFound, apperr.ErrNotFound) {
		t.Error("ErrStandardNotFound should wrap ErrNotFound")
	}
	if _, err := r.GetOrDefault(42, nil); !errors.Is(err, ErrStandardNotFound) {
		t.Errorf("GetOrDefault without fallback = %v", err)
	}
	res, err := r.GetOrDefault(42, map[int]string{42: "reference note"})
	if err != nil {
		t.Fatalf("GetOrDefault: %v", err)
	}
	if res.Path != Reference || res.Content != "reference note" {
		t.Errorf("GetOrDefault = %+v", res)
	}
}

func TestReplaceKeepsSinglePointer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "standards")
	r := New(dir)
	for _, src := range []string{"x/1.txt", "x/2.txt", "x/3.txt"} {
		if err := r.Set(5, src); err != nil {
			t.Fatalf("Set %s: %v", src, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	got, _ := r.Get(5)
	if got != "x/3.txt" {
		t.Errorf("Get = %q", got)
	}
}

func TestGetOrDefaultReadsTarget(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "results", "7", "modelA", "g1", "1000.0", "gen_note.txt")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("X"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(filepath.Join(base, "standards"))
	if err := r.Set(7, src); err != nil {
		t.Fatal(err)
	}
	res, err := r.GetOrDefault(7, map[int]string{7: "ignored"})
	if err != nil {
		t.Fatalf("GetOrDefault: %v", err)
	}
	if res.Content != "X" || res.Path != src {
		t.Errorf("res = %+v", res)
	}

	if err := os.Remove(src); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetOrDefault(7, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("dangling pointer error = %v", err)
	}
}

func TestResolve(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "standards"))
	got, err := r.Resolve(1)
	if err != nil || got != Reference {
		t.Errorf("Resolve unset = %q, %v", got, err)
	}
	_ = r.Set(1, "p.txt")
	got, _ = r.Resolve(1)
	if got != "p.txt" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestListAndInitFromResults(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "results")
	for _, idx := range []string{"3", "9"} {
		p := filepath.Join(root, idx, "full_note.txt")
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "11"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := New(filepath.Join(base, "standards"))
	n, err := r.InitFromResults(root)
	if err != nil {
		t.Fatalf("InitFromResults: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
	all, err := r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[3] != filepath.Join(root, "3", "full_note.txt") {
		t.Errorf("List = %v", all)
	}
}

func TestSetRejectsNegativeIdx(t *testing.T) {
	r := New(t.TempDir())
	if err := r.Set(-1, "x"); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("error = %v", err)
	}
}

func TestSourceFallsBack(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "standards"))
	src := r.WithFallback(map[int]string{1: "dataset note"})
	res, err := src.Standard(1)
	if err != nil || res.Path != Reference || res.Content != "dataset note" {
		t.Errorf("Standard(1) = %+v, %v", res, err)
	}
	if _, err := src.Standard(2); !errors.Is(err, ErrStandardNotFound) {
		t.Errorf("Standard(2) error = %v", err)
	}
}
