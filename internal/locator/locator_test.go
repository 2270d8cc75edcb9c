package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/apperr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func seedTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "results")
	for _, rel := range []string{
		"7/modelA/g1/1000.0/gen_note.txt",
		"7/modelA/g1/2000.0/gen_note.txt",
		"7/modelA/g1/2000.0/gen_note1.txt",
		"7/modelA/g2/1500.0/gen_note.txt",
		"7/modelB/g1/1100.0/gen_note.txt",
		"8/modelA/g1/1200.0/gen_note.txt",
		"8/modelA/g1/notatimestamp/gen_note.txt",
		"8/modelA/gen_note.txt",
		"7/full_note.txt",
	} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(rel)), rel)
	}
	return root
}

func TestLocateFilters(t *testing.T) {
	root := seedTree(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "single literal per field",
			query: Query{Root: root, Filename: "gen_note.txt", Idx: address.Only("7"), Model: address.Only("modelA"), Prompt: address.Only("g1")},
			want:  []string{"7/modelA/g1/1000.0", "7/modelA/g1/2000.0"},
		},
		{
			name:  "wildcards",
			query: Query{Root: root, Filename: "gen_note.txt", Idx: address.All(), Model: address.All(), Prompt: address.All()},
			want:  []string{"7/modelA/g1/1000.0", "7/modelA/g1/2000.0", "7/modelA/g2/1500.0", "7/modelB/g1/1100.0", "8/modelA/g1/1200.0"},
		},
		{
			name:  "sets",
			query: Query{Root: root, Filename: "gen_note.txt", Idx: address.Idxs(7, 8), Model: address.AnyOf("modelB", "modelA"), Prompt: address.AnyOf("g2")},
			want:  []string{"7/modelA/g2/1500.0"},
		},
		{
			name:  "suffixed filename only",
			query: Query{Root: root, Filename: "gen_note1.txt", Idx: address.All(), Model: address.All(), Prompt: address.All()},
			want:  []string{"7/modelA/g1/2000.0"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Locate(ctx, tc.query)
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			Sort(got)
			var dirs []string
			for _, a := range got {
				if a.Root != root {
					t.Errorf("root = %q, want %q", a.Root, root)
				}
				rel := a.Dir()[len(root)+1:]
				dirs = append(dirs, rel)
			}
			if diff := cmp.Diff(tc.want, dirs); diff != "" {
				t.Errorf("located dirs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocateVersions(t *testing.T) {
	root := seedTree(t)
	writeFile(t, filepath.Join(root, "7", "modelA", "g1", "2000.0", "gen_note0.txt"), "x")
	got, err := Locate(context.Background(), Query{
		Root: root, Filename: "gen_note.txt", Versions: true,
		Idx: address.Only("7"), Model: address.Only("modelA"), Prompt: address.Only("g1"),
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	var rels []string
	for _, a := range got {
		rels = append(rels, a.Timestamp+"/"+a.Filename)
	}
	slices.Sort(rels)
	want := []string{"1000.0/gen_note.txt", "2000.0/gen_note.txt", "2000.0/gen_note1.txt"}
	if diff := cmp.Diff(want, rels); diff != "" {
		t.Errorf("located versions (-want +got):\n%s", diff)
	}
}

func TestLocateMissingRoot(t *testing.T) {
	got, err := Locate(context.Background(), Query{
		Root: filepath.Join(t.TempDir(), "absent"), Filename: "gen_note.txt",
		Idx: address.All(), Model: address.All(), Prompt: address.All(),
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestLocateBadFilter(t *testing.T) {
	_, err := Locate(context.Background(), Query{Root: t.TempDir(), Filename: "gen_note.txt", Idx: address.Only("x")})
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("error = %v", err)
	}
}

func TestSortNumericTimestamp(t *testing.T) {
	addrs := []address.Address{
		{Idx: 1, Model: "m", Prompt: "g1", Timestamp: "900.5"},
		{Idx: 1, Model: "m", Prompt: "g1", Timestamp: "10000.0"},
		{Idx: 0, Model: "m", Prompt: "g1", Timestamp: "5.0"},
	}
	Sort(addrs)
	got := []string{addrs[0].Timestamp, addrs[1].Timestamp, addrs[2].Timestamp}
	if diff := cmp.Diff([]string{"5.0", "900.5", "10000.0"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestMostRecentTimestamp(t *testing.T) {
	root := seedTree(t)
	got, err := MostRecentTimestamp(root, 7, "modelA", "g1")
	if err != nil {
		t.Fatalf("MostRecentTimestamp: %v", err)
	}
	if got != "2000.0" {
		t.Errorf("got %q", got)
	}
	if _, err := MostRecentTimestamp(root, 99, "modelA", "g1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v", err)
	}
}
