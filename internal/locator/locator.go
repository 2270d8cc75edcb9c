// Package locator enumerates artifacts in the results tree that match a set
// of address filters.
package locator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/apperr"
)

// Query is one locate request.
type Query struct {
	Root     string
	Filename string
	Idx      address.Filter
	Model    address.Filter
	Prompt   address.Filter
	// Versions also matches the numbered versions of Filename written in
	// New mode (name1.ext, name2.ext, ...).
	Versions bool
}

// Locate walks root and returns the decoded address of every file whose
// five-segment suffix matches the query. The filters are compiled once per
// call. A missing root yields no addresses. Ordering follows the walk; use
// Sort when determinism matters.
func Locate(ctx context.Context, q Query) ([]address.Address, error) {
	compile := address.Compile
	if q.Versions {
		compile = address.CompileVersions
	}
	pat, err := compile(q.Root, q.Filename, q.Idx, q.Model, q.Prompt)
	if err != nil {
		return nil, err
	}
	var out []address.Address
	err = filepath.WalkDir(q.Root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == q.Root && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || (!q.Versions && d.Name() != q.Filename) {
			return nil
		}
		rel, err := filepath.Rel(q.Root, p)
		if err != nil {
			return nil
		}
		if a, ok := pat.Match(filepath.ToSlash(rel)); ok {
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("locator: walk %s: %w", q.Root, err)
	}
	return out, nil
}

// Sort orders addresses by idx, model, prompt, numeric timestamp, then
// filename.
func Sort(addrs []address.Address) {
	sort.SliceStable(addrs, func(i, j int) bool {
		a, b := addrs[i], addrs[j]
		if a.Idx != b.Idx {
			return a.Idx < b.Idx
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if a.Prompt != b.Prompt {
			return a.Prompt < b.Prompt
		}
		if ta, tb := a.TimestampValue(), b.TimestampValue(); ta != tb {
			return ta < tb
		}
		return a.Filename < b.Filename
	})
}

// MostRecentTimestamp returns the newest run directory name under
// root/idx/model/prompt.
func MostRecentTimestamp(root string, idx int, model, prompt string) (string, error) {
	dir := filepath.Join(root, strconv.Itoa(idx), model, prompt)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("locator: %s: %w", dir, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("locator: read %s: %w", dir, err)
	}
	best, bestVal := "", -1.0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := address.ParseTimestamp(e.Name())
		if err != nil {
			continue
		}
		if v > bestVal {
			best, bestVal = e.Name(), v
		}
	}
	if best == "" {
		return "", fmt.Errorf("locator: no runs under %s: %w", dir, apperr.ErrNotFound)
	}
	return best, nil
}
