// Package dataset reads the line-delimited JSON case collection that feeds
// generation and supplies fallback reference notes.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/starford/notecheck/internal/apperr"
)

// maxLine bounds a single JSONL record. Conversations in the notes corpus
// run to tens of kilobytes.
const maxLine = 8 << 20

// Record is one source case.
type Record struct {
	Idx          int    `json:"idx"`
	Conversation string `json:"conversation"`
	FullNote     string `json:"full_note"`
}

// Dataset holds records keyed by idx.
type Dataset struct {
	byIdx map[int]Record
	order []int
}

// Load reads a JSONL file. A missing file is reported as apperr.ErrNotFound.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dataset: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("dataset: open: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses JSONL records from r. Blank lines are skipped; a later record
// with the same idx replaces the earlier one.
func Read(r io.Reader) (*Dataset, error) {
	ds := &Dataset{byIdx: map[int]Record{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("dataset: line %d: %v: %w", line, err, apperr.ErrContentMismatch)
		}
		if rec.Idx < 0 {
			return nil, fmt.Errorf("dataset: line %d: negative idx %d: %w", line, rec.Idx, apperr.ErrContentMismatch)
		}
		if _, dup := ds.byIdx[rec.Idx]; !dup {
			ds.order = append(ds.order, rec.Idx)
		}
		ds.byIdx[rec.Idx] = rec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: scan: %w", err)
	}
	return ds, nil
}

// Len returns the number of distinct cases.
func (d *Dataset) Len() int { return len(d.order) }

// Get returns the record for idx.
func (d *Dataset) Get(idx int) (Record, bool) {
	r, ok := d.byIdx[idx]
	return r, ok
}

// Records returns every record in file order.
func (d *Dataset) Records() []Record {
	out := make([]Record, 0, len(d.order))
	for _, idx := range d.order {
		out = append(out, d.byIdx[idx])
	}
	return out
}

// Subset returns the records for idxs, sorted by idx. Unknown idxs are
// reported together as apperr.ErrNotFound.
func (d *Dataset) Subset(idxs []int) ([]Record, error) {
	out := make([]Record, 0, len(idxs))
	var missing []int
	seen := map[int]bool{}
	for _, idx := range idxs {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		r, ok := d.byIdx[idx]
		if !ok {
			missing = append(missing, idx)
			continue
		}
		out = append(out, r)
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, fmt.Errorf("dataset: idx %v: %w", missing, apperr.ErrNotFound)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Idx < out[j].Idx })
	return out, nil
}

// FullNotes returns the reference note of every case keyed by idx.
func (d *Dataset) FullNotes() map[int]string {
	out := make(map[int]string, len(d.byIdx))
	for idx, r := range d.byIdx {
		out[idx] = r.FullNote
	}
	return out
}
