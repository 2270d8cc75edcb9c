// Package aggregate loads artifacts from the results tree into a uniform
// table and reshapes and reduces their metric records.
package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/apperr"
)

// Column names shared by every table built from addresses.
const (
	ColFullPath         = "full_path"
	ColRoot             = "root_dir"
	ColIdx              = "idx"
	ColModel            = "model"
	ColPrompt           = "prompt"
	ColTimestamp        = "timestamp"
	ColStandardNotePath = "standard_note_path"
	ColRougeType        = "rouge_type"
	ColMetric           = "metric"
	ColScore            = "score"
)

// Row is one record keyed by column name.
type Row map[string]any

// String returns the column as a string, formatting non-string values.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the column as a float64.
func (r Row) Float(col string) (float64, bool) {
	return toFloat(r[col])
}

// Int returns the column as an int.
func (r Row) Int(col string) (int, bool) {
	f, ok := toFloat(r[col])
	if !ok {
		return 0, false
	}
	return int(f), f == float64(int(f))
}

// Table is an ordered set of columns and the rows holding them.
type Table struct {
	Columns []string
	Rows    []Row
}

// Has reports whether col is one of the table's columns.
func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

func (t *Table) addColumn(col string) {
	if !t.Has(col) {
		t.Columns = append(t.Columns, col)
	}
}

func (t Table) require(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return apperr.Configf("column %q not present (have %s)", c, strings.Join(t.Columns, ", "))
		}
	}
	return nil
}

// Reader is the subset of the artifact store the loaders need.
type Reader interface {
	Read(path string) ([]byte, error)
	ReadRecords(path string) ([]map[string]any, error)
}

func addressColumns(a address.Address) Row {
	return Row{
		ColRoot:      a.Root,
		ColIdx:       a.Idx,
		ColModel:     a.Model,
		ColPrompt:    a.Prompt,
		ColTimestamp: a.Timestamp,
	}
}

// FromAddresses builds the metadata table for located artifacts: one row
// per address with its full path and decoded fields.
func FromAddresses(addrs []address.Address) Table {
	t := Table{Columns: []string{ColFullPath, ColRoot, ColIdx, ColModel, ColPrompt, ColTimestamp}}
	for _, a := range addrs {
		row := addressColumns(a)
		row[ColFullPath] = a.Path()
		t.Rows = append(t.Rows, row)
	}
	return t
}

// LoadContent reads the artifact named by each row's full_path into col.
func LoadContent(t Table, r Reader, col string) (Table, error) {
	if err := t.require(ColFullPath); err != nil {
		return Table{}, err
	}
	out := Table{Columns: append([]string(nil), t.Columns...)}
	out.addColumn(col)
	for _, row := range t.Rows {
		data, err := r.Read(row.String(ColFullPath))
		if err != nil {
			return Table{}, fmt.Errorf("aggregate: load content: %w", err)
		}
		nr := cloneRow(row)
		nr[col] = string(data)
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}

// LoadReports reads the JSON collection at each address and tags every
// record with the address fields. The per-run full path is not carried so
// that rows from different runs can be grouped together.
func LoadReports(r Reader, addrs []address.Address) (Table, error) {
	t := Table{Columns: []string{ColRoot, ColIdx, ColModel, ColPrompt, ColTimestamp}}
	for _, a := range addrs {
		records, err := r.ReadRecords(a.Path())
		if err != nil {
			return Table{}, fmt.Errorf("aggregate: load %s: %w", a.Path(), err)
		}
		for _, rec := range records {
			keys := make([]string, 0, len(rec))
			for k := range rec {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			row := make(Row, len(rec)+5)
			for _, k := range keys {
				row[k] = rec[k]
				t.addColumn(k)
			}
			for k, v := range addressColumns(a) {
				row[k] = v
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

func cloneRow(r Row) Row {
	out := make(Row, len(r)+3)
	for k, v := range r {
		out[k] = v
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// groupKey renders the values of cols into a comparable key.
func groupKey(row Row, cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		v := row[c]
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			v = int(f)
		}
		fmt.Fprintf(&b, "%v", v)
	}
	return b.String()
}

func without(cols []string, drop ...string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		skip := false
		for _, d := range drop {
			if c == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, c)
		}
	}
	return out
}
