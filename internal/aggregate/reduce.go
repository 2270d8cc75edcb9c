package aggregate

import (
	"fmt"

	"github.com/starford/notecheck/internal/apperr"
)

// AverageExcluding drops the excluded columns and replaces each group of
// rows that agree on every remaining column with one row holding their mean
// score. Groups keep the order of their first row.
func AverageExcluding(t Table, exclude ...string) (Table, error) {
	if err := t.require(ColScore); err != nil {
		return Table{}, err
	}
	for _, c := range exclude {
		if c == ColScore {
			return Table{}, apperr.Configf("cannot exclude the score column")
		}
	}
	if err := t.require(exclude...); err != nil {
		return Table{}, err
	}
	return average(t, exclude)
}

func average(t Table, exclude []string) (Table, error) {
	keys := without(without(t.Columns, exclude...), ColScore)

	type acc struct {
		row Row
		sum float64
		n   int
	}
	var order []string
	groups := map[string]*acc{}
	for i, row := range t.Rows {
		score, ok := row.Float(ColScore)
		if !ok {
			return Table{}, fmt.Errorf("aggregate: row %d score is not numeric: %w", i, apperr.ErrContentMismatch)
		}
		key := groupKey(row, keys)
		g, ok := groups[key]
		if !ok {
			g = &acc{row: make(Row, len(keys)+1)}
			for _, k := range keys {
				if v, present := row[k]; present {
					g.row[k] = v
				}
			}
			groups[key] = g
			order = append(order, key)
		}
		g.sum += score
		g.n++
	}

	out := Table{Columns: append(append([]string(nil), keys...), ColScore)}
	out.Rows = make([]Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.row[ColScore] = g.sum / float64(g.n)
		out.Rows = append(out.Rows, g.row)
	}
	return out, nil
}

// Reduce applies one averaging stage per exclusion set, in order. Every
// stage is checked against the columns left by the stages before it before
// any averaging happens.
func Reduce(t Table, stages ...[]string) (Table, error) {
	cols := append([]string(nil), t.Columns...)
	has := func(c string) bool {
		for _, x := range cols {
			if x == c {
				return true
			}
		}
		return false
	}
	if !has(ColScore) {
		return Table{}, apperr.Configf("column %q not present", ColScore)
	}
	for i, stage := range stages {
		for _, c := range stage {
			if c == ColScore || !has(c) {
				return Table{}, apperr.Configf("stage %d excludes %q which is not a grouping column at that point", i, c)
			}
		}
		cols = without(cols, stage...)
	}

	cur := t
	for _, stage := range stages {
		next, err := average(cur, stage)
		if err != nil {
			return Table{}, err
		}
		cur = next
	}
	return cur, nil
}

// DefaultRunKeys are the columns identifying the runs of one case when
// picking the most recent one.
var DefaultRunKeys = []string{ColRoot, ColIdx, ColModel, ColPrompt}

// MostRecent keeps, for each group of rows sharing the key columns, only
// the rows whose timestamp is the numeric maximum within the group. With no
// keys it groups by whichever DefaultRunKeys the table has.
func MostRecent(t Table, keys ...string) (Table, error) {
	if err := t.require(ColTimestamp); err != nil {
		return Table{}, err
	}
	if len(keys) == 0 {
		for _, k := range DefaultRunKeys {
			if t.Has(k) {
				keys = append(keys, k)
			}
		}
	} else if err := t.require(keys...); err != nil {
		return Table{}, err
	}

	latest := map[string]float64{}
	stamps := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		ts, ok := row.Float(ColTimestamp)
		if !ok {
			return Table{}, fmt.Errorf("aggregate: row %d timestamp %q is not numeric: %w", i, row.String(ColTimestamp), apperr.ErrContentMismatch)
		}
		stamps[i] = ts
		key := groupKey(row, keys)
		if cur, ok := latest[key]; !ok || ts > cur {
			latest[key] = ts
		}
	}

	out := Table{Columns: append([]string(nil), t.Columns...)}
	for i, row := range t.Rows {
		if stamps[i] == latest[groupKey(row, keys)] {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// StandardResolver reports the standard path currently in effect for idx.
type StandardResolver interface {
	Resolve(idx int) (string, error)
}

// CurrentStandard keeps only rows scored against the standard currently
// resolved for their idx. Rows scored against any other standard are
// dropped.
func CurrentStandard(t Table, res StandardResolver) (Table, error) {
	if err := t.require(ColIdx, ColStandardNotePath); err != nil {
		return Table{}, err
	}
	current := map[int]string{}
	out := Table{Columns: append([]string(nil), t.Columns...)}
	for i, row := range t.Rows {
		idx, ok := row.Int(ColIdx)
		if !ok {
			return Table{}, fmt.Errorf("aggregate: row %d idx %v is not an integer: %w", i, row[ColIdx], apperr.ErrContentMismatch)
		}
		want, ok := current[idx]
		if !ok {
			p, err := res.Resolve(idx)
			if err != nil {
				return Table{}, fmt.Errorf("aggregate: resolve standard %d: %w", idx, err)
			}
			current[idx] = p
			want = p
		}
		if row.String(ColStandardNotePath) == want {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
