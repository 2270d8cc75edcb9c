package aggregate

import (
	"fmt"
	"strings"

	"github.com/starford/notecheck/internal/apperr"
)

// MetricComponents are the fields of each rouge triple, in output order.
var MetricComponents = []string{"p", "r", "f"}

func isMetricColumn(col string) bool {
	return strings.HasPrefix(col, "rouge-")
}

// Flatten turns every rouge-* column holding a {p, r, f} object into
// independent rows tagged with rouge_type, metric and score. All other
// columns are copied unchanged onto each derived row.
func Flatten(t Table) (Table, error) {
	var metricCols, keep []string
	for _, c := range t.Columns {
		if isMetricColumn(c) {
			metricCols = append(metricCols, c)
		} else {
			keep = append(keep, c)
		}
	}
	if len(metricCols) == 0 {
		return Table{}, apperr.Configf("no rouge-* columns to flatten (have %s)", strings.Join(t.Columns, ", "))
	}

	out := Table{Columns: append(append([]string(nil), keep...), ColRougeType, ColMetric, ColScore)}
	out.Rows = make([]Row, 0, len(t.Rows)*len(metricCols)*len(MetricComponents))
	for i, row := range t.Rows {
		for _, mc := range metricCols {
			triple, ok := row[mc].(map[string]any)
			if !ok {
				return Table{}, fmt.Errorf("aggregate: row %d column %s is %T, not a metric object: %w", i, mc, row[mc], apperr.ErrContentMismatch)
			}
			for _, comp := range MetricComponents {
				score, ok := toFloat(triple[comp])
				if !ok {
					return Table{}, fmt.Errorf("aggregate: row %d %s.%s is not numeric: %w", i, mc, comp, apperr.ErrContentMismatch)
				}
				nr := make(Row, len(keep)+3)
				for _, k := range keep {
					if v, present := row[k]; present {
						nr[k] = v
					}
				}
				nr[ColRougeType] = mc
				nr[ColMetric] = comp
				nr[ColScore] = score
				out.Rows = append(out.Rows, nr)
			}
		}
	}
	return out, nil
}

// Pivot widens a flattened table: one row per distinct combination of index
// columns, with one column per metric value holding its mean score.
func Pivot(t Table, index ...string) (Table, error) {
	if len(index) == 0 {
		return Table{}, apperr.Configf("pivot needs at least one index column")
	}
	if err := t.require(append([]string{ColMetric, ColScore}, index...)...); err != nil {
		return Table{}, err
	}

	type cell struct {
		sum float64
		n   int
	}
	type group struct {
		row   Row
		cells map[string]*cell
	}
	var (
		order   []string
		groups  = map[string]*group{}
		metrics []string
		seen    = map[string]bool{}
	)
	for i, row := range t.Rows {
		m := row.String(ColMetric)
		score, ok := row.Float(ColScore)
		if !ok {
			return Table{}, fmt.Errorf("aggregate: row %d score is not numeric: %w", i, apperr.ErrContentMismatch)
		}
		if !seen[m] {
			seen[m] = true
			metrics = append(metrics, m)
		}
		key := groupKey(row, index)
		g, ok := groups[key]
		if !ok {
			g = &group{row: Row{}, cells: map[string]*cell{}}
			for _, c := range index {
				g.row[c] = row[c]
			}
			groups[key] = g
			order = append(order, key)
		}
		c, ok := g.cells[m]
		if !ok {
			c = &cell{}
			g.cells[m] = c
		}
		c.sum += score
		c.n++
	}

	out := Table{Columns: append(append([]string(nil), index...), metrics...)}
	for _, key := range order {
		g := groups[key]
		for m, c := range g.cells {
			g.row[m] = c.sum / float64(c.n)
		}
		out.Rows = append(out.Rows, g.row)
	}
	return out, nil
}
