package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/starford/notecheck/internal/aggregate"
	"github.com/starford/notecheck/internal/locator"
	"github.com/starford/notecheck/internal/storage"
)

// SummarizeOptions select how per-run scores are reduced.
type SummarizeOptions struct {
	// Current keeps only records scored against the standard currently in
	// effect for each idx.
	Current aggregate.StandardResolver
	// MostRecent keeps only the latest run per case instead of averaging
	// across runs.
	MostRecent bool
	// Mode is the write mode for rouge_avgs.json. New keeps earlier
	// summaries as lower versions.
	Mode storage.Mode
	// DryRun computes the table without writing it back.
	DryRun bool
}

// DefaultSummarizeOptions averages across runs and every standard.
func DefaultSummarizeOptions() SummarizeOptions {
	return SummarizeOptions{Mode: storage.New}
}

// SummaryColumns index the summary table.
var SummaryColumns = []string{aggregate.ColRoot, aggregate.ColIdx, aggregate.ColModel, aggregate.ColPrompt, aggregate.ColRougeType}

// ScoreTable loads every located eval_report.json, including the numbered
// versions written in New mode, and reduces the records to one mean score
// per (case, rouge type, metric), before pivoting.
func ScoreTable(ctx context.Context, store aggregate.Reader, q locator.Query, opts SummarizeOptions) (aggregate.Table, error) {
	q.Filename = EvalReportBase + "." + ExtJSON
	q.Versions = true
	addrs, err := locator.Locate(ctx, q)
	if err != nil {
		return aggregate.Table{}, err
	}
	locator.Sort(addrs)
	t, err := aggregate.LoadReports(store, addrs)
	if err != nil {
		return aggregate.Table{}, err
	}
	if t.Len() == 0 {
		return aggregate.Table{}, nil
	}
	if opts.Current != nil {
		if t, err = aggregate.CurrentStandard(t, opts.Current); err != nil {
			return aggregate.Table{}, err
		}
	}
	if opts.MostRecent {
		if t, err = aggregate.MostRecent(t); err != nil {
			return aggregate.Table{}, err
		}
	}
	if t, err = aggregate.Flatten(t); err != nil {
		return aggregate.Table{}, err
	}

	perStandard := []string{aggregate.ColStandardNotePath}
	if t.Has("cleaned") {
		perStandard = append(perStandard, "cleaned")
	}
	return aggregate.Reduce(t, []string{aggregate.ColTimestamp}, perStandard)
}

// Summarize reduces scores for the selection, writes one rouge_avgs.json
// per (idx, model, prompt) directory and returns the pivoted table.
func (r *Runner) Summarize(ctx context.Context, q locator.Query, opts SummarizeOptions) (aggregate.Table, Summary, error) {
	if q.Root == "" {
		q.Root = r.root
	}
	var sum Summary
	t, err := ScoreTable(ctx, r.store, q, opts)
	if err != nil || t.Len() == 0 {
		return t, sum, err
	}
	wide, err := aggregate.Pivot(t, SummaryColumns...)
	if err != nil {
		return aggregate.Table{}, sum, err
	}
	if opts.DryRun {
		return wide, sum, nil
	}

	groups := map[string][]map[string]any{}
	var order []string
	for _, row := range wide.Rows {
		idx, _ := row.Int(aggregate.ColIdx)
		dir := filepath.Join(row.String(aggregate.ColRoot), strconv.Itoa(idx), row.String(aggregate.ColModel), row.String(aggregate.ColPrompt))
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		rec := map[string]any{aggregate.ColRougeType: row[aggregate.ColRougeType]}
		for _, m := range aggregate.MetricComponents {
			if v, ok := row[m]; ok {
				rec[m] = v
			}
		}
		groups[dir] = append(groups[dir], rec)
	}
	for _, dir := range order {
		if err := ctx.Err(); err != nil {
			return wide, sum, err
		}
		p, err := r.store.WriteJSON(groups[dir], dir, RougeAvgsBase, ExtJSON, opts.Mode)
		if err != nil {
			return wide, sum, fmt.Errorf("runner: write summary: %w", err)
		}
		sum.wrote(p)
	}
	r.done("summarize", sum)
	return wide, sum, nil
}

// Concepts loads every located ai_eval.json and its numbered versions and
// reports the clinical concepts whose findings vary across runs of the same
// (idx, prompt).
func Concepts(ctx context.Context, store aggregate.Reader, q locator.Query) ([]aggregate.ConceptSpread, error) {
	q.Filename = AIEvalBase + "." + ExtJSON
	q.Versions = true
	addrs, err := locator.Locate(ctx, q)
	if err != nil {
		return nil, err
	}
	locator.Sort(addrs)
	t, err := aggregate.LoadReports(store, addrs)
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, nil
	}
	return aggregate.ConceptVariance(t)
}
