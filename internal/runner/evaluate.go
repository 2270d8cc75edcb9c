package runner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/llm"
	"github.com/starford/notecheck/internal/llm/compare"
	"github.com/starford/notecheck/internal/locator"
	"github.com/starford/notecheck/internal/rouge"
	"github.com/starford/notecheck/internal/storage"
)

// Scorer computes a metric record for a candidate against a reference.
type Scorer interface {
	Score(candidate, reference string) (rouge.Record, error)
}

// EvalRecord is one entry of eval_report.json.
type EvalRecord struct {
	StandardNotePath string `json:"standard_note_path"`
	Cleaned          bool   `json:"cleaned"`
	rouge.Record
}

// AIEvalRecord is one entry of ai_eval.json.
type AIEvalRecord struct {
	StandardNotePath string `json:"standard_note_path"`
	compare.Comparison
}

// EvalOptions tune scoring and comparison batches.
type EvalOptions struct {
	// Mode is the write mode for reports. Extend keeps every prior record.
	Mode storage.Mode
	// Clean strips markdown markup from generated notes before scoring.
	Clean bool
}

// DefaultEvalOptions appends to existing reports.
func DefaultEvalOptions() EvalOptions {
	return EvalOptions{Mode: storage.Extend}
}

func (r *Runner) generated(ctx context.Context, q locator.Query) ([]address.Address, error) {
	if q.Filename == "" {
		q.Filename = GenNoteFile
	}
	if q.Root == "" {
		q.Root = r.root
	}
	addrs, err := locator.Locate(ctx, q)
	if err != nil {
		return nil, err
	}
	locator.Sort(addrs)
	return addrs, nil
}

// Evaluate scores every located generated note against its standard and
// appends the record to eval_report.json in the note's run directory.
func (r *Runner) Evaluate(ctx context.Context, q locator.Query, src StandardSource, scorer Scorer, opts EvalOptions) (Summary, error) {
	addrs, err := r.generated(ctx, q)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, a := range addrs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		p, err := r.evaluateOne(a, src, scorer, opts)
		if err != nil {
			if err := r.skip(&sum, "evaluate", a.Idx, err); err != nil {
				return sum, err
			}
			continue
		}
		sum.wrote(p)
	}
	r.done("evaluate", sum)
	return sum, nil
}

func (r *Runner) evaluateOne(a address.Address, src StandardSource, scorer Scorer, opts EvalOptions) (string, error) {
	note, err := r.store.Read(a.Path())
	if err != nil {
		return "", err
	}
	std, err := src.Standard(a.Idx)
	if err != nil {
		return "", err
	}
	text := string(note)
	if opts.Clean {
		text = CleanMarkdown(text)
	}
	rec, err := scorer.Score(text, std.Content)
	if err != nil {
		return "", fmt.Errorf("runner: score %s: %w", a.Path(), err)
	}
	return r.store.WriteJSON([]EvalRecord{{StandardNotePath: std.Path, Cleaned: opts.Clean, Record: rec}},
		a.Dir(), EvalReportBase, ExtJSON, opts.Mode)
}

// Compare runs the comparison model on every located generated note against
// its standard and appends the findings to ai_eval.json.
func (r *Runner) Compare(ctx context.Context, q locator.Query, src StandardSource, cmp llm.Comparer, opts EvalOptions) (Summary, error) {
	addrs, err := r.generated(ctx, q)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, a := range addrs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		p, err := r.compareOne(ctx, a, src, cmp, opts)
		if err != nil {
			if err := r.skip(&sum, "compare", a.Idx, err); err != nil {
				return sum, err
			}
			continue
		}
		sum.wrote(p)
		r.logger.Debug("compare: wrote", slog.Int("idx", a.Idx), slog.String("path", p))
	}
	r.done("compare", sum)
	return sum, nil
}

func (r *Runner) compareOne(ctx context.Context, a address.Address, src StandardSource, cmp llm.Comparer, opts EvalOptions) (string, error) {
	note, err := r.store.Read(a.Path())
	if err != nil {
		return "", err
	}
	std, err := src.Standard(a.Idx)
	if err != nil {
		return "", err
	}
	res, err := cmp.Compare(ctx, std.Content, string(note))
	if err != nil {
		return "", err
	}
	return r.store.WriteJSON([]AIEvalRecord{{StandardNotePath: std.Path, Comparison: res}},
		a.Dir(), AIEvalBase, ExtJSON, opts.Mode)
}

var (
	mdHeadingRe  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	mdBulletRe   = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	mdEmphasisRe = regexp.MustCompile(`(\*\*|__|\*|_|` + "`" + `)`)
)

// CleanMarkdown removes heading markers, list bullets and emphasis from a
// generated note.
func CleanMarkdown(s string) string {
	s = mdHeadingRe.ReplaceAllString(s, "")
	s = mdBulletRe.ReplaceAllString(s, "")
	s = mdEmphasisRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
