// Package runner drives the sequential batches: generating notes, scoring
// them, comparing them with the current standard, and summarizing scores.
package runner

import (
	"errors"
	"log/slog"

	"github.com/starford/notecheck/internal/apperr"
	"github.com/starford/notecheck/internal/standards"
	"github.com/starford/notecheck/internal/storage"
)

// Artifact names written into each run directory.
const (
	GenNoteBase    = "gen_note"
	EvalReportBase = "eval_report"
	AIEvalBase     = "ai_eval"
	RougeAvgsBase  = "rouge_avgs"
	ExtTXT         = "txt"
	ExtJSON        = "json"
)

// GenNoteFile is the filename located for scoring and comparison.
const GenNoteFile = GenNoteBase + "." + ExtTXT

// StandardSource resolves the standard note for a case.
type StandardSource interface {
	Standard(idx int) (standards.Resolved, error)
}

// Runner executes batches against one results store.
type Runner struct {
	store  storage.Provider
	root   string
	logger *slog.Logger
}

// New returns a runner writing under root.
func New(store storage.Provider, root string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, root: root, logger: logger}
}

// Summary counts the outcome of one batch.
type Summary struct {
	Written int      `json:"written"`
	Skipped int      `json:"skipped"`
	Paths   []string `json:"paths,omitempty"`
}

func (s *Summary) wrote(p string) {
	s.Written++
	s.Paths = append(s.Paths, p)
}

// skip logs a per-case failure and decides whether the batch continues.
// Provider failures and missing inputs skip the case; anything else stops
// the batch.
func (r *Runner) skip(sum *Summary, op string, idx int, err error) error {
	var pe *apperr.ProviderError
	if errors.As(err, &pe) {
		pe.Idx = idx
		sum.Skipped++
		r.logger.Warn(op+": provider failed, skipping",
			slog.Int("idx", idx),
			slog.String("provider", pe.Provider),
			slog.Int("status", pe.Status),
			slog.String("error", err.Error()))
		return nil
	}
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrContentMismatch) {
		sum.Skipped++
		r.logger.Warn(op+": skipping case",
			slog.Int("idx", idx),
			slog.String("error", err.Error()))
		return nil
	}
	return err
}

func (r *Runner) done(op string, sum Summary) {
	r.logger.Info(op+": finished",
		slog.Int("written", sum.Written),
		slog.Int("skipped", sum.Skipped))
}
