package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/dataset"
	"github.com/starford/notecheck/internal/llm"
	"github.com/starford/notecheck/internal/locator"
	"github.com/starford/notecheck/internal/storage"
)

// Generate sends each record's conversation to gen and stores the note in
// a fresh run directory root/idx/model/prompt/timestamp/gen_note.txt.
func (r *Runner) Generate(ctx context.Context, records []dataset.Record, gen llm.Generator, promptName string) (Summary, error) {
	var sum Summary
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		p, err := r.generateOne(ctx, rec, gen, promptName)
		if err != nil {
			if err := r.skip(&sum, "generate", rec.Idx, err); err != nil {
				return sum, err
			}
			continue
		}
		sum.wrote(p)
		r.logger.Debug("generate: wrote", slog.Int("idx", rec.Idx), slog.String("path", p))
	}
	r.done("generate", sum)
	return sum, nil
}

// GenerateN tops up every (idx, model, prompt) to n runs, counting the runs
// already holding a gen_note.txt.
func (r *Runner) GenerateN(ctx context.Context, n int, records []dataset.Record, gen llm.Generator, promptName string) (Summary, error) {
	var sum Summary
	for _, rec := range records {
		existing, err := locator.Locate(ctx, locator.Query{
			Root:     r.root,
			Filename: GenNoteFile,
			Idx:      address.Idxs(rec.Idx),
			Model:    address.Only(gen.Model()),
			Prompt:   address.Only(promptName),
		})
		if err != nil {
			return sum, err
		}
		for i := len(existing); i < n; i++ {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			p, err := r.generateOne(ctx, rec, gen, promptName)
			if err != nil {
				if err := r.skip(&sum, "generate", rec.Idx, err); err != nil {
					return sum, err
				}
				break
			}
			sum.wrote(p)
		}
	}
	r.done("generate", sum)
	return sum, nil
}

// generateOne calls the provider before creating the run directory so a
// failed call leaves nothing behind.
func (r *Runner) generateOne(ctx context.Context, rec dataset.Record, gen llm.Generator, promptName string) (string, error) {
	note, err := gen.Send(ctx, rec.Conversation)
	if err != nil {
		return "", err
	}
	run, err := r.store.NewRun(r.root, rec.Idx, gen.Model(), promptName)
	if err != nil {
		return "", fmt.Errorf("runner: new run: %w", err)
	}
	return r.store.Write([]byte(note), run.Dir(), GenNoteBase, ExtTXT, storage.Overwrite)
}
