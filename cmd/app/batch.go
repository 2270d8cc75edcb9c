package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/starford/notecheck/internal"
	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/aggregate"
	"github.com/starford/notecheck/internal/apperr"
	"github.com/starford/notecheck/internal/dataset"
	"github.com/starford/notecheck/internal/llm"
	"github.com/starford/notecheck/internal/locator"
	"github.com/starford/notecheck/internal/prompt"
	"github.com/starford/notecheck/internal/report"
	"github.com/starford/notecheck/internal/rouge"
	"github.com/starford/notecheck/internal/runner"
	"github.com/starford/notecheck/internal/standards"
	"github.com/starford/notecheck/internal/storage"
)

// batch carries what every batch command needs.
type batch struct {
	cfg    *internal.Config
	logger *slog.Logger
	store  *storage.FS
	runner *runner.Runner
}

// withBatch loads the config and runs fn with a context cancelled on
// SIGINT or SIGTERM.
func withBatch(fn func(ctx context.Context, cmd *cli.Command, b *batch) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := batchLogger(cfg)
		store := storage.NewFS()
		return fn(ctx, cmd, &batch{
			cfg:    cfg,
			logger: logger,
			store:  store,
			runner: runner.New(store, cfg.Results.Root, logger),
		})
	}
}

// source resolves standards through the registry with dataset notes as
// the fallback.
func (b *batch) source() (standards.Source, error) {
	notes, err := internal.ReferenceNotes(b.cfg.Dataset.Path, b.logger)
	if err != nil {
		return standards.Source{}, err
	}
	return standards.New(b.cfg.Results.StandardsDir).WithFallback(notes), nil
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "idx", Value: "all", Usage: "case index, comma-separated list, or all"},
		&cli.StringFlag{Name: "model", Value: "all", Usage: "model name, comma-separated list, or all"},
		&cli.StringFlag{Name: "prompt", Value: "all", Usage: "prompt name, comma-separated list, or all"},
	}
}

func query(cmd *cli.Command, root string) locator.Query {
	return locator.Query{
		Root:   root,
		Idx:    address.ParseFilter(cmd.String("idx")),
		Model:  address.ParseFilter(cmd.String("model")),
		Prompt: address.ParseFilter(cmd.String("prompt")),
	}
}

func modeFlag(def storage.Mode) cli.Flag {
	return &cli.StringFlag{Name: "mode", Value: def.String(), Usage: "write mode: overwrite, new or extend"}
}

// parseIdxs reads "all" or a comma-separated list of case indices.
func parseIdxs(s string) ([]int, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return nil, true, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, false, apperr.Configf("invalid idx %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, false, apperr.Configf("no idx given")
	}
	return out, false, nil
}

func printSummary(sum runner.Summary) {
	fmt.Fprintf(os.Stdout, "written: %d, skipped: %d\n", sum.Written, sum.Skipped)
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate notes from dataset conversations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Required: true, Usage: "model to generate with"},
			&cli.StringFlag{Name: "prompt", Required: true, Usage: "generation prompt name (starts with g)"},
			&cli.StringFlag{Name: "idx", Value: "all", Usage: "case indices, comma-separated, or all"},
			&cli.IntFlag{Name: "n", Usage: "top every case up to n runs instead of adding one run"},
		},
		Action: withBatch(func(ctx context.Context, cmd *cli.Command, b *batch) error {
			name := cmd.String("prompt")
			tmpl, err := prompt.Require(b.cfg.Results.PromptsDir, name, prompt.Generation)
			if err != nil {
				return err
			}
			ds, err := dataset.Load(b.cfg.Dataset.Path)
			if err != nil {
				return err
			}
			idxs, all, err := parseIdxs(cmd.String("idx"))
			if err != nil {
				return err
			}
			records := ds.Records()
			if !all {
				if records, err = ds.Subset(idxs); err != nil {
					return err
				}
			}
			gen, err := llm.NewGenerator(b.cfg.Providers, b.cfg.Retry, cmd.String("model"), tmpl.Text, b.logger)
			if err != nil {
				return err
			}

			var sum runner.Summary
			if n := int(cmd.Int("n")); n > 0 {
				sum, err = b.runner.GenerateN(ctx, n, records, gen, name)
			} else {
				sum, err = b.runner.Generate(ctx, records, gen, name)
			}
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		}),
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Score generated notes against their standards with ROUGE",
		Flags: append(filterFlags(),
			modeFlag(storage.Extend),
			&cli.BoolFlag{Name: "clean", Usage: "strip markdown from generated notes before scoring"},
		),
		Action: withBatch(func(ctx context.Context, cmd *cli.Command, b *batch) error {
			mode, err := storage.ParseMode(cmd.String("mode"))
			if err != nil {
				return err
			}
			src, err := b.source()
			if err != nil {
				return err
			}
			sum, err := b.runner.Evaluate(ctx, query(cmd, b.cfg.Results.Root), src, rouge.Scorer{},
				runner.EvalOptions{Mode: mode, Clean: cmd.Bool("clean")})
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		}),
	}
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "Ask the comparison model for clinically significant differences",
		Flags: append(filterFlags(),
			modeFlag(storage.Extend),
			&cli.StringFlag{Name: "template", Usage: "similarity prompt name (starts with s); built-in instructions when empty"},
		),
		Action: withBatch(func(ctx context.Context, cmd *cli.Command, b *batch) error {
			mode, err := storage.ParseMode(cmd.String("mode"))
			if err != nil {
				return err
			}
			var system string
			if name := cmd.String("template"); name != "" {
				tmpl, err := prompt.Require(b.cfg.Results.PromptsDir, name, prompt.Similarity)
				if err != nil {
					return err
				}
				system = tmpl.Text
			}
			cmp, err := llm.NewComparer(b.cfg.Providers, b.cfg.Retry, system, b.logger)
			if err != nil {
				return err
			}
			src, err := b.source()
			if err != nil {
				return err
			}
			sum, err := b.runner.Compare(ctx, query(cmd, b.cfg.Results.Root), src, cmp, runner.EvalOptions{Mode: mode})
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		}),
	}
}

func aggregateCommand() *cli.Command {
	return &cli.Command{
		Name:  "aggregate",
		Usage: "Average ROUGE scores per case and write rouge_avgs.json",
		Flags: append(filterFlags(),
			modeFlag(storage.New),
			&cli.BoolFlag{Name: "current", Usage: "only count scores against the standard currently in effect"},
			&cli.BoolFlag{Name: "most-recent", Usage: "only count the latest run per case"},
			&cli.BoolFlag{Name: "dry-run", Usage: "print the table without writing summaries"},
		),
		Action: withBatch(func(ctx context.Context, cmd *cli.Command, b *batch) error {
			mode, err := storage.ParseMode(cmd.String("mode"))
			if err != nil {
				return err
			}
			opts := runner.SummarizeOptions{
				MostRecent: cmd.Bool("most-recent"),
				Mode:       mode,
				DryRun:     cmd.Bool("dry-run"),
			}
			if cmd.Bool("current") {
				opts.Current = standards.New(b.cfg.Results.StandardsDir)
			}
			wide, sum, err := b.runner.Summarize(ctx, query(cmd, b.cfg.Results.Root), opts)
			if err != nil {
				return err
			}
			if wide.Len() == 0 {
				fmt.Fprintln(os.Stdout, "no evaluation reports found")
				return nil
			}
			var cols []string
			for _, c := range wide.Columns {
				if c != aggregate.ColRoot {
					cols = append(cols, c)
				}
			}
			if err := report.Render(os.Stdout, wide, cols...); err != nil {
				return err
			}
			if !opts.DryRun {
				printSummary(sum)
			}
			return nil
		}),
	}
}

func conceptsCommand() *cli.Command {
	return &cli.Command{
		Name:  "concepts",
		Usage: "List clinical concepts that vary across runs of the same case",
		Flags: filterFlags(),
		Action: withBatch(func(ctx context.Context, cmd *cli.Command, b *batch) error {
			spreads, err := runner.Concepts(ctx, b.store, query(cmd, b.cfg.Results.Root))
			if err != nil {
				return err
			}
			return report.RenderConcepts(os.Stdout, spreads)
		}),
	}
}

func locateCommand() *cli.Command {
	return &cli.Command{
		Name:  "locate",
		Usage: "Print the path of every artifact matching the filters",
		Flags: append(filterFlags(),
			&cli.StringFlag{Name: "filename", Value: runner.GenNoteFile, Usage: "artifact file name"},
		),
		Action: withBatch(func(ctx context.Context, cmd *cli.Command, b *batch) error {
			q := query(cmd, b.cfg.Results.Root)
			q.Filename = cmd.String("filename")
			if q.Filename == "" {
				return apperr.Configf("empty filename")
			}
			addrs, err := locator.Locate(ctx, q)
			if err != nil {
				return err
			}
			locator.Sort(addrs)
			for _, a := range addrs {
				fmt.Fprintln(os.Stdout, a.Path())
			}
			return nil
		}),
	}
}
