package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/starford/notecheck/internal/standards"
)

func idxFlag() cli.Flag {
	return &cli.IntFlag{Name: "idx", Required: true, Usage: "case index"}
}

func standardCommand() *cli.Command {
	return &cli.Command{
		Name:  "standard",
		Usage: "Manage the standard note used as ground truth per case",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Point a case at a note, or at the dataset note with --source ref",
				Flags: []cli.Flag{
					idxFlag(),
					&cli.StringFlag{Name: "source", Required: true, Usage: "path of the note, or " + standards.Reference},
				},
				Action: withBatch(func(_ context.Context, cmd *cli.Command, b *batch) error {
					source := cmd.String("source")
					if source != standards.Reference {
						// Link targets resolve against the standards dir, not the caller's.
						abs, err := filepath.Abs(source)
						if err != nil {
							return err
						}
						if _, err := os.Stat(abs); err != nil {
							return fmt.Errorf("standard source: %w", err)
						}
						source = abs
					}
					return standards.New(b.cfg.Results.StandardsDir).Set(int(cmd.Int("idx")), source)
				}),
			},
			{
				Name:  "get",
				Usage: "Print the standard note path for a case",
				Flags: []cli.Flag{
					idxFlag(),
					&cli.BoolFlag{Name: "content", Usage: "print the note itself instead of its path"},
				},
				Action: withBatch(func(_ context.Context, cmd *cli.Command, b *batch) error {
					src, err := b.source()
					if err != nil {
						return err
					}
					res, err := src.Standard(int(cmd.Int("idx")))
					if err != nil {
						return err
					}
					if cmd.Bool("content") {
						fmt.Fprintln(os.Stdout, res.Content)
						return nil
					}
					fmt.Fprintln(os.Stdout, res.Path)
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "Print every case that has a standard pointer",
				Action: withBatch(func(_ context.Context, _ *cli.Command, b *batch) error {
					links, err := standards.New(b.cfg.Results.StandardsDir).List()
					if err != nil {
						return err
					}
					idxs := make([]int, 0, len(links))
					for idx := range links {
						idxs = append(idxs, idx)
					}
					sort.Ints(idxs)
					for _, idx := range idxs {
						fmt.Fprintf(os.Stdout, "%d\t%s\n", idx, links[idx])
					}
					return nil
				}),
			},
			{
				Name:  "init",
				Usage: "Point every case with a full_note.txt in the results root at it",
				Action: withBatch(func(_ context.Context, _ *cli.Command, b *batch) error {
					n, err := standards.New(b.cfg.Results.StandardsDir).InitFromResults(b.cfg.Results.Root)
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stdout, "set %d standards\n", n)
					return nil
				}),
			},
		},
	}
}
