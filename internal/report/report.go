// Package report prints tables as markdown for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/starford/notecheck/internal/aggregate"
)

func newTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// Render writes the named columns of t, or every column when none are
// given. Floats print with four decimals.
func Render(w io.Writer, t aggregate.Table, columns ...string) error {
	if len(columns) == 0 {
		columns = t.Columns
	}
	table := newTable(columns, w)
	for _, row := range t.Rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = Cell(row[c])
		}
		if err := table.Append(cells); err != nil {
			return fmt.Errorf("report: append: %w", err)
		}
	}
	return table.Render()
}

// RenderConcepts writes one line per (idx, prompt, kind) with its concepts.
func RenderConcepts(w io.Writer, spreads []aggregate.ConceptSpread) error {
	table := newTable([]string{"idx", "prompt", "kind", "concepts"}, w)
	for _, s := range spreads {
		if err := table.Append([]string{strconv.Itoa(s.Idx), s.Prompt, s.Kind, strings.Join(s.Concepts, "; ")}); err != nil {
			return fmt.Errorf("report: append: %w", err)
		}
	}
	return table.Render()
}

// Cell formats one value for display.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', 4, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', 4, 32)
	default:
		return fmt.Sprint(x)
	}
}
