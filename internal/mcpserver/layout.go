package mcpserver

// ResultsLayout describes the on-disk results tree so that MCP clients can
// build valid artifact paths.
const ResultsLayout = `# notecheck Results Layout

Every artifact lives at a five-segment address below the results root:

` + "```" + `
<idx>/<model>/<prompt>/<timestamp>/<filename>
` + "```" + `

- **idx**: non-negative integer case index from the dataset.
- **model**: generator model name (e.g. ` + "`" + `llama3` + "`" + `, ` + "`" + `claude-3-5-sonnet` + "`" + `).
- **prompt**: generation prompt template name.
- **timestamp**: run start in seconds since the epoch, six decimals (` + "`" + `1700000000.123456` + "`" + `).
- **filename**: one of the files below, possibly versioned.

## Files

| File | Written by | Content |
|------|------------|---------|
| ` + "`" + `gen_note.txt` + "`" + ` | generate | Generated clinical note |
| ` + "`" + `eval_report.json` + "`" + ` | evaluate | JSON array of ROUGE records (` + "`" + `rouge-1` + "`" + `, ` + "`" + `rouge-2` + "`" + `, ` + "`" + `rouge-l` + "`" + `, each with p/r/f) |
| ` + "`" + `ai_eval.json` + "`" + ` | compare | JSON array of added/missing clinical findings |

Per-prompt summaries are written one level up as ` + "`" + `<idx>/<model>/<prompt>/rouge_avgs.json` + "`" + `.

## Versions

A file may exist as ` + "`" + `name.ext` + "`" + `, ` + "`" + `name1.ext` + "`" + `, ` + "`" + `name2.ext` + "`" + ` and so on.
The highest number is the most recent.

## Standards

Each case has one standard note used as ground truth. When no pointer is set
the dataset reference note is used and evaluation records store
` + "`" + `standard_note_path: "ref"` + "`" + `.

## Filters

Tools taking ` + "`" + `idx` + "`" + `, ` + "`" + `model` + "`" + ` or ` + "`" + `prompt` + "`" + ` accept ` + "`" + `all` + "`" + ` (or empty),
a single value, or a comma-separated set (` + "`" + `3,4,7` + "`" + `).
`
