// Package compare asks an OpenAI-compatible model for the clinically
// significant differences between two notes, collected through tool calls.
package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/starford/notecheck/internal/apperr"
	"github.com/starford/notecheck/internal/llm/oai"
)

// Name identifies the provider in errors.
const Name = "openai"

// DefaultModel is used when the config leaves the model unset.
const DefaultModel = "o4-mini"

// Tool names the model reports findings through.
const (
	ToolAdded   = "report_added_doc"
	ToolMissing = "report_missing_doc"
)

// DefaultSystemPrompt instructs the model when no similarity template is
// supplied.
const DefaultSystemPrompt = `You compare two clinical notes. Compare Document B against Document A and report only clinically significant differences, ignoring phrasing and formatting.

Clinically significant means likely to affect clinical decisions, safety, or billing quality: diagnoses, allergies, medications, procedures, imaging, consults, abnormal labs or vitals, care plans, contraindications and interactions, critical history.

For each significant item present in B but not in A call report_added_doc.
For each significant item present in A but missing from B call report_missing_doc.
Do not call a tool for stylistic differences.
Quote minimal evidence with its section and any codes you are confident in.
Confidence is between 0 and 1. Severity is one of low, moderate, high, critical.
If there are no significant differences, reply with a short text answer and call no tools.`

// Config selects the comparison model and endpoint.
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Comparer runs comparisons with one model and system prompt.
type Comparer struct {
	api    *openai.Client
	model  string
	system string
}

// New returns a comparer. An empty system prompt selects DefaultSystemPrompt.
func New(cfg Config, system string) (*Comparer, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, apperr.Configf("comparison needs an api key or a base url")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	return &Comparer{api: oai.NewClient(cfg.APIKey, cfg.BaseURL), model: model, system: system}, nil
}

// Model returns the comparison model name.
func (c *Comparer) Model() string { return c.model }

// Compare reports what document b adds to and omits from document a.
func (c *Comparer) Compare(ctx context.Context, a, b string) (Comparison, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Compare Document B to Document A and act per the rules."},
					{Type: openai.ChatMessagePartTypeText, Text: "Document A:\n" + a},
					{Type: openai.ChatMessagePartTypeText, Text: "Document B:\n" + b},
				},
			},
		},
		Tools:      Tools(),
		ToolChoice: "auto",
	})
	if err != nil {
		return Comparison{}, oai.ProviderError(Name, err)
	}
	if len(resp.Choices) == 0 {
		return Comparison{}, shapeError("no choices")
	}
	return parse(resp.Choices[0].Message)
}

func parse(msg openai.ChatCompletionMessage) (Comparison, error) {
	out := Comparison{Added: []Finding{}, Missing: []Finding{}}
	for _, call := range msg.ToolCalls {
		var f Finding
		if err := json.Unmarshal([]byte(call.Function.Arguments), &f); err != nil {
			return Comparison{}, shapeError(fmt.Sprintf("%s arguments: %v", call.Function.Name, err))
		}
		if err := f.Validate(); err != nil {
			return Comparison{}, shapeError(fmt.Sprintf("%s finding: %v", call.Function.Name, err))
		}
		switch call.Function.Name {
		case ToolAdded:
			out.Added = append(out.Added, f)
		case ToolMissing:
			out.Missing = append(out.Missing, f)
		default:
			return Comparison{}, shapeError("unknown tool " + call.Function.Name)
		}
	}
	out.Text = strings.TrimSpace(msg.Content)
	return out, nil
}

func shapeError(reason string) error {
	return &apperr.ProviderError{Provider: Name, Err: fmt.Errorf("%w: %s", apperr.ErrContentMismatch, reason)}
}

// Tools returns the two reporting tool definitions.
func Tools() []openai.Tool {
	return []openai.Tool{
		tool(ToolAdded, "Use only for clinically significant content present in B but not in A.", "B"),
		tool(ToolMissing, "Use only for clinically significant content present in A but missing from B.", "A"),
	}
}

func tool(name, description, doc string) openai.Tool {
	strs := jsonschema.Definition{Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}}
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"clinical_concept": {Type: jsonschema.String, Description: "Short title of the finding, e.g. 'New Dx: CHF'."},
			"category":         {Type: jsonschema.String, Description: strings.Join(Categories, "|")},
			"severity":         {Type: jsonschema.String, Enum: []string{SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical}},
			"confidence":       {Type: jsonschema.Number, Description: "Between 0 and 1."},
			"rationale":        {Type: jsonschema.String, Description: "Why this matters clinically; one sentence."},
			"codes": {
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{"ICD10": strs, "SNOMED": strs, "RxNorm": strs},
			},
			"evidence": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"section":           {Type: jsonschema.String, Description: "e.g. 'Assessment & Plan', 'Meds'."},
					"snippet_" + doc: {Type: jsonschema.String, Description: "Minimal supporting text from document " + doc + "."},
					"offsets_" + doc: {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.Integer}},
				},
				Required: []string{"section", "snippet_" + doc},
			},
		},
		Required: []string{"clinical_concept", "category", "severity", "confidence", "rationale", "evidence"},
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}
