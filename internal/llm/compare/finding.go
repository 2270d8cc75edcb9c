package compare

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Severity levels a finding may carry.
const (
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Categories suggested to the model. Other values are accepted.
var Categories = []string{"diagnosis", "allergy", "medication", "procedure", "imaging", "lab", "vital", "plan", "other"}

// Codes lists coding-system references for a finding.
type Codes struct {
	ICD10  []string `json:"ICD10,omitempty"`
	SNOMED []string `json:"SNOMED,omitempty"`
	RxNorm []string `json:"RxNorm,omitempty"`
}

// Evidence anchors a finding to a section of one document. Added findings
// quote document B; missing findings quote document A.
type Evidence struct {
	Section  string `json:"section"`
	SnippetA string `json:"snippet_A,omitempty"`
	OffsetsA []int  `json:"offsets_A,omitempty"`
	SnippetB string `json:"snippet_B,omitempty"`
	OffsetsB []int  `json:"offsets_B,omitempty"`
}

// Finding is one clinically significant difference.
type Finding struct {
	ClinicalConcept string   `json:"clinical_concept"`
	Category        string   `json:"category"`
	Severity        string   `json:"severity"`
	Confidence      float64  `json:"confidence"`
	Rationale       string   `json:"rationale"`
	Codes           *Codes   `json:"codes,omitempty"`
	Evidence        Evidence `json:"evidence"`
}

// Validate rejects findings outside the reporting contract.
func (f *Finding) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.ClinicalConcept, validation.Required),
		validation.Field(&f.Category, validation.Required),
		validation.Field(&f.Severity, validation.Required,
			validation.In(SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical)),
		validation.Field(&f.Confidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&f.Evidence),
	)
}

// Validate requires the section to be named.
func (e Evidence) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Section, validation.Required),
	)
}

// Comparison is the outcome of comparing document B against document A.
type Comparison struct {
	Added   []Finding `json:"added"`
	Missing []Finding `json:"missing"`
	Text    string    `json:"text,omitempty"`
}
