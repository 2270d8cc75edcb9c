// Package models defines the domain types served by notecheck.
package models

import "time"

// Artifact is a cataloged file in the results tree. Path is relative to the
// results root and slash-separated.
type Artifact struct {
	Path      string    `json:"path"`
	Idx       int       `json:"idx"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Timestamp string    `json:"timestamp"`
	Filename  string    `json:"filename"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArtifactDetail is an artifact with its content. JSON artifacts also carry
// the decoded records.
type ArtifactDetail struct {
	Artifact
	Content string           `json:"content"`
	Records []map[string]any `json:"records,omitempty"`
}

// Standard is the note currently used as ground truth for one case.
type Standard struct {
	Idx       int    `json:"idx"`
	Path      string `json:"path"`
	Reference bool   `json:"reference"`
	Content   string `json:"content,omitempty"`
}

// ScoreRow is one pivoted summary row: mean precision, recall and F1 of a
// rouge type for one (idx, model, prompt).
type ScoreRow struct {
	Idx       int     `json:"idx"`
	Model     string  `json:"model"`
	Prompt    string  `json:"prompt"`
	RougeType string  `json:"rouge_type"`
	P         float64 `json:"p"`
	R         float64 `json:"r"`
	F         float64 `json:"f"`
}
