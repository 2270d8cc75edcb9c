package api

import (
	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/models"
)

// Artifact is a cataloged artifact (aliased from the domain layer).
type Artifact = models.Artifact

// ArtifactDetail is an artifact with content (aliased from the domain layer).
type ArtifactDetail = models.ArtifactDetail

// Standard is the standard note for one case (aliased from the domain layer).
type Standard = models.Standard

// ScoreRow is one summary row (aliased from the domain layer).
type ScoreRow = models.ScoreRow

// ArtifactListResponse wraps paginated artifact listings.
type ArtifactListResponse struct {
	Artifacts []Artifact `json:"artifacts" validate:"required"`
	Total     int        `json:"total" example:"42" validate:"required"`
}

// LocateResponse lists matching addresses relative to the results root.
type LocateResponse struct {
	Addresses []address.Address `json:"addresses" validate:"required"`
}

// SetStandardRequest is the request body for pointing a case at a new
// standard. Source is a results-relative path or "ref".
type SetStandardRequest struct {
	Source string `json:"source" example:"3/llama3/gen/1700000000.000000/gen_note.txt" validate:"required"`
}

// StandardListResponse maps idx to pointer target.
type StandardListResponse struct {
	Standards map[int]string `json:"standards" validate:"required"`
}

// ScoresResponse wraps summary rows.
type ScoresResponse struct {
	Scores []ScoreRow `json:"scores" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"3/llama3/gen/1700000000.000000/gen_note.txt" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
