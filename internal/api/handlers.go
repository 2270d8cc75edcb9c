package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/apperr"
	"github.com/starford/notecheck/internal/checksum"
	"github.com/starford/notecheck/internal/index"
	"github.com/starford/notecheck/internal/resultservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *resultservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *resultservice.Service) *Handler {
	return &Handler{svc: svc}
}

// artifactPath extracts the artifact path from the URL (everything after
// /artifacts/). Supports encoded slashes from OpenAPI clients.
func artifactPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// filters reads the idx, model and prompt query parameters in their
// command-line form ("", "all", "a" or "a,b").
func filters(q url.Values) (idx, model, prompt address.Filter) {
	return address.ParseFilter(q.Get("idx")), address.ParseFilter(q.Get("model")), address.ParseFilter(q.Get("prompt"))
}

func pathIdx(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil || idx < 0 {
		return 0, apperr.Configf("idx must be a non-negative integer")
	}
	return idx, nil
}

// ListArtifacts handles GET /api/artifacts.
//
//	@Summary		List cataloged artifacts
//	@Tags			artifacts
//	@Produce		json
//	@Param			filename	query		string	false	"Exact filename"
//	@Param			idx			query		string	false	"Case filter: all, 3 or 3,4"
//	@Param			model		query		string	false	"Model filter"
//	@Param			prompt		query		string	false	"Prompt filter"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	ArtifactListResponse
//	@Security		BearerAuth
//	@Router			/artifacts [get]
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	idx, model, prompt := filters(q)

	items, total, err := h.svc.ListArtifacts(r.Context(), index.ListQuery{
		Filename: q.Get("filename"),
		Idx:      idx,
		Model:    model,
		Prompt:   prompt,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, "list artifacts", err)
		return
	}
	writeJSON(w, http.StatusOK, ArtifactListResponse{Artifacts: items, Total: total})
}

// GetArtifact handles GET /api/artifacts/*.
//
//	@Summary		Read one artifact by results-relative path
//	@Tags			artifacts
//	@Produce		json
//	@Param			path	path		string	true	"idx/model/prompt/timestamp/filename"
//	@Success		200		{object}	ArtifactDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/artifacts/{path} [get]
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	path := artifactPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.GetArtifact(r.Context(), path)
	if err != nil {
		writeError(w, "get artifact", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(detail.Checksum))
	if checksum.Matches(r.Header.Get("If-None-Match"), detail.Checksum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Locate handles GET /api/locate.
//
//	@Summary		Walk the results tree for one filename
//	@Tags			artifacts
//	@Produce		json
//	@Param			filename	query		string	true	"Exact filename"
//	@Param			idx			query		string	false	"Case filter"
//	@Param			model		query		string	false	"Model filter"
//	@Param			prompt		query		string	false	"Prompt filter"
//	@Success		200			{object}	LocateResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/locate [get]
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idx, model, prompt := filters(q)
	addrs, err := h.svc.Locate(r.Context(), q.Get("filename"), idx, model, prompt)
	if err != nil {
		writeError(w, "locate", err)
		return
	}
	if addrs == nil {
		addrs = []address.Address{}
	}
	writeJSON(w, http.StatusOK, LocateResponse{Addresses: addrs})
}

// Stats handles GET /api/stats.
//
//	@Summary		Catalog counts
//	@Tags			artifacts
//	@Produce		json
//	@Success		200	{object}	index.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListStandards handles GET /api/standards.
//
//	@Summary		List standard pointers
//	@Tags			standards
//	@Produce		json
//	@Success		200	{object}	StandardListResponse
//	@Security		BearerAuth
//	@Router			/standards [get]
func (h *Handler) ListStandards(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.ListStandards(r.Context())
	if err != nil {
		writeError(w, "list standards", err)
		return
	}
	writeJSON(w, http.StatusOK, StandardListResponse{Standards: links})
}

// GetStandard handles GET /api/standards/{idx}.
//
//	@Summary		Get the standard note for a case
//	@Tags			standards
//	@Produce		json
//	@Param			idx	path		int	true	"Case index"
//	@Success		200	{object}	Standard
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/standards/{idx} [get]
func (h *Handler) GetStandard(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r)
	if err != nil {
		writeError(w, "get standard", err)
		return
	}
	std, err := h.svc.GetStandard(r.Context(), idx)
	if err != nil {
		writeError(w, "get standard", err)
		return
	}
	writeJSON(w, http.StatusOK, std)
}

// SetStandard handles PUT /api/standards/{idx}.
//
//	@Summary		Point a case at a new standard note
//	@Tags			standards
//	@Accept			json
//	@Produce		json
//	@Param			idx		path		int					true	"Case index"
//	@Param			body	body		SetStandardRequest	true	"New source"
//	@Success		200		{object}	Standard
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/standards/{idx} [put]
func (h *Handler) SetStandard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	idx, err := pathIdx(r)
	if err != nil {
		writeError(w, "set standard", err)
		return
	}
	var req SetStandardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source is required"))
		return
	}
	std, err := h.svc.SetStandard(r.Context(), idx, req.Source)
	if err != nil {
		writeError(w, "set standard", err)
		return
	}
	slog.Info("standard updated", slog.Int("idx", idx), slog.String("path", std.Path))
	writeJSON(w, http.StatusOK, std)
}

// Scores handles GET /api/scores.
//
//	@Summary		Mean ROUGE scores per case, model, prompt and rouge type
//	@Tags			scores
//	@Produce		json
//	@Param			idx			query		string	false	"Case filter"
//	@Param			model		query		string	false	"Model filter"
//	@Param			prompt		query		string	false	"Prompt filter"
//	@Param			current		query		bool	false	"Only records scored against the current standard"
//	@Param			most_recent	query		bool	false	"Only the latest run per case"
//	@Success		200			{object}	ScoresResponse
//	@Security		BearerAuth
//	@Router			/scores [get]
func (h *Handler) Scores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idx, model, prompt := filters(q)
	current, _ := strconv.ParseBool(q.Get("current"))
	mostRecent, _ := strconv.ParseBool(q.Get("most_recent"))
	rows, err := h.svc.Scores(r.Context(), idx, model, prompt, current, mostRecent)
	if err != nil {
		writeError(w, "scores", err)
		return
	}
	writeJSON(w, http.StatusOK, ScoresResponse{Scores: rows})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across artifacts
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			filename	query		string	false	"Exact filename"
//	@Param			idx			query		string	false	"Case filter"
//	@Param			model		query		string	false	"Model filter"
//	@Param			prompt		query		string	false	"Prompt filter"
//	@Param			limit		query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	sq := index.SearchQuery{Text: q, Filename: r.URL.Query().Get("filename")}
	sq.Idx, sq.Model, sq.Prompt = filters(r.URL.Query())
	sq.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), sq)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
