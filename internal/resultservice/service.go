// Package resultservice coordinates the artifact store, the catalog and the
// standards registry for the HTTP and MCP surfaces.
package resultservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/aggregate"
	"github.com/starford/notecheck/internal/apperr"
	"github.com/starford/notecheck/internal/checksum"
	"github.com/starford/notecheck/internal/index"
	"github.com/starford/notecheck/internal/locator"
	"github.com/starford/notecheck/internal/models"
	"github.com/starford/notecheck/internal/runner"
	"github.com/starford/notecheck/internal/standards"
	"github.com/starford/notecheck/internal/storage"
)

// Service coordinates storage, index and standards operations.
type Service struct {
	store     storage.Provider
	db        index.ArtifactIndex
	root      string
	standards *standards.Registry
	notes     map[int]string
}

// NewService creates a result service over the results root. notes holds
// the dataset's reference notes keyed by idx and may be nil.
func NewService(store storage.Provider, db index.ArtifactIndex, root string, reg *standards.Registry, notes map[int]string) *Service {
	return &Service{store: store, db: db, root: root, standards: reg, notes: notes}
}

// Root returns the results root.
func (s *Service) Root() string { return s.root }

// ListArtifacts returns one page of cataloged artifacts.
func (s *Service) ListArtifacts(_ context.Context, q index.ListQuery) ([]models.Artifact, int, error) {
	rows, total, err := s.db.ListArtifacts(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.Artifact, len(rows))
	for i, r := range rows {
		items[i] = toModel(r)
	}
	return items, total, nil
}

// GetArtifact reads one artifact from disk. rel must be an address relative
// to the results root.
func (s *Service) GetArtifact(_ context.Context, rel string) (*models.ArtifactDetail, error) {
	a, err := address.Decode(rel)
	if err != nil {
		return nil, err
	}
	if a.Root != "" {
		return nil, &apperr.AddressError{Path: rel, Reason: "path must be relative to the results root"}
	}
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	if !storage.Within(s.root, abs) {
		return nil, &apperr.AddressError{Path: rel, Reason: "path escapes the results root"}
	}
	data, err := s.store.Read(abs)
	if err != nil {
		return nil, err
	}
	detail := &models.ArtifactDetail{
		Artifact: models.Artifact{
			Path:      a.Path(),
			Idx:       a.Idx,
			Model:     a.Model,
			Prompt:    a.Prompt,
			Timestamp: a.Timestamp,
			Filename:  a.Filename,
			Checksum:  checksum.Sum(data),
			Size:      int64(len(data)),
		},
		Content: string(data),
	}
	if row, err := s.db.GetArtifact(detail.Path); err == nil {
		detail.UpdatedAt = row.UpdatedAt
	}
	if strings.HasSuffix(a.Filename, ".json") {
		if recs, err := s.store.ReadRecords(abs); err == nil {
			detail.Records = recs
		}
	}
	return detail, nil
}

// Locate walks the results root for filename under the filters. Addresses
// are returned sorted and relative to the root.
func (s *Service) Locate(ctx context.Context, filename string, idx, model, prompt address.Filter) ([]address.Address, error) {
	if filename == "" {
		return nil, apperr.Configf("filename is required")
	}
	addrs, err := locator.Locate(ctx, locator.Query{Root: s.root, Filename: filename, Idx: idx, Model: model, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	locator.Sort(addrs)
	for i := range addrs {
		addrs[i].Root = ""
	}
	return addrs, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, q index.SearchQuery) ([]index.SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, apperr.Configf("empty search query")
	}
	return s.db.Search(q)
}

// Stats delegates to the index.
func (s *Service) Stats(_ context.Context) (index.Stats, error) {
	return s.db.Stats()
}

// GetStandard returns the standard note for idx.
func (s *Service) GetStandard(_ context.Context, idx int) (*models.Standard, error) {
	res, err := s.standards.GetOrDefault(idx, s.notes)
	if err != nil {
		return nil, err
	}
	return &models.Standard{
		Idx:       idx,
		Path:      res.Path,
		Reference: res.Path == standards.Reference,
		Content:   res.Content,
	}, nil
}

// SetStandard points idx at source. Relative sources resolve against the
// results root; the target must exist inside it. standards.Reference resets
// the pointer.
func (s *Service) SetStandard(ctx context.Context, idx int, source string) (*models.Standard, error) {
	if source != standards.Reference {
		abs := source
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.root, filepath.FromSlash(source))
		}
		if !storage.Within(s.root, abs) {
			return nil, apperr.Configf("standard source %q is outside the results root", source)
		}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("standard source %s: %w", source, apperr.ErrNotFound)
			}
			return nil, err
		}
		source = abs
	}
	if err := s.standards.Set(idx, source); err != nil {
		return nil, err
	}
	return s.GetStandard(ctx, idx)
}

// ListStandards returns every live pointer keyed by idx.
func (s *Service) ListStandards(_ context.Context) (map[int]string, error) {
	return s.standards.List()
}

// Scores reduces located evaluation reports to mean precision, recall and
// F1 per (idx, model, prompt, rouge type). current restricts records to
// the standard in effect per idx; mostRecent keeps only the latest run.
func (s *Service) Scores(ctx context.Context, idx, model, prompt address.Filter, current, mostRecent bool) ([]models.ScoreRow, error) {
	opts := runner.SummarizeOptions{MostRecent: mostRecent, DryRun: true}
	if current {
		opts.Current = s.standards
	}
	t, err := runner.ScoreTable(ctx, s.store, locator.Query{Root: s.root, Idx: idx, Model: model, Prompt: prompt}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.ScoreRow{}
	if t.Len() == 0 {
		return out, nil
	}
	wide, err := aggregate.Pivot(t, runner.SummaryColumns...)
	if err != nil {
		return nil, err
	}
	for _, row := range wide.Rows {
		i, _ := row.Int(aggregate.ColIdx)
		p, _ := row.Float("p")
		r, _ := row.Float("r")
		f, _ := row.Float("f")
		out = append(out, models.ScoreRow{
			Idx:       i,
			Model:     row.String(aggregate.ColModel),
			Prompt:    row.String(aggregate.ColPrompt),
			RougeType: row.String(aggregate.ColRougeType),
			P:         p,
			R:         r,
			F:         f,
		})
	}
	return out, nil
}

func toModel(r index.ArtifactRow) models.Artifact {
	return models.Artifact{
		Path:      r.Path,
		Idx:       r.Idx,
		Model:     r.Model,
		Prompt:    r.Prompt,
		Timestamp: r.Timestamp,
		Filename:  r.Filename,
		Checksum:  r.Checksum,
		Size:      r.Size,
		UpdatedAt: r.UpdatedAt,
	}
}
