package index

import "github.com/starford/notecheck/internal/address"

// ArtifactIndex defines the catalog operations. Consumers should depend on
// this interface rather than the concrete *DB type.
type ArtifactIndex interface {
	UpsertArtifact(a ArtifactRow, body string) error
	DeleteArtifact(path string) error
	GetChecksum(path string) (string, error)
	GetArtifact(path string) (*ArtifactRow, error)
	ListArtifacts(q ListQuery) ([]ArtifactRow, int, error)
	Search(q SearchQuery) ([]SearchResult, error)
	Stats() (Stats, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// ListQuery filters catalog listings. Zero filters match everything.
type ListQuery struct {
	Filename string
	Idx      address.Filter
	Model    address.Filter
	Prompt   address.Filter
	Limit    int
	Offset   int
}

// SearchQuery is a text search narrowed by address filters.
type SearchQuery struct {
	Text     string
	Filename string
	Idx      address.Filter
	Model    address.Filter
	Prompt   address.Filter
	Limit    int
}

func (q SearchQuery) limit() int {
	if q.Limit <= 0 {
		return 20
	}
	return q.Limit
}

// Verify *DB satisfies ArtifactIndex at compile time.
var _ ArtifactIndex = (*DB)(nil)
