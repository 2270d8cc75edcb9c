// Package standards keeps the per-case pointer to the note currently used as
// ground truth. Each pointer is a symbolic link standards/<idx>.txt whose
// target is the source path exactly as given to Set.
package standards

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/starford/notecheck/internal/apperr"
)

// Reference marks the embedded dataset note as the standard. Evaluation
// records store it as their standard_note_path when no pointer is set.
const Reference = "ref"

// ErrStandardNotFound is returned when no pointer exists and no fallback
// note is available.
var ErrStandardNotFound = fmt.Errorf("standard %w", apperr.ErrNotFound)

var linkNameRe = regexp.MustCompile(`^(\d+)\.txt$`)

// Resolved is a standard note and where it came from.
type Resolved struct {
	Idx     int    `json:"idx"`
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// Registry manages pointers under one directory.
type Registry struct {
	dir string
}

// New returns a registry rooted at dir. The directory is created lazily.
func New(dir string) *Registry {
	return &Registry{dir: dir}
}

// Dir returns the registry directory.
func (r *Registry) Dir() string { return r.dir }

func (r *Registry) linkPath(idx int) string {
	return filepath.Join(r.dir, strconv.Itoa(idx)+".txt")
}

// Set points idx at source. Passing Reference removes the pointer instead.
// The new link is created under a temporary name and renamed over the old
// one, so at most one pointer is live for idx at any moment.
func (r *Registry) Set(idx int, source string) error {
	if idx < 0 {
		return apperr.Configf("idx must be non-negative, got %d", idx)
	}
	if source == Reference {
		return r.SetReference(idx)
	}
	if source == "" {
		return apperr.Configf("empty standard source for idx %d", idx)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("standards: mkdir: %w", err)
	}
	link := r.linkPath(idx)
	tmp := link + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(source, tmp); err != nil {
		return fmt.Errorf("standards: link %d: %w", idx, err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("standards: replace %d: %w", idx, err)
	}
	return nil
}

// SetReference removes any pointer for idx so lookups fall through to the
// dataset note.
func (r *Registry) SetReference(idx int) error {
	err := os.Remove(r.linkPath(idx))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("standards: unset %d: %w", idx, err)
	}
	return nil
}

// Get returns the source path idx points at.
func (r *Registry) Get(idx int) (string, error) {
	target, err := os.Readlink(r.linkPath(idx))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("standards: idx %d: %w", idx, ErrStandardNotFound)
		}
		return "", fmt.Errorf("standards: readlink %d: %w", idx, err)
	}
	return target, nil
}

// Resolve returns the path recorded by evaluations against the current
// standard: the pointer target, or Reference when no pointer is set.
func (r *Registry) Resolve(idx int) (string, error) {
	p, err := r.Get(idx)
	if errors.Is(err, ErrStandardNotFound) {
		return Reference, nil
	}
	return p, err
}

// GetOrDefault returns the standard note content for idx, reading the
// pointer target when set and otherwise taking the note from fallback.
func (r *Registry) GetOrDefault(idx int, fallback map[int]string) (Resolved, error) {
	p, err := r.Get(idx)
	switch {
	case err == nil:
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			if errors.Is(readErr, fs.ErrNotExist) {
				return Resolved{}, fmt.Errorf("standards: idx %d points at missing %s: %w", idx, p, apperr.ErrNotFound)
			}
			return Resolved{}, fmt.Errorf("standards: read %s: %w", p, readErr)
		}
		return Resolved{Idx: idx, Path: p, Content: string(data)}, nil
	case errors.Is(err, ErrStandardNotFound):
		note, ok := fallback[idx]
		if !ok {
			return Resolved{}, err
		}
		return Resolved{Idx: idx, Path: Reference, Content: note}, nil
	default:
		return Resolved{}, err
	}
}

// List returns every live pointer keyed by idx.
func (r *Registry) List() (map[int]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[int]string{}, nil
		}
		return nil, fmt.Errorf("standards: list: %w", err)
	}
	out := make(map[int]string, len(entries))
	for _, e := range entries {
		m := linkNameRe.FindStringSubmatch(e.Name())
		if m == nil || e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		out[idx] = target
	}
	return out, nil
}

// InitFromResults points every idx under root that has a full_note.txt at
// that file and returns how many pointers were set.
func (r *Registry) InitFromResults(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("standards: read results root: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		idx, err := strconv.Atoi(e.Name())
		if err != nil || idx < 0 {
			continue
		}
		src := filepath.Join(root, e.Name(), "full_note.txt")
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := r.Set(idx, src); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Source resolves standards through a registry, falling back to dataset
// notes for unset pointers.
type Source struct {
	reg      *Registry
	fallback map[int]string
}

// WithFallback binds notes as the fallback for unset pointers.
func (r *Registry) WithFallback(notes map[int]string) Source {
	return Source{reg: r, fallback: notes}
}

// Standard returns the standard note for idx.
func (s Source) Standard(idx int) (Resolved, error) {
	return s.reg.GetOrDefault(idx, s.fallback)
}
