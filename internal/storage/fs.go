package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/apperr"
)

// FS implements Provider on the local file system.
type FS struct {
	now func() time.Time
}

// NewFS returns a file system store using the wall clock for run
// timestamps.
func NewFS() *FS {
	return &FS{now: time.Now}
}

// WithClock returns a copy of f that stamps runs with now.
func (f *FS) WithClock(now func() time.Time) *FS {
	return &FS{now: now}
}

// Write implements Provider.
func (f *FS) Write(content []byte, dir, base, ext string, mode Mode) (string, error) {
	switch mode {
	case Overwrite:
		target := filepath.Join(dir, address.VersionedName(base, ext, 0))
		return target, writeAtomic(target, content)

	case New:
		versions, err := address.Versions(dir, base, ext)
		if err != nil {
			return "", err
		}
		target := filepath.Join(dir, address.VersionedName(base, ext, address.NextVersion(versions)))
		return target, writeAtomic(target, content)

	case Extend:
		if ext != "json" {
			return "", fmt.Errorf("storage: extend %s.%s: %w", base, ext, apperr.ErrContentMismatch)
		}
		var incoming []json.RawMessage
		if err := json.Unmarshal(content, &incoming); err != nil {
			return "", fmt.Errorf("storage: extend %s.%s: payload is not a JSON array: %w", base, ext, apperr.ErrContentMismatch)
		}
		target := filepath.Join(dir, address.VersionedName(base, ext, 0))
		existing, err := os.ReadFile(target)
		if errors.Is(err, fs.ErrNotExist) {
			return target, writeAtomic(target, content)
		}
		if err != nil {
			return "", fmt.Errorf("storage: read %s: %w", target, err)
		}
		var merged []json.RawMessage
		if len(bytes.TrimSpace(existing)) > 0 {
			if err := json.Unmarshal(existing, &merged); err != nil {
				return "", fmt.Errorf("storage: extend %s: existing file is not a JSON array: %w", target, apperr.ErrContentMismatch)
			}
		}
		merged = append(merged, incoming...)
		out, err := json.MarshalIndent(merged, "", "    ")
		if err != nil {
			return "", fmt.Errorf("storage: encode %s: %w", target, err)
		}
		return target, writeAtomic(target, out)

	default:
		return "", apperr.Configf("unknown write mode %v", mode)
	}
}

// WriteJSON implements Provider. Records are indented by four spaces.
func (f *FS) WriteJSON(v any, dir, base, ext string, mode Mode) (string, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", fmt.Errorf("storage: encode %s.%s: %w", base, ext, err)
	}
	return f.Write(data, dir, base, ext, mode)
}

// Read implements Provider.
func (f *FS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// ReadRecords implements Provider.
func (f *FS) ReadRecords(path string) ([]map[string]any, error) {
	data, err := f.Read(path)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("storage: %s is not a JSON array of objects: %w", path, apperr.ErrContentMismatch)
	}
	return records, nil
}

// MostRecent implements Provider.
func (f *FS) MostRecent(dir, base, ext string) (string, bool, error) {
	versions, err := address.Versions(dir, base, ext)
	if err != nil {
		return "", false, err
	}
	if len(versions) == 0 {
		return "", false, nil
	}
	return filepath.Join(dir, address.VersionedName(base, ext, versions[len(versions)-1])), true, nil
}

// NewRun implements Provider. If the clock collides with an existing run
// directory the timestamp is bumped by one microsecond until it is free.
func (f *FS) NewRun(root string, idx int, model, prompt string) (address.Address, error) {
	t := f.now()
	a := address.Address{Root: root, Idx: idx, Model: model, Prompt: prompt, Timestamp: address.Timestamp(t), Filename: "_"}
	if err := a.Validate(); err != nil {
		return address.Address{}, err
	}
	a.Filename = ""
	parent := filepath.Dir(filepath.FromSlash(a.Dir()))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return address.Address{}, fmt.Errorf("storage: mkdir %s: %w", parent, err)
	}
	for attempt := 0; attempt < 1000; attempt++ {
		err := os.Mkdir(filepath.Join(parent, a.Timestamp), 0o755)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return address.Address{}, fmt.Errorf("storage: create run dir: %w", err)
		}
		t = t.Add(time.Microsecond)
		a.Timestamp = address.Timestamp(t)
	}
	return address.Address{}, fmt.Errorf("storage: no free run directory under %s", parent)
}

// writeAtomic writes content via tmp file, fsync and rename, creating any
// missing parent directories first.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".notecheck-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Within reports whether path resolves inside root.
func Within(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel)
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
