// Package storage implements the versioned artifact store over the results
// tree.
package storage

import (
	"fmt"
	"strings"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/apperr"
)

// Mode selects which version a write targets.
type Mode int

const (
	// Overwrite always targets the unsuffixed name (version 0).
	Overwrite Mode = iota
	// New targets base{max+1}.ext and never touches existing versions.
	New
	// Extend appends JSON records to the version-0 collection.
	Extend
)

func (m Mode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case New:
		return "new"
	case Extend:
		return "extend"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses overwrite, new or extend.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overwrite":
		return Overwrite, nil
	case "new":
		return New, nil
	case "extend":
		return Extend, nil
	default:
		return 0, apperr.Configf("unknown write mode %q", s)
	}
}

// Provider is the interface for artifact reads and versioned writes.
type Provider interface {
	// Write stores content as dir/base{N}.ext according to mode and returns
	// the path written.
	Write(content []byte, dir, base, ext string, mode Mode) (string, error)
	// WriteJSON marshals v and writes it like Write.
	WriteJSON(v any, dir, base, ext string, mode Mode) (string, error)
	// Read returns the raw bytes at path.
	Read(path string) ([]byte, error)
	// ReadRecords reads a JSON array of objects.
	ReadRecords(path string) ([]map[string]any, error)
	// MostRecent returns the highest existing version of dir/base.ext.
	MostRecent(dir, base, ext string) (string, bool, error)
	// NewRun creates a fresh timestamp directory for one run.
	NewRun(root string, idx int, model, prompt string) (address.Address, error)
}
