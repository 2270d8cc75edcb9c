// Package prompt loads named templates from the prompt library:
//
//	<dir>/generation/<name>.txt   names starting with g
//	<dir>/similarity/<name>.txt   names starting with s
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/starford/notecheck/internal/apperr"
)

// Mode is the template family selected by a prompt name's first letter.
type Mode string

const (
	Generation Mode = "generation"
	Similarity Mode = "similarity"
)

// Template is a loaded prompt.
type Template struct {
	Name string
	Mode Mode
	Text string
}

// ModeOf derives the template family from name.
func ModeOf(name string) (Mode, error) {
	if name == "" {
		return "", apperr.Configf("empty prompt name")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", apperr.Configf("prompt name %q must not contain a path separator", name)
	}
	switch unicode.ToLower(rune(name[0])) {
	case 'g':
		return Generation, nil
	case 's':
		return Similarity, nil
	}
	return "", apperr.Configf("prompt name %q must start with g (generation) or s (similarity)", name)
}

// Path returns where the template for name lives under dir.
func Path(dir, name string) (string, error) {
	mode, err := ModeOf(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, string(mode), name+".txt"), nil
}

// Load reads the template for name from dir.
func Load(dir, name string) (Template, error) {
	p, err := Path(dir, name)
	if err != nil {
		return Template{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Template{}, fmt.Errorf("prompt %s: %w", name, apperr.ErrNotFound)
		}
		return Template{}, fmt.Errorf("prompt %s: %w", name, err)
	}
	mode, _ := ModeOf(name)
	return Template{Name: name, Mode: mode, Text: string(data)}, nil
}

// Require loads name and checks that it belongs to mode.
func Require(dir, name string, mode Mode) (Template, error) {
	m, err := ModeOf(name)
	if err != nil {
		return Template{}, err
	}
	if m != mode {
		return Template{}, apperr.Configf("prompt %q is a %s template, need %s", name, m, mode)
	}
	return Load(dir, name)
}

// List returns the template names available for mode, sorted.
func List(dir string, mode Mode) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, string(mode), "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("prompt: list: %w", err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".txt"))
	}
	return out, nil
}
