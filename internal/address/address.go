// Package address encodes and decodes the on-disk addressing scheme of the
// results tree:
//
//	<root>/<idx>/<model>/<prompt>/<timestamp>/<filename>
//
// and the versioned filename convention name.ext, name1.ext, name2.ext, ...
package address

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/notecheck/internal/apperr"
)

// idxExpr matches an idx segment as written by Encode: no leading zeros.
const idxExpr = `0|[1-9]\d*`

var (
	addressRe   = regexp.MustCompile(`^(?:(.*)/)?(` + idxExpr + `)/([^/]+)/([^/]+)/(\d+\.\d+)/([^/]+)$`)
	timestampRe = regexp.MustCompile(`^\d+\.\d+$`)
)

// Address identifies one artifact in the results tree.
type Address struct {
	Root      string `json:"root_dir"`
	Idx       int    `json:"idx"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Timestamp string `json:"timestamp"`
	Filename  string `json:"filename"`
}

// Validate reports whether every field can be encoded into a path that
// decodes back to the same address.
func (a Address) Validate() error {
	p := a.Path()
	switch {
	case a.Idx < 0:
		return &apperr.AddressError{Path: p, Reason: "idx must be non-negative"}
	case !validSegment(a.Model):
		return &apperr.AddressError{Path: p, Reason: "invalid model segment"}
	case !validSegment(a.Prompt):
		return &apperr.AddressError{Path: p, Reason: "invalid prompt segment"}
	case !timestampRe.MatchString(a.Timestamp):
		return &apperr.AddressError{Path: p, Reason: "timestamp must look like digits.digits"}
	case !validSegment(a.Filename):
		return &apperr.AddressError{Path: p, Reason: "invalid filename segment"}
	}
	return nil
}

// Dir returns the run directory holding the artifact.
func (a Address) Dir() string {
	return joinSlash(a.Root, strconv.Itoa(a.Idx), a.Model, a.Prompt, a.Timestamp)
}

// Path returns the slash-separated artifact path.
func (a Address) Path() string {
	return joinSlash(a.Dir(), a.Filename)
}

// TimestampValue parses the run timestamp as seconds since the epoch.
func (a Address) TimestampValue() float64 {
	v, _ := strconv.ParseFloat(a.Timestamp, 64)
	return v
}

// Encode builds and validates an artifact path.
func Encode(root string, idx int, model, prompt, timestamp, filename string) (string, error) {
	a := Address{Root: root, Idx: idx, Model: model, Prompt: prompt, Timestamp: timestamp, Filename: filename}
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a.Path(), nil
}

// Decode parses a path whose last five segments are
// idx/model/prompt/timestamp/filename. Everything before them is kept
// verbatim as the root. Nothing is returned on mismatch.
func Decode(path string) (Address, error) {
	slashed := filepath.ToSlash(path)
	m := addressRe.FindStringSubmatch(slashed)
	if m == nil {
		return Address{}, &apperr.AddressError{Path: path, Reason: "expected <root>/<idx>/<model>/<prompt>/<timestamp>/<filename> with idx in canonical form"}
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return Address{}, &apperr.AddressError{Path: path, Reason: "idx out of range"}
	}
	return Address{
		Root:      m[1],
		Idx:       idx,
		Model:     m[3],
		Prompt:    m[4],
		Timestamp: m[5],
		Filename:  m[6],
	}, nil
}

// Timestamp formats t as seconds since the epoch with microsecond precision,
// the form used for run directory names.
func Timestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

// ParseTimestamp parses a run directory name.
func ParseTimestamp(s string) (float64, error) {
	if !timestampRe.MatchString(s) {
		return 0, fmt.Errorf("address: malformed timestamp %q", s)
	}
	return strconv.ParseFloat(s, 64)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func joinSlash(root string, parts ...string) string {
	rest := strings.Join(parts, "/")
	if root == "" {
		return rest
	}
	return root + "/" + rest
}
