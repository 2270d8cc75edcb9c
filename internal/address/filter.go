package address

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/notecheck/internal/apperr"
)

// FilterKind tags the variant held by a Filter.
type FilterKind int

const (
	Wildcard FilterKind = iota
	Literal
	Set
)

// matchNothing is an RE2 expression that never matches.
const matchNothing = `[^\x00-\x{10FFFF}]`

// Filter constrains one address field: any value, one value, or a set of
// values.
type Filter struct {
	kind   FilterKind
	values []string
}

// All matches any value.
func All() Filter { return Filter{kind: Wildcard} }

// Only matches exactly v.
func Only(v string) Filter { return Filter{kind: Literal, values: []string{v}} }

// AnyOf matches any of vs. An empty set matches nothing.
func AnyOf(vs ...string) Filter {
	return Filter{kind: Set, values: append([]string(nil), vs...)}
}

// Idxs is AnyOf over integer case indices.
func Idxs(ids ...int) Filter {
	vs := make([]string, len(ids))
	for i, id := range ids {
		vs[i] = strconv.Itoa(id)
	}
	return AnyOf(vs...)
}

// ParseFilter reads the command-line form: "" or "all" is a wildcard,
// "a,b,c" is a set and anything else is a literal.
func ParseFilter(s string) Filter {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return All()
	}
	if !strings.Contains(s, ",") {
		return Only(s)
	}
	var vs []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			vs = append(vs, part)
		}
	}
	return AnyOf(vs...)
}

// Kind returns the variant tag.
func (f Filter) Kind() FilterKind { return f.kind }

// Values returns the literal values, sorted. Nil for a wildcard.
func (f Filter) Values() []string {
	if f.kind == Wildcard {
		return nil
	}
	out := append([]string(nil), f.values...)
	sort.Strings(out)
	return out
}

// Matches reports whether v satisfies the filter.
func (f Filter) Matches(v string) bool {
	if f.kind == Wildcard {
		return true
	}
	for _, want := range f.values {
		if want == v {
			return true
		}
	}
	return false
}

func (f Filter) String() string {
	switch f.kind {
	case Wildcard:
		return "all"
	default:
		return strings.Join(f.values, ",")
	}
}

func (f Filter) expr(wild string) string {
	if f.kind == Wildcard {
		return wild
	}
	if len(f.values) == 0 {
		return matchNothing
	}
	quoted := make([]string, len(f.values))
	for i, v := range f.values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(quoted, "|")
}

// Pattern is the compiled form of one locate request. It matches the
// five-segment suffix below the results root.
type Pattern struct {
	root string
	re   *regexp.Regexp
}

// Compile builds a single expression for the given filters. Literal idx
// values must be non-negative integers and are matched in canonical form,
// so "07" selects directory 7.
func Compile(root, filename string, idx, model, prompt Filter) (*Pattern, error) {
	if !validSegment(filename) {
		return nil, apperr.Configf("invalid filename %q", filename)
	}
	return compile(root, regexp.QuoteMeta(filename), idx, model, prompt)
}

// CompileVersions is Compile matching every version of filename:
// name.ext, name1.ext, name2.ext, ...
func CompileVersions(root, filename string, idx, model, prompt Filter) (*Pattern, error) {
	base, ext, ok := SplitName(filename)
	if !ok || !validSegment(filename) {
		return nil, apperr.Configf("versioned filename %q must look like name.ext", filename)
	}
	return compile(root, VersionedPattern(base, ext), idx, model, prompt)
}

func compile(root, filenameExpr string, idx, model, prompt Filter) (*Pattern, error) {
	idx, err := canonicalIdx(idx)
	if err != nil {
		return nil, err
	}
	for _, f := range []Filter{model, prompt} {
		for _, v := range f.values {
			if !validSegment(v) {
				return nil, apperr.Configf("invalid filter value %q", v)
			}
		}
	}
	expr := `^(` + idx.expr(idxExpr) + `)/(` + model.expr(`[^/]+`) + `)/(` + prompt.expr(`[^/]+`) +
		`)/(\d+\.\d+)/(` + filenameExpr + `)$`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, apperr.Configf("compile pattern: %v", err)
	}
	return &Pattern{root: root, re: re}, nil
}

// canonicalIdx rewrites idx values without leading zeros.
func canonicalIdx(f Filter) (Filter, error) {
	if f.kind == Wildcard {
		return f, nil
	}
	out := Filter{kind: f.kind, values: make([]string, len(f.values))}
	for i, v := range f.values {
		n, err := strconv.ParseUint(v, 10, 31)
		if err != nil {
			return Filter{}, apperr.Configf("idx filter value %q is not a non-negative integer", v)
		}
		out.values[i] = strconv.FormatUint(n, 10)
	}
	return out, nil
}

// Match tests a slash-separated path relative to the root and returns the
// decoded address on success.
func (p *Pattern) Match(rel string) (Address, bool) {
	m := p.re.FindStringSubmatch(rel)
	if m == nil {
		return Address{}, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return Address{}, false
	}
	return Address{
		Root:      p.root,
		Idx:       idx,
		Model:     m[2],
		Prompt:    m[3],
		Timestamp: m[4],
		Filename:  m[5],
	}, true
}
