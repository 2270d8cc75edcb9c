// Package rouge scores a candidate note against a reference with ROUGE-1,
// ROUGE-2 and ROUGE-L.
package rouge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/notecheck/internal/apperr"
)

// Type names as they appear in reports.
const (
	Rouge1 = "rouge-1"
	Rouge2 = "rouge-2"
	RougeL = "rouge-l"
)

// Types lists the metric kinds in report order.
var Types = []string{Rouge1, Rouge2, RougeL}

// ErrEmptyText is returned when either side has no scorable tokens.
var ErrEmptyText = fmt.Errorf("rouge: empty text: %w", apperr.ErrContentMismatch)

var nonAlphaNumRE = regexp.MustCompile(`[^a-z0-9]+`)

// Triple is precision, recall and F1, each in [0, 1].
type Triple struct {
	P float64 `json:"p"`
	R float64 `json:"r"`
	F float64 `json:"f"`
}

// Record is one metric record.
type Record struct {
	Rouge1 Triple `json:"rouge-1"`
	Rouge2 Triple `json:"rouge-2"`
	RougeL Triple `json:"rouge-l"`
}

// Get returns the triple for a type name.
func (r Record) Get(typ string) (Triple, bool) {
	switch typ {
	case Rouge1:
		return r.Rouge1, true
	case Rouge2:
		return r.Rouge2, true
	case RougeL:
		return r.RougeL, true
	}
	return Triple{}, false
}

// Scorer computes metric records.
type Scorer struct{}

// Score implements the metrics collaborator.
func (Scorer) Score(candidate, reference string) (Record, error) {
	return Score(candidate, reference)
}

// Score compares candidate with reference.
func Score(candidate, reference string) (Record, error) {
	cand := Tokenize(candidate)
	ref := Tokenize(reference)
	if len(cand) == 0 || len(ref) == 0 {
		return Record{}, ErrEmptyText
	}
	return Record{
		Rouge1: ngramTriple(ref, cand, 1),
		Rouge2: ngramTriple(ref, cand, 2),
		RougeL: lcsTriple(ref, cand),
	}, nil
}

// Average returns the component-wise mean of records.
func Average(records []Record) Record {
	if len(records) == 0 {
		return Record{}
	}
	var sum Record
	for _, r := range records {
		sum.Rouge1 = add(sum.Rouge1, r.Rouge1)
		sum.Rouge2 = add(sum.Rouge2, r.Rouge2)
		sum.RougeL = add(sum.RougeL, r.RougeL)
	}
	n := float64(len(records))
	return Record{Rouge1: scale(sum.Rouge1, n), Rouge2: scale(sum.Rouge2, n), RougeL: scale(sum.RougeL, n)}
}

// Tokenize lowercases text, replaces non-alphanumerics with spaces and
// splits on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(nonAlphaNumRE.ReplaceAllString(strings.ToLower(text), " "))
}

func add(a, b Triple) Triple { return Triple{P: a.P + b.P, R: a.R + b.R, F: a.F + b.F} }

func scale(t Triple, n float64) Triple { return Triple{P: t.P / n, R: t.R / n, F: t.F / n} }

func fMeasure(p, r float64) float64 {
	if p+r > 0 {
		return 2 * p * r / (p + r)
	}
	return 0
}

func ngrams(tokens []string, n int) (map[string]int, int) {
	if len(tokens) < n {
		return map[string]int{}, 0
	}
	out := make(map[string]int, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		out[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return out, len(tokens) - n + 1
}

func ngramTriple(ref, cand []string, n int) Triple {
	refGrams, refCount := ngrams(ref, n)
	candGrams, candCount := ngrams(cand, n)
	overlap := 0
	for k, c := range refGrams {
		overlap += min(c, candGrams[k])
	}
	var p, r float64
	if candCount > 0 {
		p = float64(overlap) / float64(candCount)
	}
	if refCount > 0 {
		r = float64(overlap) / float64(refCount)
	}
	return Triple{P: p, R: r, F: fMeasure(p, r)}
}

func lcsTriple(ref, cand []string) Triple {
	l := float64(lcsLength(ref, cand))
	p := l / float64(len(cand))
	r := l / float64(len(ref))
	return Triple{P: p, R: r, F: fMeasure(p, r)}
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		curr[0] = 0
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
